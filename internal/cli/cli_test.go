package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	forLoopNotebook = `{"cells": [{"cell_type": "code", "source": ["for i in range(3):\n", "    print(i)"]}, {"cell_type": "markdown", "source": "notes"}]}`
	classNotebook   = `{"cells": [{"cell_type": "code", "source": "class Foo:\n    pass"}]}`
)

// run executes the root command with args and returns its output
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(os.Stdout)
		rootCmd.SetErr(os.Stderr)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
		cfg = defaultSettings()
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCompareCmd(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "alice.ipynb", forLoopNotebook)
	bob := writeFile(t, dir, "bob.ipynb", forLoopNotebook)
	carol := writeFile(t, dir, "carol.ipynb", classNotebook)

	out, err := run(t, "compare", target, bob, carol)

	require.NoError(t, err)
	assert.Contains(t, out, "Target: alice")
	assert.Contains(t, out, "Compared 2 notebook(s)")
	assert.Contains(t, out, "1.000  bob")
	assert.NotContains(t, out, "carol\n")
}

func TestCompareCmd_JSON(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "alice.ipynb", forLoopNotebook)
	bob := writeFile(t, dir, "bob.ipynb", forLoopNotebook)

	out, err := run(t, "compare", "--json", "-t", "1", target, bob)

	require.NoError(t, err)
	var result models.CheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1.0, result.Threshold)
	assert.Empty(t, result.Matches)
	assert.Equal(t, 1, result.SiblingsCompared)
}

func TestCompareCmd_Errors(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "alice.ipynb", forLoopNotebook)

	_, err := run(t, "compare", target)
	assert.Error(t, err)

	_, err = run(t, "compare", target, filepath.Join(dir, "other", "alice.ipynb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = run(t, "compare", "--threshold", "2", target, filepath.Join(dir, "bob.ipynb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold")
}

func TestCompareCmd_MissingSiblingIsSkipped(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "alice.ipynb", forLoopNotebook)

	out, err := run(t, "compare", target, filepath.Join(dir, "ghost.ipynb"))

	require.NoError(t, err)
	assert.Contains(t, out, "skipped ghost")
	assert.Contains(t, out, "No similar cells found.")
}

func TestTokensCmd(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "snippet.py", "x = 'hello'  # greet\n")

	out, err := run(t, "tokens", src)
	require.NoError(t, err)
	assert.Equal(t, "x = STRING_LITERAL", strings.TrimSpace(out))

	out, err = run(t, "tokens", "--normalize-literals=false", src)
	require.NoError(t, err)
	assert.NotContains(t, out, "STRING_LITERAL")
	assert.Contains(t, out, "hello")
}

func TestTokensCmd_Notebook(t *testing.T) {
	dir := t.TempDir()
	nb := writeFile(t, dir, "nb.ipynb", `{"cells": [{"cell_type": "code", "source": "a = 1"}, {"cell_type": "code", "source": "b = 2"}]}`)

	out, err := run(t, "tokens", nb)

	require.NoError(t, err)
	assert.Contains(t, out, "[cell 0] a = NUMBER_LITERAL")
	assert.Contains(t, out, "[cell 1] b = NUMBER_LITERAL")
}

func TestExplainCmd(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.py", "total = a + 1\n")
	b := writeFile(t, dir, "b.py", "total = b + 2\n")

	out, err := run(t, "explain", a, b)

	require.NoError(t, err)
	assert.Contains(t, out, "aggregate")
	assert.Contains(t, out, "tokens     5 / 5")
	assert.Contains(t, out, "a[0:2] b[0:2]  total =")
}

func TestUnsupportedLanguage(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "snippet.txt", "x")

	_, err := run(t, "tokens", "-l", "brainfudge", src)

	assert.ErrorContains(t, err, "unsupported language")
}
