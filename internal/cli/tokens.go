package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/RishiKendai/cellguard/internal/preprocess"
	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens <file>",
	Short: "Print the token sequence of a source file or notebook",
	Long: `Prints the normalized tokens the engine compares. Notebooks (.ipynb) are
printed cell by cell; any other file is tokenized as a single fragment.`,
	Args: cobra.ExactArgs(1),
	RunE: runTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}

func runTokens(cmd *cobra.Command, args []string) error {
	fragments, err := readFragments(args[0])
	if err != nil {
		return err
	}

	tokenizer := plagiarism.NewTokenizer(cfg.NormalizeLiterals)
	for i, source := range fragments {
		tokens, err := tokenizer.Tokenize(source, cfg.Language)
		if err != nil {
			return err
		}
		if len(fragments) > 1 {
			cmd.Printf("[cell %d] ", i)
		}
		cmd.Println(strings.Join(tokens, " "))
	}
	return nil
}

// readFragments returns the code cells of a notebook, or the whole file as one fragment
func readFragments(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".ipynb") {
		return preprocess.NewNotebookExtractor().ExtractFragments(data), nil
	}
	return []string{string(data)}, nil
}
