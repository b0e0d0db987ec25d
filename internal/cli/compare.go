package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/RishiKendai/cellguard/internal/preprocess"
	"github.com/RishiKendai/cellguard/internal/repository/memory"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

const localCheckpoint = "local"

var compareJSON bool

var compareCmd = &cobra.Command{
	Use:   "compare <target.ipynb> <sibling.ipynb>...",
	Short: "Compare a notebook against other notebooks",
	Long: `Scores every code cell of the target notebook against every code cell of
each sibling notebook and prints the pairs above the threshold.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().Float64P("threshold", "t", 0.5, "report pairs whose similarity is strictly above this value")
	compareCmd.Flags().Int("workers", 0, "number of comparison workers (0 sizes from CPU count)")
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(compareCmd)
}

// pathFetcher serves notebooks from local paths keyed by version id
type pathFetcher map[string]string

func (f pathFetcher) Fetch(ctx context.Context, documentVersionID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := f[documentVersionID]
	if !ok {
		return nil, fmt.Errorf("notebook %s: %w", documentVersionID, plagiarism.ErrNotFound)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("notebook %s: %w", path, plagiarism.ErrNotFound)
	}
	return data, err
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store := memory.NewStore()
	fetcher := make(pathFetcher, len(args))
	for _, path := range args {
		id := versionID(path)
		if _, dup := fetcher[id]; dup {
			return fmt.Errorf("duplicate notebook name %q", id)
		}
		fetcher[id] = path
		store.AddVersion(id, localCheckpoint)
	}

	pool := plagiarism.NewWorkerPool(ctx, cfg.Workers)
	defer pool.Close()

	cache := plagiarism.NewFragmentCache(store, fetcher, preprocess.NewNotebookExtractor(), nil)
	service := plagiarism.NewService(cache, store, plagiarism.NewTokenizer(cfg.NormalizeLiterals), pool, nil)

	result, err := service.Check(ctx, versionID(args[0]), cfg.Language, cfg.Threshold)
	if err != nil {
		return fmt.Errorf("compare failed: %w", err)
	}

	if compareJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printCheckResult(cmd, result)
	return nil
}

func printCheckResult(cmd *cobra.Command, result *models.CheckResult) {
	cmd.Printf("Target: %s (language %s, threshold %.2f)\n", result.DocumentVersionID, result.Language, result.Threshold)
	cmd.Printf("Compared %d notebook(s)\n", result.SiblingsCompared)

	for _, s := range result.Skipped {
		cmd.Printf("  skipped %s: %s\n", s.DocumentVersionID, s.Reason)
	}

	if len(result.Matches) == 0 {
		cmd.Println("No similar cells found.")
		return
	}

	cmd.Println()
	for _, m := range result.Matches {
		cmd.Printf("  cell %-3d  %.3f  %s\n", m.CellNumber, m.Similarity, m.RelatedDocVersionID)
	}
}

// versionID names a local notebook by its file name without extension
func versionID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
