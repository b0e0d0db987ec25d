// Package cli implements the nbcompare command line tool, which runs the
// similarity engine over local notebooks and source files.
package cli

import (
	"fmt"
	"os"

	"github.com/RishiKendai/cellguard/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	// cfg holds the effective settings after the config file and flags are applied.
	cfg = defaultSettings()
)

var rootCmd = &cobra.Command{
	Use:   "nbcompare",
	Short: "Compare notebook code cells for similarity",
	Long: `nbcompare tokenizes code cells and scores them with edit distance,
sequence alignment and bracket-tree distance.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.Init(logLevel, "console")

		loaded, err := loadSettings(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, &loaded)
		if err := loaded.validate(); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (default ~/.config/nbcompare/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.PersistentFlags().StringP("language", "l", "", "source language of the code cells")
	rootCmd.PersistentFlags().Bool("normalize-literals", true, "replace string and number literals with placeholders")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("nbcompare: %w", err)
	}
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, s *settings) {
	flags := cmd.Flags()
	if flags.Changed("language") {
		s.Language, _ = flags.GetString("language")
	}
	if flags.Changed("normalize-literals") {
		s.NormalizeLiterals, _ = flags.GetBool("normalize-literals")
	}
	if flags.Lookup("threshold") != nil && flags.Changed("threshold") {
		s.Threshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		s.Workers, _ = flags.GetInt("workers")
	}
}
