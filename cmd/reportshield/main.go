package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/config"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reportshield",
	Short: "Deterministic compliance audit for appraisal PDFs",
	Long: "Validates an appraisal PDF, extracts its key fields through layout analysis, " +
		"evaluates the versioned compliance rules and prints a five-section audit report.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cmd.Flags())
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if version != "dev" {
			cfg.Version = version
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		if cfg.IsDebug() {
			zap.L().Debug("configuration loaded", zap.Stringer("config", cfg))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Skips config loading so the version prints without policy documents.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout())
	},
}

func init() {
	config.DefineFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(versionCmd)
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "ReportShield\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
