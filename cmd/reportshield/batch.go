package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/batch"
)

var (
	batchXLSX     string
	watchDebounce int
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Audit every PDF in a directory",
	Long:  "Audits every PDF directly under dir, writing <name>.audit.txt beside each file and optionally a findings workbook.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := initPipeline(cfg)
		if err != nil {
			return err
		}

		items, err := batch.New(p, cfg.Batch.Concurrency, "").AuditDir(ctx, args[0])
		if err != nil {
			return err
		}

		var failed int
		out := cmd.OutOrStdout()
		for _, it := range items {
			switch {
			case it.Err != nil:
				failed++
				fmt.Fprintf(out, "%s\terror: %v\n", it.Path, it.Err)
			case it.Result.Failed():
				failed++
				fmt.Fprintf(out, "%s\t%s\n", it.Path, it.Result.Failure.Class)
			default:
				fmt.Fprintf(out, "%s\t%d findings\n", it.Path, len(it.Result.Findings))
			}
		}
		fmt.Fprintf(out, "%d files, %d failed\n", len(items), failed)

		if batchXLSX != "" {
			if err := batch.WriteWorkbook(items, batchXLSX); err != nil {
				return err
			}
			zap.L().Info("workbook written", zap.String("path", batchXLSX))
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Audit PDFs as they land in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := initPipeline(cfg)
		if err != nil {
			return err
		}

		b := batch.New(p, cfg.Batch.Concurrency, "")
		return b.Watch(ctx, args[0], msDuration(watchDebounce), func(it batch.Item) {
			if it.Err == nil {
				zap.L().Info("report written", zap.String("file", it.Path), zap.String("report", batch.ReportPath(it.Path)))
			}
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchXLSX, "xlsx", "", "write a findings workbook to this path")
	watchCmd.Flags().IntVar(&watchDebounce, "debounce-ms", 500, "quiet period before a new file is audited")
	rootCmd.AddCommand(batchCmd, watchCmd)
}
