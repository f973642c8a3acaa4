package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/a3tai/reportshield/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit <file.pdf>",
	Short: "Audit one PDF and print the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := initPipeline(cfg)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		res := p.Run(cmd.Context(), audit.Input{Data: data, FileName: filepath.Base(args[0])}, "")
		fmt.Fprintln(cmd.OutOrStdout(), res.Report)

		if res.Failed() {
			return eris.Errorf("audit failed: %s", res.Failure.Class)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
