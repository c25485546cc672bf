package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"llmserve/internal/registry"
)

func newListCmd(fv *flagValues) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List model snapshots present in the models directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), fv, os.Getenv)
			if err != nil {
				return err
			}
			snaps, err := registry.Scan(cfg.ModelsDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snaps)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFILES\tSIZE\tWEIGHTS")
			for _, s := range snaps {
				weights := strings.Join(s.Weights, ",")
				if s.Partial > 0 {
					weights += fmt.Sprintf(" (%d partial)", s.Partial)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Name, s.Files, humanBytes(s.SizeBytes), weights)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
