package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/deepnoodle-ai/hotpath/native"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			info := map[string]any{
				"version": version,
				"commit":  commit,
				"date":    date,
				"arch":    runtime.GOOS + "/" + runtime.GOARCH,
				"native":  native.Supported,
			}
			if strings.ToLower(output) == "json" {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hotpath %s (commit %s, built %s, %s, native=%t)\n",
				version, commit, date, info["arch"], native.Supported)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "output format (json, text)")
	return cmd
}
