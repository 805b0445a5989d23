package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "eval [expr]",
		Aliases: []string{"e"},
		Short:   "Evaluate an expression",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runEval,
	}
	cmd.Flags().StringP("code", "c", "", "expression to evaluate")
	cmd.Flags().Bool("stdin", false, "read the expression from stdin")
	cmd.Flags().StringP("output", "o", "", "output format (json, text)")
	cmd.Flags().IntP("repeat", "n", 1, "number of times to execute the expression")
	cmd.Flags().Bool("timing", false, "show execution time")
	cmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runEval(cmd *cobra.Command, args []string) error {
	code, err := getCode(cmd, args)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	repeat, _ := cmd.Flags().GetInt("repeat")
	timing, _ := cmd.Flags().GetBool("timing")
	if repeat < 1 {
		return fmt.Errorf("repeat must be at least 1")
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	var total time.Duration
	for i := 0; i < repeat; i++ {
		res, err := engine.Execute(cmd.Context(), code)
		if err != nil {
			return err
		}
		total += res.ExecutionTime
		if i < repeat-1 {
			continue
		}
		out := cmd.OutOrStdout()
		switch strings.ToLower(output) {
		case "json":
			if err := writeJSON(out, res); err != nil {
				return err
			}
		case "", "text":
			fmt.Fprintln(out, res.Value)
		default:
			return fmt.Errorf("unknown output format: %s", output)
		}
		if timing {
			mode := "interpreted"
			if res.Compiled {
				mode = "compiled"
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "last: %v (%s), total: %v over %d runs\n",
				res.ExecutionTime, mode, total, repeat)
		}
	}
	return nil
}
