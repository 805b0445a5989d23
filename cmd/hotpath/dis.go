package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/deepnoodle-ai/hotpath/codegen"
	"github.com/deepnoodle-ai/hotpath/dis"
	"github.com/deepnoodle-ai/hotpath/parser"
	"github.com/spf13/cobra"
)

func newDisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dis [expr]",
		Short: "Show the machine code generated for an expression",
		Long: `Generate code for an expression and print its disassembly.

Variables the expression reads before assigning must be declared with --var,
the way they would be present in the engine's environment.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDis,
	}
	cmd.Flags().StringP("code", "c", "", "expression to compile")
	cmd.Flags().Bool("stdin", false, "read the expression from stdin")
	cmd.Flags().StringSlice("var", nil, "variable available to the expression (repeatable)")
	cmd.Flags().Bool("hex", false, "also print a hex dump of the code")
	return cmd
}

func runDis(cmd *cobra.Command, args []string) error {
	code, err := getCode(cmd, args)
	if err != nil {
		return err
	}
	vars, _ := cmd.Flags().GetStringSlice("var")
	withHex, _ := cmd.Flags().GetBool("hex")

	expr, err := parser.Parse(cmd.Context(), code)
	if err != nil {
		return err
	}
	if !codegen.IsCompilable(expr) {
		return fmt.Errorf("%s: %w", expr, codegen.ErrNotCompilable)
	}
	seeds := make([]string, 0, len(vars))
	for _, v := range vars {
		if v = strings.TrimSpace(v); v != "" {
			seeds = append(seeds, v)
		}
	}
	sort.Strings(seeds)
	art, err := codegen.Generate(expr, seeds)
	if err != nil {
		return err
	}
	instructions, err := dis.Disassemble(art)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\n", expr)
	dis.Print(instructions, out)
	if withHex {
		fmt.Fprintf(out, "\n%s\n", dis.HexDump(art.Code))
	}
	return nil
}
