package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/deepnoodle-ai/hotpath"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newDocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "doc [topic]",
		Aliases: []string{"d"},
		Short:   "Show the language reference",
		Long: `Show the language reference.

The topic may be a category (functions, operators, syntax, errors, engine),
a function name, an operator symbol or an error code.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDoc,
	}
	cmd.Flags().StringP("output", "o", "", "output format (json, text)")
	return cmd
}

var docCategories = map[string]bool{
	"functions": true, "operators": true, "syntax": true, "errors": true, "engine": true,
}

func runDoc(cmd *cobra.Command, args []string) error {
	var docs *hotpath.Documentation
	switch {
	case len(args) == 0:
		docs = hotpath.Docs()
	case docCategories[strings.ToLower(args[0])]:
		docs = hotpath.Docs(hotpath.DocsCategory(args[0]))
	default:
		docs = hotpath.Docs(hotpath.DocsTopic(args[0]))
	}
	output, _ := cmd.Flags().GetString("output")
	if strings.ToLower(output) == "json" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), docs.JSON())
		return err
	}
	if len(args) == 0 {
		printQuickReference(cmd.OutOrStdout())
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), docs.Data())
}

func printQuickReference(w io.Writer) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s %s\n\n", bold("hotpath"), hotpath.Version)
	fmt.Fprintln(w, bold("Syntax"))
	fmt.Fprintln(w, "  x = 10                 assignment")
	fmt.Fprintln(w, "  x * 3 + 7              arithmetic: + - * / %")
	fmt.Fprintln(w, "  x >= 3                 comparison: == != < > <= >=")
	fmt.Fprintln(w, "  if(x > 0, x, -x)       conditional")
	fmt.Fprintln(w, "  fib(n) fact(n) pow(b, e)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'hotpath doc <topic>' for details on a category, function, operator or error code.")
}
