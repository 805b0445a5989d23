package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/deepnoodle-ai/hotpath/dis"
	"github.com/deepnoodle-ai/hotpath/hotspot"
	"github.com/deepnoodle-ai/hotpath/internal/table"
	"github.com/deepnoodle-ai/hotpath/jit"
	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const (
	historyFile = ".hotpath_history"
	prompt      = ">>> "
)

const replHelp = `Enter an expression to evaluate it. Commands:
  :stats          show execution statistics
  :cache          list cache entries
  :env            show variables
  :dis <fp>       disassemble the compiled code for a fingerprint
  :reset          clear the cache, statistics and variables
  :help           show this message
  :quit           exit`

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE:  runRepl,
	}
}

func runRepl(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	historyPath := ""
	if home, err := homedir.Dir(); err == nil {
		historyPath = filepath.Join(home, historyFile)
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			ln.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(historyPath); err == nil {
				ln.WriteHistory(f)
				f.Close()
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	cfg := engine.Config()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "hotpath %s (threshold %d, mode %s). Type :help for commands.\n",
		version, cfg.HotThreshold, cfg.Mode)

	session := &replSession{engine: engine, out: out}
	for ctx.Err() == nil {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if session.handle(ctx, line) {
			return nil
		}
	}
	return nil
}

// replSession evaluates REPL input against one engine.
type replSession struct {
	engine *jit.Engine
	out    io.Writer
}

// handle runs one line of input and reports whether the session should end.
func (s *replSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ":") {
		s.eval(ctx, line)
		return false
	}
	command, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	var err error
	switch command {
	case "quit", "q", "exit":
		return true
	case "help", "h":
		fmt.Fprintln(s.out, replHelp)
	case "stats":
		err = s.stats(ctx)
	case "cache":
		err = s.cache(ctx)
	case "env":
		err = s.env(ctx)
	case "dis":
		err = s.dis(ctx, arg)
	case "reset":
		if err = s.engine.Reset(ctx); err == nil {
			fmt.Fprintln(s.out, "reset")
		}
	default:
		err = fmt.Errorf("unknown command :%s (try :help)", command)
	}
	if err != nil {
		fmt.Fprintln(s.out, red(err.Error()))
	}
	return false
}

func (s *replSession) eval(ctx context.Context, code string) {
	res, err := s.engine.Execute(ctx, code)
	if err != nil {
		fmt.Fprintln(s.out, red(err.Error()))
		return
	}
	marker := ""
	if res.Compiled {
		marker = color.New(color.FgGreen).Sprint(" [jit]")
	}
	fmt.Fprintf(s.out, "%d%s\n", res.Value, marker)
}

func (s *replSession) stats(ctx context.Context) error {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return err
	}
	rows := [][]string{
		{"total executions", fmt.Sprint(stats.TotalExecutions)},
		{"compiled executions", fmt.Sprint(stats.CompiledExecutions)},
		{"interpreted executions", fmt.Sprint(stats.InterpretedExecutions)},
		{"failed executions", fmt.Sprint(stats.FailedExecutions)},
		{"compilations", fmt.Sprint(stats.TotalCompilations)},
		{"compile failures", fmt.Sprint(stats.CompileFailures)},
		{"evictions", fmt.Sprint(stats.Evictions)},
		{"cache entries", fmt.Sprint(stats.CacheEntries)},
		{"busy rejections", fmt.Sprint(stats.BusyRejections)},
		{"avg execution time", stats.AverageExecutionTime().String()},
		{"avg compilation time", stats.AverageCompilationTime().String()},
		{"compiled ratio", fmt.Sprintf("%.1f%%", 100*stats.CompiledRatio())},
	}
	table.NewTable(s.out).
		WithColumnAlignment([]table.Alignment{table.AlignLeft, table.AlignRight}).
		WithRows(rows).
		Render()
	return nil
}

func (s *replSession) cache(ctx context.Context) error {
	entries, err := s.engine.CacheInfo(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "cache is empty")
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		size := ""
		if e.CodeSize > 0 {
			size = fmt.Sprint(e.CodeSize)
		}
		rows = append(rows, []string{e.Fingerprint.String(), fmt.Sprint(e.Count), e.State, size, e.Expr})
	}
	table.NewTable(s.out).
		WithHeader([]string{"FINGERPRINT", "COUNT", "STATE", "BYTES", "EXPRESSION"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
		}).
		WithRows(rows).
		Render()
	return nil
}

func (s *replSession) env(ctx context.Context) error {
	vars, err := s.engine.Environment(ctx)
	if err != nil {
		return err
	}
	return writeJSON(s.out, vars)
}

func (s *replSession) dis(ctx context.Context, arg string) error {
	if arg == "" {
		return errors.New("usage: :dis <fingerprint>")
	}
	fp, err := hotspot.ParseFingerprint(arg)
	if err != nil {
		return err
	}
	art, err := s.engine.Artifact(ctx, fp)
	if err != nil {
		return err
	}
	instructions, err := dis.Disassemble(art)
	if err != nil {
		return err
	}
	dis.Print(instructions, s.out)
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, dis.HexDump(art.Code))
	return nil
}
