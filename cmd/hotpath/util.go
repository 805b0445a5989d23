package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/deepnoodle-ai/hotpath/jit"
	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// loadConfig builds the engine configuration from defaults, the config file,
// environment variables and flags.
func loadConfig() (jit.Config, error) {
	cfg := jit.DefaultConfig()
	if v := viper.GetUint64("hot-threshold"); v != 0 {
		cfg.HotThreshold = v
	}
	if v := viper.GetInt("max-entries"); v != 0 {
		cfg.MaxEntries = v
	}
	if v := viper.GetDuration("lock-timeout"); v != 0 {
		cfg.LockTimeout = v
	}
	if s := viper.GetString("mode"); s != "" {
		mode, err := jit.ParseMode(s)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	return cfg, cfg.Validate()
}

func newEngine() (*jit.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return jit.New(jit.WithConfig(cfg), jit.WithLogger(log.Logger))
}

// getCode returns the source given by --code, --stdin or the first argument.
func getCode(cmd *cobra.Command, args []string) (string, error) {
	var codeFlagSet, stdinFlagSet bool
	if f := cmd.Flags().Lookup("code"); f != nil && f.Changed {
		codeFlagSet = true
	}
	if f := cmd.Flags().Lookup("stdin"); f != nil && f.Changed {
		stdinFlagSet = true
	}
	argSupplied := len(args) > 0
	count := 0
	for _, set := range []bool{codeFlagSet, stdinFlagSet, argSupplied} {
		if set {
			count++
		}
	}
	if count > 1 {
		return "", errors.New("multiple input sources specified")
	}
	switch {
	case stdinFlagSet:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		return string(data), nil
	case argSupplied:
		return args[0], nil
	case codeFlagSet:
		code, _ := cmd.Flags().GetString("code")
		return code, nil
	}
	return "", errors.New("no expression provided")
}

func writeJSON(w io.Writer, v any) error {
	var data []byte
	var err error
	if viper.GetBool("no-color") || color.NoColor {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = prettyjson.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
