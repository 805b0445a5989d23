package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var red = color.New(color.FgRed).SprintFunc()

func newRootCmd() *cobra.Command {
	viper.Reset()
	root := &cobra.Command{
		Use:           "hotpath",
		Short:         "Adaptive JIT for integer expressions",
		Long:          "hotpath interprets expressions and compiles the ones that run often to native code.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return err
			}
			return processGlobalFlags(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.hotpath.yaml)")
	flags.String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	flags.Bool("no-color", false, "disable colored output")
	flags.Uint64("hot-threshold", 0, "executions before an expression is compiled")
	flags.Int("max-entries", 0, "maximum number of cache entries")
	flags.Duration("lock-timeout", 0, "maximum wait for the engine lock")
	flags.String("mode", "", "execution mode for compiled code (native, simulate)")
	for _, name := range []string{"config", "log-level", "no-color", "hot-threshold", "max-entries", "lock-timeout", "mode"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newEvalCmd(),
		newDisCmd(),
		newServeCmd(),
		newReplCmd(),
		newConfigCmd(),
		newDocCmd(),
		newVersionCmd(),
	)
	return root
}

// initConfig reads the config file and environment. Flags take precedence
// over both.
func initConfig() error {
	viper.SetEnvPrefix("hotpath")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		return viper.ReadInConfig()
	}
	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	viper.AddConfigPath(home)
	viper.SetConfigName(".hotpath")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}

// processGlobalFlags applies the global flags to color output and logging.
func processGlobalFlags(cmd *cobra.Command) error {
	if viper.GetBool("no-color") {
		color.NoColor = true
	}
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level %q", viper.GetString("log-level"))
	}
	logger := zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger()
	if isTerminal(os.Stderr) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: color.NoColor})
	}
	log.Logger = logger.Level(level)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		os.Exit(1)
	}
}
