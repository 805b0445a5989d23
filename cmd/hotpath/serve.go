package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/deepnoodle-ai/hotpath/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn().Err(err).Msg("closing engine")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := engine.Config()
	log.Info().
		Uint64("hot_threshold", cfg.HotThreshold).
		Int("max_entries", cfg.MaxEntries).
		Stringer("mode", cfg.Mode).
		Msg("starting server")
	srv := server.New(engine, server.WithLogger(log.Logger))
	return srv.ListenAndServe(ctx, viper.GetString("addr"))
}
