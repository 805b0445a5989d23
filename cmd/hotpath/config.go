package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			doc := struct {
				Engine     any    `yaml:"engine"`
				ConfigFile string `yaml:"config_file,omitempty"`
				LogLevel   string `yaml:"log_level"`
				Addr       string `yaml:"addr,omitempty"`
			}{
				Engine:     cfg,
				ConfigFile: viper.ConfigFileUsed(),
				LogLevel:   viper.GetString("log-level"),
				Addr:       viper.GetString("addr"),
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
