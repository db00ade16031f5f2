package main

import (
	"encoding/json"
	"io"

	"github.com/AlexTsimba/traffboard-sub001/internal/config"
	"github.com/AlexTsimba/traffboard-sub001/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "traffctl",
		Short:         "Operate the traffic and player data import pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", ".", "Directory containing config.yaml and .env")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(
		newMigrateCmd(&opts),
		newDetectCmd(),
		newImportCmd(&opts),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	logger, err := logging.New(cfg.Logging.Level, "text")
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func printJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
