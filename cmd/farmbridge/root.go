package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nerrad567/farm-bridge/internal/infrastructure/config"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/logging"
)

// defaultConfigPath is used when neither --config nor FARMBRIDGE_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// configEnv names the environment variable holding the config path.
const configEnv = config.EnvPrefix + "CONFIG"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "farmbridge",
		Short:         "Command and telemetry bridge for the smart-farm backend",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default $"+configEnv+" or "+defaultConfigPath+")")

	load := func() (*config.Config, *logging.Logger, error) {
		return loadConfig(configPath)
	}

	root.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newSimulateCmd(load),
		newVersionCmd(),
	)
	return root
}

// configLoader loads configuration and a logger configured from it.
type configLoader func() (*config.Config, *logging.Logger, error)

// loadConfig reads .env, resolves the config path and builds the logger.
func loadConfig(flagPath string) (*config.Config, *logging.Logger, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("loading .env: %w", err)
	}

	path := getConfigPath(flagPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", path)
	return cfg, log, nil
}

func getConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "farmbridge %s\ncommit: %s\nbuilt:  %s\n", version, commit, date)
		},
	}
}
