package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ecsync/ecsync/config"
	"github.com/ecsync/ecsync/libs/log"
	"github.com/ecsync/ecsync/node"
	"github.com/ecsync/ecsync/types"
	"github.com/ecsync/ecsync/version"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var home string

	cmd := &cobra.Command{
		Use:   "ecsync",
		Short: "commit-chain synchronization node",
	}
	cmd.PersistentFlags().StringVar(&home, "home", defaultHome(), "directory for config and data")

	cmd.AddCommand(
		initCommand(&home),
		startCommand(&home),
		versionCommand(),
	)
	return cmd
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ecsync"
	}
	return home + "/.ecsync"
}

func initCommand(home *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the home directory with a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.EnsureRoot(*home)
		},
	}
}

func startCommand(home *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the sync node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*home)
			if err != nil {
				return err
			}

			logger, err := log.NewDefaultLogger(cfg.LogFormat, cfg.LogLevel)
			if err != nil {
				return err
			}

			// Transport wiring is deployment-specific; the standalone
			// binary logs outbound traffic at debug level.
			n, err := node.New(cfg, logger, func(env types.Envelope) {
				logger.Debug("outbound envelope", "to", env.To, "msg", fmt.Sprintf("%T", env.Message))
			})
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := n.Start(ctx); err != nil {
				return err
			}

			logger.Info("started node", "version", version.EcsyncSemVer, "node_id", cfg.NodeID)
			<-ctx.Done()
			n.Wait()
			return nil
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.EcsyncSemVer)
		},
	}
}

func loadConfig(home string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.SetRoot(home)

	v := viper.New()
	v.SetConfigFile(cfg.ConfigFile())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing config file: run on defaults.
		return cfg, nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.SetRoot(home)
	return cfg, nil
}
