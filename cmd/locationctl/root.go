package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"locationagent/internal/command"
	"locationagent/internal/config"
	"locationagent/internal/network"
)

var (
	version = "dev"

	configPath string
	via        string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "locationctl",
	Short:         "Control a running LocationAgent",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start location tracking",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return send(cmd, command.Start)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop location tracking",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return send(cmd, command.Stop)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("locationctl version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "conf/LocationAgent/LocationAgent.json", "Path to the agent configuration file")
	rootCmd.PersistentFlags().StringVar(&via, "via", "file", "Delivery channel: file or redis")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "Redis publish timeout")

	rootCmd.AddCommand(startCmd, stopCmd, versionCmd)
}

// send delivers cmd over the channel selected by --via, using the agent's
// own configuration to find the control file or Redis channel.
func send(cmd *cobra.Command, c command.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	switch strings.ToLower(via) {
	case "file":
		if cfg.Commands.ControlFile == "" {
			return fmt.Errorf("no control file configured in %s", configPath)
		}
		if err := command.WriteControlFile(cfg.Commands.ControlFile, c); err != nil {
			return err
		}
		cmd.Printf("%s written to %s\n", c, cfg.Commands.ControlFile)
		return nil

	case "redis":
		if !cfg.Redis.Enabled() || cfg.Commands.RedisChannel == "" {
			return fmt.Errorf("Redis commands not configured in %s", configPath)
		}
		var dial network.DialFunc
		if cfg.SOCKSProxy.Host != "" && cfg.SOCKSProxy.Port > 0 {
			dial = network.DialerFunc(cfg.SOCKSProxy.Host, cfg.SOCKSProxy.Port)
		}
		client := network.NewRedisClient(network.RedisConfig(cfg.Redis), dial)
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		n, err := command.Publish(ctx, client, cfg.Commands.RedisChannel, c)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s published on %s but no agent is listening", c, cfg.Commands.RedisChannel)
		}
		cmd.Printf("%s published on %s (%d receivers)\n", c, cfg.Commands.RedisChannel, n)
		return nil

	default:
		return fmt.Errorf("unsupported delivery channel: %s (supported: file, redis)", via)
	}
}
