// Package main is the entry point for the LocationAgent application.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"locationagent/internal/command"
	"locationagent/internal/config"
	"locationagent/internal/display"
	"locationagent/internal/hardware"
	"locationagent/internal/location"
	"locationagent/internal/logger"
	"locationagent/internal/network"
	"locationagent/internal/permission"
	"locationagent/internal/provider"
	"locationagent/internal/service"
	"locationagent/internal/tracking"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const startupErrorLogDir = "log/LocationAgent"

func main() {
	var (
		configPath  = flag.String("config", "conf/LocationAgent/LocationAgent.json", "Path to main configuration file")
		loggingPath = flag.String("logging", "conf/LocationAgent/Logging.json", "Path to logging configuration file")
		startNow    = flag.Bool("start", false, "Start tracking immediately instead of waiting for a START command")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("LocationAgent %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// An absolute config path means service mode, where the working
	// directory is not the install directory. basePath is 3 levels up.
	if filepath.IsAbs(*configPath) {
		basePath := filepath.Dir(filepath.Dir(filepath.Dir(*configPath)))
		if err := os.Chdir(basePath); err != nil {
			service.ReportStartupFailure(startupErrorLogDir, fmt.Errorf("failed to chdir to %s: %w", basePath, err))
			os.Exit(1)
		}
	}

	svcProbe := service.NewService(nil)
	if svcProbe.IsService() {
		logger.SetServiceMode(true)
	}

	cfg, lc, err := config.LoadSplit(*configPath, *loggingPath)
	if err != nil {
		service.ReportStartupFailure(startupErrorLogDir, fmt.Errorf("failed to load configuration: %w", err))
		os.Exit(1)
	}

	if err := logger.Init(*lc); err != nil {
		service.ReportStartupFailure(startupErrorLogDir, fmt.Errorf("failed to initialize logger: %w", err))
		os.Exit(1)
	}
	defer logger.Close()

	log := logger.WithComponent("main")
	log.Info().
		Str("version", version).
		Str("config", *configPath).
		Str("logging", *loggingPath).
		Msg("Starting LocationAgent")

	// Pause and Continue from the Windows service manager arrive here.
	scmCommands := make(chan command.Command, 4)
	onPause := func(paused bool) {
		cmd := command.Start
		if paused {
			cmd = command.Stop
		}
		select {
		case scmCommands <- cmd:
		default:
			log.Warn().Str("command", cmd.String()).Msg("Service control command dropped")
		}
	}

	svc := service.NewService(func(ctx context.Context) error {
		return run(ctx, cfg, *loggingPath, *startNow, scmCommands)
	}, service.WithPauseHandler(onPause))

	if err := svc.Run(context.Background()); err != nil {
		log.Error().Err(err).Msg("Service exited with error")
		logger.Close()
		os.Exit(1)
	}

	log.Info().Msg("LocationAgent stopped")
}

// setupRedis returns a client when Redis is configured, else nil.
func setupRedis(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}
	log := logger.WithComponent("main")

	var dial network.DialFunc
	if cfg.SOCKSProxy.Host != "" && cfg.SOCKSProxy.Port > 0 {
		dial = network.DialerFunc(cfg.SOCKSProxy.Host, cfg.SOCKSProxy.Port)
		log.Info().
			Str("socks_host", cfg.SOCKSProxy.Host).
			Int("socks_port", cfg.SOCKSProxy.Port).
			Msg("SOCKS proxy configured")
	}

	log.Info().Str("redis_address", cfg.Redis.Address).Msg("Redis configured")
	return network.NewRedisClient(network.RedisConfig(cfg.Redis), dial)
}

// setupProvider creates the positioning provider named in the config.
func setupProvider(cfg *config.Config) (provider.Closer, error) {
	p, err := provider.New(provider.Config{
		Type:        cfg.Provider.Type,
		GPSDAddress: cfg.Provider.GPSD.Address,
		NMEA: provider.NMEAConfig{
			PortPath: cfg.Provider.NMEA.PortPath,
			BaudRate: cfg.Provider.NMEA.BaudRate,
		},
		Demo: provider.DemoConfig{
			CenterLat: cfg.Provider.Demo.CenterLat,
			CenterLon: cfg.Provider.Demo.CenterLon,
			RadiusDeg: cfg.Provider.Demo.RadiusDeg,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	logger.WithComponent("main").Info().Str("provider", p.Name()).Msg("Using positioning provider")
	return p, nil
}

// setupAuthorizer creates the authorizer named in the config.
func setupAuthorizer(cfg *config.Config, rdb *redis.Client, agentID string) (location.Authorizer, error) {
	var client redis.Cmdable
	if rdb != nil {
		client = rdb
	}
	auth, err := permission.New(permission.Config{
		Type:       cfg.Authorization.Type,
		Coarse:     cfg.Authorization.Coarse,
		Fine:       cfg.Authorization.Fine,
		GrantsPath: cfg.Authorization.GrantsPath,
		RedisKey:   cfg.Authorization.RedisKey,
		AgentID:    agentID,
	}, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorizer: %w", err)
	}
	return auth, nil
}

// setupCommandSources lists the configured START/STOP sources.
func setupCommandSources(cfg *config.Config, rdb *redis.Client) []command.Source {
	log := logger.WithComponent("main")
	var sources []command.Source

	if path := cfg.Commands.ControlFile; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Cannot create control file directory, file commands disabled")
		} else {
			sources = append(sources, command.NewFileSource(path))
		}
	}
	if ch := cfg.Commands.RedisChannel; ch != "" {
		if rdb != nil {
			sources = append(sources, command.NewRedisSource(rdb, ch))
		} else {
			log.Debug().Str("channel", ch).Msg("Redis not configured, Redis commands disabled")
		}
	}
	if cfg.Commands.Signals {
		sources = append(sources, command.NewSignalSource())
	}

	for _, s := range sources {
		log.Info().Str("source", s.Name()).Msg("Command source enabled")
	}
	return sources
}

// setupLoggingWatcher hot-reloads Logging.json. The returned function stops
// the watcher.
func setupLoggingWatcher(loggingPath string) func() {
	log := logger.WithComponent("main")

	w, err := config.NewLoggingWatcher(loggingPath, func(newLC *logger.Config) {
		log.Info().Msg("Applying logging configuration changes")
		if err := logger.Init(*newLC); err != nil {
			log.Error().Err(err).Msg("Failed to update logging configuration")
			return
		}
		log.Info().Msg("Logging configuration updated")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create logging watcher, hot reload disabled")
		return func() {}
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start logging watcher")
		w.Stop()
		return func() {}
	}
	return func() {
		log.Info().Msg("Stopping logging watcher")
		if err := w.Stop(); err != nil {
			log.Error().Err(err).Msg("Error stopping logging watcher")
		}
	}
}

func run(ctx context.Context, cfg *config.Config, loggingPath string, startNow bool, scmCommands <-chan command.Command) error {
	log := logger.WithComponent("main")

	agentID := config.GetAgentID(cfg)
	log.Info().
		Str("agent_id", agentID).
		Str("hostname", config.GetHostname()).
		Msg("Agent initialized")

	rdb := setupRedis(cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	prov, err := setupProvider(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := prov.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing provider")
		}
	}()

	auth, err := setupAuthorizer(cfg, rdb, agentID)
	if err != nil {
		return err
	}

	disp, err := display.New(display.Config{
		Type:       cfg.Display.Type,
		ListenAddr: cfg.Display.ListenAddr,
		MQTT:       display.MQTTConfig(cfg.Display.MQTT),
		File:       display.FileConfig(cfg.Display.File),
	})
	if err != nil {
		return fmt.Errorf("failed to create status display: %w", err)
	}
	defer func() {
		if err := disp.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing status display")
		}
	}()

	client := location.NewClient(prov, auth, hardware.NewChecker(hardware.Config(cfg.Sources)))
	client.BufferSize = cfg.Tracking.BufferSize

	policy, err := tracking.ParseRetryPolicy(cfg.Tracking.RetryPolicy)
	if err != nil {
		return err
	}
	ctrl := tracking.New(client, disp, tracking.Options{
		Interval:    cfg.Tracking.Interval,
		Title:       cfg.Tracking.Title,
		RetryPolicy: policy,
		RetryEvery:  cfg.Tracking.RetryEvery,
	})
	defer ctrl.Teardown()

	stopWatcher := setupLoggingWatcher(loggingPath)
	defer stopWatcher()

	dispatcher := command.NewDispatcher(ctrl, cfg.Commands.QueueSize)
	if startNow {
		dispatcher.Submit(command.Start)
	}
	sources := append(setupCommandSources(cfg, rdb), command.NewChanSource("service-control", scmCommands))
	dispatcher.Serve(ctx, sources...)

	log.Info().Msg("Received shutdown signal")
	return nil
}
