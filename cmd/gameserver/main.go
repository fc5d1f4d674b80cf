// Gameserver hosts code-guessing games over UDP (game commands) and TCP
// (trial log and scoreboard transfers), with an optional HTTP status API,
// a SQLite game archive and MQTT telemetry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codebreaker-project/codebreaker/internal/api"
	"github.com/codebreaker-project/codebreaker/internal/config"
	"github.com/codebreaker-project/codebreaker/internal/db"
	"github.com/codebreaker-project/codebreaker/internal/events"
	"github.com/codebreaker-project/codebreaker/internal/metrics"
	"github.com/codebreaker-project/codebreaker/internal/network"
	"github.com/codebreaker-project/codebreaker/internal/registry"
	"github.com/codebreaker-project/codebreaker/internal/scheduler"
	"github.com/codebreaker-project/codebreaker/internal/server"
	"github.com/codebreaker-project/codebreaker/internal/telemetry"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

const (
	AppName    = "gameserver"
	AppVersion = "1.0.0"
)

func main() {
	port := flag.Int("p", 0, "game port for UDP and TCP (default from config, 58000)")
	verbose := flag.Bool("v", false, "verbose: log every request")
	debug := flag.Bool("d", false, "debug: trace-level logging")
	configDir := flag.String("c", config.DefaultConfigDir, "configuration directory")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-p port] [-v] [-d] [-c dir]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	// Defaults until the config is read.
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *port != 0 {
		cfg.SetPort(*port)
	}
	switch {
	case *debug:
		cfg.SetLogLevel("trace")
	case *verbose:
		cfg.SetLogLevel("debug")
	}

	if err := util.InitLogger(util.LogConfig{
		App:        AppName,
		Level:      cfg.Logging.Level,
		Directory:  cfg.Logging.Directory,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    cfg.Logging.Console,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("configuration validation failed, please fix the errors above")
	}

	instanceID := uuid.NewString()
	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("version", AppVersion).
		Str("instance_id", instanceID).
		Str("platform", runtime.GOOS).
		Str("hostname", sysInfo.Hostname).
		Int("cores", sysInfo.CPUCores).
		Str("addr", cfg.GameAddr()).
		Msg("starting game server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus := events.NewEventBus()
	m := metrics.New()

	seed := cfg.Server.CodeSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	reg := registry.New(
		registry.WithCodeSource(registry.NewRandomCodes(seed)),
		registry.WithListener(server.NewPublisher(context.Background(), eventBus, m)),
	)
	dispatcher := server.NewDispatcher(reg, m)

	limiter := network.NewIPLimiter(cfg.Network.DatagramRateLimit, cfg.Network.DatagramBurst)
	udpListener := network.NewDatagramListener(cfg.GameAddr(), dispatcher.HandleDatagram, limiter, m)
	tcpListener := network.NewStreamListener(cfg.GameAddr(), dispatcher.HandleStream, network.StreamOptions{
		Workers:      cfg.Network.StreamWorkers,
		ReadTimeout:  cfg.Network.StreamReadTimeout(),
		WriteTimeout: cfg.Network.StreamWriteTimeout(),
	}, m)

	// Bind both sockets before anything is served so a busy port fails fast.
	if err := udpListener.Listen(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to bind UDP socket")
	}
	if err := tcpListener.Listen(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to bind TCP socket")
	}

	var archive *db.Archive
	if cfg.Archive.Enabled {
		archive, err = db.NewArchive(cfg.Archive.DSN)
		if err != nil {
			log.Warn().Err(err).Msg("failed to open game archive, history disabled")
		} else {
			archive.Subscribe(eventBus)
			defer archive.Close()
		}
	}

	var mqttHandler *telemetry.MQTTHandler
	if cfg.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus, instanceID)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg, reg, m, instanceID)
		apiServer.SetDependencies(archive, tcpListener.Pool())
	}

	sched := scheduler.NewScheduler(cfg, reg, m, limiter)

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	run := func(name string, fatal bool, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				if fatal {
					errCh <- fmt.Errorf("%s: %w", name, err)
					return
				}
				log.Warn().Err(err).Str("component", name).Msg("component stopped (non-fatal)")
			}
		}()
	}

	run("udp listener", true, udpListener.Start)
	run("tcp listener", true, tcpListener.Start)
	run("scheduler", false, func(ctx context.Context) error {
		sched.Start(ctx)
		return nil
	})
	if apiServer != nil {
		run("api", false, apiServer.Start)
	}
	if mqttHandler != nil {
		run("mqtt", false, mqttHandler.Start)
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	}
	stop()

	eventBus.Emit(context.Background(), events.Event{Type: events.EventShutdown, Source: "main"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timed out after 10 seconds, forcing exit")
	}

	// Let in-flight archive writes finish before the database closes.
	eventBus.Wait()
	eventBus.Stop()

	st := reg.Stats()
	log.Info().Int("sessions", st.Sessions).Int("scoreboard", st.Scoreboard).Msg("game server stopped")
}
