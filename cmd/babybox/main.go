// BabyBox - screen-time appliance controller
//
// BabyBox turns a Raspberry Pi into a self-contained media player a
// young child operates with RFID cards: placing a card on the reader
// plays the bound media, a daily video allowance is enforced, and the
// front panel answers every scan with light and sound. Parents manage
// the library and limits through a PIN-protected HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/niconistal/BabyBox/migrations"

	"github.com/niconistal/BabyBox/internal/api"
	"github.com/niconistal/BabyBox/internal/audioroute"
	"github.com/niconistal/BabyBox/internal/downloader"
	"github.com/niconistal/BabyBox/internal/feedback"
	"github.com/niconistal/BabyBox/internal/frontpanel"
	"github.com/niconistal/BabyBox/internal/infrastructure/config"
	"github.com/niconistal/BabyBox/internal/infrastructure/database"
	"github.com/niconistal/BabyBox/internal/infrastructure/influxdb"
	"github.com/niconistal/BabyBox/internal/infrastructure/logging"
	"github.com/niconistal/BabyBox/internal/infrastructure/mqtt"
	"github.com/niconistal/BabyBox/internal/library"
	"github.com/niconistal/BabyBox/internal/orchestrator"
	"github.com/niconistal/BabyBox/internal/player"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting BabyBox",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	if err := cfg.Media.EnsureDirs(); err != nil {
		return fmt.Errorf("preparing media directories: %w", err)
	}

	// Open database and run migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	mediaRepo := library.NewMediaRepository(db)
	tagRepo := library.NewTagRepository(db)
	playbackRepo := library.NewPlaybackRepository(db)
	settingsRepo := library.NewSettingsRepository(db)

	// Connect to MQTT broker. A missing broker disables the front panel
	// but never takes down the admin API, so parents can still fix things.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, running without front panel", "error", err)
			mqttClient = nil
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			mqttClient.SetLogger(log)
			mqttClient.SetOnConnect(func() {
				log.Info("MQTT reconnected")
			})
			mqttClient.SetOnDisconnect(func(err error) {
				log.Warn("MQTT disconnected", "error", err)
			})
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	} else {
		log.Info("MQTT disabled, front panel bridge not started")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	bluetooth := audioroute.New(log)

	// The bridge needs the orchestrator to submit events and the
	// orchestrator needs the bridge to render feedback; the proxy breaks
	// the cycle. It is wired before any subscription delivers an event.
	core := &coreProxy{}
	publishers := &statePublishers{}

	var bridge *frontpanel.Bridge
	var sink feedback.Sink = logSink{log: log}
	if mqttClient != nil {
		bridge = frontpanel.New(mqttClient, core, cfg.Hardware, byte(cfg.MQTT.QoS), log)
		sink = bridge
		publishers.add(bridge)
	}
	sequencer := feedback.NewSequencer(sink, log)

	var telemetry orchestrator.Telemetry
	if influxClient != nil {
		telemetry = influxClient
	}

	orch := orchestrator.New(orchestrator.Deps{
		Tags:      tagRepo,
		Playback:  playbackRepo,
		Settings:  settingsRepo,
		Player:    orchestrator.NewPlayerStarter(player.New(cfg.Player, log)),
		Feedback:  sequencer,
		Audio:     bluetooth,
		Publisher: publishers,
		Telemetry: telemetry,
		Logger:    log,
	})
	core.set(orch)

	// Finalize playback records a crash or power cut left open, so the
	// quota never counts a phantom in-progress session.
	if err := orch.Recover(ctx); err != nil {
		return fmt.Errorf("recovering state: %w", err)
	}

	downloads := downloader.NewManager(ctx, cfg.Media, mediaRepo, log)

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Media:      cfg.Media,
		Logger:     log,
		Controller: orch,
		MediaRepo:  mediaRepo,
		Tags:       tagRepo,
		Playback:   playbackRepo,
		Settings:   settingsRepo,
		Downloads:  downloads,
		Bluetooth:  bluetooth,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	publishers.add(server)

	downloads.SetOnProgress(func(job downloader.Job) {
		server.PublishDownload(job)
		if bridge != nil {
			bridge.PublishDownload(job)
		}
	})

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Point audio at the configured speaker before the first session.
	// Best effort: the built-in speaker covers a dead battery.
	if mac, macErr := settingsRepo.SpeakerMAC(ctx); macErr != nil {
		log.Warn("reading speaker setting", "error", macErr)
	} else if routeErr := bluetooth.Route(ctx, mac); routeErr != nil {
		log.Warn("routing audio to speaker at startup", "mac", mac, "error", routeErr)
	}

	if bridge != nil {
		if err := bridge.Start(); err != nil {
			return fmt.Errorf("starting front panel bridge: %w", err)
		}
		log.Info("front panel bridge started")
	}

	go sequencer.Run(ctx)
	go orch.Run(ctx)

	if err := healthCheck(ctx, db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for a card")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("BabyBox stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BABYBOX_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BABYBOX_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections after startup.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// coreProxy defers the bridge's view of the orchestrator until both
// exist. Submit before set drops the event, which can only happen if a
// broker delivers during the few wiring lines between New and set.
type coreProxy struct {
	orch *orchestrator.Orchestrator
}

func (p *coreProxy) set(o *orchestrator.Orchestrator) { p.orch = o }

func (p *coreProxy) Submit(ev orchestrator.Event) bool {
	if p.orch == nil {
		return false
	}
	return p.orch.Submit(ev)
}

// statePublishers fans a state snapshot out to every registered target
// (retained MQTT topic, WebSocket clients). Targets are added during
// wiring, before the orchestrator publishes anything.
type statePublishers struct {
	targets []orchestrator.StatePublisher
}

func (p *statePublishers) add(t orchestrator.StatePublisher) {
	p.targets = append(p.targets, t)
}

func (p *statePublishers) PublishState(s orchestrator.Snapshot) {
	for _, t := range p.targets {
		t.PublishState(s)
	}
}

// logSink renders feedback patterns into the log when no panel is
// connected, keeping headless development installs observable.
type logSink struct {
	log *logging.Logger
}

func (s logSink) PlayPattern(_ context.Context, p feedback.Pattern) error {
	s.log.Info("feedback pattern", "pattern", string(p))
	return nil
}
