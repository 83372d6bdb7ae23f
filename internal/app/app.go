package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"quantaverse/client/internal/bridge"
	"quantaverse/client/internal/entities"
	"quantaverse/client/internal/loop"
	"quantaverse/client/internal/persist"
	"quantaverse/client/internal/scene"
	"quantaverse/client/internal/session"
	"quantaverse/client/internal/spacetime"
	"quantaverse/client/internal/telemetry"
	"quantaverse/client/logging"
	loggingSinks "quantaverse/client/logging/sinks"
)

// Run wires the client together and blocks until ctx is cancelled or the
// initial dial fails. Construction runs in dependency order; shutdown walks
// it in reverse.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := telemetry.WrapLogger(log.Default())

	logConfig := logging.DefaultConfig()
	logConfig.EnabledSinks = cfg.LogSinks
	logConfig.MinimumSeverity = logging.ParseSeverity(cfg.LogSeverity)

	sinks, jsonFile, err := buildSinks(logConfig, cfg.LogJSONPath)
	if err != nil {
		return err
	}
	if jsonFile != nil {
		defer jsonFile.Close()
	}

	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, sinks)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()
	metrics := telemetry.WrapMetrics(router.Metrics())

	prefs, err := persist.Open(cfg.PreferencePath)
	if err != nil {
		return err
	}
	defer prefs.Close()

	// The cached account from the previous run seeds the login prompt.
	lastUsername, lastDisplayName := lastAccount(prefs, telemetryLogger)

	pump := loop.NewPump()

	machine := session.NewMachine(session.Config{
		Publisher: router,
		Metrics:   metrics,
		Logger:    telemetryLogger,
		Ticks:     pump,
	})

	conn := spacetime.NewConn(spacetime.ConnConfig{
		URL:       cfg.StoreURL,
		Pump:      pump,
		Logger:    telemetryLogger,
		WriteWait: cfg.WriteWait,
	})

	settings := spacetime.NewSettingsCache()
	presenter := scene.NewHeadless()

	registry := entities.NewRegistry(entities.Config{
		Presenter:         presenter,
		Publisher:         router,
		Metrics:           metrics,
		Logger:            telemetryLogger,
		Ticks:             pump,
		LocalIdentity:     conn.Identity,
		PartitionRadius:   cfg.PartitionRadius,
		TeleportThreshold: cfg.TeleportThreshold,
	}, spacetime.WorldCoords{})

	br, err := bridge.New(bridge.Config{
		Store:     conn,
		Machine:   machine,
		Registry:  registry,
		Settings:  settings,
		Pump:      pump,
		Publisher: router,
		Metrics:   metrics,
		Logger:    telemetryLogger,
	})
	if err != nil {
		return err
	}

	// Remember the account for the next launch once the store confirms it.
	machine.Subscribe(session.EventLoginSuccessful, func(event session.Event) {
		if event.Username != "" {
			if perr := prefs.Set(persist.KeyLastUsername, event.Username); perr != nil {
				telemetryLogger.Printf("failed to persist username: %v", perr)
			}
		}
		if name := br.DisplayName(); name != "" {
			if perr := prefs.Set(persist.KeyLastDisplayName, name); perr != nil {
				telemetryLogger.Printf("failed to persist display name: %v", perr)
			}
		}
	})

	// Nothing else runs yet, so the machine can be driven directly here.
	machine.Publish(session.Event{Kind: session.EventConnectionStarted})
	if err := conn.Dial(ctx); err != nil {
		machine.Publish(session.Event{Kind: session.EventConnectionLost, Reason: err.Error()})
		return err
	}

	stop := make(chan struct{})
	go pump.Run(stop, cfg.TicksPerSecond)

	deviceID, _ := prefs.DeviceID()
	if lastUsername != "" {
		telemetryLogger.Printf("client running against %s (device %s, last account %q as %q)", cfg.StoreURL, deviceID, lastUsername, lastDisplayName)
	} else {
		telemetryLogger.Printf("client running against %s (device %s)", cfg.StoreURL, deviceID)
	}

	<-ctx.Done()

	conn.Close()
	close(stop)
	registry.Teardown()
	return nil
}

// lastAccount reads the account the previous run logged in with. Missing
// keys come back empty; read errors are logged and treated as a fresh start.
func lastAccount(prefs *persist.Store, logger telemetry.Logger) (username, displayName string) {
	username, err := prefs.Get(persist.KeyLastUsername)
	if err != nil {
		logger.Printf("failed to read cached username: %v", err)
		return "", ""
	}
	displayName, err = prefs.Get(persist.KeyLastDisplayName)
	if err != nil {
		logger.Printf("failed to read cached display name: %v", err)
		return username, ""
	}
	return username, displayName
}

func buildSinks(cfg logging.Config, jsonPath string) ([]logging.NamedSink, *os.File, error) {
	var (
		sinks    []logging.NamedSink
		jsonFile *os.File
	)
	if cfg.HasSink(logging.SinkConsole) {
		sinks = append(sinks, logging.NamedSink{
			Name: logging.SinkConsole,
			Sink: loggingSinks.NewConsole(os.Stdout, cfg.Console),
		})
	}
	if cfg.HasSink(logging.SinkJSON) {
		path := jsonPath
		if path == "" {
			path = cfg.JSON.FilePath
		}
		if path == "" {
			return nil, nil, fmt.Errorf("json sink enabled without a file path")
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open json log %s: %w", path, err)
		}
		jsonFile = file
		sinks = append(sinks, logging.NamedSink{
			Name: logging.SinkJSON,
			Sink: loggingSinks.NewJSON(file, cfg.JSON.FlushInterval),
		})
	}
	if cfg.HasSink(logging.SinkMemory) {
		sinks = append(sinks, logging.NamedSink{Name: logging.SinkMemory, Sink: loggingSinks.NewMemorySink()})
	}
	return sinks, jsonFile, nil
}
