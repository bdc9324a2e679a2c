// Command denoise-sensor watches raw source entities over MQTT and
// republishes denoised values, suppressing noise-driven fluctuations while
// surfacing genuine changes and periodic heartbeats.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sweeney/denoise-sensor/internal/config"
	"github.com/sweeney/denoise-sensor/internal/extract"
	"github.com/sweeney/denoise-sensor/internal/filter"
	"github.com/sweeney/denoise-sensor/internal/mqtt"
	"github.com/sweeney/denoise-sensor/internal/source"
	"github.com/sweeney/denoise-sensor/internal/status"
	"github.com/sweeney/denoise-sensor/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/denoise-sensor.yaml", "Path to the YAML configuration")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", `HTTP status address (overrides config, "off" disables)`)
	checkConfig := flag.Bool("check-config", false, "Validate the configuration and exit")

	flag.Parse()

	if err := run(*configPath, *broker, *httpAddr, *checkConfig); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath, brokerOverride, httpOverride string, checkConfig bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if brokerOverride != "" {
		cfg.Broker = brokerOverride
	}
	switch httpOverride {
	case "":
	case "off":
		cfg.HTTPAddr = ""
	default:
		cfg.HTTPAddr = httpOverride
	}

	if checkConfig {
		printConfig(cfg)
		return nil
	}

	// Initialize source reader
	reader, err := source.NewRealReader(cfg.Broker, cfg.SourcePrefix)
	if err != nil {
		return fmt.Errorf("init source reader: %w", err)
	}
	defer reader.Close()

	// Initialize publisher
	publisher, err := mqtt.NewRealPublisher(cfg.Broker)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:       cfg.Broker,
		HTTPAddr:     cfg.HTTPAddr,
		SourcePrefix: cfg.SourcePrefix,
		ConfigPath:   configPath,
	})
	for _, s := range cfg.Sensors {
		tracker.Register(status.SensorStatus{Name: s.Name, EntityID: s.EntityID, UniqueID: s.UniqueID})
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: %d sensors, broker=%s prefix=%s", len(cfg.Sensors), cfg.Broker, cfg.SourcePrefix)

	// One pipeline goroutine per sensor; each owns its engine exclusively.
	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, s := range cfg.Sensors {
		wg.Add(1)
		go func(sc config.Sensor) {
			defer wg.Done()
			var tick <-chan time.Time
			if p := pollPeriod(sc); p > 0 {
				ticker := time.NewTicker(p)
				defer ticker.Stop()
				tick = ticker.C
			}
			runSensor(sc, cfg.TemperatureUnit, reader, publisher, publisher, tracker, time.Now, tick, done)
		}(s)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Periodic status heartbeat on the system topic.
	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	var sig os.Signal
	for sig == nil {
		select {
		case sig = <-sigCh:
		case <-heartbeat:
			tracker.SetMQTTConnected(publisher.IsConnected())
			hbSnap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  hbSnap.Now,
				Event:      "HEARTBEAT",
				Retained:   true,
				RawPayload: status.FormatStatusEvent(hbSnap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish heartbeat event: %v", err)
			}
		}
	}
	log.Printf("received %v, shutting down", sig)

	close(done)
	wg.Wait()

	tracker.SetMQTTConnected(publisher.IsConnected())
	snap = tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "SHUTDOWN",
		Reason:     signalName(sig),
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName(sig)),
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
	return nil
}

// runSensor owns one sensor's engine exclusively. Source changes and timer
// ticks are serialized through this loop, so the engine needs no locking.
// Returns when done is closed.
func runSensor(sc config.Sensor, systemUnit string, reader source.Reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, tick <-chan time.Time, done <-chan struct{}) {
	engine := filter.NewEngine(filter.Config{
		ValueDelta:     sc.ValueDelta,
		Precision:      sc.EffectivePrecision(),
		AverageWindow:  sc.AverageWindow,
		UpdateInterval: sc.UpdatePeriod,
	})
	extractor := extract.New(sc.EntityID, systemUnit)

	updates := make(chan source.Reading, 16)
	cancel := reader.Watch(sc.EntityID, updates)
	defer cancel()

	var counts status.Counts
	var lastEmission time.Time

	step := func(r source.Reading, timerTick bool) {
		t := now()
		value, valid := extractor.Value(r)
		outcome := engine.Ingest(filter.Input{Value: value, Valid: valid, Time: t, TimerTick: timerTick})

		if outcome.Emit {
			if outcome.Value == nil {
				counts.Unavailable++
			} else {
				counts.Emitted++
			}
			lastEmission = t

			event := mqtt.StateEvent{
				EntityID:    sc.EntityID,
				Name:        sc.Name,
				UniqueID:    sc.UniqueID,
				Timestamp:   t,
				Value:       outcome.Value,
				Unit:        extractor.Unit(),
				DeviceClass: extractor.DeviceClass(),
				Icon:        extractor.Icon(),
			}
			if err := publisher.Publish(event); err != nil {
				log.Printf("%s: publish error: %v", sc.EntityID, err)
				// Don't crash on publish failure
			}
		} else if valid {
			counts.Suppressed++
		}

		if tracker != nil {
			published := engine.LastEmitted()
			tracker.UpdateSensor(status.SensorStatus{
				Name:         sc.Name,
				EntityID:     sc.EntityID,
				UniqueID:     sc.UniqueID,
				Unit:         extractor.Unit(),
				Value:        published,
				Available:    published != nil,
				LastEmission: lastEmission,
				Counts:       counts,
			})
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}

	// Process the retained reading, if the source already has one.
	if r, ok := reader.Get(sc.EntityID); ok {
		step(r, false)
	}

	for {
		select {
		case <-done:
			return

		case r := <-updates:
			step(r, false)

		case <-tick:
			r, ok := reader.Get(sc.EntityID)
			if !ok {
				log.Printf("%s: no reading from source yet", sc.EntityID)
				continue
			}
			step(r, true)
		}
	}
}

// pollPeriod returns how often a sensor must be polled: at the update
// interval when one is configured (heartbeat), otherwise at the averaging
// window so the smoothed value keeps converging between source changes.
// Zero means the sensor is purely event-driven.
func pollPeriod(sc config.Sensor) time.Duration {
	if sc.UpdatePeriod != nil && *sc.UpdatePeriod > 0 {
		return *sc.UpdatePeriod
	}
	if sc.AverageWindow != nil && *sc.AverageWindow > 0 {
		return *sc.AverageWindow
	}
	return 0
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func printConfig(cfg *config.Config) {
	fmt.Printf("config OK: %d sensors, broker=%s http=%s prefix=%s unit=%s heartbeat=%s\n",
		len(cfg.Sensors), cfg.Broker, cfg.HTTPAddr, cfg.SourcePrefix, cfg.TemperatureUnit, cfg.Heartbeat)
	for _, s := range cfg.Sensors {
		avg, upd := "-", "-"
		if s.AverageWindow != nil {
			avg = s.AverageWindow.String()
		}
		if s.UpdatePeriod != nil {
			upd = s.UpdatePeriod.String()
		}
		fmt.Printf("  %s (%s): delta=%v precision=%d average=%s update=%s\n",
			s.EntityID, s.UniqueID, s.ValueDelta, s.EffectivePrecision(), avg, upd)
	}
}
