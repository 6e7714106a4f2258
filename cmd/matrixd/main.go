package main

import (
	"errors"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"periph.io/x/host/v3"

	"github.com/coreman2200/matrixd/internal/config"
	"github.com/coreman2200/matrixd/internal/knocker"
	"github.com/coreman2200/matrixd/internal/led"
	"github.com/coreman2200/matrixd/internal/matrix"
	"github.com/coreman2200/matrixd/internal/signals"
)

func main() {
	// ---- Flags (override config.yaml when given) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		driver     = flag.String("driver", "", "driver: sim | console | sensehat | strip")
		mode       = flag.String("mode", "", "knockers to run: cooperative | threaded | both")
		logLevel   = flag.String("log-level", "", "zerolog level (debug, info, warn, ...)")
		simOnly    = flag.Bool("sim-only", false, "force simulation (no hardware output)")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Effective config: defaults < config.yaml < flags ----
	cfg := effective(loadConfig(*configPath), *driver, *mode, *logLevel, *simOnly)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid flags")
	}

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		log.Warn().Err(err).Str("level", cfg.LogLevel).Msg("unknown log level; using info")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(lvl)
	}

	// ---- Interrupts ----
	shutdown, err := signals.Catch()
	if err != nil {
		log.Fatal().Err(err).Msg("install interrupt handler")
	}

	// ---- Driver ----
	drv := openDriver(cfg)
	defer func() {
		if err := drv.Close(); err != nil {
			log.Warn().Err(err).Msg("driver close")
		}
	}()

	// ---- Consumer & knockers ----
	mx := matrix.New(drv, cfg.FrameBuffer)
	sink := knocker.NewChanSink(mx.Frames(), mx.Gone())

	knockers := buildKnockers(cfg.Knocker)

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := mx.Run(shutdown); err != nil {
			log.Warn().Err(err).Msg("matrix stopped with error")
		}
	})
	for _, k := range knockers {
		name := k.Name()
		h := k.Start(sink, shutdown)
		wg.Go(func() {
			if err := h.Wait(); err != nil && !errors.Is(err, knocker.ErrDisconnected) {
				log.Error().Err(err).Str("knocker", name).Msg("knocker failed")
			}
		})
	}

	log.Info().
		Str("driver", cfg.Driver).
		Str("mode", cfg.Knocker.Mode).
		Int("knockers", len(knockers)).
		Msg("matrixd running; interrupt to stop")
	wg.Wait()
	log.Info().Uint64("shown", mx.Shown()).Msg("matrixd exited")
}

// loadConfig reads path, falling back to defaults when it is missing or invalid.
func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config load failed; proceeding with defaults")
		return config.Default()
	}
	return cfg
}

// effective applies explicitly given flags over cfg. -sim-only beats -driver.
func effective(cfg *config.Config, driver, mode, level string, simOnly bool) *config.Config {
	out := *cfg
	if driver != "" {
		out.Driver = driver
	}
	if mode != "" {
		out.Knocker.Mode = mode
	}
	if level != "" {
		out.LogLevel = level
	}
	if simOnly {
		out.Driver = "sim"
	}
	return &out
}

func buildKnockers(kc config.Knocker) []*knocker.Knocker {
	var ks []*knocker.Knocker
	if kc.Mode == "cooperative" || kc.Mode == "both" {
		ks = append(ks, knocker.NewCooperative(kc.CooperativeInterval()))
	}
	if kc.Mode == "threaded" || kc.Mode == "both" {
		ks = append(ks, knocker.NewThreaded(kc.ThreadedInterval()))
	}
	return ks
}

// openDriver falls back to the simulator whenever hardware cannot be reached.
func openDriver(cfg *config.Config) led.Driver {
	if cfg.Driver == "sim" {
		return led.NewSim()
	}
	if cfg.Driver != "console" {
		if _, err := host.Init(); err != nil {
			log.Warn().Err(err).Msg("periph host init failed; falling back to SIM")
			return led.NewSim()
		}
	}

	switch cfg.Driver {
	case "console":
		d, err := led.NewConsole(matrix.Cells)
		if err != nil {
			log.Warn().Err(err).Msg("console init failed; falling back to SIM")
			return led.NewSim()
		}
		return d

	case "sensehat":
		d, err := led.OpenSenseHat(cfg.I2C.Bus, cfg.I2C.Addr)
		if err != nil {
			log.Warn().Err(err).
				Str("driver", "sensehat").
				Str("bus", cfg.I2C.Bus).
				Msg("i2c init failed; falling back to SIM")
			return led.NewSim()
		}
		if cfg.SelfTest {
			if err := d.SelfTest(); err != nil {
				log.Warn().Err(err).Msg("sense hat self test failed")
			}
		}
		return d

	case "strip":
		d, err := led.OpenStrip(cfg.SPI.Port, matrix.Cells)
		if err != nil {
			log.Warn().Err(err).
				Str("driver", "strip").
				Str("port", cfg.SPI.Port).
				Msg("SPI init failed; falling back to SIM")
			return led.NewSim()
		}
		d.SetLayout(led.Layout{Width: matrix.Side, Serpentine: cfg.SPI.Serpentine})
		return d

	default:
		log.Warn().Str("driver", cfg.Driver).Msg("unknown driver; using SIM")
		return led.NewSim()
	}
}
