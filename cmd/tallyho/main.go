package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"tallyho/internal/adsb"
	"tallyho/internal/config"
	"tallyho/internal/display"
	"tallyho/internal/display/dot"
	"tallyho/internal/display/epaper"
	"tallyho/internal/display/imagefile"
	"tallyho/internal/feed"
	"tallyho/internal/journal"
	"tallyho/internal/mockserver"
	"tallyho/internal/model"
	"tallyho/internal/poller"
	"tallyho/internal/render"
	"tallyho/internal/tracker"
)

const mockPort = "8092"

// main is the application composition root. It wires the aircraft source,
// renderer and display sinks together and hands them to the poll loop.
func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	once := flag.Bool("once", false, "run a single fetch-render-push cycle and exit")
	mock := flag.Bool("mock", false, "serve canned traffic from an embedded mock API")
	preview := flag.String("preview", "", "write frames to this PNG file instead of the configured displays")
	sightings := flag.Int("sightings", 0, "print the n most recent journal entries and exit")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	if *mock {
		mockserver.Start(mockPort)
		cfg.Source.BaseURL = "http://127.0.0.1:" + mockPort
		cfg.Source.FeedURL = ""
		// The canned traffic orbits Heathrow, so default the observer there.
		if cfg.Location.Lat == 0 && cfg.Location.Long == 0 {
			cfg.Location.Lat = 51.47
			cfg.Location.Long = -0.4543
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		log.Warnf("unknown log level %q, using info", cfg.Log.Level)
	} else {
		log.SetLevel(level)
	}
	logger := logrus.NewEntry(log)

	if *sightings > 0 {
		printSightings(cfg.Journal.Path, *sightings, logger.WithField("component", "journal"))
		return
	}

	renderer, err := render.New(cfg.Render.Width, cfg.Render.Height, cfg.Render.FontFile, logger.WithField("component", "render"))
	if err != nil {
		log.Fatalf("preparing renderer: %v", err)
	}

	fanout := buildDisplays(cfg, *preview, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	home := model.Position{Lat: cfg.Location.Lat, Long: cfg.Location.Long}
	source := buildSource(ctx, cfg, home, logger)

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(cfg.Journal.Path, logger.WithField("component", "journal"))
		if err != nil {
			log.Fatalf("opening journal: %v", err)
		}
	}

	p := poller.New(source, renderer, fanout, store, poller.Config{
		Interval:    cfg.Poll.Interval.Std(),
		CycleBudget: cfg.Poll.CycleBudget.Std(),
		MaxFailures: cfg.Poll.MaxDisplayFailures,
	}, logger.WithField("component", "poller"))

	// -preview means one frame and out.
	var runErr error
	if *once || *preview != "" {
		runErr = p.RunOnce(ctx)
	} else {
		runErr = p.Run(ctx)
	}

	if err := fanout.Close(); err != nil {
		log.Warnf("closing displays: %v", err)
	}
	if store != nil {
		if err := store.Close(); err != nil {
			log.Warnf("closing journal: %v", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Fatalf("%v", runErr)
	}
	log.Info("shutdown complete")
}

// buildDisplays assembles the enabled sinks. With -preview everything else
// is bypassed; with nothing enabled frames still land in a PNG so the
// service never runs blind.
func buildDisplays(cfg *config.Config, preview string, logger *logrus.Entry) *display.Fanout {
	if preview != "" {
		return display.NewFanout(logger, imagefile.New(preview))
	}

	var sinks []display.Sink
	if cfg.Display.Epaper.Enabled {
		panel, err := epaper.Open(epaper.Config{
			SPI:            cfg.Display.Epaper.SPI,
			RefreshTimeout: cfg.Display.Epaper.RefreshTimeout.Std(),
		}, logger.WithField("component", "epaper"))
		if err != nil {
			logger.Fatalf("opening e-paper panel: %v", err)
		}
		if b := panel.Bounds(); b.Dx() != cfg.Render.Width || b.Dy() != cfg.Render.Height {
			logger.Warnf("panel is %dx%d but frames render at %dx%d; every push will fail until render.width/height match",
				b.Dx(), b.Dy(), cfg.Render.Width, cfg.Render.Height)
		}
		sinks = append(sinks, panel)
	}
	if cfg.Display.Dot.Enabled {
		sink, err := dot.New(dot.Config{
			BaseURL:    cfg.Display.Dot.BaseURL,
			APIKey:     cfg.Display.Dot.APIKey,
			DeviceID:   cfg.Display.Dot.DeviceID,
			MinRefresh: cfg.Display.Dot.MinRefresh.Std(),
		}, logger.WithField("component", "dot"))
		if err != nil {
			logger.Fatalf("configuring dot device: %v", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Display.File.Enabled {
		sinks = append(sinks, imagefile.New(cfg.Display.File.Path))
	}
	if len(sinks) == 0 {
		logger.Warnf("no display enabled, writing frames to %s", cfg.Display.File.Path)
		sinks = append(sinks, imagefile.New(cfg.Display.File.Path))
	}
	return display.NewFanout(logger.WithField("component", "display"), sinks...)
}

// buildSource picks between polling the REST endpoint directly and keeping
// a WebSocket-fed tracker.
func buildSource(ctx context.Context, cfg *config.Config, home model.Position, logger *logrus.Entry) poller.Source {
	if cfg.Source.Mode == "feed" {
		feedURL := cfg.Source.FeedURL
		if feedURL == "" {
			derived, err := feed.URLFromBase(cfg.Source.BaseURL)
			if err != nil {
				logger.Fatalf("deriving feed URL: %v", err)
			}
			feedURL = derived
		}

		tr := tracker.New(cfg.Source.StaleAfter.Std(), logger.WithField("component", "tracker"))
		client := feed.New(feedURL, home, cfg.Location.RadiusNM, tr, logger.WithField("component", "feed"))
		go func() {
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("feed stopped: %v", err)
			}
		}()
		return poller.TrackerSource{Tracker: tr, Home: home}
	}

	return adsb.New(adsb.Config{
		BaseURL:  cfg.Source.BaseURL,
		Lat:      home.Lat,
		Long:     home.Long,
		RadiusNM: cfg.Location.RadiusNM,
	}, logger.WithField("component", "adsb"))
}

func printSightings(path string, limit int, logger *logrus.Entry) {
	store, err := journal.Open(path, logger)
	if err != nil {
		logger.Fatalf("opening journal: %v", err)
	}
	defer store.Close()

	recent, err := store.Recent(context.Background(), limit)
	if err != nil {
		logger.Fatalf("reading journal: %v", err)
	}
	if len(recent) == 0 {
		fmt.Println("no sightings recorded")
		return
	}
	for _, s := range recent {
		fmt.Printf("%-10s %-10s %-6s seen %dx, closest %.1f NM, last %s\n",
			s.Callsign, s.Registration, s.Type, s.Cycles, s.MinDistanceNM,
			s.LastSeen.Format("2006-01-02 15:04"))
	}
}
