package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/spencer-p/tidewatch/pkg/handlers"
	"github.com/spencer-p/tidewatch/pkg/link"
	"github.com/spencer-p/tidewatch/pkg/log"
	"github.com/spencer-p/tidewatch/pkg/noaa"
	"github.com/spencer-p/tidewatch/pkg/notify"
	"github.com/spencer-p/tidewatch/pkg/store"
	"github.com/spencer-p/tidewatch/pkg/syncer"
	"github.com/spencer-p/tidewatch/pkg/tides"
	"github.com/spencer-p/tidewatch/pkg/timeline"
)

type Config struct {
	Port         string        `default:"8080"`
	Prefix       string        `default:"/"`
	Store        string        `default:"memory"`
	StationsFile string        `split_words:"true"`
	MQTTBroker   string        `envconfig:"MQTT_BROKER"`
	MQTTPrefix   string        `envconfig:"MQTT_PREFIX" default:"tidewatch"`
	Device       string        `default:"phone"`
	Peer         string        `default:"watch"`
	Debug        bool          `default:"false"`
	CacheTTL     time.Duration `split_words:"true" default:"1h"`
	// Loopback runs a watch in-process, linked without a broker.
	Loopback bool `default:"false"`
}

func main() {
	var env Config
	if err := envconfig.Process("", &env); err != nil {
		log.Named("main").Fatal(err.Error())
	}
	if err := log.Init(env.Debug); err != nil {
		log.Named("main").Fatal(err.Error())
	}
	defer log.Sync()
	logger := log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := tides.DefaultCatalog
	if env.StationsFile != "" {
		c, err := tides.LoadCatalog(env.StationsFile)
		if err != nil {
			logger.Fatalw("bad station catalog", "err", err)
		}
		catalog = c
	}

	st, err := store.Open(ctx, env.Store)
	if err != nil {
		logger.Fatalw("failed to open store", "store", env.Store, "err", err)
	}
	if c, ok := st.(io.Closer); ok {
		defer c.Close()
	}

	fetcher := noaa.NewCached(noaa.NewClient(), env.CacheTTL)
	g, ctx := errgroup.WithContext(ctx)

	var peer link.Link
	switch {
	case env.MQTTBroker != "":
		m, err := link.DialMQTT(link.MQTTConfig{
			Broker: env.MQTTBroker,
			Prefix: env.MQTTPrefix,
			Self:   env.Device,
			Peer:   env.Peer,
		}, log.Named("link"))
		if err != nil {
			logger.Fatalw("failed to reach broker", "broker", env.MQTTBroker, "err", err)
		}
		peer = m
	case env.Loopback:
		pair := link.NewPair()
		peer = pair.A()
		startLoopbackWatch(ctx, g, pair.B(), fetcher, catalog, env.Peer)
	}
	if peer != nil {
		defer peer.Close()
	}

	coord := syncer.New(syncer.Options{
		Device:  env.Device,
		Fetcher: fetcher,
		Store:   st,
		Link:    peer,
		Bus:     notify.NewBus(),
		Catalog: catalog,
		Log:     log.Named("syncer"),
	})
	snap := coord.Load(ctx)
	logger.Infow("loaded snapshot", "station", snap.Station.ID, "levels", len(snap.Levels))

	r := mux.NewRouter().StrictSlash(true)
	s := r.PathPrefix(env.Prefix).Subrouter()
	deps := handlers.Deps{
		Coordinator: coord,
		Catalog:     catalog,
		Log:         log.Named("handlers"),
	}
	if p, ok := peer.(handlers.Peer); ok {
		deps.Peer = p
	}
	handlers.Register(s, deps)

	srv := &http.Server{
		Handler:      r,
		Addr:         "0.0.0.0:" + env.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	g.Go(func() error {
		logger.Infow("listening", "addr", srv.Addr, "prefix", env.Prefix)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
	g.Go(func() error {
		// Populate the levels for the loaded station without waiting for
		// a client to ask.
		if _, err := coord.Refresh(ctx); err != nil {
			logger.Warnw("initial refresh failed", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatalw("server stopped", "err", err)
	}
}

// startLoopbackWatch runs a second coordinator and a timeline scheduler on
// the far end of an in-process link, the way the watch would.
func startLoopbackWatch(ctx context.Context, g *errgroup.Group, end link.Link, fetcher syncer.Fetcher, catalog *tides.Catalog, device string) {
	st := store.NewMemory()
	bus := notify.NewBus()
	watch := syncer.New(syncer.Options{
		Device:  device,
		Fetcher: fetcher,
		Store:   st,
		Link:    end,
		Bus:     bus,
		Catalog: catalog,
		Log:     log.Named(device),
	})
	watch.Load(ctx)

	sched := timeline.New(timeline.Options{
		Source: watch,
		Store:  st,
		Server: &timeline.Recorder{},
		Log:    log.Named("timeline"),
	})
	g.Go(func() error {
		if err := sched.Observe(ctx, bus); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}
