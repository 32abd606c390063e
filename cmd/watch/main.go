// Command watch is the wrist-side daemon. It keeps a synced snapshot, wakes
// when the cached levels run out to refresh and reconcile the timeline, and
// reconciles again whenever the phone delivers a new snapshot.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spencer-p/tidewatch/pkg/link"
	"github.com/spencer-p/tidewatch/pkg/log"
	"github.com/spencer-p/tidewatch/pkg/noaa"
	"github.com/spencer-p/tidewatch/pkg/notify"
	"github.com/spencer-p/tidewatch/pkg/store"
	"github.com/spencer-p/tidewatch/pkg/syncer"
	"github.com/spencer-p/tidewatch/pkg/tides"
	"github.com/spencer-p/tidewatch/pkg/timeline"
	"github.com/spencer-p/tidewatch/pkg/timetricks"
)

type Config struct {
	Store        string        `default:"memory"`
	StationsFile string        `split_words:"true"`
	MQTTBroker   string        `envconfig:"MQTT_BROKER"`
	MQTTPrefix   string        `envconfig:"MQTT_PREFIX" default:"tidewatch"`
	Device       string        `default:"watch"`
	Peer         string        `default:"phone"`
	Debug        bool          `default:"false"`
	CacheTTL     time.Duration `split_words:"true" default:"1h"`
	MinWake      time.Duration `split_words:"true" default:"15m"`
	MaxWake      time.Duration `split_words:"true" default:"6h"`
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

	var peer link.Link
	if env.MQTTBroker != "" {
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
		defer peer.Close()
	} else {
		logger.Warn("no MQTT_BROKER, running unpaired")
	}

	bus := notify.NewBus()
	coord := syncer.New(syncer.Options{
		Device:  env.Device,
		Fetcher: noaa.NewCached(noaa.NewClient(), env.CacheTTL),
		Store:   st,
		Link:    peer,
		Bus:     bus,
		Catalog: catalog,
		Log:     log.Named("syncer"),
	})
	coord.Load(ctx)

	sched := timeline.New(timeline.Options{
		Source: coord,
		Store:  st,
		Server: &timeline.Recorder{},
		Log:    log.Named("timeline"),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCancel(sched.Observe(ctx, bus))
	})
	g.Go(func() error {
		return ignoreCancel(wakeLoop(ctx, sched, env.MinWake, env.MaxWake, logger))
	})
	if err := g.Wait(); err != nil {
		logger.Fatalw("watch stopped", "err", err)
	}
}

func wakeLoop(ctx context.Context, sched *timeline.Scheduler, minWake, maxWake time.Duration, logger *zap.SugaredLogger) error {
	for {
		action, err := sched.Wake(ctx)
		if err != nil {
			logger.Warnw("wake failed", "err", err)
		}

		now := time.Now()
		if e, ok := sched.Current(now); ok {
			logger.Infow("complication", "text", e.LongText, "at", e.Time, "daylight", e.Daylight)
		}
		wait := wakeDelay(sched.NextWakeTime(now), now, minWake, maxWake)
		logger.Debugw("sleeping", "action", action, "for", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// wakeDelay is how long to sleep until next, kept within [minWake, maxWake]
// so an empty cache does not spin and a far-off end still gets checked.
func wakeDelay(next, now time.Time, minWake, maxWake time.Duration) time.Duration {
	return timetricks.Clamp(next.Sub(now), minWake, maxWake)
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
