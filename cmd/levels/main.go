// Command levels prints the classified water levels for a station around now.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spencer-p/tidewatch/pkg/noaa"
	"github.com/spencer-p/tidewatch/pkg/tides"
	"github.com/spencer-p/tidewatch/pkg/tides/splines"
	"github.com/spencer-p/tidewatch/pkg/timetricks"
)

func main() {
	station := flag.String("station", tides.DefaultCatalog.Default().ID, "NOAA station ID")
	span := flag.Duration("span", timetricks.Day, "how far either side of now to fetch")
	step := flag.Duration("step", 0, "if set, also print interpolated heights about this far apart")
	flag.Parse()

	st, ok := tides.DefaultCatalog.Lookup(*station)
	if !ok {
		st = tides.Station{ID: *station, Name: *station}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()
	from, to := timetricks.Window(now, *span)
	raw, err := noaa.NewClient().FetchLevels(ctx, st.ID, from, to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to fetch from NOAA: %v\n", err)
		os.Exit(1)
	}
	snap := tides.NewSnapshot(st).WithLevels(tides.Between(tides.Normalize(raw), from, to), now)

	loc := st.Location()
	fmt.Printf("%s (%s): %d levels, average %+.2fm\n", st.Name, st.ID, len(snap.Levels), snap.Average)
	for _, l := range snap.Levels {
		fmt.Printf("%-9s %s %+.2fm %s\n", timetricks.Relative(l.Time.In(loc), now.In(loc)), l.Time.In(loc).Format("15:04"), l.Height, l.Situation)
	}
	if cur := snap.Current(now); cur != nil {
		fmt.Printf("now: %s\n", cur)
	}

	if *step > 0 {
		for _, h := range heights(snap, *step) {
			fmt.Printf("%f ", h)
		}
		fmt.Println()
	}
}

// heights samples the curve through the snapshot's levels from the first
// level to the last, roughly every step.
func heights(snap tides.Snapshot, step time.Duration) []float64 {
	first, ok := snap.First()
	last, _ := snap.Latest()
	if !ok || step <= 0 {
		return nil
	}
	n := int(last.Time.Sub(first.Time)/step) + 1
	return splines.Discrete(splines.Through(snap.Levels), n)
}
