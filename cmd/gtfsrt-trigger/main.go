package main

import (
	"context"
	"flag"
	"log"
	"time"

	lib "github.com/theoremus-urban-solutions/gtfsrt-trigger"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/config"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/store"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/timetable"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	oneshot := flag.Bool("oneshot", false, "run a single evaluation tick and exit")
	flag.Parse()

	lib.InitLogging()
	if err := config.LoadAppConfig(*configPath); err != nil {
		log.Fatalf("config: %v", err)
	}

	st, err := store.Open(config.Config.Store.Path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer func() { _ = st.Close() }()

	fetchTimeout := time.Duration(config.Config.Engine.FetchTimeoutMS) * time.Millisecond
	rt := gtfsrt.NewClient(fetchTimeout)
	tt := timetable.NewClient(fetchTimeout)

	retirer := lib.NewRetirer(st, 256)
	retirer.Start()
	dispatcher := lib.NewDispatcher(st, retirer, config.Config.Engine, config.Config.Notifier)
	engine := lib.NewEngine(st, rt, dispatcher, config.Config.Engine)

	if *oneshot {
		_ = engine.Tick(context.Background())
		retirer.Stop()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticksDone := make(chan struct{})
	go func() {
		defer close(ticksDone)
		runTicks(ctx, engine)
	}()

	lib.StartServer(&lib.API{Store: st, Timetable: tt, Engine: engine})
	lib.HandleGracefulShutdown(func() {
		cancel()
		// Wait out any in-flight tick so dispatches finish before the
		// retirer stops; a fetch holds the tick at most fetchTimeoutMS.
		<-ticksDone
		retirer.Stop()
	})
}

// runTicks drives the engine on the fixed tick cadence. Ticks run
// back-to-back in this loop; a tick that overruns its interval finishes
// before the next starts, and the dedup claim keeps any external overlap
// (a concurrent -oneshot run) safe.
func runTicks(ctx context.Context, engine *lib.Engine) {
	interval := time.Duration(config.Config.Engine.TickIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	_ = engine.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = engine.Tick(ctx)
		}
	}
}
