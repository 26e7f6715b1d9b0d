// Command trackd runs the conservation tracking daemon: it polls the
// upstream tracking service, listens on the live push channel, classifies
// entities against the zone layer, and serves the dashboard API.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kudu-data/corridor.watch/internal/alert"
	"github.com/kudu-data/corridor.watch/internal/api"
	"github.com/kudu-data/corridor.watch/internal/config"
	"github.com/kudu-data/corridor.watch/internal/db"
	"github.com/kudu-data/corridor.watch/internal/engine"
	"github.com/kudu-data/corridor.watch/internal/ingest"
	"github.com/kudu-data/corridor.watch/internal/predict"
	"github.com/kudu-data/corridor.watch/internal/replay"
	"github.com/kudu-data/corridor.watch/internal/risk"
	"github.com/kudu-data/corridor.watch/internal/timeutil"
	"github.com/kudu-data/corridor.watch/internal/track"
	"github.com/kudu-data/corridor.watch/internal/units"
	"github.com/kudu-data/corridor.watch/internal/zone"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbFile        = flag.String("db", "corridor_data.db", "SQLite database path")
	migrationsDir = flag.String("migrations", "migrations", "Migrations directory")
	upstreamURL   = flag.String("upstream", "http://localhost:9000", "Upstream tracking service base URL")
	liveWS        = flag.String("live-ws", "", "Upstream live websocket URL (empty disables the push channel)")
	zonesFile     = flag.String("zones", "", "Zone seed file (JSON), used before the first upstream refresh")
	configFile    = flag.String("config", "", "Tuning config file (JSON)")
	unitsFlag     = flag.String("units", units.KMH, "Outbound speed units: "+units.GetValidUnitsString())
	devMode       = flag.Bool("dev", false, "Run in dev mode (no upstream polling)")
)

func main() {
	flag.Parse()

	if !units.IsValid(*unitsFlag) {
		log.Fatalf("invalid units %q, valid values: %s", *unitsFlag, units.GetValidUnitsString())
	}

	cfg := config.EmptyTuningConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
	}

	database, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Printf("migrations: %v (continuing on inline schema)", err)
	}

	client := ingest.NewClient(*upstreamURL, nil)
	clock := timeutil.RealClock{}

	tracker := engine.NewTracker(engine.Options{
		EpsilonDeg: cfg.GetPositionEpsilonDeg(),
		Predictor: &predict.Predictor{
			MovementThresholdKmh: cfg.GetMovementThresholdKmh(),
			FastSpeedKmh:         cfg.GetFastSpeedKmh(),
			FastHorizonMinutes:   cfg.GetFastHorizonMinutes(),
			SlowHorizonMinutes:   cfg.GetSlowHorizonMinutes(),
		},
		Classifier: &risk.Classifier{CorridorToleranceKm: cfg.GetCorridorToleranceKm()},
		Clock:      clock,
		Recorder:   database,
		Upstream:   client,
	})

	seedZones(tracker, database)

	playback := replay.NewEngine()
	server := api.NewServer(tracker, database, playback, cfg, *unitsFlag)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		server.Hub().Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		replay.NewRunner(playback, clock, cfg.GetPlaybackTickInterval(),
			server.Hub().BroadcastReplayPoint).Run(ctx)
	}()

	if !*devMode {
		startIngestion(ctx, &wg, tracker, client, cfg, clock)
	}

	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(server.ServeMux()),
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("trackd listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Print("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}

	wg.Wait()
}

// startIngestion launches the pollers and, when configured, the live bridge.
func startIngestion(ctx context.Context, wg *sync.WaitGroup, tracker *engine.Tracker,
	client *ingest.Client, cfg *config.TuningConfig, clock timeutil.Clock) {

	pollers := []*ingest.Poller{
		// Fast refresh of whatever the upstream currently considers active.
		ingest.NewPoller("active", cfg.GetActivePollInterval(), clock, func(ctx context.Context) error {
			snaps, err := client.FetchEntitySnapshots(ctx, "")
			if err != nil {
				return err
			}
			tracker.ApplyPositions(snaps)
			return nil
		}),
		// Full animal snapshot catches collars the active feed aged out.
		ingest.NewPoller("animals", cfg.GetAnimalPollInterval(), clock, func(ctx context.Context) error {
			snaps, err := client.FetchEntitySnapshots(ctx, track.KindAnimal)
			if err != nil {
				return err
			}
			tracker.ApplyPositions(snaps)
			return nil
		}),
		// Alerts and ranger units refresh on the same cadence.
		ingest.NewPoller("alerts", cfg.GetAlertPollInterval(), clock, func(ctx context.Context) error {
			alerts, err := client.FetchAlerts(ctx)
			if err != nil {
				return err
			}
			tracker.ApplyAlerts(alerts, alert.OriginPoll)

			rangers, err := client.FetchEntitySnapshots(ctx, track.KindRanger)
			if err != nil {
				return err
			}
			tracker.ApplyPositions(rangers)
			return nil
		}),
		ingest.NewPoller("zones", cfg.GetZoneRefreshInterval(), clock, func(ctx context.Context) error {
			defs, err := client.FetchZones(ctx)
			if err != nil {
				return err
			}
			tracker.SwapZones(defs)
			return nil
		}),
	}
	for _, p := range pollers {
		wg.Add(1)
		go func(p *ingest.Poller) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}

	if *liveWS != "" {
		bridge := ingest.NewBridge(*liveWS, tracker, clock,
			cfg.GetReconnectMinBackoff(), cfg.GetReconnectMaxBackoff())
		wg.Add(1)
		go func() {
			defer wg.Done()
			bridge.Run(ctx)
		}()
	}
}

// seedZones installs a zone layer before the first upstream refresh: the seed
// file when given, otherwise whatever the last run persisted.
func seedZones(tracker *engine.Tracker, database *db.DB) {
	if *zonesFile != "" {
		defs, err := zone.LoadFile(*zonesFile)
		if err != nil {
			log.Fatalf("loading zones file: %v", err)
		}
		tracker.SwapZones(defs)
		return
	}

	defs, err := database.Zones()
	if err != nil {
		log.Printf("loading stored zones: %v", err)
		return
	}
	if len(defs) > 0 {
		tracker.SwapZones(defs)
	}
}
