// Package serverapp wires storage, completion, sync, and maintenance into a
// running HTTP application.
package serverapp

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	gosync "sync"
	"time"

	"chorekeep/internal/audit"
	"chorekeep/internal/completion"
	"chorekeep/internal/config"
	"chorekeep/internal/httpapi"
	"chorekeep/internal/httpmw"
	"chorekeep/internal/maintenance"
	"chorekeep/internal/points"
	"chorekeep/internal/store"
	"chorekeep/internal/sync"
)

type Options struct {
	Config *config.Config
	Logger *log.Logger
}

// App owns the wired components and the background sync and maintenance
// loops. Build with New, serve app.Handler, stop with Close.
type App struct {
	Handler http.Handler

	store       *store.Store
	coordinator *sync.Coordinator
	sweeper     *maintenance.Sweeper
	cfg         *config.Config
	logger      *log.Logger

	stopOnce gosync.Once
	stop     chan struct{}
	done     gosync.WaitGroup
}

func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	cfg := opts.Config

	s, err := store.New(cfg.Storage.DataDir, opts.Logger)
	if err != nil {
		return nil, err
	}

	ledger, err := points.NewFileLedger(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	var sink audit.Sink = audit.NewMemorySink()
	if cfg.Audit.LogPath != "" {
		sink = audit.NewFileSink(cfg.Audit.LogPath, opts.Logger)
	}

	builder := completion.NewBuilder(s, opts.Logger)

	var coordinator *sync.Coordinator
	if cfg.Sync.Enabled {
		if cfg.Sync.Backend != "ticktick" {
			return nil, errors.New("unknown sync backend: " + cfg.Sync.Backend)
		}
		loc := time.UTC
		if cfg.Sync.Timezone != "" {
			parsed, err := time.LoadLocation(cfg.Sync.Timezone)
			if err != nil {
				return nil, err
			}
			loc = parsed
		}
		apiBase := cfg.Sync.APIBase
		if apiBase == "" {
			apiBase = sync.DefaultAPIBase
		}
		client := sync.NewClient(apiBase, cfg.Sync.AccessToken)
		// The pull path replays remote completions through its own applier.
		// That applier must not carry a sync notifier or each replayed
		// completion would push straight back to the remote.
		pullApplier := completion.NewApplier(s, ledger, sink, nil, opts.Logger)
		backend := sync.NewTickTickBackend(client, s, builder, pullApplier, loc, opts.Logger)
		coordinator = sync.NewCoordinator(backend, opts.Logger)
	}

	var notifier completion.SyncNotifier
	if coordinator != nil {
		notifier = sync.Notifier{Coordinator: coordinator}
	}
	applier := completion.NewApplier(s, ledger, sink, notifier, opts.Logger)

	api := httpapi.NewHandler(s, builder, applier, coordinator, ledger, opts.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/lists", api.ListsRoot)
	mux.HandleFunc("/api/lists/", api.ListsSub)
	mux.HandleFunc("/api/sync", api.SyncRoot)
	mux.HandleFunc("/api/sync/", api.SyncSub)
	mux.HandleFunc("/api/points/", api.PointsSub)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "chorekeep",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		// The store loads eagerly; a reachable registry means storage works.
		_ = s.Lists()
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "chorekeep",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	app := &App{
		store:       s,
		coordinator: coordinator,
		sweeper:     maintenance.NewSweeper(s, sink, opts.Logger),
		cfg:         cfg,
		logger:      opts.Logger,
		stop:        make(chan struct{}),
	}
	app.Handler = httpmw.Chain(
		mux,
		httpmw.WithAccessLog(opts.Logger),
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
	)
	return app, nil
}

// Start launches the periodic sync pull and the daily maintenance sweep.
func (a *App) Start(ctx context.Context) {
	if a.coordinator != nil && a.coordinator.Enabled() {
		if a.coordinator.Initialize(ctx) {
			a.done.Add(1)
			go a.syncLoop(ctx)
		} else {
			a.logger.Printf("serverapp: sync backend unavailable, periodic pull disabled")
		}
	}
	a.done.Add(1)
	go a.maintenanceLoop(ctx)
}

func (a *App) Close() {
	a.stopOnce.Do(func() { close(a.stop) })
	a.done.Wait()
}

func (a *App) syncLoop(ctx context.Context) {
	defer a.done.Done()

	interval := time.Duration(a.cfg.Sync.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.coordinator.PullChanges(ctx, "")
	for {
		select {
		case <-ticker.C:
			stats := a.coordinator.PullChanges(ctx, "")
			if stats.Created+stats.Updated+stats.Deleted > 0 {
				a.logger.Printf("serverapp: sync pull created=%d updated=%d deleted=%d",
					stats.Created, stats.Updated, stats.Deleted)
			}
		case <-a.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) maintenanceLoop(ctx context.Context) {
	defer a.done.Done()

	interval := time.Duration(a.cfg.Maintenance.IntervalHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.runMaintenance()
	for {
		select {
		case <-ticker.C:
			a.runMaintenance()
		case <-a.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) runMaintenance() {
	stats := a.sweeper.Run(time.Now().UTC())
	if stats.Archived+stats.Hidden+stats.StreakResets > 0 {
		a.logger.Printf("serverapp: maintenance archived=%d hidden=%d streak_resets=%d",
			stats.Archived, stats.Hidden, stats.StreakResets)
	}
}

// NewHandler builds the HTTP handler without starting background loops.
// Handy for tests and one-shot tooling.
func NewHandler(opts Options) (http.Handler, error) {
	app, err := New(opts)
	if err != nil {
		return nil, err
	}
	return app.Handler, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
