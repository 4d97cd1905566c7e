package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sells-group/portfolio-cli/internal/config"
	"github.com/sells-group/portfolio-cli/internal/pipeline"
	"github.com/sells-group/portfolio-cli/internal/schema"
	"github.com/sells-group/portfolio-cli/internal/store"
)

var (
	servePort       int
	serveSchemaPath string
	serveNoStore    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API",
	Long: `Builds the enriched client table once, then answers filter and KPI
requests from the in-memory copy. When a snapshot store is configured, an
existing snapshot of the same source files is reused instead of re-joining.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := loadSchema(serveSchemaPath)
		if err != nil {
			return err
		}

		d := &dashboard{schema: s}

		if !serveNoStore {
			st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
			if err != nil {
				return eris.Wrap(err, "serve: open store")
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			d.store = st
		}

		if err := d.init(ctx); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(d, cfg.Server),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// dashboard holds the cached enriched table shared by all handlers. Reads
// take the lock briefly to grab the current pointer; the table itself is
// immutable, so filtering and metrics run lock-free on the snapshot a
// request observed.
type dashboard struct {
	schema *schema.Schema
	store  store.Store // nil when snapshots are disabled

	mu    sync.RWMutex
	table *pipeline.Table

	reloads singleflight.Group
}

// init populates the cache: latest matching snapshot if available, fresh
// build otherwise.
func (d *dashboard) init(ctx context.Context) error {
	if d.store != nil {
		key := d.schema.SourceKey()
		snap, err := d.store.LatestSnapshot(ctx, key)
		if err != nil {
			return err
		}
		if snap != nil {
			zap.L().Info("reusing snapshot",
				zap.String("id", snap.ID),
				zap.Int("rows", len(snap.Rows)),
			)
			d.table = &pipeline.Table{
				Rows:     snap.Rows,
				Quality:  snap.Quality,
				LoadedAt: snap.CreatedAt,
			}
			return nil
		}
	}

	_, err := d.reload(ctx)
	return err
}

// reload rebuilds the enriched table. Concurrent callers collapse into a
// single build; recomputation is idempotent, so every caller can use the
// shared result.
func (d *dashboard) reload(ctx context.Context) (*pipeline.Table, error) {
	v, err, _ := d.reloads.Do("reload", func() (any, error) {
		table, err := pipeline.Build(ctx, d.schema)
		if err != nil {
			return nil, err
		}

		if d.store != nil {
			if _, err := d.store.SaveSnapshot(ctx, table, d.schema.SourceKey()); err != nil {
				// Snapshot failure degrades to in-memory only.
				zap.L().Error("snapshot save failed", zap.Error(err))
			}
		}

		d.mu.Lock()
		d.table = table
		d.mu.Unlock()
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pipeline.Table), nil
}

func (d *dashboard) current() *pipeline.Table {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.table
}

// newRouter wires the dashboard API. The UI layer owns all rendering; these
// endpoints only expose the enriched table, filters, and aggregates.
func newRouter(d *dashboard, sc config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: sc.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(rateLimiter(rate.NewLimiter(rate.Limit(sc.RatePerSecond), sc.RateBurst)))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/clients", d.handleClients)
		r.Get("/metrics", d.handleMetrics)
		r.Get("/options", d.handleOptions)
		r.Get("/quality", d.handleQuality)
		r.Get("/breakdown/advisors", d.handleAdvisorBreakdown)
		r.Get("/breakdown/relationships", d.handleRelationshipBreakdown)
		r.Get("/breakdown/assets", d.handleAssetAllocation)
		r.Post("/reload", d.handleReload)
	})

	return r
}

// rateLimiter bounds total request throughput across all clients.
func rateLimiter(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (d *dashboard) handleClients(w http.ResponseWriter, r *http.Request) {
	p, err := parsePredicates(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows := d.current().Filter(p)
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(rows),
		"rows":  rows,
	})
}

func (d *dashboard) handleMetrics(w http.ResponseWriter, r *http.Request) {
	p, err := parsePredicates(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	table := d.current()
	rows := table.Filter(p)
	writeJSON(w, http.StatusOK, pipeline.Summarize(rows, len(table.Rows)))
}

func (d *dashboard) handleOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, pipeline.Options(d.current().Rows))
}

func (d *dashboard) handleQuality(w http.ResponseWriter, _ *http.Request) {
	table := d.current()
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded_at": table.LoadedAt,
		"rows":      len(table.Rows),
		"quality":   table.Quality,
	})
}

func (d *dashboard) handleAdvisorBreakdown(w http.ResponseWriter, r *http.Request) {
	p, err := parsePredicates(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, pipeline.AdvisorBreakdown(d.current().Filter(p)))
}

func (d *dashboard) handleRelationshipBreakdown(w http.ResponseWriter, r *http.Request) {
	p, err := parsePredicates(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, pipeline.RelationshipGenderCounts(d.current().Filter(p)))
}

func (d *dashboard) handleAssetAllocation(w http.ResponseWriter, r *http.Request) {
	p, err := parsePredicates(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	cells := pipeline.AssetAllocation(d.current().Filter(p), d.schema.Fact.AssetColumns)
	writeJSON(w, http.StatusOK, cells)
}

func (d *dashboard) handleReload(w http.ResponseWriter, r *http.Request) {
	table, err := d.reload(r.Context())
	if err != nil {
		zap.L().Error("reload failed", zap.Error(err))
		http.Error(w, `{"error":"reload failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":    len(table.Rows),
		"quality": table.Quality,
	})
}

// parsePredicates maps query parameters onto filter predicates. List params
// repeat (?advisor=A&advisor=B); range params are single integers.
func parsePredicates(q url.Values) (pipeline.Predicates, error) {
	p := pipeline.Predicates{
		Relationships: q["relationship"],
		Advisors:      q["advisor"],
		Loyalty:       q["loyalty"],
		Genders:       q["gender"],
	}

	for _, bound := range []struct {
		name string
		dst  **int
	}{
		{"risk_min", &p.RiskMin},
		{"risk_max", &p.RiskMax},
		{"age_min", &p.AgeMin},
		{"age_max", &p.AgeMax},
	} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return pipeline.Predicates{}, eris.Errorf("invalid %s: %q", bound.name, raw)
		}
		*bound.dst = &v
	}

	return p, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveSchemaPath, "schema", "", "schema file path (default from config)")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "disable snapshot persistence")
	rootCmd.AddCommand(serveCmd)
}
