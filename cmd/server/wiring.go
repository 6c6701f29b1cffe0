package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"rollcall/internal/idtoken"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/platform/middleware"
	"rollcall/internal/platform/redis"
	ratelimit "rollcall/internal/ratelimit/middleware"
	"rollcall/internal/ratelimit/store/bucket"
	"rollcall/internal/student/handler"
	"rollcall/internal/student/store"
	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/audit/store/kafka"
	"rollcall/pkg/platform/audit/store/logsink"
	auditpostgres "rollcall/pkg/platform/audit/store/postgres"
	"rollcall/pkg/platform/circuit"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/platform/middleware/admin"
	"rollcall/pkg/platform/middleware/device"
	"rollcall/pkg/platform/middleware/metadata"
	"rollcall/pkg/platform/middleware/requesttime"
)

const banner = "Rollcall student auth server"

type tokenVerifier interface {
	Verify(ctx context.Context, raw string) (*idtoken.Claims, error)
}

func newVerifier(ctx context.Context, cfg config.Token) (tokenVerifier, error) {
	switch cfg.Verifier {
	case config.VerifierHMAC:
		return idtoken.NewHMACVerifier(cfg.HMACSigningKey, cfg.HMACIssuer, cfg.HMACAudience), nil
	default:
		v, err := idtoken.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID)
		if err != nil {
			return nil, fmt.Errorf("firebase verifier: %w", err)
		}
		return v, nil
	}
}

// healthCheck pings one backing dependency.
type healthCheck struct {
	name string
	ping func(ctx context.Context) error
}

// dependencies are the opened backends, closed in reverse order.
type dependencies struct {
	profiles  store.Store
	auditSink audit.Store
	buckets   ratelimit.BucketStore
	checks    []healthCheck
	closers   []func()
}

func (d *dependencies) onClose(fn func()) {
	d.closers = append(d.closers, fn)
}

func (d *dependencies) close(log *slog.Logger) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	log.Info("dependencies closed")
}

func openDependencies(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics) (_ *dependencies, err error) {
	deps := &dependencies{}
	defer func() {
		if err != nil {
			deps.close(log)
		}
	}()

	var sinks audit.Multi

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := store.OpenPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		deps.onClose(func() { _ = db.Close() })
		if err := store.Migrate(ctx, db); err != nil {
			return nil, err
		}
		deps.profiles = store.NewPostgres(db)
		deps.checks = append(deps.checks, healthCheck{name: "postgres", ping: db.PingContext})
		sinks = append(sinks, auditpostgres.New(db))
	case config.BackendMongo:
		client, err := store.ConnectMongo(ctx, cfg.Store.MongoURI)
		if err != nil {
			return nil, err
		}
		deps.onClose(func() { _ = client.Disconnect(context.Background()) })
		deps.profiles = store.NewMongo(client.Database(cfg.Store.MongoDatabase).Collection(cfg.Store.MongoCollection))
		deps.checks = append(deps.checks, healthCheck{name: "mongo", ping: mongoPing(client)})
	default:
		deps.profiles = store.NewInMemory()
	}

	deps.buckets = bucket.NewInMemoryBucketStore()

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		deps.buckets = ratelimit.NewFailoverStore(
			bucket.NewRedisBucketStore(rc.Client),
			deps.buckets,
			circuit.New("ratelimit-redis"),
			log, m,
		)
		deps.onClose(func() { _ = rc.Close() })
		deps.profiles = store.NewCached(deps.profiles, rc.Client, cfg.Redis.ProfileTTL,
			store.WithCacheMetrics(m),
			store.WithCacheLogger(log),
		)
		deps.checks = append(deps.checks, healthCheck{name: "redis", ping: rc.Health})
	}

	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, err
		}
		deps.onClose(ks.Close)
		if err := ks.EnsureTopic(ctx, 1, 1); err != nil {
			return nil, err
		}
		sinks = append(sinks, ks)
		deps.checks = append(deps.checks, healthCheck{name: "kafka", ping: ks.Ping})
	}
	if len(sinks) == 0 {
		sinks = append(sinks, logsink.New(log))
	}
	deps.auditSink = sinks

	return deps, nil
}

func mongoPing(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}
}

func newRouter(cfg config.Server, log *slog.Logger, m *metrics.Metrics, checks []healthCheck, students *handler.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(metadata.ClientMetadata(cfg.TrustedProxies))
	r.Use(device.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.LatencyMiddleware(m))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(banner))
	})
	r.Get("/healthz", healthHandler(checks))
	r.Group(func(r chi.Router) {
		if cfg.AdminToken != "" {
			r.Use(admin.RequireAdminToken(cfg.AdminToken, log))
		}
		r.Handle("/metrics", promhttp.Handler())
	})

	students.Register(r)
	return r
}

func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failed := map[string]string{}
		for _, c := range checks {
			if err := c.ping(r.Context()); err != nil {
				failed[c.name] = err.Error()
			}
		}
		if len(failed) > 0 {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "failed": failed})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
