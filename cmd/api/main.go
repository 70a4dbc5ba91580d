package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"checkin/internal/attendance"
	"checkin/internal/config"
	"checkin/internal/httpapi"
	"checkin/internal/httpmiddleware"
	"checkin/internal/queue"
	"checkin/internal/sheet"
	"checkin/internal/store"
	"checkin/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	resolver, err := cfg.Resolver()
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	for _, s := range resolver.Catalog().Sessions() {
		log.Printf("session %q %s-%s", s.Value, s.Start, s.End)
	}
	if d := resolver.PinnedDate(); d != "" {
		log.Printf("check-ins restricted to %s (%s)", d, cfg.Timezone)
	}

	var redisClient *store.Redis
	if cfg.UsesRedis() {
		if redisClient, err = store.NewRedis(cfg.RedisAddr); err != nil {
			return err
		}
		defer redisClient.Close()
	}

	backend, closer, err := openStore(ctx, cfg, redisClient)
	if err != nil {
		return err
	}
	defer closer.Close()
	log.Printf("attendance store: %s", cfg.StoreBackend)

	if cfg.RegistrationFile != "" {
		ids, err := sheet.ReadIdentifiersFile(cfg.RegistrationFile)
		if err != nil {
			return fmt.Errorf("registration roster: %w", err)
		}
		if err := backend.Register(ctx, ids...); err != nil {
			return fmt.Errorf("seed registrations: %w", err)
		}
		log.Printf("registered %d identifiers from %s", len(ids), cfg.RegistrationFile)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := httpapi.NewMetrics(reg)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	workerDone := make(chan struct{})

	var events queue.Queue
	if cfg.QueueBackend == config.QueueRedis {
		events = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		close(workerDone)
	} else {
		// With an in-process queue the sheet mirror runs inside the API.
		mem := queue.NewInMemory(256)
		mirror, err := sheet.OpenMirror(cfg.SheetMirrorPath)
		if err != nil {
			return err
		}
		defer mirror.Close()
		w := worker.New(mem, mirror, worker.NewMetrics(reg))
		go func() {
			defer close(workerDone)
			if err := w.Run(workerCtx); err != nil {
				log.Printf("sheet mirror stopped: %v", err)
			}
		}()
		events = mem
		log.Printf("mirroring check-ins to %s", cfg.SheetMirrorPath)
	}

	svc := attendance.NewStoreService(resolver, backend)
	h := httpapi.New(svc, backend, resolver.Catalog(), events, metrics)
	r := httpapi.NewRouter(h, httpapi.RouterConfig{
		Limiter:  httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
		Gatherer: reg,
		WebDir:   webDir(cfg.WebDir),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}
	stopWorker()
	<-workerDone

	log.Println("Server exited")
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore picks the one attendance backend configured for this deployment.
func openStore(ctx context.Context, cfg config.App, redisClient *store.Redis) (attendance.Store, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := attendance.NewRepository(db.Client, attendance.Postgres)
		if err := repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, db, nil
	case config.BackendSQLite:
		db, err := store.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		repo := attendance.NewRepository(db.Client, attendance.SQLite)
		if err := repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, db, nil
	case config.BackendRedis:
		if !redisClient.Healthy(ctx) {
			log.Printf("warning: redis at %s not reachable yet", cfg.RedisAddr)
		}
		return attendance.NewRedisRepository(redisClient.Client, cfg.RedisPrefix), nopCloser{}, nil
	default:
		log.Println("WARNING: memory store in use, attendance is lost on restart")
		return attendance.NewMemoryStore(), nopCloser{}, nil
	}
}

func webDir(dir string) string {
	if dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); err != nil {
		log.Printf("WEB_DIR %s unavailable: %v", dir, err)
		return ""
	}
	return dir
}
