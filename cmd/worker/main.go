package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkin/internal/config"
	"checkin/internal/queue"
	"checkin/internal/sheet"
	"checkin/internal/store"
	"checkin/internal/worker"
)

// Worker consumes check-in events from Redis and mirrors them into the
// attendance sheet.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.QueueBackend != config.QueueRedis {
		log.Fatalf("worker needs QUEUE_BACKEND=redis (got %q); the memory queue is drained inside the API", cfg.QueueBackend)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis at %s not reachable, will keep retrying", cfg.RedisAddr)
	}

	mirror, err := sheet.OpenMirror(cfg.SheetMirrorPath)
	if err != nil {
		log.Fatalf("sheet mirror: %v", err)
	}
	defer mirror.Close()

	reg := prometheus.NewRegistry()
	if addr := cfg.WorkerMetrics; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	w := worker.New(q, mirror, worker.NewMetrics(reg))

	log.Printf("worker started, mirroring %s to %s", cfg.QueueKey, cfg.SheetMirrorPath)
	if err := w.Run(ctx); err != nil {
		log.Fatalf("worker: %v", err)
	}
	log.Printf("worker stopped after %d rows", mirror.Rows())
}
