package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ahmadpiran/emailcheck/internal/cache"
	"github.com/ahmadpiran/emailcheck/internal/evidence"
	"github.com/ahmadpiran/emailcheck/internal/orchestrator"
	"github.com/ahmadpiran/emailcheck/internal/probe"
	"github.com/ahmadpiran/emailcheck/internal/proxynet"
	"github.com/ahmadpiran/emailcheck/internal/queue"
	"github.com/ahmadpiran/emailcheck/internal/ratelimit"
	"github.com/ahmadpiran/emailcheck/internal/resolver"
	"github.com/ahmadpiran/emailcheck/internal/smtpengine"
	"github.com/ahmadpiran/emailcheck/internal/store"
	"github.com/ahmadpiran/emailcheck/internal/worker"
)

func main() {
	_ = godotenv.Load()

	log.Println("🚀 Starting Verification Worker...")

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	if err := queue.Init(redisAddr); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal("❌ DB_URL environment variable is required")
	}
	if err := store.Init(dbURL); err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// Proxy pool (C12). Shared by the SMTP dialer and every HTTP probe
	// client so a single PROXY_LIST governs all outbound traffic.
	var proxyManager *proxynet.Manager
	proxyListRaw := os.Getenv("PROXY_LIST")
	if proxyListRaw != "" {
		proxies := strings.Split(proxyListRaw, ",")
		proxyLimit, err := strconv.Atoi(os.Getenv("PROXY_CONCURRENCY"))
		if err != nil || proxyLimit <= 0 {
			proxyLimit = 0
		}
		proxyManager, err = proxynet.NewManager(proxies, proxyLimit)
		if err != nil {
			log.Fatalf("❌ Failed to initialize proxy manager: %v", err)
		}
		log.Printf("🛡️  Proxy rotation enabled (%d proxies loaded)", len(proxies))
	} else {
		log.Println("⚠️  No proxies configured. Running with direct connections.")
	}

	ns := cache.NewNamespaces()
	res := resolver.New(ns.MX)

	var dialer smtpengine.Dialer = smtpengine.DirectDialer
	var transport http.RoundTripper
	if proxyManager != nil {
		dialer = proxynet.Dialer{Manager: proxyManager}
		transport = proxyManager.HTTPTransport()
	}
	engine := smtpengine.New(ns.SmtpPort, dialer)
	yahoo := probe.NewYahooProbe(transport)

	limiter := ratelimit.NewManager(10, 10)

	orch := orchestrator.New(res, engine, yahoo, limiter)
	orch.WithEvidenceCollaborators(
		probe.NewAppProbes(transport),
		evidence.NewBreachChecker(os.Getenv("HIBP_API_KEY"), transport),
		evidence.NewDomainAgeChecker(transport),
	)
	opts := orchestrator.DefaultOptions()
	opts.CollectEvidence = true

	concurrencyStr := os.Getenv("WORKER_CONCURRENCY")
	concurrency := 50
	if c, err := strconv.Atoi(concurrencyStr); err == nil && c > 0 {
		concurrency = c
		log.Printf("🔧 WORKER_CONCURRENCY explicitly set to %d", concurrency)
	} else {
		log.Printf("🧠 Defaulting WORKER_CONCURRENCY to %d", concurrency)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ns.StartCleanup(ctx, 5*time.Minute)
	log.Println("✅ Cache eviction goroutine started (interval: 5m)")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	done := make(chan struct{})
	go func() {
		worker.Start(ctx, concurrency, orch, opts)
		close(done)
	}()

	<-quit
	log.Println("⏳ Shutdown signal received, draining in-flight jobs...")
	cancel()

	const drainTimeout = 30 * time.Second
	log.Printf("⏳ Waiting up to %s for in-flight jobs to complete...", drainTimeout)
	select {
	case <-done:
	case <-time.After(drainTimeout):
	}

	log.Println("✅ Worker shut down cleanly.")
}
