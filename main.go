package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-cache/internal/database"
	"media-cache/internal/download"
	"media-cache/internal/handlers"
	"media-cache/internal/limiter"
	"media-cache/internal/logging"
	"media-cache/internal/media"
	"media-cache/internal/memory"
	"media-cache/internal/metrics"
	"media-cache/internal/middleware"
	"media-cache/internal/securestore"
	"media-cache/internal/startup"
	"media-cache/internal/thumbcache"
)

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
		go func() {
			if err := metrics.Serve(config.MetricsPort); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Encryption-at-rest is opt-in via a 32-byte key file.
	var encryptor securestore.Encryptor
	if config.EncryptionKeyFile != "" {
		key, err := securestore.LoadKeyFile(config.EncryptionKeyFile)
		if err != nil {
			logging.Fatal("Failed to load encryption key: %v", err)
		}
		encryptor, err = securestore.NewAEAD(key)
		if err != nil {
			logging.Fatal("Failed to initialize encryption: %v", err)
		}
	}

	startup.LogCacheInit(config.MemoryCacheBytes, config.DiskCacheBytes, encryptor != nil)
	disk, err := thumbcache.NewDiskCache(config.CacheDir, config.DiskCacheBytes, config.ThumbnailQuality, encryptor)
	if err != nil {
		logging.Fatal("Failed to initialize disk cache: %v", err)
	}
	memCache := thumbcache.NewMemoryCache(config.MemoryCacheBytes)
	cache := thumbcache.New(memCache, disk, thumbcache.DefaultWriteQueueSize)

	startup.LogGeneratorInit()
	media.InitVips()
	generator := media.NewGenerator(config.ThumbnailQuality)
	loadLimiter := limiter.New(config.LoadConcurrency)

	// Memory pressure wiring: the monitor fires the cache's half-eviction.
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.OnPressure(memCache.HandleMemoryPressure)
	monitor.Start()

	var journal *database.Journal
	if config.JournalEnabled {
		journalStart := time.Now()
		journal, err = database.Open(context.Background(), config.JournalPath)
		if err != nil {
			logging.Warn("Download journal unavailable: %v", err)
			journal = nil
		} else {
			startup.LogJournalInit(time.Since(journalStart))
		}
	}

	var downloads *download.Manager
	if config.DownloadsEnabled {
		var journalSink download.Journal
		if journal != nil {
			journalSink = journal
		}
		headers := download.NewStaticHeaderProvider(config.AuthHeader)
		downloads, err = download.NewManager(config.DownloadDir, nil, headers, journalSink)
		if err != nil {
			logging.Fatal("Failed to initialize download manager: %v", err)
		}
	}

	h := handlers.New(cache, generator, loadLimiter, downloads, journal, monitor, config)
	router := h.Router()

	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Periodic disk eviction; the disk tier only evicts when asked.
	evictStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(config.EvictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if evicted := disk.EvictIfNeeded(); evicted > 0 {
					logging.Info("periodic eviction: %d files removed", evicted)
				}
			case <-evictStop:
				return
			}
		}
	}()

	go handleShutdown(srv, cache, downloads, journal, monitor, evictStop)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, cache *thumbcache.Cache, downloads *download.Manager, journal *database.Journal, monitor *memory.Monitor, evictStop chan struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping eviction loop")
	close(evictStop)
	monitor.Stop()
	startup.LogShutdownStepComplete("Background loops stopped")

	if downloads != nil {
		startup.LogShutdownStep("Cancelling downloads")
		downloads.Cancel()
		downloads.Wait()
		startup.LogShutdownStepComplete("Downloads stopped")
	}

	startup.LogShutdownStep("Draining cache write queue")
	cache.Close()
	startup.LogShutdownStepComplete("Cache writes drained")

	if journal != nil {
		startup.LogShutdownStep("Closing download journal")
		if err := journal.Close(); err != nil {
			logging.Warn("Journal close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Journal closed")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	media.ShutdownVips()
	startup.LogShutdownComplete()
}
