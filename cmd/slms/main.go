package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeroexploit/slms/internal/config"
	"github.com/zeroexploit/slms/internal/httpd"
	"github.com/zeroexploit/slms/internal/library"
	"github.com/zeroexploit/slms/internal/probe"
	"github.com/zeroexploit/slms/internal/ssdp"
	"github.com/zeroexploit/slms/internal/version"
	"github.com/zeroexploit/slms/internal/watcher"
)

func main() {
	configPath := flag.String("c", "/etc/slms/server.cfg", "path to the server configuration file")
	flag.Bool("d", false, "run in the foreground (kept for init script compatibility)")
	flag.Parse()

	log.Printf("SLMS %s starting...", version.Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration failed: %v", err)
	}

	setupLogging(cfg)
	log.Printf("serving as %s on %s:%d (uuid:%s)", cfg.ServerName, cfg.ServerIP, cfg.ServerPort, cfg.ServerUUID)

	lib := library.New(cfg.DatabasePath, cfg.ShareDirs, probe.New())
	lib.BootUp()

	discovery := ssdp.New(cfg)
	if err := discovery.Start(); err != nil {
		log.Fatalf("discovery failed: %v", err)
	}

	fsWatcher, err := watcher.New(lib, cfg.ShareDirs)
	if err != nil {
		log.Printf("filesystem watcher unavailable: %v", err)
	} else {
		fsWatcher.Start()
	}

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.ServerIP, cfg.ServerPort),
		Handler:     httpd.New(cfg, lib).Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	discovery.Stop()
	if fsWatcher != nil {
		fsWatcher.Stop()
	}
	if err := lib.Save(); err != nil {
		log.Printf("saving library index: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}

// setupLogging redirects the log output to the configured file, or
// keeps stderr when the file cannot be opened. Log level 0 silences
// everything.
func setupLogging(cfg *config.Config) {
	if cfg.LogLevel <= 0 {
		log.SetOutput(io.Discard)
		return
	}
	if cfg.LogPath == "" {
		return
	}
	file, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("log file %s: %v, keeping stderr", cfg.LogPath, err)
		return
	}
	log.SetOutput(file)
}
