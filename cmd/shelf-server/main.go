package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mangashelf/internal/app"
	"mangashelf/internal/backup"
	synchub "mangashelf/internal/sync"
	"mangashelf/pkg/database"
	"mangashelf/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configFile := flag.String("config", "", "path to mangashelf.yaml")
	flag.Parse()

	cfg, err := utils.Load(*configFile)
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.Log, nil)
	if err != nil {
		return err
	}

	lock := database.NewWriterLock(cfg.DB())
	if err := lock.TryAcquire(); err != nil {
		return fmt.Errorf("%w (%s)", err, lock.Path())
	}
	defer func() { _ = lock.Release() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg.DB(), logger)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer a.Close()

	hub := synchub.NewHub(logger.With("component", "sync"))
	router := a.NewRouter(hub, cfg.Auth)
	if cfg.Auth.Enabled && cfg.Auth.PasswordHash == "" {
		logger.Warn("auth enabled without auth.password_hash; login will always fail")
	}

	var sched *backup.Scheduler
	if cfg.Backup.Enabled {
		times, err := backup.ParseTimes(cfg.Backup.Times)
		if err != nil {
			return err
		}
		sched = backup.NewScheduler(cfg.Backup.Dir, times, a.Exporter, logger.With("component", "backup"))
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	tcpSrv := synchub.NewServer(cfg.Sync.TCPAddr, hub)

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(ctx); err != nil {
			errCh <- fmt.Errorf("tcp sync: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("http api listening", "addr", cfg.HTTP.Addr, "db", cfg.Database.Path)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	if sched != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Run(ctx); err != nil {
				errCh <- fmt.Errorf("backup: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server error", "error", runErr)
	}
	stop()

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	wg.Wait()
	logger.Info("servers stopped")
	return runErr
}
