package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	"pumpwatch/internal/service"
)

type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// App owns the background loops: the scan cycle driver, the periodic
// snapshot saver and the HTTP server.
type App struct {
	log     logger.Logger
	httpSrv HTTPServer
	monitor *service.Monitor

	snapshotInterval time.Duration

	cancelLoops context.CancelFunc
	loopsDone   chan struct{}
}

func NewApp(log logger.Logger, httpSrv HTTPServer, monitor *service.Monitor, snapshotInterval time.Duration) *App {
	return &App{
		log:              log,
		httpSrv:          httpSrv,
		monitor:          monitor,
		snapshotInterval: snapshotInterval,
	}
}

func (a *App) Start() error {
	a.log.Debug("App started begin...")

	ctx, cancel := context.WithCancel(context.Background())
	a.cancelLoops = cancel
	a.loopsDone = make(chan struct{})

	go func() {
		defer close(a.loopsDone)
		a.monitor.Run(ctx)
	}()

	if a.snapshotInterval > 0 {
		go a.snapshotLoop(ctx)
	}

	go func() {
		if err := a.httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("Start HTTP server is error=%v", err)
		}
	}()

	a.log.Info("App started")
	return nil
}

func (a *App) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(a.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.monitor.SaveSnapshot(ctx); err != nil {
				a.log.Errorf("Failed to persist engine snapshot: %v", err)
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Debug("App stopped begin...")

	if a.cancelLoops != nil {
		a.cancelLoops()
		select {
		case <-a.loopsDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// last snapshot so a restart resumes where we stopped
	if err := a.monitor.SaveSnapshot(ctx); err != nil {
		a.log.Errorf("Failed to persist final snapshot: %v", err)
	}

	if err := a.httpSrv.Shutdown(ctx); err != nil {
		return err
	}

	a.log.Info("App stopped")
	return nil
}
