package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grafana/pyroscope-go"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"

	"pumpwatch/internal/alert"
	httpapi "pumpwatch/internal/api/http"
	"pumpwatch/internal/config"
	"pumpwatch/internal/dedupe"
	"pumpwatch/internal/domain"
	"pumpwatch/internal/engine"
	"pumpwatch/internal/ingest"
	"pumpwatch/internal/metrics"
	"pumpwatch/internal/peaks"
	natsps "pumpwatch/internal/pubsub/nats"
	"pumpwatch/internal/resolve"
	"pumpwatch/internal/security"
	"pumpwatch/internal/service"
	"pumpwatch/internal/spam"
	"pumpwatch/internal/stores/clickhouse"
	"pumpwatch/internal/stores/redis"
)

type Container struct {
	app *App

	// infra
	redis *redis.Client
	ch    *clickhouse.Conn
	nc    *natsps.Client

	// servers
	httpSrv *httpapi.Server

	// metrics
	profiler *pyroscope.Profiler

	cleanupF func()
}

func (c *Container) Start() error {
	return c.app.Start()
}

func (c *Container) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.app.Shutdown(ctx); err != nil {
		return fmt.Errorf("app shutdown is failed, error=%w", err)
	}

	if c.cleanupF != nil {
		c.cleanupF()
	}
	return nil
}

// Construct image app
func Build(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	profiler, err := metrics.InitPProf(&metrics.PProfConfig{
		Enabled:       cfg.Metrics.Pyroscope.Enabled,
		AppInstanceID: cfg.App.InstanceID,
		AppName:       cfg.Metrics.Pyroscope.AppName,
		ServerAddr:    cfg.Metrics.Pyroscope.ServerAddr,
		AuthToken:     cfg.Metrics.Pyroscope.AuthToken,
		Tags:          cfg.Metrics.Pyroscope.Tags,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pyroscope initialize failed: %w", err)
	}
	if profiler != nil {
		lg.Infof("Successfully initialize Pyroscope to %s as %s", cfg.Metrics.Pyroscope.ServerAddr, cfg.Metrics.Pyroscope.AppName)
	}

	// Redis client, optional: warm-start snapshots and API rate limiting
	var rdb *redis.Client
	var snapshots service.SnapshotStore
	if cfg.Stores.Redis.Enabled {
		if rdb, err = redis.New(ctx, cfg.Stores.Redis); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis client: %w", err)
		}
		snapshots = redis.NewSnapshotStore(rdb, cfg.Stores.Redis.Prefix)
		lg.Infof("Successfully initialize redis client, addr=%s", cfg.Stores.Redis.Addr)
	}

	// NATS broadcaster, optional
	var natsCl *natsps.Client
	if cfg.PubSub.NATS.Enabled {
		if natsCl, err = natsps.New(lg, &cfg.PubSub.NATS); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize nats client: %w", err)
		}
	}

	// Peak sinks: the CSV ledger always, ClickHouse when configured
	ledger, err := peaks.NewLedger(cfg.Peaks.LedgerPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize peak ledger: %w", err)
	}
	sinks := []peaks.Sink{ledger}

	var ch *clickhouse.Conn
	var chWriter *clickhouse.Writer
	if cfg.Stores.ClickHouse.Enabled {
		if ch, err = clickhouse.New(ctx, &cfg.Stores.ClickHouse); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize clickhouse client: %w", err)
		}
		url := strings.Split(cfg.Stores.ClickHouse.DSN, "?")
		lg.Infof("Successfully initialize clickhouse client, url=%s", url[0])

		chWriter = clickhouse.NewWriter(lg, ch.Native, cfg.Stores.ClickHouse)
		sinks = append(sinks, chWriter)
		lg.Info("Successfully initialize clickhouse writer")
	}

	tracker := peaks.NewTracker(lg, sinks...)

	// Alert trigger; fan the fired events out when a broadcaster exists
	var onFire func(domain.AlertEvent)
	if natsCl != nil {
		onFire = func(ev domain.AlertEvent) {
			metrics.AlertsFiredTotal.Inc()
			if err := natsCl.Publish(context.Background(), "alerts", ev); err != nil {
				lg.Errorf("Failed to broadcast alert: %v", err)
			}
		}
	} else {
		onFire = func(domain.AlertEvent) { metrics.AlertsFiredTotal.Inc() }
	}
	trigger := alert.NewTrigger(lg, cfg.Alert.Threshold, cfg.Alert.Duration, cfg.Alert.FlashInterval, onFire)

	// Ingest client
	fetcher, err := ingest.NewClient(lg, &cfg.Ingest)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize webhook client: %w", err)
	}

	deps := &service.Deps{
		Log:       lg,
		Cfg:       cfg,
		Fetcher:   fetcher,
		Deduper:   dedupe.NewBoundedDedupe(lg, cfg.Dedupe.MaxEntries),
		Guard:     spam.NewGuard(lg, cfg.Spam.Window, cfg.Spam.Threshold),
		Resolver:  resolve.NewResolver(resolve.ExtractTokenName),
		Store:     engine.NewStore(lg),
		Tracker:   tracker,
		Trigger:   trigger,
		Snapshots: snapshots,
	}
	if natsCl != nil {
		deps.Broadcaster = natsCl
	}

	monitor, err := service.NewMonitor(deps)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize monitor service: %w", err)
	}

	// warm start from persisted state, not critical when it fails
	if err = monitor.RestoreSnapshot(ctx); err != nil {
		lg.Errorf("Failed to restore engine snapshot: %v", err)
	}

	var verifier *security.RS256Verifier
	if cfg.Security.JWT.Enabled {
		if verifier, err = security.NewRS256Verifier(&cfg.Security.JWT); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize JWT verifier: %w", err)
		}
		lg.Info("Successfully initialize JWT-Verifier")
	}

	httpSrv := httpapi.NewServer(&httpapi.ServerDeps{
		Logger:    lg,
		Cfg:       cfg,
		RdbClient: rdb,
		Verifier:  verifier,
		Monitor:   monitor,
	})
	lg.Info("Successfully initialize HTTP server")

	c := &Container{
		app:      NewApp(lg, httpSrv, monitor, cfg.App.SnapshotInterval),
		redis:    rdb,
		ch:       ch,
		nc:       natsCl,
		httpSrv:  httpSrv,
		profiler: profiler,
	}

	// idempotent: invoked both from Stop and from the deferred Run cleanup
	var cleanupOnce sync.Once
	cleanupF := func() {
		cleanupOnce.Do(func() { c.cleanup(lg, trigger, chWriter) })
	}

	c.cleanupF = cleanupF

	lg.Info("Successfully initialize Wiring")
	return c, cleanupF, nil
}

func (c *Container) cleanup(lg logger.Logger, trigger *alert.Trigger, chWriter *clickhouse.Writer) {
	ctxClean, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	trigger.Close()

	if c.profiler != nil {
		if err := c.profiler.Stop(); err != nil {
			lg.Errorf("Failed to stop profiler: %v", err)
		}
	}

	if chWriter != nil {
		if err := chWriter.Close(ctxClean); err != nil {
			lg.Errorf("Failed to close by cleanupF clickhouse writer: %v", err)
		}
	}

	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			lg.Errorf("Failed to close by cleanupF clickhouse client: %v", err)
		}
	}

	if c.nc != nil {
		if err := c.nc.Close(); err != nil {
			lg.Errorf("Failed to close by cleanupF nats client: %v", err)
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			lg.Errorf("Failed to close by cleanupF redis client: %v", err)
		}
	}

	lg.Info("Successfully cleaned up dependency")
}
