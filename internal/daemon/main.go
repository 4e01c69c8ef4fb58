// Package daemon wires the bot together and runs it until its context is cancelled.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/gofiber/fiber/v3"
	storagemysql "github.com/gofiber/storage/mysql/v2"
	storagepostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/adopsbot/adopsbot/internal/audit"
	"github.com/adopsbot/adopsbot/internal/command"
	"github.com/adopsbot/adopsbot/internal/config"
	"github.com/adopsbot/adopsbot/internal/db"
	"github.com/adopsbot/adopsbot/internal/db/dsn"
	"github.com/adopsbot/adopsbot/internal/directory"
	"github.com/adopsbot/adopsbot/internal/logger"
	"github.com/adopsbot/adopsbot/internal/logger/adapter/stdlogger"
	"github.com/adopsbot/adopsbot/internal/permission"
	"github.com/adopsbot/adopsbot/internal/permsync"
	"github.com/adopsbot/adopsbot/internal/web"
)

const (
	limiterTable = "command_rate_limits"
	// shutdownGrace is added to Webserver.ShutDownTime for draining requests.
	shutdownGrace = 10 * time.Second
)

// Daemon holds the running components.
type Daemon struct {
	cfg        *config.Config
	store      *permission.Store
	job        *permsync.Job
	webService *web.Service

	dbSink  *audit.DBSink
	db      *gorm.DB
	storage fiber.Storage
}

// Permissions builds the store and the sync job. The store stays empty until the job runs.
func Permissions(cfg *config.Config, reg prometheus.Registerer) (*permission.Store, *permsync.Job, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is nil")
	}

	syncCfg, err := cfg.Permissions.SyncConfig()
	if err != nil {
		return nil, nil, err
	}

	store := permission.NewStore()
	job := permsync.New(syncCfg, directory.New(cfg.Directory), store, permsync.NewMetrics(reg))

	return store, job, nil
}

// New creates a Daemon. The global logger must be initialized.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		ldap.Logger(stdlogger.New("ldap").StdLogger())
	}

	store, job, err := Permissions(cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}

	d := &Daemon{cfg: cfg, store: store, job: job}

	sinks := []audit.Sink{audit.NewLogSink(logger.NewAuditLogger(cfg.Log))}

	if cfg.Audit.Database {
		if d.db, err = db.Open(&cfg.DB); err != nil {
			return nil, err
		}

		d.dbSink = audit.NewDBSink(d.db, cfg.Audit.BufferSize)
		sinks = append(sinks, d.dbSink)
	}

	dispatcher := command.New(command.Config{
		VPNGroup:          cfg.Directory.VPNAccessGroup,
		UserKinds:         userKinds(cfg.Directory.UserKinds),
		RemoveSecretAfter: time.Duration(cfg.Bot.RemoveSecretAfterSeconds) * time.Second,
	}, store, directory.New(cfg.Directory), job, audit.Multi(sinks...))

	d.storage = limiterStorage(cfg)

	d.webService, err = web.New(cfg, web.Options{
		Dispatcher:     dispatcher,
		LimiterStorage: d.storage,
	})
	if err != nil {
		d.close()
		return nil, err
	}

	return d, nil
}

// Run starts the sync job and the gateway and blocks until ctx is cancelled or the gateway fails.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.close()

	if err := directory.New(d.cfg.Directory).TestConnection(ctx); err != nil {
		log.Warn().Err(err).Msg("directory is not reachable, the sync job keeps retrying")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.job.Run(gctx)
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", d.cfg.Webserver.Port)
		log.Info().Str("addr", addr).Msg("starting command gateway")

		return d.webService.Start(addr)
	})

	g.Go(func() error {
		<-gctx.Done()

		wait := time.Duration(d.cfg.Webserver.ShutDownTime)*time.Second + shutdownGrace

		shutdownCtx, cancel := context.WithTimeout(context.Background(), wait)
		defer cancel()

		return d.webService.Shutdown(shutdownCtx)
	})

	return g.Wait() //nolint:wrapcheck
}

// Store returns the permission store.
func (d *Daemon) Store() *permission.Store {
	return d.store
}

func (d *Daemon) close() {
	if d.dbSink != nil {
		d.dbSink.Close()

		if dropped := d.dbSink.Dropped(); dropped > 0 {
			log.Warn().Uint64("dropped", dropped).Msg("audit events were dropped")
		}
	}

	if d.db != nil {
		if sqlDB, err := d.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	if d.storage != nil {
		if err := d.storage.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close limiter storage")
		}
	}
}

// limiterStorage shares rate limit counters through the database when it is mysql or postgres.
func limiterStorage(cfg *config.Config) fiber.Storage {
	if cfg.Webserver.RateLimit <= 0 {
		return nil
	}

	switch cfg.DB.GormEngine {
	case config.EngineMySQL:
		return storagemysql.New(storagemysql.Config{
			ConnectionURI: dsn.MySQL(&cfg.DB),
			Table:         limiterTable,
		})
	case config.EnginePostgres:
		return storagepostgres.New(storagepostgres.Config{
			ConnectionURI: dsn.Postgres(&cfg.DB),
			Table:         limiterTable,
		})
	default:
		return nil
	}
}

func userKinds(kinds []directory.UserKind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.Name)
	}

	return out
}
