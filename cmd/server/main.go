package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"gesservorconv/internal/auditoria"
	"gesservorconv/internal/auditoria/export"
	auditoriahandler "gesservorconv/internal/auditoria/handler"
	"gesservorconv/internal/bitacora"
	bitacorahandler "gesservorconv/internal/bitacora/handler"
	"gesservorconv/internal/cuentas"
	cuentashandler "gesservorconv/internal/cuentas/handler"
	"gesservorconv/internal/enlaces"
	jwttoken "gesservorconv/internal/jwt_token"
	"gesservorconv/internal/notificaciones"
	notificacioneshandler "gesservorconv/internal/notificaciones/handler"
	"gesservorconv/internal/platform/config"
	"gesservorconv/internal/platform/httpserver"
	"gesservorconv/internal/platform/logger"
	"gesservorconv/internal/platform/metrics"
	"gesservorconv/internal/platform/redis"
	"gesservorconv/internal/realtime"
	"gesservorconv/internal/solicitudes"
	solicitudeshandler "gesservorconv/internal/solicitudes/handler"
	httptransport "gesservorconv/internal/transport/http"
	txcontext "gesservorconv/pkg/platform/tx"
)

// main wires stores, the capture engine, the dispatcher, and the HTTP
// surface, then runs everything under one errgroup until a signal lands.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := construir(ctx, cfg, log, m)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer deps.cerrar()

	router := httptransport.NewRouter(deps.handlers...)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.hub.Run(ctx) })
	if deps.bridge != nil {
		g.Go(func() error { return deps.bridge.Run(ctx) })
	}
	if deps.exportWorker != nil {
		g.Go(func() error { return deps.exportWorker.Run(ctx) })
	}
	g.Go(func() error {
		log.Info("starting gesservorconv", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// dependencias holds everything main needs to run and tear down.
type dependencias struct {
	handlers     []httptransport.Registrar
	hub          *realtime.Hub
	bridge       *realtime.RedisBroker
	exportWorker *export.Worker

	db        *sql.DB
	rdb       *redis.Client
	publisher *export.Publisher
}

func construir(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics) (*dependencias, error) {
	deps := &dependencias{}

	// Stores: PostgreSQL when configured, in-memory for local development.
	var (
		runner           txcontext.Runner = txcontext.NoopRunner{}
		ledgerCuentas    auditoria.Store
		ledgerWorkflow   auditoria.Store
		ledgerSistema    auditoria.Store
		cuentasStore     cuentas.Store
		solicitudesStore solicitudes.Store
		notifStore       notificaciones.Store
		bitacoraStore    bitacora.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, err
		}
		deps.db = db
		runner = txcontext.NewSQLRunner(db)

		if ledgerCuentas, err = auditoria.NewPostgres(db, auditoria.TablaCuentas); err != nil {
			return nil, err
		}
		if ledgerWorkflow, err = auditoria.NewPostgres(db, auditoria.TablaSolicitudes); err != nil {
			return nil, err
		}
		if ledgerSistema, err = auditoria.NewPostgres(db, auditoria.TablaSistema); err != nil {
			return nil, err
		}
		cuentasStore = cuentas.NewPostgres(db)
		solicitudesStore = solicitudes.NewPostgres(db)
		notifStore = notificaciones.NewPostgres(db)
		bitacoraStore = bitacora.NewPostgres(db)
	} else {
		log.Warn("no database configured, using in-memory stores")
		ledgerCuentas = auditoria.NewInMemoryStore()
		ledgerWorkflow = auditoria.NewInMemoryStore()
		ledgerSistema = auditoria.NewInMemoryStore()
		cuentasStore = cuentas.NewInMemoryStore()
		solicitudesStore = solicitudes.NewInMemoryStore()
		notifStore = notificaciones.NewInMemoryStore()
		bitacoraStore = bitacora.NewInMemoryStore()
	}

	// Optional Kafka export of committed audit rows.
	var capturaOpts []auditoria.CapturadorOption
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := export.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return nil, err
		}
		deps.publisher = publisher
		exportCh := make(chan auditoria.RegistroAuditoria, 1024)
		deps.exportWorker = export.NewWorker(publisher, exportCh)
		capturaOpts = append(capturaOpts, auditoria.WithExportChannel(exportCh))
	}

	captura := auditoria.NewCapturador(m, capturaOpts...)
	captura.Registrar(cuentas.TablaComitentes, ledgerCuentas)
	captura.Registrar(cuentas.TablaResponsables, ledgerCuentas)
	captura.Registrar(cuentas.TablaSecretarios, ledgerCuentas)
	captura.Registrar(solicitudes.TablaSolicitudes, ledgerWorkflow)
	captura.Registrar(solicitudes.TablaPropuestas, ledgerWorkflow)
	// The system ledger watches the portal's own tables; nothing in this
	// service mutates them, but the read path and bindings stay uniform.
	captura.Registrar("usuarios", ledgerSistema)

	// Realtime: in-process hub, bridged through Redis when configured so
	// every instance sees every publish.
	deps.hub = realtime.NewHub(log, m)
	var broker realtime.Broker = deps.hub
	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		deps.rdb = rdb
		deps.bridge = realtime.NewRedisBroker(rdb, deps.hub, log, m)
		broker = deps.bridge
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "gesservorconv", "gesservorconv")
	links := enlaces.New(cfg.PublicScheme, cfg.PublicHost)

	notifService := notificaciones.NewService(notifStore, broker, log, m)
	cuentasService := cuentas.NewService(cuentasStore, captura, notifService, runner, links, log, m)
	solicitudesService := solicitudes.NewService(solicitudesStore, cuentasStore, captura, notifService, runner, links, log, m)
	bitacoraService := bitacora.NewService(bitacoraStore, log)

	deps.handlers = []httptransport.Registrar{
		realtime.NewHandler(deps.hub, jwtService, log),
		notificacioneshandler.New(notifService, log, m, jwtService),
		cuentashandler.New(cuentasService, log, m, jwtService),
		solicitudeshandler.New(solicitudesService, log, m, jwtService),
		bitacorahandler.New(bitacoraService, log, m, jwtService),
		auditoriahandler.New(map[string]auditoriahandler.Lector{
			cuentas.TablaComitentes:      ledgerCuentas,
			cuentas.TablaResponsables:    ledgerCuentas,
			cuentas.TablaSecretarios:     ledgerCuentas,
			solicitudes.TablaSolicitudes: ledgerWorkflow,
			solicitudes.TablaPropuestas:  ledgerWorkflow,
			"usuarios":                   ledgerSistema,
		}, log, m, jwtService),
	}
	return deps, nil
}

func (d *dependencias) cerrar() {
	if d.publisher != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		d.publisher.Close(flushCtx)
		cancel()
	}
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}
