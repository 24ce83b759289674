package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-app/internal/backend"
	"github.com/ariefcatur/go-order-app/internal/backend/memory"
	"github.com/ariefcatur/go-order-app/internal/config"
	"github.com/ariefcatur/go-order-app/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-app/internal/kafka"
	"github.com/ariefcatur/go-order-app/internal/logger"
	"github.com/ariefcatur/go-order-app/internal/notify"
	"github.com/ariefcatur/go-order-app/internal/orders"
	"github.com/ariefcatur/go-order-app/internal/postgres"
	"github.com/ariefcatur/go-order-app/internal/redisx"
	"github.com/ariefcatur/go-order-app/internal/store"
	"github.com/ariefcatur/go-order-app/internal/watch"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("exit", zap.Error(err))
	}
	lg.Info("bye")
}

func storeOptions(cfg config.Config, lg *zap.Logger) []store.Option {
	opts := []store.Option{
		store.WithLogger(lg.Named("store")),
		store.WithCallTimeout(cfg.CallTimeout),
		store.WithLogoutClearsCart(cfg.LogoutClearsCart),
		store.WithNotifyOptions(notify.WithLayout(cfg.NotifyTimeLayout)),
	}
	if loc, err := time.LoadLocation(cfg.NotifyTimezone); err == nil {
		opts = append(opts, store.WithNotifyOptions(notify.WithLocation(loc)))
	} else {
		lg.Warn("unknown NOTIFY_TIMEZONE, using local time", zap.String("tz", cfg.NotifyTimezone), zap.Error(err))
	}
	return opts
}

func run(ctx context.Context, cfg config.Config, lg *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	var (
		be      store.Backend
		updater httpx.StatusUpdater
		w       *watch.Watcher
		cons    *kafkax.Consumer
	)

	switch cfg.Backend {
	case "memory":
		mem := memory.New(memory.WithDeviceID(cfg.DeviceID))
		be, updater = mem, mem
		lg.Info("using in-memory backend")

	default:
		// DB
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}

		// Redis
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()

		// Kafka producers, satu per topic
		pSession := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicSession, 256, lg)
		pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, lg)
		pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, lg)
		producers := []*kafkax.Producer{pSession, pCreated, pStatus}
		pctx, cancelProducers := context.WithCancel(context.Background())
		for _, p := range producers {
			p.Start(pctx)
		}
		defer func() {
			for _, p := range producers {
				p.Close() // tutup inbox -> flush & close writer
			}
			for _, p := range producers {
				p.WaitClosed()
			}
			cancelProducers()
		}()

		svc := &backend.Service{
			Repo:          &orders.Repo{DB: db, Log: lg.Named("repo")},
			Sessions:      redisx.NewSessionStore(rdb, cfg.SessionTTL),
			SessionEvents: pSession,
			OrderEvents:   pCreated,
			StatusEvents:  pStatus,
			DeviceID:      cfg.DeviceID,
			ServiceName:   cfg.ServiceName,
			Log:           lg.Named("backend"),
		}
		be, updater = svc, svc

		// per device group: every device sees every session event
		group := cfg.ServiceName + "-" + cfg.DeviceID
		cons = kafkax.NewConsumer(cfg.KafkaBrokers, group, watch.Topics(), 1, lg.Named("consumer"))
		w = &watch.Watcher{
			Dedup:    watch.RedisDedup(rdb, group),
			DeviceID: cfg.DeviceID,
			Log:      lg.Named("watch"),
		}
	}

	st := store.New(be, storeOptions(cfg, lg)...)
	defer st.Close()

	if w != nil {
		w.Store = st
		g.Go(func() error {
			lg.Info("watching events", zap.Strings("topics", watch.Topics()))
			return cons.Start(ctx, w.Handle)
		})
	}

	g.Go(func() error {
		// errors are logged by the store; the app just starts signed out
		_ = st.RestoreSession(ctx)
		return nil
	})

	router := httpx.NewRouter(lg.Named("http"))
	(&httpx.AppHandler{
		Store:        st,
		Orders:       updater,
		LoginLimiter: httpx.NewPerMinuteLimiter(cfg.LoginRatePerMin),
		Log:          lg.Named("http"),
	}).Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g.Go(func() error {
		lg.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		lg.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
