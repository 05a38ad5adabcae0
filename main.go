package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"energy-monitor/internal/audit"
	"energy-monitor/internal/auth"
	"energy-monitor/internal/config"
	devicesapp "energy-monitor/internal/devices/application"
	"energy-monitor/internal/devices/cache"
	devices "energy-monitor/internal/devices/domain"
	devicebolt "energy-monitor/internal/devices/infrastructure/bolt"
	deviceinflux "energy-monitor/internal/devices/infrastructure/influx"
	devicememory "energy-monitor/internal/devices/infrastructure/memory"
	devicerepo "energy-monitor/internal/devices/infrastructure/postgres"
	devicerest "energy-monitor/internal/devices/infrastructure/rest"
	devicehttp "energy-monitor/internal/devices/interfaces/http"
	devicenotify "energy-monitor/internal/devices/notify"
	"energy-monitor/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	store, db, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatalf("device store error: %v", err)
	}
	defer closeStore()

	metrics.Init(db, logger)

	opts := []devicesapp.ServiceOption{
		devicesapp.WithLogger(logger),
		devicesapp.WithPricePerKWh(cfg.PricePerKWh),
		devicesapp.WithCurrency(cfg.Currency),
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, devicesapp.WithCache(devicesapp.NewDeviceCache(cache.WithTTL(cfg.CacheTTL))))
	}
	service, err := devicesapp.NewService(store, opts...)
	if err != nil {
		logger.Fatalf("device service error: %v", err)
	}

	broker := devicehttp.NewSSEBroker()
	service.SubscribeNotifier(broker)
	service.Subscribe(func(_ context.Context, evt devicesapp.DevicesChanged) error {
		logger.Printf("devices %s owner=%s device=%s", evt.Action, evt.OwnerID, evt.DeviceID)
		return nil
	})

	var outbound []devicesapp.ChangeNotifier
	if cfg.WebhookURL != "" {
		channel, err := devicenotify.NewWebhookChannel(cfg.WebhookURL)
		if err != nil {
			logger.Fatalf("device webhook error: %v", err)
		}
		tpl, err := devicenotify.NewTemplate(cfg.WebhookTemplate)
		if err != nil {
			logger.Fatalf("device notify template error: %v", err)
		}
		notifier, err := devicenotify.NewNotifier(channel, tpl,
			devicenotify.WithDeviceReader(store),
			devicenotify.WithTariff(cfg.PricePerKWh, cfg.Currency),
			devicenotify.WithDedupeWindow(cfg.WebhookDedupeWindow),
		)
		if err != nil {
			logger.Fatalf("device notifier error: %v", err)
		}
		outbound = append(outbound, notifier)
	}

	if cfg.Influx.URL != "" {
		sink, err := deviceinflux.NewClientSink(deviceinflux.Params{
			URL:    cfg.Influx.URL,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
			Token:  cfg.Influx.Token,
		}, store, deviceinflux.WithPricePerKWh(cfg.PricePerKWh))
		if err != nil {
			logger.Fatalf("influx sink error: %v", err)
		}
		defer sink.Close()
		outbound = append(outbound, sink)
	}
	if len(outbound) > 0 {
		service.SubscribeNotifier(devicenotify.NewMultiNotifier(outbound...))
	}

	deviceHandler, err := devicehttp.NewHandler(service)
	if err != nil {
		logger.Fatalf("device handler error: %v", err)
	}
	reportHandler, err := devicehttp.NewReportHandler(service)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}
	exportHandler, err := devicehttp.NewExportHandler(service)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/devices", deviceHandler)
	mux.Handle("/api/v1/devices/", deviceHandler)
	mux.Handle("/api/v1/devices/stream", devicehttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/report/", reportHandler)
	mux.Handle("/api/v1/exports/", exportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s (store=%s)", cfg.HTTPAddr, cfg.StoreDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("http server error: %v", err)
	}
}

// openStore builds the Device Store for the configured driver. db is non-nil only for postgres.
func openStore(cfg config.Config, logger *log.Logger) (devices.Repository, *sql.DB, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		repo := devicerepo.NewDeviceRepository(db, devicerepo.WithAuditLogger(audit.NewRepository(db)))
		return repo, db, func() { _ = db.Close() }, nil
	case config.DriverREST:
		client, err := devicerest.NewClient(cfg.DeviceAPIURL, devicerest.WithTimeout(cfg.DeviceAPITimeout))
		if err != nil {
			return nil, nil, nil, err
		}
		return client, nil, func() {}, nil
	case config.DriverBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.BoltPath), 0o755); err != nil {
			return nil, nil, nil, err
		}
		boltDB, err := devicebolt.OpenDB(cfg.BoltPath, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		repo, err := devicebolt.NewDeviceRepository(boltDB)
		if err != nil {
			_ = boltDB.Close()
			return nil, nil, nil, err
		}
		return repo, nil, func() { _ = boltDB.Close() }, nil
	case config.DriverMemory:
		logger.Printf("device store is in-memory; data is lost on restart")
		return devicememory.NewDeviceRepository(), nil, func() {}, nil
	default:
		return nil, nil, nil, errors.New("unknown store driver " + cfg.StoreDriver)
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the SSE stream working through the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
