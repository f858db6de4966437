package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/block-gravity/internal/api"
	"github.com/annel0/block-gravity/internal/audit"
	"github.com/annel0/block-gravity/internal/config"
	"github.com/annel0/block-gravity/internal/eventbus"
	"github.com/annel0/block-gravity/internal/gravity"
	"github.com/annel0/block-gravity/internal/logging"
	"github.com/annel0/block-gravity/internal/observability"
	"github.com/annel0/block-gravity/internal/storage"
	"github.com/annel0/block-gravity/internal/tick"
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world"
	"github.com/annel0/block-gravity/internal/world/block"
	_ "github.com/annel0/block-gravity/internal/world/block/implementations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const autosaveEvery = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $GRAVITY_CONFIG)")
	flag.Parse()

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	if err := run(*configPath); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("конфигурация: %w", err)
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	serverLog := logging.GetServerLogger()
	gravityLog := logging.GetGravityLogger()
	auditLog := logging.GetAuditLogger()
	storageLog := logging.GetStorageLogger()
	busLog := logging.GetComponentLogger("eventbus")
	for _, l := range []*logging.Logger{serverLog, gravityLog, auditLog, storageLog, busLog} {
		l.SetLevels(level, logging.TRACE)
	}

	serverLog.Info("🧱 Запуск сервера гравитации блоков (sync=%d, tick=%d, floor=%d)",
		cfg.Gravity.SyncBudget, cfg.Gravity.TickBudget, cfg.Gravity.WorldFloor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТРАССИРОВКА ===
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := observability.InitTelemetry(ctx, observability.TelemetryConfig{
			ServiceName: "block-gravity",
		}, serverLog)
		if err != nil {
			serverLog.Warn("OpenTelemetry не инициализирован: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					serverLog.Warn("Ошибка остановки OpenTelemetry: %v", err)
				}
			}()
		}
	}

	// === МЕТРИКИ ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// === ЖУРНАЛ ===
	// Закрывается после шины: подписчик дописывает оставшиеся события.
	repo, err := openAudit(cfg.Audit)
	if err != nil {
		return err
	}
	if repo != nil {
		defer repo.Close()
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()
	busLog.Info("Шина событий: %s", cfg.EventBus.Backend)

	if _, err := eventbus.StartLoggingListener(bus, busLog); err != nil {
		return fmt.Errorf("логирование событий: %w", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, reg)
	exporter.Start()
	defer exporter.Stop()

	if repo != nil {
		if _, err := audit.Subscribe(ctx, bus, repo, auditLog); err != nil {
			return fmt.Errorf("подписка журнала: %w", err)
		}
		auditLog.Info("Журнал обрушений: %s", cfg.Audit.Backend)
	}

	publisher := eventbus.NewPublisher(bus, "gravity", cfg.EventBus.Buffer, busLog)
	defer publisher.Close()

	// === МИР ===
	w := world.NewWorld(cfg.Gravity.WorldFloor)
	var ws *storage.WorldStorage
	if cfg.Storage.Path != "" {
		ws, err = storage.NewWorldStorage(cfg.Storage.Path, cfg.Storage.Compress)
		if err != nil {
			return err
		}
		defer ws.Close()
		n, err := ws.LoadWorld(w)
		if err != nil {
			return err
		}
		storageLog.Info("Загружено чанков: %d из %s", n, cfg.Storage.Path)
	}
	if len(w.Chunks()) == 0 {
		world.NewWorldGenerator(cfg.World.Seed).Generate(w, cfg.World.Radius)
		serverLog.Info("Сгенерирован мир: seed=%d, radius=%d, чанков=%d", cfg.World.Seed, cfg.World.Radius, len(w.Chunks()))
	}

	// === ДВИЖОК ===
	policy, err := block.NewPolicy(cfg.Blocks)
	if err != nil {
		return err
	}
	loop := tick.NewLoop(time.Duration(cfg.Gravity.TickMillis)*time.Millisecond, serverLog)

	gcfg := gravity.DefaultConfig()
	gcfg.World = w
	gcfg.Policy = policy
	gcfg.Scheduler = loop
	gcfg.Entities = w.Entities
	gcfg.Notifier = publisher
	gcfg.Metrics = gravity.NewMetrics(reg)
	gcfg.Logger = gravityLog
	gcfg.SyncBudget = cfg.Gravity.SyncBudget
	gcfg.TickBudget = cfg.Gravity.TickBudget
	gcfg.PistonDelay = cfg.Gravity.PistonDelayTicks
	engine, err := gravity.New(gcfg)
	if err != nil {
		return fmt.Errorf("движок гравитации: %w", err)
	}

	w.Entities.SetLandFunc(func(cell vec.Vec3, id block.BlockID) bool {
		return engine.OnFallingBlockLand(cell, id) != gravity.LandingDrop
	})
	w.Entities.SetEventFunc(func(ev world.EntityEvent) {
		gravityLog.Trace("Сущность %d: %s в %v", ev.EntityID, ev.EventType, ev.Cell)
	})
	loop.ScheduleRecurring(w.Entities.Tick)

	go loop.Run(ctx)

	if ws != nil {
		go autosave(ctx, loop, w, ws, storageLog)
	}

	// === HTTP ===
	rest, err := api.NewRestServer(api.Config{
		Port:       fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		Engine:     engine,
		World:      w,
		Loop:       loop,
		Audit:      repo,
		Registerer: reg,
		Gatherer:   reg,
		Logger:     serverLog,
	})
	if err != nil {
		return err
	}
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() { errCh <- rest.Start() }()
	go func() {
		serverLog.Info("Prometheus метрики на %s/metrics", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	serverLog.Info("✅ Сервер готов: REST http://localhost:%d", cfg.Server.GetRESTPort())

	select {
	case <-ctx.Done():
		serverLog.Info("📡 Получен сигнал, завершение работы...")
	case err := <-errCh:
		if err != nil {
			serverLog.Error("HTTP сервер упал: %v", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rest.Stop(shutdownCtx); err != nil {
		serverLog.Error("Ошибка остановки REST API: %v", err)
	}
	_ = metricsSrv.Shutdown(shutdownCtx)

	loop.Stop()
	<-loop.Done()

	if ws != nil {
		n, err := ws.SaveWorld(w, false)
		if err != nil {
			storageLog.Error("Ошибка сохранения мира: %v", err)
		} else {
			storageLog.Info("Сохранено чанков: %d", n)
		}
	}

	serverLog.Info("👋 Сервер остановлен")
	return nil
}

func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.Backend == "nats" {
		bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("NATS JetStream: %w", err)
		}
		return bus, nil
	}
	return eventbus.NewMemoryBus(cfg.Buffer), nil
}

func openAudit(cfg config.AuditConfig) (audit.Repository, error) {
	switch cfg.Backend {
	case "maria":
		return audit.NewMariaRepo(cfg.Maria)
	case "mongo":
		return audit.NewMongoRepo(cfg.Mongo)
	case "none":
		return nil, nil
	default:
		return audit.NewMemoryRepo(cfg.Capacity), nil
	}
}

// autosave периодически сохраняет изменённые чанки. Снимок берётся в
// горутине тиков.
func autosave(ctx context.Context, loop *tick.Loop, w *world.World, ws *storage.WorldStorage, log *logging.Logger) {
	t := time.NewTicker(autosaveEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			var (
				n   int
				err error
			)
			if callErr := loop.Call(ctx, func() { n, err = ws.SaveWorld(w, false) }); callErr != nil {
				return
			}
			if err != nil {
				log.Error("Автосохранение: %v", err)
			} else if n > 0 {
				log.Debug("Автосохранение: %d чанков", n)
			}
		}
	}
}
