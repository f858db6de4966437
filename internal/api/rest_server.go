package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/annel0/block-gravity/internal/audit"
	"github.com/annel0/block-gravity/internal/gravity"
	"github.com/annel0/block-gravity/internal/logging"
	"github.com/annel0/block-gravity/internal/middleware"
	"github.com/annel0/block-gravity/internal/tick"
	"github.com/annel0/block-gravity/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// callTimeout ограничивает ожидание тикового цикла одним запросом.
const callTimeout = 5 * time.Second

// RestServer представляет REST API сервер
type RestServer struct {
	router  *gin.Engine
	srv     *http.Server
	engine  *gravity.Engine
	world   *world.World
	loop    *tick.Loop
	audit   audit.Repository
	metrics *ServerMetrics
	log     *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port   string // адрес для запуска сервера, например ":8088"
	Engine *gravity.Engine
	World  *world.World
	Loop   *tick.Loop       // все обращения к миру выполняются в его горутине
	Audit  audit.Repository // nil — эндпоинт журнала отвечает 404

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Logger     *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.Engine == nil || config.World == nil || config.Loop == nil {
		return nil, errors.New("api: Engine, World и Loop обязательны")
	}
	if config.Port == "" {
		config.Port = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("gravity_api"))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("gravity_api", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	server := &RestServer{
		router:  router,
		engine:  config.Engine,
		world:   config.World,
		loop:    config.Loop,
		audit:   config.Audit,
		metrics: NewServerMetrics(),
		log:     config.Logger,
	}
	server.srv = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")

	blocks := api.Group("/blocks")
	{
		blocks.GET("", rs.handleGetBlock)
		blocks.POST("/place", rs.handlePlace)
		blocks.POST("/break", rs.handleBreak)
		blocks.POST("/burn", rs.handleBurn)
		blocks.POST("/ignite", rs.handleIgnite)
		blocks.POST("/change", rs.handleChange)
	}

	api.POST("/explode", rs.handleExplode)
	api.POST("/piston/extend", rs.handlePistonExtend)
	api.POST("/piston/retract", rs.handlePistonRetract)

	api.GET("/gravity/status", rs.handleStatus)
	api.GET("/audit", rs.handleAudit)
	api.GET("/server", rs.handleServerInfo)

	rs.router.GET("/health", rs.handleHealth)
}

// Router возвращает gin.Engine (для тестов и встраивания).
func (rs *RestServer) Router() *gin.Engine {
	return rs.router
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func fail(c *gin.Context, status int, format string, args ...interface{}) {
	c.JSON(status, GenericResponse{Success: false, Message: fmt.Sprintf(format, args...)})
}

// onLoop выполняет fn в тиковом цикле. При ошибке ответ уже отправлен.
func (rs *RestServer) onLoop(c *gin.Context, fn func()) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), callTimeout)
	defer cancel()
	if err := rs.loop.Call(ctx, fn); err != nil {
		rs.log.Warn("Тиковый цикл недоступен: %v", err)
		fail(c, http.StatusServiceUnavailable, "Тиковый цикл недоступен: %v", err)
		return false
	}
	return true
}

// handleHealth отвечает, пока жив тиковый цикл.
func (rs *RestServer) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()
	var current uint64
	if err := rs.loop.Call(ctx, func() { current = rs.loop.Current() }); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tick":   current,
		"time":   time.Now().Unix(),
	})
}

// handleServerInfo возвращает сведения о процессе.
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data: gin.H{
			"name":        "block-gravity",
			"status":      "running",
			"uptime":      rs.metrics.GetUptime(),
			"memory_mb":   fmt.Sprintf("%.1f", memoryMB),
			"cpu_percent": fmt.Sprintf("%.1f", cpuPercent),
			"runtime":     rs.metrics.GetDetailedMemoryStats(),
		},
	})
}

// Start запускает HTTP сервер и блокируется до Stop.
func (rs *RestServer) Start() error {
	rs.log.Info("REST API слушает %s", rs.srv.Addr)
	if err := rs.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop завершает сервер, дожидаясь активных запросов.
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.srv.Shutdown(ctx)
}
