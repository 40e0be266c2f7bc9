package router

import (
	"caixapdv/internal/config"
	"caixapdv/internal/handler"
	"caixapdv/internal/metrics"
	"caixapdv/internal/middleware"
	"caixapdv/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the pieces built in the composition root. The router only wires
// them to routes; services are shared with the background workers.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Registers service.RegisterService
	Orders    service.OrderService
	Auth      service.AuthService
	Events    handler.EventSubscriber
	Metrics   *metrics.ServerMetrics
	Gatherer  prometheus.Gatherer
}

var (
	operatorUp = []string{service.RoleOperator, service.RoleManager, service.RoleAdmin}
	managerUp  = []string{service.RoleManager, service.RoleAdmin}
)

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, d Deps) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	apiLimiter, err := middleware.NewLimiter(cfg.RateLimitAPI, d.Redis, "caixapdv:limiter:api")
	if err != nil {
		return nil, err
	}
	loginLimiter, err := middleware.NewLimiter(cfg.RateLimitLogin, d.Redis, "caixapdv:limiter:login")
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORS(cfg.IsProduction(), cfg.CORSAllowedOrigins))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	r.Use(middleware.RateLimit(apiLimiter, "Muitas requisições. Tente novamente em instantes."))

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(d.Auth)
	registerH := handler.NewRegisterHandler(d.Registers)
	streamH := handler.NewStreamHandler(d.Registers, d.Events)
	orderH := handler.NewOrderHandler(d.Orders)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	checks := map[string]handler.Check{}
	if d.DB != nil {
		checks["db"] = handler.DBCheck(d.DB)
	}
	if d.Redis != nil {
		checks["redis"] = handler.RedisCheck(d.Redis)
	}
	r.GET("/health", handler.Health(checks))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.RateLimit(loginLimiter, "Muitas tentativas de login. Aguarde um minuto."), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		stores := v1.Group("/stores/:storeID", middleware.RequireStore())
		{
			stores.POST("/register/open", middleware.RequireRole(operatorUp...), registerH.Open)
			stores.GET("/register/active", middleware.RequireRole(operatorUp...), registerH.Active)
			stores.GET("/register/stream", middleware.RequireRole(operatorUp...), streamH.Stream)
			stores.GET("/register/history", middleware.RequireRole(managerUp...), registerH.History)

			stores.POST("/orders", middleware.RequireRole(operatorUp...), orderH.Create)
			stores.GET("/orders", middleware.RequireRole(operatorUp...), orderH.List)
		}

		regs := v1.Group("/registers/:id")
		{
			regs.POST("/transactions", middleware.RequireRole(operatorUp...), registerH.AppendTransaction)
			regs.POST("/close", middleware.RequireRole(operatorUp...), registerH.Close)
			regs.POST("/reopen", middleware.RequireRole(managerUp...), registerH.Reopen)
			regs.GET("/report", middleware.RequireRole(operatorUp...), registerH.Report)
		}

		v1.PATCH("/orders/:id/status", middleware.RequireRole(operatorUp...), orderH.UpdateStatus)
		v1.POST("/users", middleware.RequireRole(service.RoleAdmin), authH.CreateUser)
	}

	// Swagger UI only outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, nil
}
