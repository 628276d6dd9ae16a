package router

import (
	"time"

	"packline/internal/config"
	"packline/internal/handler"
	"packline/internal/infra"
	"packline/internal/middleware"
	"packline/internal/repository"
	"packline/internal/service"
	"packline/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, labelCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	packetRepo := repository.NewPacketRepository(db)
	breakEventRepo := repository.NewBreakEventRepository(db)
	dispatchRepo := repository.NewDispatchOrderRepository(db)
	balanceRepo := repository.NewStockBalanceRepository(db)
	productRepo := repository.NewProductRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	packetSvc := service.NewPacketService(packetRepo, breakEventRepo, dispatchRepo, dispatcher)
	breakSvc := service.NewBreakService(packetRepo, breakEventRepo)
	plannerSvc := service.NewReturnPlanner(packetRepo, breakSvc, dispatcher)
	auditSvc := service.NewAuditService(packetRepo, balanceRepo, productRepo)
	masterSvc := service.NewMasterDataService(productRepo, supplierRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	packetsH := handler.NewPacketsHandler(packetSvc, breakSvc, cfg.LowStockThreshold)
	returnsH := handler.NewReturnsHandler(plannerSvc)
	auditH := handler.NewAuditHandler(auditSvc)
	masterH := handler.NewMasterDataHandler(masterSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, labelCB))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: operator, supervisor, admin — declared per-endpoint
		anyRole := middleware.RequireRole(middleware.RoleOperator, middleware.RoleSupervisor, middleware.RoleAdmin)
		supervisorUp := middleware.RequireRole(middleware.RoleSupervisor, middleware.RoleAdmin)
		adminOnly := middleware.RequireRole(middleware.RoleAdmin)
		mutationRL := middleware.MutationRateLimiter()

		// Packet stock reads
		v1.GET("/packets", anyRole, packetsH.List)
		v1.GET("/packets/:barcode", anyRole, packetsH.Get)
		v1.GET("/packets/:barcode/breaks", anyRole, packetsH.ListBreaks)
		v1.GET("/packets/:barcode/dispatches", anyRole, packetsH.ListDispatches)

		// Replenishment and counter mutations
		v1.POST("/packets/replenish", supervisorUp, packetsH.Replenish)
		v1.POST("/packets/:barcode/reserve", anyRole, mutationRL, packetsH.Reserve)
		v1.POST("/packets/:barcode/release", anyRole, mutationRL, packetsH.Release)
		v1.POST("/packets/:barcode/sell", anyRole, mutationRL, packetsH.Sell)
		v1.POST("/packets/:barcode/restore", anyRole, mutationRL, packetsH.Restore)
		v1.POST("/packets/:barcode/return-supplier", supervisorUp, mutationRL, packetsH.ReturnSupplier)
		v1.POST("/packets/:barcode/break", supervisorUp, mutationRL, packetsH.Break)

		// Lifecycle — admin only
		v1.DELETE("/packets/:barcode", adminOnly, packetsH.Deactivate)
		v1.PATCH("/packets/:barcode/reactivate", adminOnly, packetsH.Reactivate)

		// Return adjustment planner
		v1.GET("/returns/summary", anyRole, returnsH.Summary)
		v1.POST("/returns/plan", anyRole, returnsH.Plan)
		v1.POST("/returns", supervisorUp, mutationRL, returnsH.Execute)

		// Reconciliation
		v1.GET("/audit/discrepancies", supervisorUp, auditH.Discrepancies)
		v1.PUT("/audit/balances/:product_id", adminOnly, auditH.UpsertBalance)

		// Master data (read-only)
		v1.GET("/products", anyRole, masterH.ListProducts)
		v1.GET("/products/:id", anyRole, masterH.GetProduct)
		v1.GET("/suppliers", anyRole, masterH.ListSuppliers)
		v1.GET("/suppliers/:id", anyRole, masterH.GetSupplier)
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
