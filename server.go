package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/gudangkita/inventory_backend/config"
	"bitbucket.org/gudangkita/inventory_backend/middlewares"
	"bitbucket.org/gudangkita/inventory_backend/models"
	"bitbucket.org/gudangkita/inventory_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func registerRoutes(r *gin.Engine) {
	api := r.Group("/", middlewares.StoreMiddleware())

	api.POST("/products", createProductHandler)
	api.PUT("/products/:id", updateProductHandler)
	api.GET("/products", listProductsHandler)
	api.GET("/products/:id", getProductHandler)
	api.GET("/products/:id/average-price", productAveragePriceHandler)
	api.GET("/products/:id/stock", productStockHandler)

	api.POST("/warehouses", createWarehouseHandler)
	api.DELETE("/warehouses/:id", deleteWarehouseHandler)
	api.GET("/warehouses", listWarehousesHandler)
	api.GET("/warehouses/:id", getWarehouseHandler)

	api.POST("/suppliers", createSupplierHandler)
	api.PUT("/suppliers/:id", updateSupplierHandler)
	api.GET("/suppliers", listSuppliersHandler)

	api.POST("/accounts", createAccountHandler)
	api.POST("/accounts/default", ensureDefaultAccountHandler)
	api.GET("/accounts", listAccountsHandler)
	api.GET("/accounts/:id/transactions", accountTransactionsHandler)
	api.POST("/accounts/transfer", transferFundsHandler)
	api.POST("/accounts/:id/adjust", adjustAccountBalanceHandler)

	api.POST("/staff", createStaffHandler)
	api.GET("/staff", listStaffHandler)
	api.GET("/staff/:id/payments", staffPaymentsHandler)

	api.POST("/purchases", recordPurchaseHandler)
	api.POST("/purchases/batch", recordPurchaseHandler)
	api.GET("/purchases", listPurchasesHandler)

	api.POST("/sales", recordSaleHandler)
	api.POST("/sales/batch", recordSaleHandler)
	api.GET("/sales", listSalesHandler)
	api.GET("/sales/total", salesTotalHandler)

	api.POST("/returns/purchase", recordPurchaseReturnHandler)
	api.POST("/returns/sale", recordSaleReturnHandler)
	api.GET("/returns", listReturnsHandler)
	api.GET("/returns/:id", getReturnHandler)

	api.POST("/stock/adjustments", recordStockAdjustmentHandler)
	api.GET("/stock/adjustments", listStockAdjustmentsHandler)
	api.POST("/stock/migrations", migrateStockHandler)
	api.GET("/stock/summary", stockSummaryHandler)

	api.POST("/debts/:id/payments", recordDebtPaymentHandler)
	api.GET("/debts", listDebtsHandler)
	api.GET("/debts/:id", getDebtHandler)
	api.GET("/debts/total", debtTotalHandler)
	api.GET("/debts/:id/history", debtHistoryHandler)

	api.POST("/expenses", recordExpenseHandler)
	api.GET("/expenses", listExpensesHandler)
	api.GET("/expenses/totals", expenseTotalsHandler)
	api.POST("/salaries", recordSalaryHandler)
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server before the DB is ready; app endpoints return
	// 503 until dependencies come up.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("X-Store", "X-Username", "X-Correlation-Id", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "X-Correlation-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(gin.Recovery())
	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect the database after the port is open. Redis is optional and
	// connects during package init.
	config.ConnectDatabaseWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	sweepInterval := 10 * time.Minute
	if raw := strings.TrimSpace(os.Getenv("RECONCILE_INTERVAL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			sweepInterval = d
		}
	}
	go workflow.StartReconciliationSweeper(sweepCtx, logger, sweepInterval)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	cancelSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
