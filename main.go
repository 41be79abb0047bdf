package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"RENTAL-backend/docs"
	"RENTAL-backend/internal/catalog/products"
	"RENTAL-backend/internal/platform/auth"
	"RENTAL-backend/internal/platform/db"
	"RENTAL-backend/internal/platform/httpx"
	"RENTAL-backend/internal/platform/tracing"
	"RENTAL-backend/internal/rental/bookings"
)

func main() {
	// .env.local があれば環境変数に読み込む（DB_PASSWORD / JWT_SECRET など）
	_ = godotenv.Load(".env.local")

	cfgPath := db.DefaultConfigPath
	if v := os.Getenv("RENTAL_CONFIG"); v != "" {
		cfgPath = v
	}
	cfg, err := db.LoadConfig(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("starting rental backend", "mode", cfg.Mode, "version", cfg.Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.OTLPEndpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		logger.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("connected to DB", "dbname", cfg.DB.DBName)

	secret := []byte(cfg.Auth.JWTSecret)
	authSvc := auth.NewService(auth.NewStore(conn), secret, cfg.Auth.TokenTTL)
	productSvc := products.NewService(products.NewStore(conn))
	bookingSvc := bookings.NewService(
		bookings.NewStore(conn),
		bookings.NewProductCatalog(productSvc),
		bookings.WithNotifier(bookings.LogNotifier{Logger: logger.With("component", "notifier")}),
		bookings.WithPendingHold(cfg.Rental.PendingHold),
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.StructuredLogger(logger))
	_ = r.SetTrustedProxies(nil)

	if !cfg.IsRelease() {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Location", "X-Request-ID"},
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowCredentials: true,
		}))
		docs.SwaggerInfo.BasePath = "/api/v1"
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) {
		if err := conn.PingContext(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "db unreachable")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterRoutes(api, authSvc)
	products.RegisterRoutes(api, productSvc)
	bookings.RegisterPublicRoutes(api, bookingSvc)

	limiter := httpx.NewRateLimiter(cfg.Rental.CreateRatePerMinute, cfg.Rental.CreateBurst)
	// 10分使われていないバケットは捨てる
	go limiter.Run(ctx, time.Minute, 10*time.Minute)
	authed := api.Group("", auth.RequireAuth(secret))
	bookings.RegisterRoutes(authed, bookingSvc, limiter.Middleware())

	admin := api.Group("/admin", auth.RequireAuth(secret), auth.RequireRole(auth.RoleAdmin))
	products.RegisterAdminRoutes(admin, productSvc)
	bookings.RegisterAdminRoutes(admin, bookingSvc)

	// 延滞スイープ
	go bookingSvc.RunSweeper(ctx, cfg.Rental.SweepInterval, logger.With("component", "sweeper"))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		var err error
		if cfg.Server.TLS {
			// 開発用と本番用で証明書の置き場所を分ける
			certFile := fmt.Sprintf("config/tls/%s/%s", cfg.Mode, cfg.Certificate.Cert)
			keyFile := fmt.Sprintf("config/tls/%s/%s", cfg.Mode, cfg.Certificate.Key)
			logger.Info("listening", "addr", cfg.Server.Addr, "tls", true)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			logger.Info("listening", "addr", cfg.Server.Addr, "tls", false)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown failed", "error", err)
	}
}

func setupLogger(cfg *db.Config) *slog.Logger {
	if cfg.IsRelease() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
