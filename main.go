package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"ALMS-backend/internal/inventory/assets"
	"ALMS-backend/internal/inventory/departments"
	"ALMS-backend/internal/inventory/loans"
	"ALMS-backend/internal/inventory/locations"
	"ALMS-backend/internal/inventory/persons"
	"ALMS-backend/internal/platform/auth"
	"ALMS-backend/internal/platform/db"
	"ALMS-backend/internal/platform/obs"
	"ALMS-backend/internal/platform/roles"
)

// リクエストIDを採番してレスポンスヘッダとログ追跡に使う
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func main() {
	// .env があれば読む(無くてもよい)
	_ = godotenv.Load()

	cfgPath := os.Getenv("ALMS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := db.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}

	// 秘密情報は環境変数で上書きできる
	if v := os.Getenv("ALMS_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ALMS_DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}

	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if mode != "dev" && mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		panic(fmt.Errorf("redis接続に失敗: %w", err))
	}

	// ロールグループの初期化(冪等)
	groups := roles.NewRedisGroups(rdb)
	if err := groups.EnsureGroups(ctx); err != nil {
		panic(err)
	}

	authSvc := auth.NewService(conn, groups, cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	resolver := roles.NewResolver(groups, authSvc.AdminChecker())

	// 既定の部署と座席番号の初期化(冪等)
	deptSvc := departments.NewService(conn)
	if err := deptSvc.EnsureDefault(ctx); err != nil {
		panic(err)
	}

	obs.Init()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), requestID(), obs.Instrument())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) {
		if err := conn.PingContext(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	r.GET("/metrics", obs.Handler())

	r.StaticFile("/openapi.yaml", "docs/openapi.yaml")
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL("/openapi.yaml")))

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterPublicRoutes(api, authSvc)

	authed := api.Group("", auth.RequireAuth(authSvc.Secret()), auth.ResolveRole(resolver))
	locations.RegisterRoutes(authed, locations.NewService(conn))
	departments.RegisterRoutes(authed, deptSvc)
	assets.RegisterRoutes(authed, assets.NewService(conn))
	persons.RegisterRoutes(authed, persons.NewService(conn))
	loans.RegisterRoutes(authed, loans.NewService(conn))

	admin := authed.Group("", auth.RequireRole(roles.RoleAdmin))
	auth.RegisterAdminRoutes(admin, authSvc)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: r,
	}

	go func() {
		log.Printf("[INFO] listening on %s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] shutdown: %v", err)
	}
}
