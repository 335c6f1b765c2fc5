package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gigvault/gigvault/internal/admin"
	"github.com/gigvault/gigvault/internal/alerts"
	"github.com/gigvault/gigvault/internal/application"
	"github.com/gigvault/gigvault/internal/auth"
	"github.com/gigvault/gigvault/internal/config"
	"github.com/gigvault/gigvault/internal/db"
	"github.com/gigvault/gigvault/internal/dispute"
	"github.com/gigvault/gigvault/internal/escrow"
	"github.com/gigvault/gigvault/internal/events"
	"github.com/gigvault/gigvault/internal/job"
	mware "github.com/gigvault/gigvault/internal/middleware"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/payment"
	"github.com/gigvault/gigvault/internal/processor"
	"github.com/gigvault/gigvault/internal/review"
	"github.com/gigvault/gigvault/internal/store"
	"github.com/gigvault/gigvault/internal/task"
	"github.com/gigvault/gigvault/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}
	st := store.NewPostgres(pool)

	bus, err := events.NewBus(cfg.Redis.URL)
	if err != nil {
		log.Printf("redis bus unavailable, continuing without events: %v", err)
		bus = nil
	}
	notifier, err := alerts.NewNotifier(st, cfg.Redis.URL)
	if err != nil {
		log.Printf("redis queue unavailable, notifications are store-only: %v", err)
		notifier = alerts.NewStoreOnlyNotifier(st)
	}

	proc := processor.NewClient(cfg.Processor)
	ledger := escrow.NewLedger(st, cfg.Escrow.FeeRate)
	orch := payment.NewOrchestrator(st, proc, cfg.Processor)
	tracker := task.NewTracker(st)
	apps := application.NewManager(st, notifier)
	engine := job.NewEngine(st, ledger, orch, tracker, apps, notifier, bus)
	orch.SetWebhookApplier(engine)
	disputes := dispute.NewManager(st, ledger, orch, engine, notifier)
	reviews := review.NewService(st)
	authSvc := auth.NewService(st, cfg.JWT)

	// Background worker for payout/refund retries and notification delivery.
	if worker, err := alerts.NewWorker(cfg.Redis.URL, engine); err != nil {
		log.Printf("redis worker unavailable, payment retries are webhook-only: %v", err)
	} else {
		go func() {
			if err := worker.Run(); err != nil {
				log.Printf("worker stopped: %v", err)
			}
		}()
	}

	authH := auth.NewHandler(authSvc, st)
	userH := user.NewHandler(st)
	jobH := job.NewHandler(engine)
	taskH := task.NewHandler(tracker)
	appH := application.NewHandler(apps)
	payH := payment.NewHandler(orch, ledger)
	dispH := dispute.NewHandler(disputes)
	revH := review.NewHandler(reviews)
	adminH := admin.NewHandler(st)

	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "gigvault"})
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := st.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Auth routes with per-IP rate limiting to protect signup/login from abuse.
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/signup", authH.Signup)
	authGroup.POST("/login", authH.Login)

	// Processor webhooks authenticate by body signature, not by token.
	e.POST("/webhooks/processor", payH.Webhook)

	e.GET("/users/:id", userH.Get)
	e.GET("/users/:id/reviews", revH.ForUser)
	e.GET("/jobs", jobH.ListOpen)
	e.GET("/jobs/:id", jobH.Get)

	api := e.Group("")
	api.Use(mware.JWTMiddleware(cfg.JWT.Secret))

	api.GET("/auth/me", authH.Me)
	api.PATCH("/users/me", userH.Update)
	api.GET("/users/me/notifications", userH.Notifications)

	api.POST("/jobs", jobH.Create, mware.RequireRoles(models.RolePoster))
	api.GET("/jobs/mine", jobH.Mine)
	api.POST("/jobs/:id/publish", jobH.Publish, mware.RequireRoles(models.RolePoster))
	api.POST("/jobs/:id/retry-payment", jobH.RetryPayment, mware.RequireRoles(models.RolePoster))
	api.POST("/jobs/:id/start", jobH.Start, mware.RequireRoles(models.RoleWorker))
	api.POST("/jobs/:id/complete", jobH.Complete, mware.RequireRoles(models.RoleWorker, models.RolePoster))
	api.POST("/jobs/:id/cancel", jobH.Cancel)
	api.GET("/jobs/:id/escrow", payH.EscrowView)

	api.POST("/jobs/:id/tasks", taskH.Add, mware.RequireRoles(models.RolePoster))
	api.GET("/jobs/:id/tasks", taskH.List)
	api.DELETE("/tasks/:id", taskH.Remove, mware.RequireRoles(models.RolePoster))
	api.POST("/tasks/:id/complete", taskH.Complete, mware.RequireRoles(models.RoleWorker))

	api.POST("/jobs/:id/applications", appH.Apply, mware.RequireRoles(models.RoleWorker))
	api.GET("/jobs/:id/applications", appH.List, mware.RequireRoles(models.RolePoster))
	api.POST("/applications/:id/accept", jobH.Accept, mware.RequireRoles(models.RolePoster))
	api.POST("/applications/:id/reject", appH.Reject, mware.RequireRoles(models.RolePoster))

	api.POST("/payment-methods/setup", payH.BeginSetup)
	api.POST("/payment-methods/confirm", payH.ConfirmSetup)
	api.GET("/payment-methods", payH.List)
	api.POST("/payment-methods/:id/default", payH.SetDefault)
	api.DELETE("/payment-methods/:id", payH.Delete)

	api.POST("/jobs/:id/disputes", dispH.Open)
	api.GET("/disputes/:id", dispH.Get)
	api.POST("/jobs/:id/reviews", revH.Create)

	adminGroup := e.Group("/admin")
	adminGroup.Use(mware.JWTMiddleware(cfg.JWT.Secret))
	adminGroup.Use(mware.AdminGuard)

	adminGroup.GET("/stats", adminH.Stats)
	adminGroup.GET("/users", adminH.Users)
	adminGroup.POST("/users/:id/suspend", adminH.Suspend)
	adminGroup.POST("/users/:id/activate", adminH.Activate)
	adminGroup.GET("/jobs", adminH.Jobs)
	adminGroup.GET("/disputes", dispH.List)
	adminGroup.POST("/disputes/:id/review", dispH.StartReview)
	adminGroup.POST("/disputes/:id/resolve", dispH.Resolve)

	if err := e.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
