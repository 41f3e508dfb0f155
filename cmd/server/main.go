package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/bookwarden/bookwarden/internal/config"
	"github.com/bookwarden/bookwarden/internal/database"
	"github.com/bookwarden/bookwarden/internal/handlers"
	"github.com/bookwarden/bookwarden/internal/middleware"
	"github.com/bookwarden/bookwarden/internal/services"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database connection
	db, err := database.New(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis connection
	redis, err := database.NewRedis(cfg)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redis.Close()

	dailyFineRate, err := decimal.NewFromString(cfg.Loans.DailyFineRate)
	if err != nil {
		slog.Error("Invalid daily fine rate", "error", err, "value", cfg.Loans.DailyFineRate)
		os.Exit(1)
	}

	// Initialize services
	authService := services.NewAuthService(
		db.Queries,
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		logger,
	)
	accountService := services.NewAccountService(db.Queries, authService, logger)
	catalogService := services.NewCatalogService(db.Queries)

	// Loan and reservation operations mutate several rows at once, so they
	// run against the transactional store rather than the bare query layer.
	store := services.NewStore(db.Pool)
	loanService := services.NewLoanService(store, services.NewFinePolicy(dailyFineRate))
	reservationService := services.NewReservationService(store).
		WithHoldDays(cfg.Reservations.HoldDays)

	// Initialize Gin router
	r := gin.New()

	// Add global middleware
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.SecurityHeaders())

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(redis.Client)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redis)
	authHandler := handlers.NewAuthHandler(authService, accountService)
	accountHandler := handlers.NewAccountHandler(accountService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	loanHandler := handlers.NewLoanHandler(loanService)
	reservationHandler := handlers.NewReservationHandler(reservationService)

	// Public routes (no authentication required)
	public := r.Group("/api/v1")
	{
		public.GET("/ping", healthHandler.Ping)
		public.GET("/health", healthHandler.Health)

		// Authentication routes with rate limiting
		auth := public.Group("/auth")
		auth.Use(rateLimiter.AuthLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}
	}

	// Protected routes (authentication required)
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware.RequireAuth())
	protected.Use(rateLimiter.APILimit())
	{
		// Account management
		accounts := protected.Group("/accounts")
		{
			accounts.GET("/:id", accountHandler.GetAccount)
			accounts.GET("/:id/loans", loanHandler.ListAccountLoans)
			accounts.GET("/:id/reservations", reservationHandler.ListAccountReservations)
		}

		// Catalog routes, reads are open to any authenticated account
		books := protected.Group("/books")
		{
			books.GET("", catalogHandler.ListBooks)
			books.GET("/:id", catalogHandler.GetBook)
			books.GET("/:id/reservations", reservationHandler.GetBookQueue)
		}

		// Loan routes
		loans := protected.Group("/loans")
		{
			loans.POST("", loanHandler.Checkout)
			loans.GET("/:id", loanHandler.GetLoan)
			loans.POST("/:id/return", loanHandler.Return)
			loans.POST("/:id/renew", loanHandler.Renew)
		}

		// Reservation routes
		reservations := protected.Group("/reservations")
		{
			reservations.POST("", reservationHandler.Reserve)
			reservations.POST("/:id/cancel", reservationHandler.Cancel)
		}

		// Staff routes
		staff := protected.Group("")
		staff.Use(authMiddleware.RequireStaff())
		{
			staff.GET("/accounts", accountHandler.ListAccounts)
			staff.PATCH("/accounts/:id/active", accountHandler.SetActive)
			staff.PATCH("/accounts/:id/role", accountHandler.SetRole)
			staff.POST("/accounts/:id/fines", accountHandler.AdjustFine)

			staff.POST("/books", catalogHandler.CreateBook)
			staff.PUT("/books/:id", catalogHandler.UpdateBook)
			staff.PATCH("/books/:id/copies", catalogHandler.SetTotalCopies)
			staff.POST("/books/:id/maintenance", catalogHandler.SetMaintenance)
			staff.DELETE("/books/:id/maintenance", catalogHandler.ClearMaintenance)
			staff.DELETE("/books/:id", catalogHandler.DeleteBook)
			staff.POST("/books/:id/notify", reservationHandler.NotifyAvailability)

			staff.GET("/loans/active", loanHandler.ListActiveLoans)
			staff.GET("/loans/overdue", loanHandler.ListOverdueLoans)

			staff.POST("/reservations/:id/complete", reservationHandler.Complete)
			staff.POST("/reservations/expire", reservationHandler.ExpireStale)
		}
	}

	// Root health check
	r.GET("/health", healthHandler.Health)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", port, "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}
