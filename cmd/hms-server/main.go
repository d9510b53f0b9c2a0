package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carebridge/hms/internal/config"
	"github.com/carebridge/hms/internal/domain/appointment"
	"github.com/carebridge/hms/internal/domain/billing"
	"github.com/carebridge/hms/internal/domain/identity"
	"github.com/carebridge/hms/internal/domain/insurance"
	"github.com/carebridge/hms/internal/domain/lab"
	"github.com/carebridge/hms/internal/domain/medicalrecord"
	"github.com/carebridge/hms/internal/domain/patient"
	"github.com/carebridge/hms/internal/domain/prescription"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/db"
	"github.com/carebridge/hms/internal/platform/events"
	"github.com/carebridge/hms/internal/platform/middleware"
	"github.com/carebridge/hms/internal/platform/respond"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital Management System API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HMS API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: tenant_%s\n", name)
			if err := db.CreateTenantSchema(ctx, pool, name, "./migrations"); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = respond.ErrorHandler(logger)

	secret := []byte(cfg.JWTSecret)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("2M"))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.DBTimeoutSecs) * time.Second))
	e.Use(auth.Middleware(secret,
		"/api/v1/auth/login",
		"/api/v1/auth/register",
		"/health",
		"/health/db",
	))
	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	e.Use(middleware.Audit(logger))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Event hub
	hub := events.NewHub(logger)
	wsGroup := e.Group("/ws")
	events.NewHandler(hub).RegisterRoutes(wsGroup)

	// Repositories
	userRepo := identity.NewRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	apptRepo := appointment.NewRepoPG(pool)
	recordRepo := medicalrecord.NewRepoPG(pool)
	rxRepo := prescription.NewRepoPG(pool)
	labRepo := lab.NewRepoPG(pool)
	invoiceRepo := billing.NewRepoPG(pool)
	claimRepo := insurance.NewRepoPG(pool)

	// Cross-domain directories
	patients := &patientDirectory{repo: patientRepo}
	doctors := &doctorDirectory{repo: userRepo}
	records := &recordDirectory{repo: recordRepo}
	invoices := &invoiceDirectory{repo: invoiceRepo}

	// Services
	tokenTTL := time.Duration(cfg.TokenTTLHours) * time.Hour
	identitySvc := identity.NewService(userRepo, secret, tokenTTL)
	patientSvc := patient.NewService(patientRepo, hub)
	apptSvc := appointment.NewService(apptRepo, patients, doctors, hub)
	recordSvc := medicalrecord.NewService(recordRepo, patients, hub)
	rxSvc := prescription.NewService(rxRepo, records, doctors, patients, hub)
	labSvc := lab.NewService(labRepo, patients, hub)
	billingSvc := billing.NewService(invoiceRepo, patients, hub)
	claimSvc := insurance.NewService(claimRepo, invoices, patients, hub)

	// Handlers
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)
	medicalrecord.NewHandler(recordSvc).RegisterRoutes(apiV1)
	prescription.NewHandler(rxSvc).RegisterRoutes(apiV1)
	lab.NewHandler(labSvc).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc).RegisterRoutes(apiV1)
	insurance.NewHandler(claimSvc).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// patientDirectory adapts the patient repository for the domains that only
// need existence and the patient's user link.
type patientDirectory struct {
	repo patient.Repository
}

func (d *patientDirectory) UserLink(ctx context.Context, patientID uuid.UUID) (*uuid.UUID, bool, error) {
	p, err := d.repo.GetByID(ctx, patientID)
	if err != nil {
		return nil, false, err
	}
	if p == nil || !p.Active {
		return nil, false, nil
	}
	return p.UserID, true, nil
}

// doctorDirectory adapts the user repository for the domains that expand
// doctor references.
type doctorDirectory struct {
	repo identity.Repository
}

func (d *doctorDirectory) Department(ctx context.Context, doctorID uuid.UUID) (string, bool, error) {
	u, err := d.doctor(ctx, doctorID)
	if err != nil || u == nil {
		return "", false, err
	}
	dept := ""
	if u.DoctorDepartment != nil {
		dept = *u.DoctorDepartment
	}
	return dept, true, nil
}

func (d *doctorDirectory) Info(ctx context.Context, doctorID uuid.UUID) (*prescription.DoctorInfo, error) {
	u, err := d.doctor(ctx, doctorID)
	if err != nil || u == nil {
		return nil, err
	}
	info := &prescription.DoctorInfo{FirstName: u.FirstName, LastName: u.LastName}
	if u.DoctorDepartment != nil {
		info.DoctorDepartment = *u.DoctorDepartment
	}
	return info, nil
}

func (d *doctorDirectory) doctor(ctx context.Context, doctorID uuid.UUID) (*identity.User, error) {
	u, err := d.repo.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Role != auth.RoleDoctor || !u.Active {
		return nil, nil
	}
	return u, nil
}

// recordDirectory adapts the medical record repository for the prescription
// service's ownership checks.
type recordDirectory struct {
	repo medicalrecord.Repository
}

func (d *recordDirectory) RecordBinding(ctx context.Context, recordID uuid.UUID) (uuid.UUID, uuid.UUID, bool, error) {
	m, err := d.repo.GetByID(ctx, recordID)
	if err != nil {
		return uuid.Nil, uuid.Nil, false, err
	}
	if m == nil {
		return uuid.Nil, uuid.Nil, false, nil
	}
	return m.DoctorID, m.PatientID, true, nil
}

// invoiceDirectory adapts the billing repository for the claims service.
type invoiceDirectory struct {
	repo billing.Repository
}

func (d *invoiceDirectory) InvoiceInfo(ctx context.Context, invoiceID uuid.UUID) (*insurance.InvoiceInfo, error) {
	inv, err := d.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, nil
	}
	return &insurance.InvoiceInfo{
		PatientID:  inv.PatientID,
		TotalCents: inv.TotalCents,
		Payable:    inv.Status == billing.StatusIssued || inv.Status == billing.StatusPaid,
	}, nil
}
