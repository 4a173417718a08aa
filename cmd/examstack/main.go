package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	api "github.com/examstack/examstack/internal/api/http"
	"github.com/examstack/examstack/internal/auth"
	"github.com/examstack/examstack/internal/config"
	"github.com/examstack/examstack/internal/db"
	"github.com/examstack/examstack/internal/exam"
	"github.com/examstack/examstack/internal/rbac"
	"github.com/examstack/examstack/internal/submission"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examstack",
		Short: "Online examination platform: grading and result release",
	}

	serve := serveCmd()
	root.AddCommand(serve, sweepCmd(), regradeAllCmd(), seedAdminCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", "sqlite", "Database driver (sqlite, postgres)")
	f.String("db-dsn", "", "Database DSN (driver default when empty)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("auth-secret", "", "HMAC secret for JWT signing (or EXAMSTACK_AUTH_SECRET)")
	f.String("admin-user", "admin", "Initial admin username")
	f.String("admin-password", "", "Initial admin password (or EXAMSTACK_ADMIN_PASSWORD)")
	f.Bool("dev-claim-fallback", false, "Trust JWT role claim when the user has no DB row (dev only)")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	f.Duration("sweep-interval", time.Minute, "Scheduled-release sweep interval (0 disables)")
	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the scheduled-release sweep once and exit",
		RunE:  runSweep,
	}
	addCommonFlags(cmd)
	return cmd
}

func regradeAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regrade-all",
		Short: "Regrade every finalized submission and report changes",
		RunE:  runRegradeAll,
	}
	addCommonFlags(cmd)
	return cmd
}

func seedAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the initial admin account",
		RunE:  runSeedAdmin,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.String("admin-user", "admin", "Admin username")
	f.String("admin-password", "", "Admin password (or EXAMSTACK_ADMIN_PASSWORD)")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var level slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMSTACK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examstack")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/examstack")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	cfg := config.FromViper(v)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	examStore := exam.NewSQLStore(dbh)
	svc := submission.NewService(submission.NewSQLStore(dbh), examStore)

	if cfg.AuthSecret == "" {
		return fmt.Errorf("auth secret is required: set --auth-secret or EXAMSTACK_AUTH_SECRET")
	}
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	if err := auth.SeedAdmin(ctx, dbh, cfg.AdminUser, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.DevClaimFallback))

		// Exams
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.UpsertExamHandler(examStore))
		pr.With(rbac.Require("exam:list")).
			Get("/exams", api.ListExamsHandler(examStore))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(examStore))
		pr.With(rbac.Require("exam:publish")).
			Post("/exams/{examID}/publish", api.PublishExamHandler(examStore))

		// Candidate flow
		pr.With(rbac.Require("submission:start")).
			Post("/submissions", api.StartSubmissionHandler(svc))
		pr.With(rbac.Require("submission:draft")).
			Post("/submissions/{submissionID}/draft", api.SaveDraftHandler(svc))
		pr.With(rbac.Require("submission:finalize")).
			Post("/submissions/{submissionID}/finalize", api.FinalizeHandler(svc))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions/{submissionID}", api.GetSubmissionHandler(svc))
		pr.With(rbac.RequireAny("submission:list-own", "submission:list-all")).
			Get("/submissions", api.ListSubmissionsHandler(svc))

		// Admin grading and release
		pr.With(rbac.Require("submission:grade")).
			Post("/submissions/{submissionID}/grade", api.ManualGradeHandler(svc))
		pr.With(rbac.Require("submission:regrade")).
			Post("/submissions/{submissionID}/regrade", api.RegradeHandler(svc))
		pr.With(rbac.Require("submission:regrade")).
			Post("/submissions/regrade-all", api.RegradeAllHandler(svc))
		pr.With(rbac.Require("submission:review")).
			Post("/submissions/{submissionID}/review", api.MarkReviewedHandler(svc))
		pr.With(rbac.Require("submission:release")).
			Post("/submissions/{submissionID}/release", api.ReleaseHandler(svc))
		pr.With(rbac.Require("submission:release")).
			Post("/submissions/release-all", api.ReleaseAllHandler(svc))
		pr.With(rbac.Require("submission:release")).
			Post("/submissions/release-scheduled", api.ReleaseScheduledHandler(svc))
		pr.With(rbac.Require("submission:delete")).
			Delete("/submissions/{submissionID}", api.DeleteSubmissionHandler(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	if cfg.SweepInterval > 0 {
		go runSweepLoop(svc, cfg.SweepInterval)
	}

	slog.Info("listening", "addr", cfg.HTTPAddr, "db", cfg.DBDriver, "sweep_interval", cfg.SweepInterval)
	return http.ListenAndServe(cfg.HTTPAddr, r)
}

// runSweepLoop periodically releases submissions of exams whose scheduled
// release date has passed.
func runSweepLoop(svc *submission.Service, interval time.Duration) {
	system := auth.Context{UserID: "system", Role: rbac.RoleAdmin}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		n, err := svc.ReleaseScheduled(ctx, system)
		cancel()
		if err != nil {
			slog.Error("scheduled release sweep failed", "error", err)
			continue
		}
		if n > 0 {
			slog.Info("scheduled release sweep", "released", n)
		}
	}
}

func runSweep(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	cfg := config.FromViper(v)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	examStore := exam.NewSQLStore(dbh)
	svc := submission.NewService(submission.NewSQLStore(dbh), examStore)

	n, err := svc.ReleaseScheduled(ctx, auth.Context{UserID: "system", Role: rbac.RoleAdmin})
	if err != nil {
		return err
	}
	slog.Info("sweep complete", "released", n)
	return nil
}

func runRegradeAll(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	cfg := config.FromViper(v)

	ctx := context.Background()
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	examStore := exam.NewSQLStore(dbh)
	svc := submission.NewService(submission.NewSQLStore(dbh), examStore)

	report, err := svc.RegradeAll(ctx, auth.Context{UserID: "system", Role: rbac.RoleAdmin})
	if err != nil {
		return err
	}
	slog.Info("regrade complete", "total", report.Total, "changed", report.Changed, "failed", report.Failed)
	return nil
}

func runSeedAdmin(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	cfg := config.FromViper(v)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	return auth.SeedAdmin(ctx, dbh, cfg.AdminUser, cfg.AdminPassword)
}
