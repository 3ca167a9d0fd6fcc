package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/knjiznica/internal/api"
	"github.com/erazemk/knjiznica/internal/catalog"
	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/config"
	"github.com/erazemk/knjiznica/internal/mail"
	"github.com/erazemk/knjiznica/internal/store"
)

// janitorInterval is how often expired token revocations and cache entries
// are dropped.
const janitorInterval = time.Hour

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr, adminEmail string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			closeLog, err := setupLogger(cfg.LogFile)
			if err != nil {
				return err
			}
			defer closeLog()

			return serve(cfg, adminEmail)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default $KNJIZNICA_ADDR or "+config.DefaultAddr+")")
	cmd.Flags().StringVarP(&adminEmail, "admin", "u", defaultAdminEmail, "admin email when the database is created on first run")
	return cmd
}

func serve(cfg *config.Config, adminEmail string) error {
	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DBPath); errors.Is(err, os.ErrNotExist) {
		database, password, err := initDatabase(cfg.DBPath, adminEmail)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(os.Stdout, cfg.DBPath, adminEmail, password)
		fmt.Println()
	}

	database, err := openDatabase(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	slog.Info("database ready", "path", cfg.DBPath)

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		// Auto-generated on first run and kept in the database.
		if jwtSecret, err = store.GetJWTSecret(context.Background(), database); err != nil {
			return fmt.Errorf("getting JWT secret: %w", err)
		}
	}

	var mailer mail.Mailer = mail.LogMailer{}
	if cfg.MailEnabled() {
		mailer = mail.NewSMTPMailer(cfg.SMTP)
		slog.Info("mail enabled", "host", cfg.SMTP.Host, "from", cfg.SMTP.From)
	} else {
		slog.Warn("SMTP_HOST not set, emails will only be logged")
	}

	cat := catalog.New(database, cfg.HomeCacheTTL)
	engine := circulation.New(database, circulation.Options{
		LoanPeriod:  cfg.LoanPeriod,
		Fines:       cfg.Fines,
		Invalidator: cat,
	})

	handler := api.NewRouter(api.Deps{
		DB:          database,
		JWTSecret:   jwtSecret,
		Catalog:     cat,
		Circulation: engine,
		Mailer:      mailer,
		AdminInbox:  cfg.AdminEmail,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go runJanitor(ctx, database, cat)

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "loan_period", cfg.LoanPeriod, "fine_per_day", cfg.Fines.PerDay)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}
