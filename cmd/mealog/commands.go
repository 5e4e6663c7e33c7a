package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/auth"
	"github.com/MarcoPoloResearchLab/mealog/internal/logging"
	"github.com/MarcoPoloResearchLab/mealog/internal/server"
	"github.com/MarcoPoloResearchLab/mealog/internal/table"
	"github.com/MarcoPoloResearchLab/mealog/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the meal API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	appConfig, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := openRuntime(signalCtx, appConfig, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	app.startWatcher(signalCtx)

	var tokens server.TokenValidator
	if appConfig.AuthEnabled() {
		issuer, err := newTokenIssuer(appConfig.SigningSecret, appConfig.TokenTTL)
		if err != nil {
			return err
		}
		tokens = issuer
	} else {
		logger.Warn("api authentication disabled", zap.String("address", appConfig.HTTPAddress))
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Meals:          app.repository,
		Tokens:         tokens,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newTUICommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Edit meals in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), date)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to open (YYYY-MM-DD), today when empty")
	return cmd
}

func runTUI(ctx context.Context, date string) error {
	appConfig, err := loadConfig()
	if err != nil {
		return err
	}

	// The terminal belongs to the UI; logs go to a file.
	logger, err := logging.NewFileLogger(appConfig.LogLevel, appConfig.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	app, err := openRuntime(runCtx, appConfig, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	app.startWatcher(runCtx)

	executor, err := table.NewExecutor(table.ExecutorConfig{
		Writer: app.repository,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	// Writes outlive the UI context so the queue can drain after quit.
	executorCtx, stopExecutor := context.WithCancel(context.WithoutCancel(ctx))
	defer stopExecutor()
	go executor.Run(executorCtx)
	defer drainExecutor(executor, logger)

	model, err := tui.NewModel(tui.Config{
		Context:   runCtx,
		Source:    app.repository,
		Writer:    executor,
		Date:      date,
		BlurDelay: appConfig.BlurDelay,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(runCtx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// drainExecutor applies the writes still queued at exit. It runs before the
// database is closed.
func drainExecutor(executor *table.Executor, logger *zap.Logger) {
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := executor.Close(drainCtx); err != nil {
		logger.Warn("writes pending at exit", zap.Error(err))
	}
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import [path]",
		Short: "Import a legacy JSON meal dump",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := loadConfig()
			if err != nil {
				return err
			}
			path := appConfig.LegacyPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("import: a dump path or legacy.path is required")
			}

			logger, err := logging.NewLogger(appConfig.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			// The explicit path is imported below, not at startup.
			appConfig.LegacyPath = ""
			app, err := openRuntime(cmd.Context(), appConfig, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.importLegacy(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d meals, skipped %d from %s\n", report.Imported, report.Skipped, report.Path)
			return nil
		},
	}
}

func newTokenCommand() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := loadConfig()
			if err != nil {
				return err
			}
			if !appConfig.AuthEnabled() {
				return errors.New("token: auth.signing_secret is not set")
			}
			issuer, err := newTokenIssuer(appConfig.SigningSecret, appConfig.TokenTTL)
			if err != nil {
				return err
			}
			issued, err := issuer.IssueToken(cmd.Context(), subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), issued.Token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", issued.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "owner", "Token subject")
	return cmd
}

func newTokenIssuer(secret string, ttl time.Duration) (*auth.TokenIssuer, error) {
	return auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(secret),
		TokenTTL:      ttl,
	})
}
