package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/invito-app/invito/internal/handler"
	"github.com/invito-app/invito/internal/repository"
	"github.com/invito-app/invito/internal/usecase"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Invito HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, _, err := openDatabase()
			if err != nil {
				return err
			}
			defer conn.Close()

			db := sqlx.NewDb(conn, cfg.DBDriver)
			repo := repository.NewUserRepository(db)
			service := usecase.NewUserService(repo)
			router := handler.NewRouter(handler.NewUserHandler(service))

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("server listening", "port", cfg.Port)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
				slog.Info("shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				return srv.Shutdown(shutdownCtx)
			}
		},
	}
}
