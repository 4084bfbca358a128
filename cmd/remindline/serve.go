package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"remindline/internal/app"
	"remindline/internal/relay"
	"remindline/internal/scheduler"
	"remindline/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	var noScheduler, allowUserHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the reminder scheduler and the event relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withEnv(ctx, func(ctx context.Context, env *app.Env) error {
				cfg := env.Config
				log := env.Log
				if addr == "" {
					addr = cfg.Server.Addr
				}
				if basePath == "" {
					basePath = cfg.Server.BasePath
				}
				authCfg := server.AuthConfig{
					JWTSecret:       cfg.Server.JWTSecret,
					AllowUserHeader: allowUserHeader || cfg.Server.AllowUserHeader,
					Log:             log.Named("auth"),
				}
				if authCfg.JWTSecret == "" && !authCfg.AllowUserHeader {
					return fmt.Errorf("REMINDLINE_JWT_SECRET or server.jwt_secret is required for bearer auth")
				}

				var sched *scheduler.Scheduler
				if cfg.Scheduler.Enabled && !noScheduler {
					sched = scheduler.FromEngine(env.Engine, cfg.Scheduler.DeliveryTimeout)
					sched.Log = log.Named("scheduler")
				}
				handler, err := server.New(server.Config{
					Engine:    env.Engine,
					Scheduler: sched,
					BasePath:  basePath,
					Auth:      authCfg,
					Log:       log.Named("http"),
				})
				if err != nil {
					return err
				}

				var wg sync.WaitGroup
				if sched != nil {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if err := sched.Run(ctx, cfg.Scheduler.Tick); err != nil {
							log.Error("scheduler stopped", zap.Error(err))
						}
					}()
				}
				if rl := relay.New(cfg, env.Engine.Repo, log.Named("relay")); rl != nil {
					wg.Add(1)
					go func() {
						defer wg.Done()
						rl.Run(ctx)
					}()
				}

				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				log.Info("serving remindline API",
					zap.String("addr", addr),
					zap.String("base_path", basePath),
					zap.Bool("scheduler", sched != nil),
				)
				fmt.Printf("Serving remindline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				err = srv.ListenAndServe()
				stop()
				wg.Wait()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to server.base_path)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without running reminders")
	cmd.Flags().BoolVar(&allowUserHeader, "allow-user-header", false, "trust X-User-Id on requests without a token")
	return cmd
}
