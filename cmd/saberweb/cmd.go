package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jcooky/go-din"
	"github.com/spf13/cobra"

	"github.com/SarthakJariwala/sqlsaber-web/api"
	"github.com/SarthakJariwala/sqlsaber-web/config"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
	"github.com/SarthakJariwala/sqlsaber-web/worker"
)

func newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "saberweb",
		Short: "Web backend for natural language database queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			c := din.NewContainer(ctx, din.EnvProd)

			cfg := din.MustGetT[*config.WebConfig](c)
			logger := din.MustGet[*slog.Logger](c, mylog.Key)
			dispatcher := din.MustGetT[worker.Dispatcher](c)
			server := din.MustGetT[*api.Server](c)

			logger.Debug("start saberweb", "config", cfg)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				dispatcher.Run(c)
			}()

			httpServer := &http.Server{
				Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
				Handler: server.Handler(),
				BaseContext: func(net.Listener) context.Context {
					return c
				},
			}

			go func() {
				<-ctx.Done()
				if err := httpServer.Shutdown(context.WithoutCancel(ctx)); err != nil {
					logger.Error("failed to shutdown server", mylog.Err(err))
				}
			}()

			logger.Info("server started", "host", cfg.Host, "port", cfg.Port)
			defer logger.Info("server stopped")

			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}

			cancel()
			wg.Wait()

			return nil
		},
	}
}
