package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mocapstream/mocapstream"
	"github.com/mocapstream/mocapstream/pkg/bridge"
	"github.com/mocapstream/mocapstream/pkg/middleware"
	"github.com/mocapstream/mocapstream/pkg/session"
)

func bridgeCmd() *cobra.Command {
	var (
		listen string
		mode   string
	)

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Re-serve the stream over WebSocket with metrics",
		Long: `Run an HTTP server that fans the capture stream out to WebSocket
clients as JSON, with Prometheus metrics and a health endpoint.

Routes:
  GET /ws        frame feed
  GET /subjects  last seen subjects
  GET /healthz   upstream session state
  GET /metrics   Prometheus metrics

Example:
  mocapstream bridge --server=192.168.1.50 --listen=:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(listen, mode)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", ":8080", "Bridge listen address")
	cmd.Flags().StringVarP(&mode, "mode", "m", "pull", "Stream mode: pull or push")

	return cmd
}

func runBridge(listen, mode string) error {
	cfg, err := clientConfig(mode)
	if err != nil {
		return err
	}

	client, err := mocapstream.New(cfg)
	if err != nil {
		return err
	}
	defer client.Stop()

	srv := bridge.New(bridge.Config{
		Address: listen,
		State:   func() session.State { return client.State() },
	})
	prometheus.MustRegister(middleware.NewStatsCollector(client.Stats))

	if err := client.Subscribe(middleware.Metrics(srv)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.StartStreaming(ctx); err != nil {
		return err
	}

	if err := srv.Run(ctx); err != nil {
		return err
	}
	client.Stop()

	if err := client.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
