/*
 * Copyright 2017 Kopano and its licensors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License, version 3,
 * as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	ssspd "stash.kopano.io/kc/ssspd"
	"stash.kopano.io/kc/ssspd/config"
	"stash.kopano.io/kc/ssspd/metrics"
	"stash.kopano.io/kc/ssspd/store"
)

func commandServe() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the provider daemon",
		Run: func(cmd *cobra.Command, args []string) {
			if err := serve(cmd, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("log-level", "info", "log level (panic, fatal, error, warn, info, debug, trace)")
	serveCmd.Flags().Bool("log-timestamp", true, "prefix log lines with a timestamp")
	serveCmd.Flags().String("metrics-listen", "127.0.0.1:6778", "TCP listen address for /metrics")

	return serveCmd
}

func serve(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logTimestamp, _ := cmd.Flags().GetBool("log-timestamp")
	logger, err := newLogger(!logTimestamp, logLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %v", err)
	}
	logger.Infoln("serve start")

	cfg, err := config.Load(logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %v", err)
	}
	if err := cfg.ExportEnv(); err != nil {
		return fmt.Errorf("failed to export environment for child helper: %v", err)
	}

	registry := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(registry)

	st := store.NewMemStore()

	providerCtx, err := ssspd.NewContext(cfg, st, collectors)
	if err != nil {
		return fmt.Errorf("failed to create provider context: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsListen, _ := cmd.Flags().GetString("metrics-listen")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: metricsListen, Handler: mux}
	go func() {
		logger.WithField("listen", metricsListen).Infoln("metrics endpoint starting")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Errorln("metrics endpoint failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Infoln("shutdown signal received")
		metricsSrv.Close()
		cancel()
	}()

	logger.WithField("domain", cfg.Domain.Name).Infoln("serve started")
	providerCtx.Run(ctx)
	logger.Infoln("serve stopped")

	return nil
}
