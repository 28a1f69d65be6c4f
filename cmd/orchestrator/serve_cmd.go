package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/agentcore/orchestrator/internal/metrics"
)

var serveAddr string

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose a health/metrics HTTP surface for the orchestrator",
		Long: `Serve a minimal observability surface: /healthz for liveness and
/metrics for Prometheus scraping. This is ambient observability, not a
dashboard — the core itself never depends on this command running.`,
		RunE: runServe,
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8090)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadResolvedConfig()
	if err != nil {
		return err
	}
	addr := serveAddr
	if addr == "" {
		addr = cfg.Serve.Addr
	}

	m := metrics.New()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", m.Handler())

	fmt.Printf("serving health/metrics on %s\n", addr)
	return http.ListenAndServe(addr, r)
}
