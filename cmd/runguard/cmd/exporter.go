package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/alertme/runguard/internal/metrics"
)

var exporterListen string

// exporterCmd represents the exporter command
var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Serve last-run metrics over HTTP",
	Long: `Serve the last-run metrics textfile at /metrics in Prometheus text
exposition format, for hosts without a node_exporter textfile collector.
/healthz reports whether a recorded run exists.`,
	RunE: runExporter,
}

func init() {
	rootCmd.AddCommand(exporterCmd)
	exporterCmd.Flags().StringVar(&exporterListen, "listen", "", "bind address (default from config, :9507)")
}

func runExporter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.MetricsPath()
	if path == "" {
		return fmt.Errorf("metrics_file is disabled in the configuration")
	}

	addr := exporterListen
	if addr == "" {
		addr = cfg.ExporterListen
	}

	router := mux.NewRouter()
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		families, err := metrics.Read(path)
		if err != nil {
			http.Error(w, fmt.Sprintf("no recorded run: %v", err), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if err := metrics.Encode(w, families); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}).Methods(http.MethodGet)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok", "metrics_file": path}
		if fi, err := os.Stat(path); err == nil {
			resp["last_write"] = fi.ModTime().Format(time.RFC3339)
		} else {
			resp["status"] = "no recorded run"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	fmt.Printf("exporter listening on %s, serving %s\n", addr, path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
