// Command devserver runs the reference annotation backend on SQLite.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/paladium/internal/auth"
	"github.com/mmynk/paladium/internal/config"
	"github.com/mmynk/paladium/internal/middleware"
	"github.com/mmynk/paladium/internal/service"
	"github.com/mmynk/paladium/internal/storage/sqlite"
	"github.com/mmynk/paladium/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.SetupWith(logging.ParseLevel(cfg.Log.Level), logging.ParseFormat(cfg.Log.Format))

	if err := cfg.ValidateServer(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Server.DBPath), 0o755); err != nil {
		slog.Error("Failed to create data directory", "error", err)
		os.Exit(1)
	}
	store, err := sqlite.New(cfg.Server.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Server.DBPath)

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		slog.Error("Failed to create upload directory", "error", err)
		os.Exit(1)
	}
	slog.Info("Serving uploads", "path", cfg.Server.UploadDir)

	jwtManager := auth.NewJWTManager(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
	api := service.NewHandler(store, auth.NewPasswordAuthenticator(store), jwtManager, cfg.Server.UploadDir)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/", metrics.Instrument(api))

	handler := middleware.Logging(middleware.CORS(mux))

	// h2c lets HTTP/2 clients talk to the server without TLS.
	h2cHandler := h2c.NewHandler(handler, &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Server starting", "address", addr, "url", fmt.Sprintf("http://localhost%s", addr))
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
