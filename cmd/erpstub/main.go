// Command erpstub serves the in-process ERP sandbox for local development.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/patagonia-core/stock-planning/internal/erp/erptest"
	"github.com/patagonia-core/stock-planning/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":9090", "listen address")
	clientID := flag.String("client-id", envOr("ERP_CLIENT_ID", "local"), "accepted client id")
	clientSecret := flag.String("client-secret", envOr("ERP_CLIENT_SECRET", "local"), "accepted client secret")
	flag.Parse()

	logger.Setup("debug", envOr("LOG_LEVEL", "debug"))

	sandbox := erptest.NewSandbox(*clientID, *clientSecret)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           sandbox.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Log.Info().Str("addr", *addr).Msg("ERP sandbox listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatal().Err(err).Msg("ERP sandbox stopped")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
