package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetsight/fleetsight/internal/logging"
)

// Serve exposes the registry on /metrics in a background goroutine so
// long-running fits can be scraped. Errors are logged, not returned; a batch
// run must not die because the metrics port is taken.
func Serve(port int, g prometheus.Gatherer) {
	logger := logging.GetLogger("telemetry")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.InfoWithFields("metrics endpoint listening", logging.Field("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorWithErr("metrics endpoint failed", err)
		}
	}()
}
