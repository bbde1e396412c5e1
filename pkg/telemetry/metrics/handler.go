package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the collector's registry for Prometheus scrapes. Scrapes
// are themselves counted (promhttp_metric_handler_requests_total) and a
// failing collector is logged rather than failing the whole scrape.
func (c *Collector) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(c.registry, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry:          c.registry,
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}))
}
