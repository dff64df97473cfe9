package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the HTTP handler serving the text exposition of the
// registry. Scraping is decoupled from the control loop; it is safe at
// any frequency.
func (r *Registry) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(r)

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
