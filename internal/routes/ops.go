package routes

import (
	"net/http"

	"github.com/dukerupert/invoicer/internal/router"
)

// Route paths, also used as metric labels.
const (
	PathStripeWebhook = "/webhooks/stripe"
	PathOrders        = "/orders"
	PathHealth        = "/healthz"
	PathMetrics       = "/metrics"
)

// Paths lists every registered path.
func Paths() []string {
	return []string{PathStripeWebhook, PathOrders, PathHealth, PathMetrics}
}

// RegisterOpsRoutes registers the health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get(PathHealth, deps.Health)
	r.Handle(http.MethodGet, PathMetrics, deps.Metrics)
}
