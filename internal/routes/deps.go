// Package routes registers the HTTP routes on the router.
package routes

import (
	"net/http"
)

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// OpsDeps contains dependencies for operational routes
type OpsDeps struct {
	Health  http.HandlerFunc
	Metrics http.Handler
}

// OrderDeps contains dependencies for order intake routes
type OrderDeps struct {
	CreateHandler http.HandlerFunc
}
