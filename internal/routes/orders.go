package routes

import (
	"github.com/dukerupert/invoicer/internal/middleware"
	"github.com/dukerupert/invoicer/internal/router"
)

// RegisterOrderRoutes registers order intake. Deployments where upstream
// writers insert records directly can leave it out.
func RegisterOrderRoutes(r *router.Router, deps OrderDeps) {
	r.Post(PathOrders, deps.CreateHandler, middleware.MaxBodySize())
}
