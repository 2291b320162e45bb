package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/invoicer/internal/middleware"
	"github.com/dukerupert/invoicer/internal/router"
)

func TestRegisterRoutes(t *testing.T) {
	var hits []string
	record := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, name)
			w.WriteHeader(http.StatusOK)
		}
	}

	r := router.New()
	RegisterWebhookRoutes(r, WebhookDeps{StripeHandler: record("stripe")})
	RegisterOpsRoutes(r, OpsDeps{Health: record("health"), Metrics: record("metrics")})
	RegisterOrderRoutes(r, OrderDeps{CreateHandler: record("orders")})

	for _, path := range []string{PathHealth, PathMetrics} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, PathStripeWebhook, strings.NewReader("{}")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, PathOrders, strings.NewReader("{}")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathStripeWebhook, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.Equal(t, []string{"health", "metrics", "stripe", "orders"}, hits)
}

func TestWebhookRoute_BodyLimit(t *testing.T) {
	called := false
	r := router.New()
	RegisterWebhookRoutes(r, WebhookDeps{StripeHandler: func(w http.ResponseWriter, r *http.Request) {
		called = true
	}})

	body := strings.Repeat("x", middleware.WebhookMaxBodySize+1)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, PathStripeWebhook, strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, called)
}
