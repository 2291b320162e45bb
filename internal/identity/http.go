package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dukerupert/invoicer/internal/telemetry"
	"github.com/go-resty/resty/v2"
)

// HTTPResolver looks uids up in an identity service that answers
// GET {base}/users/{uid} with {"email": "..."}.
type HTTPResolver struct {
	client *resty.Client
}

type userResponse struct {
	Email string `json:"email"`
}

// NewHTTPResolver returns a resolver for the identity service at baseURL.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetTransport(&telemetry.HTTPTransport{Transport: http.DefaultTransport}).
		SetHeader("Accept", "application/json")

	return &HTTPResolver{client: client}
}

// EmailForUID fetches the user record and returns its email.
func (r *HTTPResolver) EmailForUID(ctx context.Context, uid string) (string, error) {
	var out userResponse

	resp, err := r.client.R().
		SetContext(ctx).
		SetPathParam("uid", uid).
		SetResult(&out).
		Get("/users/{uid}")
	if err != nil {
		return "", fmt.Errorf("identity lookup %s: %w", uid, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return "", ErrNoEmail
	case resp.IsError():
		return "", fmt.Errorf("identity lookup %s: unexpected status %d", uid, resp.StatusCode())
	}

	if out.Email == "" {
		return "", ErrNoEmail
	}

	return out.Email, nil
}
