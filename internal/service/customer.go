package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukerupert/invoicer/internal/billing"
	"github.com/dukerupert/invoicer/internal/telemetry"
)

// CreatedByMetadata marks customers created by this service.
const CreatedByMetadata = "Created by invoicer: send invoices using Stripe"

// CustomerResolver finds or creates the billing customer for an email and
// currency. A person may hold one customer per billing currency, so only a
// customer whose currency matches is reused.
type CustomerResolver struct {
	billing   billing.Client
	createdBy string
	logger    *slog.Logger
}

// NewCustomerResolver creates a CustomerResolver. An empty createdBy uses
// CreatedByMetadata.
func NewCustomerResolver(client billing.Client, createdBy string, logger *slog.Logger) *CustomerResolver {
	if createdBy == "" {
		createdBy = CreatedByMetadata
	}
	return &CustomerResolver{
		billing:   client,
		createdBy: createdBy,
		logger:    logger,
	}
}

// Resolve returns the first customer registered with email whose currency
// equals currency, creating one keyed customers-create-{eventID} when none
// matches. At most one customer is created per call.
func (r *CustomerResolver) Resolve(ctx context.Context, email, currency, eventID string) (*billing.Customer, error) {
	customers, err := r.billing.ListCustomersByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}

	for i := range customers {
		if customers[i].Currency == currency {
			c := customers[i]
			r.logger.Info("found existing customer by email",
				"event_id", eventID,
				"customer_id", c.ID,
				"currency", currency,
				"dashboard_url", billing.DashboardCustomerURL(c.ID, c.Livemode),
			)
			return &c, nil
		}
	}

	customer, err := r.billing.CreateCustomer(ctx, billing.CreateCustomerParams{
		Email:          email,
		Metadata:       map[string]string{"createdBy": r.createdBy},
		IdempotencyKey: "customers-create-" + eventID,
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	if telemetry.Business != nil {
		telemetry.Business.CustomersCreated.Inc()
	}
	r.logger.Info("created a new customer",
		"event_id", eventID,
		"customer_id", customer.ID,
		"currency", currency,
		"dashboard_url", billing.DashboardCustomerURL(customer.ID, customer.Livemode),
	)

	return customer, nil
}
