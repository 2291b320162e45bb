package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	ClaimNextJob(ctx context.Context, arg ClaimNextJobParams) (Job, error)
	CompleteJob(ctx context.Context, id pgtype.UUID) error
	CreateInvoiceRequest(ctx context.Context, arg CreateInvoiceRequestParams) (InvoiceRequest, error)
	DeleteFinishedJobsBefore(ctx context.Context, before pgtype.Timestamptz) (int64, error)
	EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error)
	FailJob(ctx context.Context, arg FailJobParams) (Job, error)
	GetInvoiceRequest(ctx context.Context, id pgtype.UUID) (InvoiceRequest, error)
	ListInvoiceRequestsByStripeInvoiceID(ctx context.Context, stripeInvoiceID pgtype.Text) ([]InvoiceRequest, error)
	SetInvoiceReference(ctx context.Context, arg SetInvoiceReferenceParams) (int64, error)
	SetInvoiceStatus(ctx context.Context, arg SetInvoiceStatusParams) (int64, error)
}

var _ Querier = (*Queries)(nil)
