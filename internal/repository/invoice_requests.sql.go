package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceRequestColumns = `id, email, uid, items, days_until_due, default_tax_rates, transfer_data, description,
    stripe_invoice_id, stripe_invoice_url, stripe_invoice_record, stripe_invoice_status, last_stripe_event,
    created_at, updated_at`

func scanInvoiceRequest(row interface{ Scan(...interface{}) error }, i *InvoiceRequest) error {
	return row.Scan(
		&i.ID,
		&i.Email,
		&i.Uid,
		&i.Items,
		&i.DaysUntilDue,
		&i.DefaultTaxRates,
		&i.TransferData,
		&i.Description,
		&i.StripeInvoiceID,
		&i.StripeInvoiceUrl,
		&i.StripeInvoiceRecord,
		&i.StripeInvoiceStatus,
		&i.LastStripeEvent,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
}

const createInvoiceRequest = `-- name: CreateInvoiceRequest :one
INSERT INTO invoice_requests (email, uid, items, days_until_due, default_tax_rates, transfer_data, description)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + invoiceRequestColumns

type CreateInvoiceRequestParams struct {
	Email           pgtype.Text `json:"email"`
	Uid             pgtype.Text `json:"uid"`
	Items           []byte      `json:"items"`
	DaysUntilDue    pgtype.Int8 `json:"days_until_due"`
	DefaultTaxRates []byte      `json:"default_tax_rates"`
	TransferData    []byte      `json:"transfer_data"`
	Description     pgtype.Text `json:"description"`
}

func (q *Queries) CreateInvoiceRequest(ctx context.Context, arg CreateInvoiceRequestParams) (InvoiceRequest, error) {
	row := q.db.QueryRow(ctx, createInvoiceRequest,
		arg.Email,
		arg.Uid,
		arg.Items,
		arg.DaysUntilDue,
		arg.DefaultTaxRates,
		arg.TransferData,
		arg.Description,
	)
	var i InvoiceRequest
	err := scanInvoiceRequest(row, &i)
	return i, err
}

const getInvoiceRequest = `-- name: GetInvoiceRequest :one
SELECT ` + invoiceRequestColumns + `
FROM invoice_requests
WHERE id = $1`

func (q *Queries) GetInvoiceRequest(ctx context.Context, id pgtype.UUID) (InvoiceRequest, error) {
	row := q.db.QueryRow(ctx, getInvoiceRequest, id)
	var i InvoiceRequest
	err := scanInvoiceRequest(row, &i)
	return i, err
}

const listInvoiceRequestsByStripeInvoiceID = `-- name: ListInvoiceRequestsByStripeInvoiceID :many
SELECT ` + invoiceRequestColumns + `
FROM invoice_requests
WHERE stripe_invoice_id = $1
ORDER BY created_at`

func (q *Queries) ListInvoiceRequestsByStripeInvoiceID(ctx context.Context, stripeInvoiceID pgtype.Text) ([]InvoiceRequest, error) {
	rows, err := q.db.Query(ctx, listInvoiceRequestsByStripeInvoiceID, stripeInvoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceRequest
	for rows.Next() {
		var i InvoiceRequest
		if err := scanInvoiceRequest(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setInvoiceReference = `-- name: SetInvoiceReference :execrows
UPDATE invoice_requests
SET stripe_invoice_id = $2,
    stripe_invoice_url = $3,
    stripe_invoice_record = $4,
    updated_at = NOW()
WHERE id = $1`

type SetInvoiceReferenceParams struct {
	ID                  pgtype.UUID `json:"id"`
	StripeInvoiceID     pgtype.Text `json:"stripe_invoice_id"`
	StripeInvoiceUrl    pgtype.Text `json:"stripe_invoice_url"`
	StripeInvoiceRecord pgtype.Text `json:"stripe_invoice_record"`
}

func (q *Queries) SetInvoiceReference(ctx context.Context, arg SetInvoiceReferenceParams) (int64, error) {
	result, err := q.db.Exec(ctx, setInvoiceReference,
		arg.ID,
		arg.StripeInvoiceID,
		arg.StripeInvoiceUrl,
		arg.StripeInvoiceRecord,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const setInvoiceStatus = `-- name: SetInvoiceStatus :execrows
UPDATE invoice_requests
SET stripe_invoice_status = $2,
    last_stripe_event = $3,
    updated_at = NOW()
WHERE id = $1`

type SetInvoiceStatusParams struct {
	ID                  pgtype.UUID `json:"id"`
	StripeInvoiceStatus pgtype.Text `json:"stripe_invoice_status"`
	LastStripeEvent     pgtype.Text `json:"last_stripe_event"`
}

func (q *Queries) SetInvoiceStatus(ctx context.Context, arg SetInvoiceStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, setInvoiceStatus, arg.ID, arg.StripeInvoiceStatus, arg.LastStripeEvent)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
