package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type InvoiceRequest struct {
	ID                  pgtype.UUID        `json:"id"`
	Email               pgtype.Text        `json:"email"`
	Uid                 pgtype.Text        `json:"uid"`
	Items               []byte             `json:"items"`
	DaysUntilDue        pgtype.Int8        `json:"days_until_due"`
	DefaultTaxRates     []byte             `json:"default_tax_rates"`
	TransferData        []byte             `json:"transfer_data"`
	Description         pgtype.Text        `json:"description"`
	StripeInvoiceID     pgtype.Text        `json:"stripe_invoice_id"`
	StripeInvoiceUrl    pgtype.Text        `json:"stripe_invoice_url"`
	StripeInvoiceRecord pgtype.Text        `json:"stripe_invoice_record"`
	StripeInvoiceStatus pgtype.Text        `json:"stripe_invoice_status"`
	LastStripeEvent     pgtype.Text        `json:"last_stripe_event"`
	CreatedAt           pgtype.Timestamptz `json:"created_at"`
	UpdatedAt           pgtype.Timestamptz `json:"updated_at"`
}

type Job struct {
	ID             pgtype.UUID        `json:"id"`
	JobType        string             `json:"job_type"`
	Queue          string             `json:"queue"`
	Payload        []byte             `json:"payload"`
	Status         string             `json:"status"`
	Priority       int32              `json:"priority"`
	RetryCount     int32              `json:"retry_count"`
	MaxRetries     int32              `json:"max_retries"`
	WorkerID       pgtype.Text        `json:"worker_id"`
	ErrorMessage   pgtype.Text        `json:"error_message"`
	ScheduledAt    pgtype.Timestamptz `json:"scheduled_at"`
	StartedAt      pgtype.Timestamptz `json:"started_at"`
	CompletedAt    pgtype.Timestamptz `json:"completed_at"`
	TimeoutSeconds int32              `json:"timeout_seconds"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}
