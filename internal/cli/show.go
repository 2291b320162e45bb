package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/invoicer/internal/domain"
)

func newShowCmd() *cobra.Command {
	var (
		output    string
		byInvoice bool
	)

	cmd := &cobra.Command{
		Use:   "show <record-id>",
		Short: "Print invoice records",
		Long:  "Print the record with the given id, or with --invoice every record referencing a Stripe invoice id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "yaml" && output != "json" {
				return fmt.Errorf("unknown output format %q", output)
			}

			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			var records []domain.InvoiceRecord
			if byInvoice {
				records, err = store.FindByStripeInvoiceID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(records) == 0 {
					return fmt.Errorf("no record references invoice %s", args[0])
				}
			} else {
				rec, err := store.GetRecord(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				records = []domain.InvoiceRecord{*rec}
			}

			return writeRecords(cmd, output, records)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	cmd.Flags().BoolVar(&byInvoice, "invoice", false, "treat the argument as a Stripe invoice id")
	return cmd
}

// recordView is the printed form of an invoice record.
type recordView struct {
	ID            string              `json:"id" yaml:"id"`
	Order         domain.OrderRequest `json:"order" yaml:"order"`
	InvoiceID     string              `json:"stripeInvoiceId,omitempty" yaml:"stripeInvoiceId,omitempty"`
	InvoiceURL    string              `json:"stripeInvoiceUrl,omitempty" yaml:"stripeInvoiceUrl,omitempty"`
	DashboardURL  string              `json:"stripeInvoiceRecord,omitempty" yaml:"stripeInvoiceRecord,omitempty"`
	InvoiceStatus string              `json:"stripeInvoiceStatus,omitempty" yaml:"stripeInvoiceStatus,omitempty"`
	LastEvent     string              `json:"lastStripeEvent,omitempty" yaml:"lastStripeEvent,omitempty"`
	CreatedAt     string              `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

func toView(rec domain.InvoiceRecord) recordView {
	v := recordView{
		ID:            rec.ID,
		Order:         rec.OrderRequest,
		InvoiceID:     rec.StripeInvoiceID,
		InvoiceURL:    rec.StripeInvoiceURL,
		DashboardURL:  rec.StripeInvoiceRecord,
		InvoiceStatus: rec.StripeInvoiceStatus,
		LastEvent:     rec.LastStripeEvent,
	}
	if !rec.CreatedAt.IsZero() {
		v.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func writeRecords(cmd *cobra.Command, output string, records []domain.InvoiceRecord) error {
	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, toView(rec))
	}

	out := cmd.OutOrStdout()
	if output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(views); err != nil {
		return err
	}
	return enc.Close()
}
