package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/invoicer/internal/billing"
)

func newSignCmd() *cobra.Command {
	var (
		secret    string
		timestamp int64
	)

	cmd := &cobra.Command{
		Use:   "sign <event.json|->",
		Short: "Print a Stripe-Signature header for an event payload",
		Long:  "Sign a webhook payload the way Stripe does so a captured event can be replayed against a local server. Reads stdin when the file is -.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("STRIPE_WEBHOOK_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or STRIPE_WEBHOOK_SECRET is required")
			}

			var (
				payload []byte
				err     error
			)
			if args[0] == "-" {
				payload, err = io.ReadAll(cmd.InOrStdin())
			} else {
				payload, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}

			at := time.Now()
			if timestamp > 0 {
				at = time.Unix(timestamp, 0)
			}
			fmt.Fprintln(cmd.OutOrStdout(), billing.SignWebhookPayload(payload, secret, at))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "webhook signing secret (default $STRIPE_WEBHOOK_SECRET)")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "unix time to sign at (default now)")
	return cmd
}
