package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/invoicer/internal/domain"
)

func newSubmitCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "submit <order.json|order.yaml>",
		Short: "Store an order request",
		Long:  "Validate an order request file and store it as a new record. Storing the record triggers invoice creation in the running server.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readOrderRequest(args[0])
			if err != nil {
				return err
			}

			if err := req.Validate(); err != nil {
				for _, verr := range domain.ValidationErrors(err) {
					fmt.Fprintln(cmd.ErrOrStderr(), verr)
				}
				return fmt.Errorf("order request in %s is invalid", args[0])
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d item(s), total %d %s\n",
					args[0], len(req.Items), orderTotal(req), req.Currency())
				return nil
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

			rec, err := store.CreateRecord(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without storing it")
	return cmd
}

// readOrderRequest decodes a JSON or YAML order request, chosen by extension.
// Unknown fields are rejected in both formats.
func readOrderRequest(path string) (domain.OrderRequest, error) {
	var req domain.OrderRequest

	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("reading order request: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return req, nil
}

func orderTotal(req domain.OrderRequest) int64 {
	var total int64
	for _, item := range req.Items {
		total += item.Amount * item.EffectiveQuantity()
	}
	return total
}
