package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// OrderItem is a single invoice line in an order request.
// Amount is a unit price in the smallest currency unit (cents for USD).
type OrderItem struct {
	Amount      int64    `json:"amount" firestore:"amount" yaml:"amount"`
	Currency    string   `json:"currency" firestore:"currency" yaml:"currency" validate:"required"`
	Quantity    int64    `json:"quantity,omitempty" firestore:"quantity,omitempty" yaml:"quantity,omitempty" validate:"gte=0"`
	Description string   `json:"description,omitempty" firestore:"description,omitempty" yaml:"description,omitempty"`
	TaxRates    []string `json:"tax_rates,omitempty" firestore:"tax_rates,omitempty" yaml:"tax_rates,omitempty"`
}

// EffectiveQuantity returns the quantity to bill, defaulting to 1.
func (i OrderItem) EffectiveQuantity() int64 {
	if i.Quantity <= 0 {
		return 1
	}
	return i.Quantity
}

// TransferData routes part of the invoice to a connected account.
// It is passed through to the provider as-is; the split is not checked
// against the invoice total.
type TransferData struct {
	Destination string `json:"destination" firestore:"destination" yaml:"destination"`
	Amount      *int64 `json:"amount,omitempty" firestore:"amount,omitempty" yaml:"amount,omitempty"`
}

// OrderRequest is the document an upstream writer creates to ask for an invoice.
// Exactly one of Email or UID identifies the customer.
type OrderRequest struct {
	Email           string        `json:"email,omitempty" firestore:"email,omitempty" yaml:"email,omitempty" validate:"required_without=UID,excluded_with=UID"`
	UID             string        `json:"uid,omitempty" firestore:"uid,omitempty" yaml:"uid,omitempty"`
	Items           []OrderItem   `json:"items" firestore:"items" yaml:"items" validate:"required,min=1,dive"`
	DaysUntilDue    int64         `json:"daysUntilDue,omitempty" firestore:"daysUntilDue,omitempty" yaml:"daysUntilDue,omitempty" validate:"gte=0"`
	DefaultTaxRates []string      `json:"default_tax_rates,omitempty" firestore:"default_tax_rates,omitempty" yaml:"default_tax_rates,omitempty"`
	TransferData    *TransferData `json:"transfer_data,omitempty" firestore:"transfer_data,omitempty" yaml:"transfer_data,omitempty"`
	Description     string        `json:"description,omitempty" firestore:"description,omitempty" yaml:"description,omitempty"`
}

// EffectiveDaysUntilDue returns the request's due-date offset or fallback when unset.
func (r OrderRequest) EffectiveDaysUntilDue(fallback int64) int64 {
	if r.DaysUntilDue > 0 {
		return r.DaysUntilDue
	}
	return fallback
}

// Currency returns the currency used to match billing customers.
// Only the first item is consulted; mixed-currency orders are not reconciled.
func (r OrderRequest) Currency() string {
	if len(r.Items) == 0 {
		return ""
	}
	return r.Items[0].Currency
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the order request invariants. Every violated rule is
// reported as its own *ValidationError inside a *multierror.Error so callers
// can log each one.
func (r OrderRequest) Validate() error {
	const op = "order.validate"

	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Internal(err, op, "order request could not be validated")
	}

	var result *multierror.Error
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), "OrderRequest.")
		result = multierror.Append(result, NewValidationError(op, field, fieldMessage(fe)))
	}
	return result.ErrorOrNil()
}

func fieldMessage(fe validator.FieldError) string {
	switch {
	case fe.Field() == "items" && (fe.Tag() == "required" || fe.Tag() == "min"):
		return "missing at least one line item in items[]"
	case fe.Field() == "email" && fe.Tag() == "required_without":
		return "missing either a customer email address or a uid"
	case fe.Field() == "email" && fe.Tag() == "excluded_with":
		return "only one of email or uid is permitted, both were specified"
	case fe.Field() == "currency":
		return "line item is missing a currency"
	case fe.Tag() == "gte":
		return "must not be negative"
	}
	return "failed " + fe.Tag() + " check"
}

// ValidationErrors flattens the error returned by Validate into its parts.
func ValidationErrors(err error) []error {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return merr.WrappedErrors()
	}
	return []error{err}
}
