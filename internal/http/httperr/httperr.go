// Package httperr maps domain errors to HTTP responses. Messages are safe to
// show to API callers; upstream detail only reaches the log.
package httperr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrJamesThe3rd/payflow/internal/admin"
	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

// Status returns the response code and caller-facing message for err.
func Status(err error) (int, string) {
	var (
		currencyErr    *payment.UnsupportedCurrencyError
		providerErr    *payment.UnknownProviderError
		unsupportedErr *payment.UnsupportedOperationError
		configErr      *payment.ConfigurationError
		apiErr         *payment.ProviderAPIError
	)

	switch {
	case errors.Is(err, invoice.ErrNotFound):
		return http.StatusNotFound, "invoice not found"
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "payment not found"
	case errors.Is(err, invoice.ErrAlreadyPaid):
		return http.StatusConflict, "invoice already paid"
	case errors.Is(err, invoice.ErrNotPayable):
		return http.StatusConflict, "invoice is not payable"
	case errors.Is(err, admin.ErrNotRefundable):
		return http.StatusConflict, "payment is not refundable"
	case errors.Is(err, admin.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, admin.ErrInvalidAmount.Error()
	case errors.As(err, &currencyErr):
		return http.StatusUnprocessableEntity, currencyErr.Error()
	case errors.As(err, &providerErr):
		return http.StatusBadRequest, providerErr.Error()
	case errors.As(err, &unsupportedErr):
		return http.StatusUnprocessableEntity, unsupportedErr.Error()
	case errors.As(err, &configErr):
		return http.StatusServiceUnavailable, "provider not configured"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "payment provider timed out"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, apiErr.Error()
	}

	return http.StatusInternalServerError, "internal error"
}

// Write sends the mapped error. Server-side failures are logged with full
// detail.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := Status(err)

	if code >= http.StatusInternalServerError {
		attrs := []any{"method", r.Method, "path", r.URL.Path, "error", err}

		var apiErr *payment.ProviderAPIError
		if errors.As(err, &apiErr) {
			attrs = append(attrs, "detail", apiErr.Detail())
		}

		slog.Error("request failed", attrs...)
	}

	http.Error(w, msg, code)
}
