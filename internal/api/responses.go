package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/go-price-resolver/internal/apperr"
	"github.com/safar/go-price-resolver/internal/database"
	"github.com/safar/go-price-resolver/internal/logger"
)

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, SuccessEnvelope{Data: data})
}

// WriteError renders err as the error envelope. Untyped errors are classified:
// missing price lists become NOT_FOUND, transient database failures and
// deadlines become DEPENDENCY_ERROR, everything else INTERNAL_ERROR.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := apperr.As(err)
	if typed == nil {
		typed = classify(err)
	}

	meta := apperr.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case apperr.CodeInvalidInput, apperr.CodeNotFound:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := ErrorEnvelope{
		Error: APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"error_code":  string(typed.Code()),
			"error_class": database.ClassifyError(err).String(),
		})
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func classify(err error) *apperr.Error {
	switch {
	case errors.Is(err, database.ErrPriceListNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, "price list not found")
	case errors.Is(err, context.DeadlineExceeded), database.IsRetryable(err):
		return apperr.Wrap(apperr.CodeDependency, err, "database unavailable")
	default:
		return apperr.Wrap(apperr.CodeInternal, err, "unexpected error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
