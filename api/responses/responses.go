// Package responses writes the {"data": ...} and {"error": ...} envelopes.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError renders err. Anything that is not a *pkgerrors.Error is treated
// as internal, and server-side messages never reach the client.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("nil error written")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	status, body := publicError(typed)
	if logg != nil {
		logRequestError(ctx, logg, status, err)
	}
	writeJSON(w, status, ErrorEnvelope{Error: body})
}

func publicError(e *pkgerrors.Error) (int, APIError) {
	meta := e.Code().Metadata()
	body := APIError{Code: string(e.Code()), Message: meta.PublicMessage}
	if meta.HTTPStatus < http.StatusInternalServerError && e.Message() != "" {
		body.Message = e.Message()
	}
	if meta.DetailsAllowed {
		body.Details = e.Details()
	}
	return meta.HTTPStatus, body
}

func logRequestError(ctx context.Context, logg *logger.Logger, status int, err error) {
	dump := pkgerrors.Dump(err)
	ctx = logg.WithFields(ctx, map[string]any{
		"error":       dump.Message,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
		"http_status": status,
	})
	if dump.SQLState != "" {
		ctx = logg.WithFields(ctx, map[string]any{
			"pg_code":       dump.SQLState,
			"pg_detail":     dump.Detail,
			"pg_table":      dump.Table,
			"pg_column":     dump.Column,
			"pg_constraint": dump.Constraint,
		})
	}
	if status < http.StatusInternalServerError {
		logg.Warn(ctx, "request.rejected")
		return
	}
	logg.Error(ctx, "request.error", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("response.encode_failed")
	}
}
