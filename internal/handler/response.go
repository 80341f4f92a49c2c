package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"yello-auth/internal/model"
	"yello-auth/pkg/apierror"
)

const maxBodyBytes = 64 << 10

var kindStatus = map[model.ErrorKind]int{
	model.KindInvalidCredentials: http.StatusUnauthorized,
	model.KindInvalidToken:       http.StatusUnauthorized,
	model.KindNoRefreshToken:     http.StatusUnauthorized,
	model.KindPasswordMismatch:   http.StatusBadRequest,
	model.KindWeakPassword:       http.StatusBadRequest,
	model.KindValidation:         http.StatusUnprocessableEntity,
	model.KindEmailTaken:         http.StatusConflict,
	model.KindBusy:               http.StatusConflict,
	model.KindForbidden:          http.StatusForbidden,
}

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    apierror.CodeInternal,
		Message: "Unexpected server error",
	}

	var (
		apiErr  *apierror.APIError
		authErr *model.AuthError
	)
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
		body.Redirect = apiErr.Redirect
	case errors.As(err, &authErr):
		if mapped, ok := kindStatus[authErr.Kind]; ok {
			status = mapped
		}
		body.Code = string(authErr.Kind)
		body.Message = authErr.Message
		if body.Message == "" {
			body.Message = model.Message(model.DefaultLocale, "", authErr.Kind)
		}
		if status >= http.StatusInternalServerError {
			slog.Error("auth operation failed", "kind", authErr.Kind, "error", err.Error())
		}
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = apierror.CodeBadRequest
		body.Message = "Invalid input"
		body.Details = err.Error()
	case errors.Is(err, model.ErrUserNotFound):
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "User not found"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		body.Code = "REQUEST_TIMEOUT"
		body.Message = "request timed out"
	default:
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	var redirect *redirectError
	if errors.As(err, &redirect) {
		body.Redirect = redirect.path
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

// redirectError tells the client where to go after err.
type redirectError struct {
	err  error
	path string
}

func (e *redirectError) Error() string { return e.err.Error() }
func (e *redirectError) Unwrap() error { return e.err }

func redirectTo(err error, path string) error {
	return &redirectError{err: err, path: path}
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return apierror.BadRequest("invalid JSON body", strings.TrimSpace(err.Error()))
	}
	return nil
}
