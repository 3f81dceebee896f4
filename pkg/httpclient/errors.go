package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/atelier-jewellery/storefront/pkg/errors"
)

// uniqueViolation is the SQLSTATE PostgREST forwards for a duplicate key.
const uniqueViolation = "23505"

// RemoteError is the error body returned by PostgREST.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// ParseResponseError reads a non-2xx response and maps it to an AppError.
// The body is fully consumed and closed.
func ParseResponseError(resp *http.Response, remote string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Upstream(
			fmt.Sprintf("%s returned status %d", remote, resp.StatusCode),
			fmt.Errorf("read body: %w", err),
		)
	}

	var re RemoteError
	if json.Unmarshal(body, &re) != nil || re.Message == "" {
		re = RemoteError{Message: string(body)}
	}
	return mapRemoteError(resp.StatusCode, re, remote)
}

func mapRemoteError(status int, re RemoteError, remote string) error {
	msg := fmt.Sprintf("%s: %s", remote, re.Message)

	switch {
	case status == http.StatusConflict || re.Code == uniqueViolation:
		return &apperrors.AppError{
			Code:    "ALREADY_EXISTS",
			Message: msg,
			Status:  http.StatusConflict,
			Err:     apperrors.ErrAlreadyExists,
		}
	case status == http.StatusNotFound:
		return &apperrors.AppError{
			Code:    "NOT_FOUND",
			Message: msg,
			Status:  http.StatusNotFound,
			Err:     apperrors.ErrNotFound,
		}
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(msg)
	case status == http.StatusServiceUnavailable:
		return &apperrors.AppError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: msg,
			Status:  http.StatusServiceUnavailable,
			Err:     apperrors.ErrServiceUnavail,
		}
	default:
		return apperrors.Upstream(msg, fmt.Errorf("status %d code %q", status, re.Code))
	}
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
