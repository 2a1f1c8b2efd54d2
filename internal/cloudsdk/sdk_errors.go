package cloudsdk

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL    = errors.New("sdk: server url missing")
	ErrNoTokenStore   = errors.New("sdk: token store missing")
	ErrNoRefreshToken = errors.New("sdk: refresh token missing")
	ErrSessionExpired = errors.New("sdk: session expired")
	ErrNotLoggedIn    = errors.New("sdk: not logged in")
	ErrTransport      = errors.New("sdk: transport error")

	// ErrEmptyListing is returned by the list endpoints on a 404 or a body
	// that is not a JSON array. It is a valid, empty state.
	ErrEmptyListing = errors.New("sdk: empty listing")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Op      string
	Status  int
	Message string // server text, may be empty
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed (HTTP %d)", e.Op, e.Status)
	}
	return fmt.Sprintf("%s failed (HTTP %d): %s", e.Op, e.Status, e.Message)
}

// StatusCode returns the HTTP status behind err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports a 401 that survived the refresh-and-retry.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized || errors.Is(err, ErrSessionExpired)
}

// MessageOr returns the server-provided message for err if there is one,
// otherwise fallback.
func MessageOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// handleAPIError turns a transport error or an error status into an error.
func handleAPIError(resp *req.Response, requestErr error, op string) error {
	if requestErr != nil {
		if errors.Is(requestErr, ErrSessionExpired) {
			return requestErr
		}
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, requestErr)
	}

	if resp.IsErrorState() || resp.GetStatusCode() >= 300 {
		// ToBytes also drains bodies left unread by DisableAutoReadResponse
		body, _ := resp.ToBytes()
		return &APIError{
			Op:      op,
			Status:  resp.GetStatusCode(),
			Message: serverMessage(body),
		}
	}

	return nil
}

// serverMessage prefers the "error" or "message" field of a JSON object body
// and falls back to the raw text.
func serverMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if !strings.HasPrefix(text, "{") {
		return text
	}

	var obj struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := jsonUnmarshal(body, &obj); err != nil {
		return text
	}
	if obj.Error != "" {
		return obj.Error
	}
	if obj.Message != "" {
		return obj.Message
	}
	return text
}
