package devserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeInvalidRequest     = "E_INVALID_REQUEST"
	CodeRateLimited        = "E_RATE_LIMITED"
	CodeInternalError      = "E_INTERNAL_ERROR"
	CodeAccessDenied       = "E_ACCESS_DENIED"
	CodeInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS"
	CodeNotVerified        = "E_AUTH_NOT_VERIFIED"
	CodeVerificationFailed = "E_AUTH_VERIFICATION_FAILED"
	CodeRefreshFailed      = "E_AUTH_TOKEN_REFRESH_FAILED"
	CodeConflict           = "E_CONFLICT"
	CodeNotFound           = "E_NOT_FOUND"
)

// APIError is the body of every error response. The message goes out as
// "error", which is what clients surface to users.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloudstore api error: code=%s, message=%s", e.Code, e.Message)
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, &APIError{Code: code, Message: message})
}

// storeError maps a store error to a response.
func storeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, ErrFileNotFound),
		errors.Is(err, ErrFolderNotFound),
		errors.Is(err, ErrShareNotFound),
		errors.Is(err, ErrLinkNotFound),
		errors.Is(err, ErrUserNotFound):
		abortWithError(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, ErrUserExists),
		errors.Is(err, ErrNameTaken),
		errors.Is(err, ErrNotInTrash):
		abortWithError(c, http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, ErrBadCredentials):
		abortWithError(c, http.StatusUnauthorized, CodeInvalidCredentials, err.Error())
	case errors.Is(err, ErrNotVerified):
		abortWithError(c, http.StatusForbidden, CodeNotVerified, err.Error())
	case errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidFolderArg),
		errors.Is(err, ErrShareWithSelf):
		abortWithError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, CodeInternalError, err.Error())
	}
}

func bindError(c *gin.Context, err error) {
	_ = c.Error(fmt.Errorf("failed to bind json: %w", err))
	abortWithError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
}
