package fileops

import (
	"errors"
	"fmt"

	"github.com/cloudstore/cloudstore/internal/cloudsdk"
)

var (
	ErrNotAFile           = errors.New("operation needs a file")
	ErrMissingS3Key       = cloudsdk.ErrMissingS3Key
	ErrNothingToDownload  = errors.New("nothing to download")
	ErrAllDownloadsFailed = errors.New("no file in the folder could be downloaded")
	ErrFolderExists       = errors.New("folder already exists")
)

// ValidationError carries the user-facing reason a name was rejected.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// failureMessage prefers the server's text, then the HTTP status form.
func failureMessage(op string, err error) string {
	var apiErr *cloudsdk.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fmt.Sprintf("%s failed (HTTP %d)", op, apiErr.Status)
	}
	return err.Error()
}
