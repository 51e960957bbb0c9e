package downloader

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is matched by every [MissingFieldError].
	ErrMissingField = errors.New("missing required field")
	// ErrAuth is matched by every [AuthError].
	ErrAuth = errors.New("authentication failed")
	// ErrNoResponse means the photo service returned nothing for an item's
	// download request. It is reported like a failure but is not one of
	// the transfer errors.
	ErrNoResponse = errors.New("no response from server")
	// ErrTransfer is matched by a [DownloadError] that failed while reading
	// or writing bytes.
	ErrTransfer = errors.New("transfer failed")
	// ErrInvalidName means the normalized filename cannot be used on disk.
	ErrInvalidName = errors.New("invalid file name")
	// ErrInvalidCode is wrapped by the [AuthError] returned when no valid
	// two-factor code was given.
	ErrInvalidCode = errors.New("invalid 2FA code")
	// ErrInterrupted is returned, together with the context's error, when
	// the process is stopped in the middle of a batch.
	ErrInterrupted = errors.New("download interrupted")
)

// Field names an input checked by [ValidateInputs].
type Field string

const (
	FieldAccountID   Field = "account id"
	FieldPassword    Field = "password"
	FieldDestination Field = "destination folder"
)

// MissingFieldError is returned when a required input is empty. No network
// activity happens before it is checked.
type MissingFieldError struct {
	Field Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// AuthError wraps any failure during login, two-factor validation or
// listing. A run that returns one has no usable session.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error        { return e.Err }
func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// DownloadError is a per-item failure. It never aborts a batch.
type DownloadError struct {
	Filename string
	// Path is the file the item was to be written to. It is the folder
	// when the folder could not be created or the item's name could not
	// be turned into a file name.
	Path string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download %s: %v", e.Filename, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// NoResponse reports whether the item failed because the service gave no
// response, as opposed to a failed transfer.
func (e *DownloadError) NoResponse() bool { return errors.Is(e.Err, ErrNoResponse) }

func transferError(filename, path string, err error) *DownloadError {
	return &DownloadError{
		Filename: filename,
		Path:     path,
		Err:      fmt.Errorf("%w: %w", ErrTransfer, err),
	}
}
