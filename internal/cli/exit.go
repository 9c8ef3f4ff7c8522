package cli

import (
	"errors"

	pkgerrors "github.com/modelpull/modelpull/pkg/errors"
)

// Exit codes, one per error category, so scripts can branch on failures
// without parsing diagnostics.
const (
	ExitOK             = 0
	ExitUnexpected     = 1
	ExitParse          = 2
	ExitSourceNotFound = 3
	ExitAuth           = 4
	ExitNotFound       = 5
	ExitIntegrity      = 6
	ExitLockTimeout    = 7
	ExitDownload       = 8
	ExitPermission     = 9
	ExitInvalidPath    = 10
	ExitCancelled      = 130
)

// ExitCode maps an error to the process exit code for its category.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pkgerrors.ErrCancelled):
		return ExitCancelled
	case errors.Is(err, pkgerrors.ErrParse), errors.Is(err, pkgerrors.ErrConfig):
		return ExitParse
	case errors.Is(err, pkgerrors.ErrSourceNotFound):
		return ExitSourceNotFound
	case errors.Is(err, pkgerrors.ErrAuthentication):
		return ExitAuth
	case errors.Is(err, pkgerrors.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, pkgerrors.ErrSizeMismatch), errors.Is(err, pkgerrors.ErrHashMismatch):
		return ExitIntegrity
	case errors.Is(err, pkgerrors.ErrLockTimeout):
		return ExitLockTimeout
	case errors.Is(err, pkgerrors.ErrDownloadFailed):
		return ExitDownload
	case errors.Is(err, pkgerrors.ErrPermission):
		return ExitPermission
	case errors.Is(err, pkgerrors.ErrInvalidPath):
		return ExitInvalidPath
	default:
		return ExitUnexpected
	}
}
