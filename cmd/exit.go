package cmd

import (
	"rookpkg/pkg/helper/errors"
)

// exitCodeFor maps an error's kind to the process exit code its category
// is assigned. Unrecognized errors exit 1, the same as a user error.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errors.ErrLockContention):
		return 6
	case errors.Is(err, errors.ErrTransactionFailed):
		return 5
	case errors.Is(err, errors.ErrTransactionRolledBack):
		return 4
	case errors.Is(err, errors.ErrSignatureInvalid),
		errors.Is(err, errors.ErrSignerUntrusted),
		errors.Is(err, errors.ErrSignerAlgorithmRefused),
		errors.Is(err, errors.ErrChecksumMismatch),
		errors.Is(err, errors.ErrInsecureKeyPermissions):
		return 3
	case errors.Is(err, errors.ErrDependencyUnsatisfiable):
		return 2
	default:
		return 1
	}
}
