package log

import (
	"github.com/cockroachdb/errors"
)

// errorStack is installed as zerolog.ErrorStackMarshaler. It walks the cause
// chain and returns the first stack trace recorded by cockroachdb/errors.
func errorStack(err error) interface{} {
	if stack := extractStacktrace(err); stack != "" {
		return stack
	}
	return nil
}

func extractStacktrace(err error) string {
	for err != nil {
		safeDetails := errors.GetSafeDetails(err).SafeDetails
		if len(safeDetails) > 0 && safeDetails[0] != "" {
			return safeDetails[0]
		}
		err = errors.UnwrapOnce(err)
	}
	return ""
}
