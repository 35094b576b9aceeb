package bridge

import (
	"errors"
	"fmt"

	"github.com/devpilot/devpilot/internal/resolve"
)

// ValidationError flags a missing or malformed required parameter. It is
// always raised before any page interaction, so a validating call is never
// partially executed.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func missing(field string) error {
	return &ValidationError{Field: field, Msg: "required"}
}

// IsValidation reports whether err is a parameter validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Resolution errors are re-exported so callers can branch on error kind
// without importing the resolver.
var (
	ErrNotFound  = resolve.ErrNotFound
	ErrAmbiguous = resolve.ErrAmbiguous
)

// ErrUnknownClient means the clientId names no connected page.
var ErrUnknownClient = errors.New("unknown client")

// ErrUnknownTool means the dispatch table has no entry for the tool name.
var ErrUnknownTool = errors.New("unknown tool")
