package record

import (
	"errors"
	"fmt"
)

// ValidationError reports a stored value that cannot be turned into its
// canonical form. It is never repaired with a default.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	field := e.Field
	if field == "" {
		field = "value"
	}
	return fmt.Sprintf("invalid %s %s: %s", field, formatValue(e.Value), e.Reason)
}

func invalid(v any, format string, args ...any) *ValidationError {
	return &ValidationError{Value: v, Reason: fmt.Sprintf(format, args...)}
}

// inField prefixes the field path of a ValidationError produced by a nested
// normalizer, so "timestamp" becomes "messages[2].timestamp".
func inField(name string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("%s: %w", name, err)
	}
	out := *ve
	switch {
	case out.Field == "":
		out.Field = name
	case out.Field[0] == '[':
		out.Field = name + out.Field
	default:
		out.Field = name + "." + out.Field
	}
	return &out
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "<missing>"
	case string:
		return fmt.Sprintf("%q", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
