package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidPayload is returned when an action payload fails validation.
var ErrInvalidPayload = errors.New("invalid payload")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidatePayload checks a payload struct against its validate tags. The
// returned error names the offending fields in a form suitable for a task
// failure message.
func ValidatePayload(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s is %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(parts, "; "))
}
