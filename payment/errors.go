package payment

import "fmt"

// ValidationError reports a structurally invalid claim field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("payment: invalid claim: %s %s", e.Field, e.Message)
}

func validationErr(field, message string) error {
	return ValidationError{Field: field, Message: message}
}
