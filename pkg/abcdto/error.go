package abcdto

// ErrorBody is the JSON body of every failed API call.
type ErrorBody struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// ValidationError reports a malformed request payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func invalid(field, reason string) error {
	return ValidationError{Field: field, Reason: reason}
}
