package webauthz

// RedactedToken wraps a credential so it cannot end up in logs by accident.
//
// It formats as "[REDACTED]" with %s, %v and %#v, and marshals to the same
// placeholder in text and JSON. Use Value only when building the request
// that actually needs the credential.
//
//	tok := webauthz.NewRedactedToken(reg.ClientToken)
//	logger.Debug("exchanging", "client_token", tok) // client_token=[REDACTED]
//	req.Header.Set("Authorization", "Bearer "+tok.Value())
type RedactedToken struct {
	value string
}

// NewRedactedToken creates a new RedactedToken wrapping the given value.
func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the wrapped credential. Never log the result.
func (t RedactedToken) Value() string {
	return t.value
}

// String implements fmt.Stringer.
func (t RedactedToken) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer.
func (t RedactedToken) GoString() string {
	return "webauthz.RedactedToken{[REDACTED]}"
}

// IsEmpty returns true if no credential is wrapped.
func (t RedactedToken) IsEmpty() bool {
	return t.value == ""
}

// MarshalText implements encoding.TextMarshaler.
func (t RedactedToken) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// MarshalJSON implements json.Marshaler.
func (t RedactedToken) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}
