package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString holds a credential such as the weather provider API key.
// String and MarshalJSON both return a placeholder, so the value never
// reaches logs, config dumps or API responses by accident.
//
// Unmask returns the plaintext and should only be called where the raw value
// is sent upstream (e.g. the appid query parameter).
type SecretString string

// String returns the redacted placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsZero reports whether no secret has been configured.
func (s SecretString) IsZero() bool {
	return s == ""
}
