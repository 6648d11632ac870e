package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a sensitive value (database URL, webhook auth token)
// that must never appear in logs or serialized output. It satisfies
// fmt.Stringer and json.Marshaler with a fixed placeholder; call Unmask
// where the raw value is genuinely needed.
type SecretString string

func (s SecretString) String() string {
	return redactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
