package pipeline

// Default values for statement processing.
// These can be overridden via configuration or environment variables.
const (
	// DefaultModelName is the default Gemini model used for parsing.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultAPIVersion is the Gemini API version the client talks to.
	DefaultAPIVersion = "v1"

	// DefaultFallbackCurrency is used when a statement declares no currency
	// and carries no symbol that identifies one.
	DefaultFallbackCurrency = "MYR"

	// DefaultMaxFileBytes is the largest accepted input file.
	DefaultMaxFileBytes = 50 << 20
)
