package utils

// Identifier constants
const (
	// DefaultCompanyPrefix is used when a company name has no usable characters
	DefaultCompanyPrefix = "CMP"

	// SequenceNumberWidth is the minimum number of digits in a formatted identifier
	SequenceNumberWidth = 3
)

type contextKey string

// Request-scoped context keys set by handlers
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)
