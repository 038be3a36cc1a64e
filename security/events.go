package security

// Event type constants for security audit logging.
const (
	// Admission events

	// EventBotRejected is logged when the classifier rejects a request
	EventBotRejected = "bot_rejected"

	// EventProbeRejected is logged when a client reports a suspicious probe score
	EventProbeRejected = "probe_rejected"

	// EventRateLimitExceeded is logged when a client exceeds its request window
	EventRateLimitExceeded = "rate_limit_exceeded"

	// EventRateLimitStoreFailure is logged when the window store fails and the request is denied
	EventRateLimitStoreFailure = "rate_limit_store_failure"

	// EventUnknownResource is logged when a client asks for a resource that does not exist
	EventUnknownResource = "unknown_resource"

	// Capability protocol events

	// EventCapabilityIssued is logged when a signature is issued
	EventCapabilityIssued = "capability_issued"

	// EventTimestampRejected is logged when an issuance timestamp is outside the skew tolerance
	EventTimestampRejected = "timestamp_rejected"

	// EventCapabilityRedeemed is logged when a signature is exchanged for a link
	EventCapabilityRedeemed = "capability_redeemed"

	// EventCapabilityExpired is logged when a valid signature is redeemed too late
	EventCapabilityExpired = "capability_expired"

	// EventCapabilityInvalid is logged when a signature does not match the request context
	EventCapabilityInvalid = "capability_invalid"
)
