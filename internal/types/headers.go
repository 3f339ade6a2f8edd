package types

const (
	HeaderRequestID = "X-Request-ID"
	HeaderAPIKey    = "x-api-key"

	// Headers sent by the payment provider on webhook deliveries
	HeaderPaymentSignature = "x-signature"
	HeaderPaymentRequestID = "x-request-id"
)
