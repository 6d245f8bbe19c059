// Package errorsx tags errors with short machine-readable reasons so callers can pick a
// user-facing fallback without inspecting error strings.
package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonBackendRequest     ReasonCode = "backend_request"
	ReasonBackendStatus      ReasonCode = "backend_status"
	ReasonBackendDecode      ReasonCode = "backend_decode"
	ReasonBackendCircuitOpen ReasonCode = "backend_circuit_open"

	ReasonOTPSend    ReasonCode = "otp_send"
	ReasonOTPVerify  ReasonCode = "otp_verify"
	ReasonLeadCreate ReasonCode = "lead_create"

	ReasonLLMGenerate ReasonCode = "llm_generate"
	ReasonRAGRetrieve ReasonCode = "rag_retrieve"

	ReasonSTTConnect ReasonCode = "stt_connect"
	ReasonSTTSend    ReasonCode = "stt_send"
	ReasonTTSSend    ReasonCode = "tts_send"

	ReasonSessionStore ReasonCode = "session_store"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
	ReasonTransportSend             ReasonCode = "transport_send"
)
