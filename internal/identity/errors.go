package identity

import "errors"

// Handshake failure taxonomy. Each sentinel terminates the handshake; the
// transport layer turns them into a failure redirect (callback path) or a
// JSON error (issuance path).
var (
	ErrEncryptionUnavailable   = errors.New("encryption unavailable")
	ErrEmptyCallbackBody       = errors.New("empty callback body")
	ErrMissingDataParameter    = errors.New("missing data parameter")
	ErrMissingResultToken      = errors.New("missing result token")
	ErrProviderCommunication   = errors.New("provider communication error")
	ErrProviderRejected        = errors.New("provider rejected verification")
	ErrMissingEncryptedPayload = errors.New("missing encrypted payload")
	ErrDecryptionFailed        = errors.New("decryption failed")
	ErrSessionNotFound         = errors.New("verification session not found")
	ErrSessionCompleted        = errors.New("verification session already completed")
	ErrResultExpired           = errors.New("verification result expired")
)

// FailureReason returns a stable token for an error in the taxonomy, used as
// a metrics label and log field.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrEncryptionUnavailable):
		return "encryption_unavailable"
	case errors.Is(err, ErrEmptyCallbackBody):
		return "empty_callback_body"
	case errors.Is(err, ErrMissingDataParameter):
		return "missing_data_parameter"
	case errors.Is(err, ErrMissingResultToken):
		return "missing_result_token"
	case errors.Is(err, ErrProviderCommunication):
		return "provider_communication_error"
	case errors.Is(err, ErrProviderRejected):
		return "provider_rejected"
	case errors.Is(err, ErrMissingEncryptedPayload):
		return "missing_encrypted_payload"
	case errors.Is(err, ErrDecryptionFailed):
		return "decryption_failed"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrSessionCompleted):
		return "session_already_completed"
	case errors.Is(err, ErrResultExpired):
		return "result_expired"
	default:
		return "internal_error"
	}
}
