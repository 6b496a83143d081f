package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidConfig  ErrCode = "INVALID_CONFIG"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrTestNotFound    ErrCode = "TEST_NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrResultNotFound  ErrCode = "RESULT_NOT_FOUND"

	// ─── Session-specific ──────────────────────────────────────────────
	ErrEmptyQuestionSet  ErrCode = "EMPTY_QUESTION_SET"
	ErrInvalidTransition ErrCode = "INVALID_TRANSITION"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrNotSubmitted      ErrCode = "SESSION_NOT_SUBMITTED"

	// ─── Result lifecycle ──────────────────────────────────────────────
	ErrNoDraft         ErrCode = "NO_DRAFT"
	ErrPromotionFailed ErrCode = "PROMOTION_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidConfig:
		return "Pengaturan sesi tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrTestNotFound:
		return "Tes tidak ditemukan."
	case ErrSessionNotFound:
		return "Sesi tidak ditemukan."
	case ErrResultNotFound:
		return "Hasil tidak ditemukan."

	// ─── Session-specific ──────────────────────────────────────────────
	case ErrEmptyQuestionSet:
		return "Tes ini tidak memiliki soal yang dapat digunakan."
	case ErrInvalidTransition:
		return "Tindakan ini tidak tersedia saat ini."
	case ErrSessionClosed:
		return "Sesi sudah berakhir."
	case ErrNotSubmitted:
		return "Sesi belum dikumpulkan."

	// ─── Result lifecycle ──────────────────────────────────────────────
	case ErrNoDraft:
		return "Draf hasil belum tersimpan."
	case ErrPromotionFailed:
		return "Gagal mengonfirmasi hasil. Silakan coba lagi."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
