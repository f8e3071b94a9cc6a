package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"
	ErrTokenUsed     ErrCode = "TOKEN_USED"
	ErrAttemptActive ErrCode = "ATTEMPT_ALREADY_ACTIVE"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrAttemptNotFound  ErrCode = "ATTEMPT_NOT_FOUND"
	ErrWrongPhase       ErrCode = "WRONG_PHASE"
	ErrAttemptFinished  ErrCode = "ATTEMPT_FINISHED"
	ErrBatteryNotLoaded ErrCode = "BATTERY_NOT_LOADED"

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
		return "Token ujian diperlukan."
	case ErrTokenInvalid:
		return "Token ujian tidak valid."
	case ErrTokenExpired:
		return "Token ujian telah kedaluwarsa."
	case ErrTokenUsed:
		return "Token ujian sudah pernah digunakan."
	case ErrAttemptActive:
		return "Token ini sedang digunakan di sesi lain."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrAttemptNotFound:
		return "Sesi ujian tidak ditemukan atau sudah berakhir."
	case ErrWrongPhase:
		return "Tindakan ini tidak valid pada fase ujian saat ini."
	case ErrAttemptFinished:
		return "Sesi ujian sudah selesai."
	case ErrBatteryNotLoaded:
		return "Paket soal belum siap. Silakan coba lagi."

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
