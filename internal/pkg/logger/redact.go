package logger

// RedactAddress masks a wallet address or opaque user ID for safe logging.
// "0xabcdef0123456789..." → "0xabcd…6789". Short IDs (≤8 chars) are fully
// masked so the redacted form never reveals the whole value.
func RedactAddress(id string) string {
	if len(id) <= 8 {
		return "****"
	}
	return id[:6] + "…" + id[len(id)-4:]
}
