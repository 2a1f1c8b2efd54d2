package utils

// MaskSecret keeps the first four characters of a token for display.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "*****"
	}
	return s[:4] + "*****"
}
