package usecase

import "strings"

const (
	addressSeparator = "@"
	mobileDigits     = 10
)

// Normalize converts a channel address such as "917229091491@c.us" into the
// canonical mobile number used as the directory join key. It never fails:
// garbage in yields a defined string that simply matches no directory entry.
func Normalize(raw string) string {
	local, _, _ := strings.Cut(raw, addressSeparator)
	runes := []rune(local)
	if len(runes) > mobileDigits {
		return string(runes[len(runes)-mobileDigits:])
	}
	return local
}
