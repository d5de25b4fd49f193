package state

import (
	"strconv"
	"unicode/utf16"
)

// HashPassword derives the credential fingerprint kept with a cached staff
// session. It folds the UTF-16 code units of password+email into a signed
// 32-bit accumulator (h = h*31 + c, wrapping) and renders it in base 36, so
// it matches hashes written by the web terminal.
//
// This is not a cryptographic hash. It only gates offline sign-in on a
// device that already holds the session token.
func HashPassword(password, email string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(password + email)) {
		h = (h << 5) - h + int32(c)
	}
	return strconv.FormatInt(int64(h), 36)
}

// ValidatePassword reports whether password and email reproduce stored.
func ValidatePassword(password, email, stored string) bool {
	return stored != "" && HashPassword(password, email) == stored
}
