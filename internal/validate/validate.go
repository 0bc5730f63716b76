// Package validate holds the input checks applied to everything that crosses
// the key server's trust boundary: submitted credential values, provider
// slugs used to name config files, batch ids taken from the URL path, and
// strings interpolated into HTML.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxKeyValLen is the longest accepted credential value in bytes.
const MaxKeyValLen = 4096

// rejectedChars are shell and markup metacharacters never valid in a
// credential value. Values end up in shell environments and config files
// downstream, so this is an exclusion list, not a format check: spaces,
// '@', '#', '=', '+', '.' and ':' stay allowed because real provider keys
// use them.
const rejectedChars = ";&'\"<>|$`\\(){}"

var (
	providerRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)
	uuidRe     = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	envVarRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,127}$`)
)

// ValidKeyVal reports whether v is acceptable as a submitted credential
// value. Control characters are checked as explicit code-point ranges
// (U+0000..U+001F and U+007F..U+009F) rather than a regex class, and
// invalid UTF-8 is rejected outright: a bare 0x80..0x9F byte must not
// sneak past the range check as a replacement rune.
func ValidKeyVal(v string) bool {
	if len(v) == 0 || len(v) > MaxKeyValLen {
		return false
	}
	for i := 0; i < len(v); {
		r, size := utf8.DecodeRuneInString(v[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if r <= 0x1f || (r >= 0x7f && r <= 0x9f) {
			return false
		}
		if strings.ContainsRune(rejectedChars, r) {
			return false
		}
		i += size
	}
	return true
}

// ValidProvider reports whether s is a safe provider slug. Slugs name
// per-provider config files, so anything that could traverse paths
// (uppercase, slashes, leading dots) is rejected.
func ValidProvider(s string) bool {
	return providerRe.MatchString(s)
}

// ValidEnvVar reports whether s is a well-formed environment variable name.
// Names become form field suffixes and JSON keys in credential files.
func ValidEnvVar(s string) bool {
	return envVarRe.MatchString(s)
}

// IsUUID reports whether s is a canonical lowercase 8-4-4-4-12 UUID.
func IsUUID(s string) bool {
	return uuidRe.MatchString(s)
}

// Esc HTML-escapes s for interpolation into element content and
// double-quoted attributes. Ampersand is replaced first so the other
// replacements are not double-escaped. Single quotes are left alone: the
// rendered markup never puts untrusted data inside single-quoted attributes.
func Esc(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return strings.ReplaceAll(s, `"`, "&quot;")
}
