package gallery

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxNameRunes = 60

// SanitizeName reduces a requested base name to the characters the service
// accepts: letters, digits, '-' and '_', at most 60 runes. A trailing ext
// typed by the user is dropped because the service keeps the original one.
func SanitizeName(requested, ext string) string {
	requested = norm.NFC.String(strings.TrimSpace(requested))
	if ext != "" && strings.HasSuffix(strings.ToLower(requested), strings.ToLower(ext)) {
		requested = requested[:len(requested)-len(ext)]
	}
	var b strings.Builder
	count := 0
	for _, r := range requested {
		if count == maxNameRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '_' {
			b.WriteRune(r)
			count++
		}
	}
	return b.String()
}

// TargetName returns the file name a rename of name to requested produces,
// or "" when nothing valid remains.
func TargetName(name, requested string) string {
	ext := path.Ext(name)
	safe := SanitizeName(requested, ext)
	if safe == "" {
		return ""
	}
	return safe + ext
}
