package application

import (
	"strings"
	"unicode/utf8"

	"visitor-tracker/visitlog/domain"
)

// urlChars são os caracteres que sobrevivem à sanitização do referrer,
// além de letras e dígitos ASCII.
const urlChars = "$-_.+!*'(),{}|\\^~[]`<>#%\";/?:@&="

var userAgentReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// SanitizeUserAgent escapa & < > " e ' como entidades HTML.
// UTF-8 inválido vira string vazia.
func SanitizeUserAgent(ua string) string {
	if !utf8.ValidString(ua) {
		return ""
	}
	return userAgentReplacer.Replace(ua)
}

// SanitizeReferrer remove todo byte fora do conjunto permitido em URLs.
// Referer ausente vira domain.DirectAccess.
func SanitizeReferrer(ref string) string {
	if ref == "" {
		return domain.DirectAccess
	}
	var b strings.Builder
	b.Grow(len(ref))
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		if isURLChar(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isURLChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte(urlChars, c) >= 0
}
