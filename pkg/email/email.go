package email

import (
	"strings"
	"unicode"
)

// Split breaks an address into its local part and domain. ok is false unless
// the address contains exactly one '@'.
func Split(address string) (local, domain string, ok bool) {
	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// HasDomain reports whether address ends in "@"+domain, ignoring case.
func HasDomain(address, domain string) bool {
	return strings.HasSuffix(strings.ToLower(address), "@"+strings.ToLower(domain))
}

// DisplayName turns a dotted local-part segment such as "mahaveer..k" into
// "Mahaveer K": dots become spaces, whitespace runs collapse, and each word is
// title-cased.
func DisplayName(segment string) string {
	words := strings.Fields(strings.ReplaceAll(segment, ".", " "))
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
