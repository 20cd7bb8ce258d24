package logger

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Field keys whose values identify a recipient.
var (
	addressKeys = map[string]bool{"email": true, "to": true, "recipient": true, "reply_to": true}
	nameKeys    = map[string]bool{"first_name": true, "last_name": true, "full_name": true}
)

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}

// RedactName keeps the first letter of a personal name.
func RedactName(name string) string {
	r := []rune(strings.TrimSpace(name))
	if len(r) == 0 {
		return ""
	}
	return string(r[0]) + "***"
}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if nameKeys[key] {
		return RedactName(val)
	}
	if addressKeys[key] || strings.HasSuffix(key, "_email") {
		return RedactEmail(val)
	}
	// Addresses embedded in free text, such as provider error messages.
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
