package sqlstore

import "strings"

const redactedValue = "[REDACTED]"

// Key fragments whose values never reach the snapshot table.
var secretKeyFragments = []string{
	"authentication_value",
	"cavv",
	"payer_authentication",
	"pareq",
	"pares",
	"creq",
	"cres",
	"cvn",
	"app_key",
	"secret",
	"token",
}

func isPANKey(key string) bool {
	return key == "pan" || strings.Contains(key, "card_number")
}

// RedactDetails returns a copy of details safe to persist. Cryptograms,
// payer authentication payloads and credentials are replaced; card numbers
// are truncated to their last four digits. Nested maps and slices are
// walked.
func RedactDetails(details map[string]any) map[string]any {
	out := make(map[string]any, len(details))
	for key, value := range details {
		out[key] = redactEntry(strings.ToLower(strings.TrimSpace(key)), value)
	}
	return out
}

func redactEntry(key string, value any) any {
	switch {
	case key == "":
	case containsAny(key, secretKeyFragments):
		return redactedValue
	case isPANKey(key):
		return truncatePAN(value)
	}
	switch typed := value.(type) {
	case map[string]any:
		return RedactDetails(typed)
	case []any:
		items := make([]any, len(typed))
		for index, item := range typed {
			items[index] = redactEntry("", item)
		}
		return items
	default:
		return value
	}
}

func truncatePAN(value any) any {
	pan, ok := value.(string)
	if !ok {
		return redactedValue
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, pan)
	if len(digits) < 12 {
		return redactedValue
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

func containsAny(key string, fragments []string) bool {
	for _, fragment := range fragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}
