package logger

import (
	"log/slog"
	"strings"
)

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"authorization",
	"api_key",
	"apikey",
	"api-key",
	"bearer",
	"cookie",
}

// safeKeys contain a sensitive pattern but only ever carry identifiers.
var safeKeys = map[string]bool{
	"token_type": true,
	"token_id":   true,
	"token_fp":   true,
	"key_id":     true,
	"api_key_id": true,
}

// apiKeyPrefix marks raw "<key_id>:<secret>" API key values.
const apiKeyPrefix = "sgak-"

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive masks recognizable credentials, then fully redacts
// non-empty strings under sensitive key names.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if masked, ok := maskCredential(strVal); ok {
			return slog.String(a.Key, masked)
		}
		if strVal != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// maskCredential recognizes bearer headers, JWTs and raw API keys.
func maskCredential(v string) (string, bool) {
	if rest, ok := cutPrefixFold(v, "Bearer "); ok {
		m, _ := maskCredential(rest)
		if m == rest {
			m = maskValue(rest, "")
		}
		return "Bearer " + m, true
	}
	if looksLikeJWT(v) {
		return maskValue(v, "eyJ"), true
	}
	if strings.HasPrefix(v, apiKeyPrefix) {
		if id, _, ok := strings.Cut(v, ":"); ok {
			return id + ":" + redactedValue, true
		}
	}
	return v, false
}

// looksLikeJWT reports whether v has the shape header.payload.signature
// with a base64url JSON header.
func looksLikeJWT(v string) bool {
	if !strings.HasPrefix(v, "eyJ") || strings.Count(v, ".") != 2 {
		return false
	}
	for _, part := range strings.Split(v, ".") {
		if part == "" {
			return false
		}
	}
	return true
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// maskValue partially masks a sensitive value, keeping prefix and hints.
// Format: prefix + first 3 chars + "..." + last 3 chars
func maskValue(value, prefix string) string {
	if len(value) <= len(prefix)+6 {
		return prefix + "***"
	}

	body := value[len(prefix):]
	return prefix + body[:3] + "..." + body[len(body)-3:]
}

// RedactString masks a credential-looking value before it is logged
// or printed. Other values are returned unchanged.
func RedactString(value string) string {
	masked, _ := maskCredential(value)
	return masked
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	if safeKeys[keyLower] {
		return false
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value appears to be a credential.
func IsSensitiveValue(value string) bool {
	_, ok := maskCredential(value)
	return ok
}
