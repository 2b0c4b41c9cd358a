package skills

import (
	"regexp"
	"strconv"
	"strings"
)

var digitsPattern = regexp.MustCompile(`^\d+$`)

// parseKeyValueArgs extracts key=value tokens from s. Values may be quoted
// with ' or "; integers and booleans are converted.
func parseKeyValueArgs(s string) map[string]any {
	out := map[string]any{}

	var (
		tokens  []string
		current strings.Builder
		quote   rune
	)
	flush := func() {
		if t := strings.TrimSpace(current.String()); t != "" {
			tokens = append(tokens, t)
		}
		current.Reset()
	}
	for _, ch := range s {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				current.WriteRune(ch)
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == ' ':
			flush()
		default:
			current.WriteRune(ch)
		}
	}
	flush()

	for _, token := range tokens {
		key, raw, ok := strings.Cut(token, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		raw = strings.TrimSpace(raw)
		switch {
		case digitsPattern.MatchString(raw):
			if n, err := strconv.Atoi(raw); err == nil {
				out[key] = n
				continue
			}
			out[key] = raw
		case raw == "true":
			out[key] = true
		case raw == "false":
			out[key] = false
		default:
			out[key] = raw
		}
	}
	return out
}
