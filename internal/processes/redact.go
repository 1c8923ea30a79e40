package processes

import "strings"

// Flags whose values must not end up in logs or process records.
var sensitiveFlags = map[string]struct{}{
	"--passphrase":        {},
	"--password":          {},
	"--mnemonic":          {},
	"--mnemonic-sentence": {},
	"--secret":            {},
	"--signing-key":       {},
	"--tls-key":           {},
	"--token":             {},
	"--api-key":           {},
}

// RedactArgs returns a copy of args with sensitive flag values redacted.
func RedactArgs(args []string) []string {
	redacted := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(name, "-") && isSensitiveFlag(name) {
			redacted = append(redacted, name+"=<redacted>")
			continue
		}

		redacted = append(redacted, arg)
		if isSensitiveFlag(arg) && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			redacted = append(redacted, "<redacted>")
			i++
		}
	}
	return redacted
}

func isSensitiveFlag(flag string) bool {
	_, ok := sensitiveFlags[strings.ToLower(strings.TrimSpace(flag))]
	return ok
}
