package menu

import (
	"fmt"
	"net/mail"
	"strings"
)

// RecipientError reports an address that does not parse.
type RecipientError struct {
	Address string
	Err     error
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("menu: invalid recipient %q: %v", e.Address, e.Err)
}

func (e *RecipientError) Unwrap() error { return e.Err }

// ValidateRecipients trims, validates and de-duplicates addresses.
// Entries may also be comma, semicolon or newline separated lists.
func ValidateRecipients(in []string) ([]string, error) {
	seen := make(map[string]bool)
	out := []string{}
	for _, entry := range in {
		for _, raw := range strings.FieldsFunc(entry, func(r rune) bool { return r == ',' || r == '\n' || r == ';' }) {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			addr, err := mail.ParseAddress(raw)
			if err != nil {
				return nil, &RecipientError{Address: raw, Err: err}
			}
			key := strings.ToLower(addr.Address)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, addr.Address)
		}
	}
	return out, nil
}
