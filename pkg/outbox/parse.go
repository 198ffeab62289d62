package outbox

import (
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

var identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseIdentifier turns "table" or "schema.table" into an identifier safe to
// interpolate after Sanitize.
func ParseIdentifier(s string) (pgx.Identifier, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ".")
	if s == "" || len(parts) > 2 {
		return nil, invalidConfig("invalid table %q (expected table or schema.table)", s)
	}
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if !identPart.MatchString(parts[i]) {
			return nil, invalidConfig("invalid table %q (bad part %q)", s, p)
		}
	}
	return pgx.Identifier(parts), nil
}
