package internal

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool used by the repositories.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var identRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.Trim(part, " \"")
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}
	if len(clean) == 0 {
		clean = []string{name}
	}
	return pgx.Identifier(clean).Sanitize()
}

// checkedIdentifier quotes a single identifier after validating its characters.
func checkedIdentifier(name string) (string, error) {
	if !identRegex.MatchString(name) {
		return "", fmt.Errorf("invalid SQL identifier: %q", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
