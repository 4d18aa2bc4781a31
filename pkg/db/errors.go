package db

import "strings"

// IsUniqueViolation reports whether err is a unique constraint violation on
// Postgres or SQLite. With no targets any unique violation matches. Otherwise
// the message must also name one of the targets: Postgres reports the
// constraint name, SQLite reports "table.column" for the indexed columns.
func IsUniqueViolation(err error, targets ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if len(targets) == 0 {
		return true
	}
	for _, target := range targets {
		if target != "" && containsTarget(msg, target) {
			return true
		}
	}
	return false
}

// containsTarget matches whole identifiers so transaction_records.plate does
// not match transaction_records.plate_region.
func containsTarget(msg, target string) bool {
	for rest := msg; ; {
		i := strings.Index(rest, target)
		if i < 0 {
			return false
		}
		end := i + len(target)
		if end == len(rest) || !isIdentByte(rest[end]) {
			if i == 0 || !isIdentByte(rest[i-1]) {
				return true
			}
		}
		rest = rest[end:]
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '.' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}
