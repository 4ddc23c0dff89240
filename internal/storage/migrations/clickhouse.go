package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
)

// ClickhouseExecer is satisfied by clickhouse driver.Conn.
type ClickhouseExecer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// RunClickhouseMigrations applies all embedded ClickHouse SQL files.
// The target database must already exist.
func RunClickhouseMigrations(ctx context.Context, conn ClickhouseExecer) error {
	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		return fmt.Errorf("read embedded clickhouse migrations: %w", err)
	}

	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		if err := validateNoSemicolonInStrings(string(data)); err != nil {
			return fmt.Errorf("validate migration %s: %w", file, err)
		}

		// ClickHouse driver doesn't support multiquery in Exec
		for _, stmt := range splitStatements(string(data)) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
	}

	return nil
}

// splitStatements splits SQL content into individual statements by semicolon.
//
// The splitter does not understand string literals, block comments or
// dollar-quoting. ClickHouse migrations must use -- comments only and keep
// semicolons out of string literals; validateNoSemicolonInStrings enforces
// the latter.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects SQL with a semicolon inside a
// single-quoted literal.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon found inside string literal at offset %d", i)
		}
	}
	return nil
}
