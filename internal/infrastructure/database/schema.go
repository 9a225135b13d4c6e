package database

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Schema filename parsing constants.
const (
	// schemaFilenameParts is the number of parts in a schema filename.
	// Format: NNN_table.sql (2 parts when split once by "_")
	schemaFilenameParts = 2

	// schemaFileExt is the extension of schema files.
	schemaFileExt = ".sql"
)

// identifierPattern restricts table names taken from filenames, since they
// are spliced into DROP TABLE statements.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Table is the DDL for one table of a schema.
type Table struct {
	// Order is the creation position (the NNN prefix of the filename).
	Order int

	// Name is the table name (the rest of the filename).
	Name string

	// Statements are the DDL statements that create the table and its indexes.
	Statements []string
}

// Schema is a set of table definitions, one directory per dialect family.
//
// Layout of the filesystem:
//
//	sqlite/001_users.sql
//	sqlite/002_stocks.sql
//	postgres/001_users.sql
//	...
//
// Each file creates one table (with IF NOT EXISTS) plus its indexes.
// Tables are created in ascending order and dropped in descending order,
// so a table must sort after every table it references.
type Schema struct {
	fsys fs.FS
}

// NewSchema wraps a filesystem (typically an embed.FS) holding schema files.
func NewSchema(fsys fs.FS) *Schema {
	return &Schema{fsys: fsys}
}

// Tables returns the tables for a dialect family in creation order.
func (s *Schema) Tables(family string) ([]Table, error) {
	if s == nil || s.fsys == nil {
		return nil, fmt.Errorf("%w: no schema", ErrInvalidSchema)
	}

	entries, err := fs.ReadDir(s.fsys, family)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidSchema, family, err)
	}

	seen := make(map[int]string)
	var tables []Table
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), schemaFileExt) {
			continue
		}

		order, name, err := parseSchemaFilename(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[order]; dup {
			return nil, fmt.Errorf("%w: %s and %s share order %d", ErrInvalidSchema, prev, entry.Name(), order)
		}
		seen[order] = entry.Name()

		data, err := fs.ReadFile(s.fsys, path.Join(family, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		stmts := splitStatements(string(data))
		if len(stmts) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalidSchema, entry.Name())
		}
		tables = append(tables, Table{Order: order, Name: name, Statements: stmts})
	}

	sort.Slice(tables, func(i, j int) bool {
		return tables[i].Order < tables[j].Order
	})
	return tables, nil
}

// TableNames returns the table names for a dialect family in creation order.
func (s *Schema) TableNames(family string) ([]string, error) {
	tables, err := s.Tables(family)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names, nil
}

// parseSchemaFilename extracts order and table name.
// Example: "002_stocks.sql" -> 2, "stocks"
func parseSchemaFilename(filename string) (int, string, error) {
	base := strings.TrimSuffix(filename, schemaFileExt)
	parts := strings.SplitN(base, "_", schemaFilenameParts)
	if len(parts) != schemaFilenameParts {
		return 0, "", fmt.Errorf("%w: %s does not match NNN_table.sql", ErrInvalidSchema, filename)
	}

	order, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s has a non-numeric order", ErrInvalidSchema, filename)
	}
	if !identifierPattern.MatchString(parts[1]) {
		return 0, "", fmt.Errorf("%w: %s has an invalid table name", ErrInvalidSchema, filename)
	}
	return order, parts[1], nil
}

// splitStatements splits a DDL file on semicolons and drops "--" comment
// lines. Schema files must not contain semicolons inside literals.
func splitStatements(sql string) []string {
	var lines []string
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var stmts []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
