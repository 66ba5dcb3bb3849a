package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMappingNotFound is returned when no row matches a lookup.
var ErrMappingNotFound = errors.New("mapping not found")

const mappingColumns = `id, source_family, source_package, target_family, target_package, confidence, origin, updated_at`

// UpsertMapping inserts m or replaces the target and confidence of the row
// sharing its (source_family, source_package, target_family) key.
func (s *Store) UpsertMapping(m *Mapping) error {
	query := `
		INSERT INTO package_mappings
		(source_family, source_package, target_family, target_package, confidence, origin, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_family, source_package, target_family) DO UPDATE SET
			target_package = excluded.target_package,
			confidence = excluded.confidence,
			origin = excluded.origin,
			updated_at = excluded.updated_at
	`

	_, err := s.db.Exec(query,
		m.SourceFamily,
		m.SourcePackage,
		m.TargetFamily,
		m.TargetPackage,
		m.Confidence,
		originOrDefault(m.Origin),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mapping %s:%s -> %s: %w",
			m.SourceFamily, m.SourcePackage, m.TargetFamily, classify(err))
	}
	return nil
}

// SeedMappings inserts every mapping whose key is not present yet, in a
// single transaction. Existing rows, including operator corrections, are left
// untouched. It returns the number of rows inserted.
func (s *Store) SeedMappings(mappings []Mapping) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO package_mappings
		(source_family, source_package, target_family, target_package, confidence, origin, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare seed statement: %w", classify(err))
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, m := range mappings {
		res, err := stmt.Exec(m.SourceFamily, m.SourcePackage, m.TargetFamily, m.TargetPackage,
			m.Confidence, originOrDefault(m.Origin), now)
		if err != nil {
			return 0, fmt.Errorf("failed to seed mapping %s:%s: %w", m.SourceFamily, m.SourcePackage, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}
	return inserted, nil
}

// LookupMapping returns the highest-confidence mapping for a source package.
func (s *Store) LookupMapping(sourceFamily, sourcePackage, targetFamily string) (*Mapping, error) {
	query := `SELECT ` + mappingColumns + `
		FROM package_mappings
		WHERE source_family = ? AND source_package = ? AND target_family = ?
		ORDER BY confidence DESC, id ASC
		LIMIT 1
	`
	m, err := scanMapping(s.db.QueryRow(query, sourceFamily, sourcePackage, targetFamily))
	if err == sql.ErrNoRows {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s:%s: %w", sourceFamily, sourcePackage, classify(err))
	}
	return m, nil
}

// SearchMappings returns the first row in targetFamily whose source or
// target package name contains pattern. Matches are ordered by confidence,
// then insertion order.
func (s *Store) SearchMappings(targetFamily, pattern string) (*Mapping, error) {
	like := "%" + escapeLike(pattern) + "%"
	query := `SELECT ` + mappingColumns + `
		FROM package_mappings
		WHERE target_family = ?
		  AND (source_package LIKE ? ESCAPE '\' OR target_package LIKE ? ESCAPE '\')
		ORDER BY confidence DESC, id ASC
		LIMIT 1
	`
	m, err := scanMapping(s.db.QueryRow(query, targetFamily, like, like))
	if err == sql.ErrNoRows {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search mappings for %q: %w", pattern, classify(err))
	}
	return m, nil
}

// ListMappings returns every mapping for a family pair ordered by source package.
func (s *Store) ListMappings(sourceFamily, targetFamily string) ([]*Mapping, error) {
	query := `SELECT ` + mappingColumns + `
		FROM package_mappings
		WHERE source_family = ? AND target_family = ?
		ORDER BY source_package, confidence DESC
	`
	rows, err := s.db.Query(query, sourceFamily, targetFamily)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", classify(err))
	}
	defer rows.Close()

	var mappings []*Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}
	return mappings, nil
}

// CountMappings returns the number of rows in the table.
func (s *Store) CountMappings() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM package_mappings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count mappings: %w", classify(err))
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (*Mapping, error) {
	var m Mapping
	var origin, updatedAt string
	err := row.Scan(
		&m.ID,
		&m.SourceFamily,
		&m.SourcePackage,
		&m.TargetFamily,
		&m.TargetPackage,
		&m.Confidence,
		&origin,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Origin = Origin(origin)
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		m.UpdatedAt = t
	}
	return &m, nil
}

func originOrDefault(o Origin) string {
	if o == "" {
		return string(OriginSeed)
	}
	return string(o)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
