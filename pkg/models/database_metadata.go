package models

import (
	"fmt"

	"github.com/ekaya-inc/grepdb/pkg/apperrors"
)

// DatabaseMetadata groups the tables of one database in discovery order.
type DatabaseMetadata struct {
	DatabaseName string

	tables []*TableMetadata
	byName map[string]*TableMetadata
}

// NewDatabaseMetadata builds a DatabaseMetadata. Duplicate table names keep the first entry.
func NewDatabaseMetadata(name string, tables []*TableMetadata) *DatabaseMetadata {
	d := &DatabaseMetadata{
		DatabaseName: name,
		byName:       make(map[string]*TableMetadata, len(tables)),
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		if _, exists := d.byName[t.TableName]; exists {
			continue
		}
		d.tables = append(d.tables, t)
		d.byName[t.TableName] = t
	}
	return d
}

// Tables returns the tables in discovery order.
func (d *DatabaseMetadata) Tables() []*TableMetadata {
	out := make([]*TableMetadata, len(d.tables))
	copy(out, d.tables)
	return out
}

// Table returns the named table.
func (d *DatabaseMetadata) Table(name string) (*TableMetadata, error) {
	if t, ok := d.byName[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("table %q in database %q: %w", name, d.DatabaseName, apperrors.ErrNotFound)
}

// ServerMetadata groups the databases reachable on one host.
type ServerMetadata struct {
	Host string

	databases []*DatabaseMetadata
	byName    map[string]*DatabaseMetadata
}

// NewServerMetadata builds a ServerMetadata. Duplicate database names keep the first entry.
func NewServerMetadata(host string, databases []*DatabaseMetadata) *ServerMetadata {
	s := &ServerMetadata{
		Host:   host,
		byName: make(map[string]*DatabaseMetadata, len(databases)),
	}
	for _, d := range databases {
		if d == nil {
			continue
		}
		if _, exists := s.byName[d.DatabaseName]; exists {
			continue
		}
		s.databases = append(s.databases, d)
		s.byName[d.DatabaseName] = d
	}
	return s
}

// Databases returns the databases in discovery order.
func (s *ServerMetadata) Databases() []*DatabaseMetadata {
	out := make([]*DatabaseMetadata, len(s.databases))
	copy(out, s.databases)
	return out
}

// Database returns the named database.
func (s *ServerMetadata) Database(name string) (*DatabaseMetadata, error) {
	if d, ok := s.byName[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("database %q on %q: %w", name, s.Host, apperrors.ErrNotFound)
}
