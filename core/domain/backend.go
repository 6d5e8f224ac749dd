package domain

import (
	"fmt"
	"strings"
)

// BackendKind identifies the database engine a session talks to.
type BackendKind string

const (
	KindPostgres BackendKind = "postgresql"
	KindMySQL    BackendKind = "mysql"
	KindMSSQL    BackendKind = "mssql"
	KindOracle   BackendKind = "oracle"
	KindSQLite   BackendKind = "sqlite"
	KindMongoDB  BackendKind = "mongodb"
)

// Paradigm is the data model family of a backend.
type Paradigm string

const (
	ParadigmRelational Paradigm = "relational"
	ParadigmDocument   Paradigm = "document"
)

var backendAliases = map[string]BackendKind{
	"postgresql": KindPostgres,
	"postgres":   KindPostgres,
	"pg":         KindPostgres,
	"mysql":      KindMySQL,
	"mariadb":    KindMySQL,
	"mssql":      KindMSSQL,
	"sqlserver":  KindMSSQL,
	"oracle":     KindOracle,
	"sqlite":     KindSQLite,
	"sqlite3":    KindSQLite,
	"mongodb":    KindMongoDB,
	"mongo":      KindMongoDB,
}

// AllBackendKinds lists every supported kind in a stable order.
func AllBackendKinds() []BackendKind {
	return []BackendKind{KindPostgres, KindMySQL, KindMSSQL, KindOracle, KindSQLite, KindMongoDB}
}

// ParseBackendKind accepts the canonical names plus common aliases, case-insensitively.
func ParseBackendKind(s string) (BackendKind, error) {
	kind, ok := backendAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
	return kind, nil
}

// Paradigm reports whether the backend is relational or document-oriented.
func (k BackendKind) Paradigm() Paradigm {
	if k == KindMongoDB {
		return ParadigmDocument
	}
	return ParadigmRelational
}

// DefaultPort is the conventional listening port, 0 for file-based engines.
func (k BackendKind) DefaultPort() int {
	switch k {
	case KindPostgres:
		return 5432
	case KindMySQL:
		return 3306
	case KindMSSQL:
		return 1433
	case KindOracle:
		return 1521
	case KindMongoDB:
		return 27017
	default:
		return 0
	}
}

func (k BackendKind) String() string {
	return string(k)
}
