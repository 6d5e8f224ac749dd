package adapters

import (
	"context"
	"time"

	"github.com/hyperterse/tablescope/core/domain"
	"github.com/hyperterse/tablescope/core/domain/interfaces"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

// DefaultConnectTimeout bounds a single connect attempt.
const DefaultConnectTimeout = 10 * time.Second

// Options tune every adapter the factory builds.
type Options struct {
	ConnectTimeout time.Duration
	// QueryLogging logs generated SQL at debug level. Bind values are never logged.
	QueryLogging bool
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	return o
}

// New builds an unconnected adapter for kind.
func New(kind domain.BackendKind, opts Options) (interfaces.Adapter, error) {
	switch kind {
	case domain.KindPostgres:
		return newSQLAdapter(postgresDialect{}, opts), nil
	case domain.KindMySQL:
		return newSQLAdapter(mysqlDialect{}, opts), nil
	case domain.KindMSSQL:
		return newSQLAdapter(mssqlDialect{}, opts), nil
	case domain.KindOracle:
		return newSQLAdapter(oracleDialect{}, opts), nil
	case domain.KindSQLite:
		return newSQLAdapter(sqliteDialect{}, opts), nil
	case domain.KindMongoDB:
		return newMongoAdapter(opts), nil
	default:
		return nil, apperrors.ValidationFailed("unsupported database type '%s'", kind)
	}
}

// Open builds and connects an adapter. The adapter is closed again when the
// connect fails.
func Open(ctx context.Context, desc domain.ConnectionDescriptor, opts Options) (interfaces.Adapter, error) {
	desc = desc.Normalize()
	a, err := New(desc.Kind, opts)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, desc); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Opener binds opts into an interfaces.AdapterOpener.
func Opener(opts Options) interfaces.AdapterOpener {
	return func(ctx context.Context, desc domain.ConnectionDescriptor) (interfaces.Adapter, error) {
		return Open(ctx, desc, opts)
	}
}
