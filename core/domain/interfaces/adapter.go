package interfaces

import (
	"context"

	"github.com/hyperterse/tablescope/core/domain"
)

// Adapter is the contract every backend implementation satisfies. An adapter
// is owned by one request: it is connected, used, and closed before the
// request returns.
type Adapter interface {
	Kind() domain.BackendKind

	// Connect opens the backend session. Failures are ConnectFailed.
	Connect(ctx context.Context, desc domain.ConnectionDescriptor) error

	ListTables(ctx context.Context) ([]domain.TableDescriptor, error)

	ListColumns(ctx context.Context, table string) ([]domain.ColumnDescriptor, error)

	RecordCount(ctx context.Context, table string) (int64, error)

	FirstNRecords(ctx context.Context, table string, n int) ([]domain.Record, error)

	// Paginate validates the table and projection, counts, then walks the
	// backend's pagination strategies until one succeeds.
	Paginate(ctx context.Context, req domain.PageRequest) (*domain.PageResult, error)

	// GetByID returns nil, nil when no row matches.
	GetByID(ctx context.Context, table, id string) (domain.Record, error)

	Insert(ctx context.Context, table string, data domain.Record) (string, error)

	// Update returns false when no row was affected.
	Update(ctx context.Context, table, id, column string, value any) (bool, error)

	Delete(ctx context.Context, table, id string) (bool, error)

	BulkDelete(ctx context.Context, table string, ids []string) (int64, error)

	// Close releases backend resources. It is idempotent and safe to call on
	// an adapter that never connected.
	Close() error
}

// AdapterOpener builds and connects an adapter for a descriptor.
type AdapterOpener func(ctx context.Context, desc domain.ConnectionDescriptor) (Adapter, error)
