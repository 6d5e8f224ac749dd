package interfaces

import (
	"context"

	"github.com/hyperterse/tablescope/core/domain"
)

// ConnectResult is returned by a successful connect or reconnect.
type ConnectResult struct {
	SessionID string                   `json:"session_id"`
	Tables    []domain.TableDescriptor `json:"tables"`
	Kind      domain.BackendKind       `json:"db_type"`
	Database  string                   `json:"database"`
}

// CacheStatus summarizes the cached entries of one session.
type CacheStatus struct {
	SessionID  string            `json:"session_id"`
	TotalKeys  int               `json:"total_keys"`
	Categories map[string]int    `json:"categories"`
	Store      map[string]string `json:"store,omitempty"`
}

// BrowserService is the session-scoped browsing API consumed by transports.
type BrowserService interface {
	Connect(ctx context.Context, desc domain.ConnectionDescriptor) (*ConnectResult, error)
	Reconnect(ctx context.Context, token string) (*ConnectResult, error)
	Disconnect(ctx context.Context, token string) (int64, error)
	ConnectionInfo(ctx context.Context, token string) (*domain.ConnectionDescriptor, error)
	Sessions(ctx context.Context) ([]string, error)
	DropSession(ctx context.Context, token string) (bool, error)

	Tables(ctx context.Context, token string) ([]domain.TableDescriptor, error)
	Columns(ctx context.Context, token, table string) ([]domain.ColumnDescriptor, error)
	Count(ctx context.Context, token, table string) (int64, error)
	Preview(ctx context.Context, token, table string) ([]domain.Record, error)
	Records(ctx context.Context, token string, req domain.PageRequest) (*domain.PageResult, error)
	Record(ctx context.Context, token, table, id string) (domain.Record, error)

	CreateRecord(ctx context.Context, token, table string, data domain.Record) (string, error)
	UpdateRecord(ctx context.Context, token, table, id, column string, value any) (bool, error)
	DeleteRecord(ctx context.Context, token, table, id string) (bool, error)
	BulkDelete(ctx context.Context, token, table string, ids []string) (int64, error)

	CacheStatus(ctx context.Context, token string) (*CacheStatus, error)
	ClearSessionCache(ctx context.Context, token string) (int64, error)
	ClearTableCache(ctx context.Context, token, table string) (int64, error)
	Health(ctx context.Context) error
	CacheStats(ctx context.Context) (map[string]string, error)
	Reap(ctx context.Context) (int, error)
}
