package dto

import (
	"encoding/json"
	"fmt"

	"github.com/hyperterse/tablescope/core/domain"
)

// ConnectRequest is the body of POST /api/connect.
type ConnectRequest struct {
	Server   string `json:"server"`
	Database string `json:"database" validate:"required"`
	User     string `json:"user"`
	Password string `json:"password"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	DBType   string `json:"db_type" validate:"required"`
}

// Descriptor converts the request into a connection descriptor.
func (r ConnectRequest) Descriptor() domain.ConnectionDescriptor {
	return domain.ConnectionDescriptor{
		Server:   r.Server,
		Database: r.Database,
		User:     r.User,
		Password: r.Password,
		Port:     r.Port,
		Kind:     domain.BackendKind(r.DBType),
	}
}

type DisconnectResponse struct {
	Message             string `json:"message"`
	SessionID           string `json:"session_id"`
	CacheEntriesCleared int64  `json:"cache_entries_cleared"`
}

type ConnectionInfoResponse struct {
	SessionID string             `json:"session_id"`
	Server    string             `json:"server"`
	Database  string             `json:"database"`
	User      string             `json:"user"`
	Port      int                `json:"port"`
	DBType    domain.BackendKind `json:"db_type"`
}

type SessionsResponse struct {
	ActiveSessions []string `json:"active_sessions"`
}

type DropSessionResponse struct {
	Message           string `json:"message"`
	ConnectionDeleted bool   `json:"connection_deleted"`
}

type ColumnsResponse struct {
	Columns []domain.ColumnDescriptor `json:"columns"`
}

type SchemaResponse struct {
	TableName string                    `json:"table_name"`
	Columns   []domain.ColumnDescriptor `json:"columns"`
}

type CountResponse struct {
	Table string `json:"table"`
	Count int64  `json:"count"`
}

// RecordsResponse is one page. Columns is only set for projected reads.
type RecordsResponse struct {
	Table      string          `json:"table"`
	Columns    []string        `json:"columns,omitempty"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int64           `json:"total_count"`
	TotalPages int64           `json:"total_pages"`
	Records    []domain.Record `json:"records"`
}

type RecordResponse struct {
	Record   domain.Record `json:"record"`
	Table    string        `json:"table"`
	RecordID string        `json:"record_id"`
}

// CreateRecordRequest carries column name to value.
type CreateRecordRequest struct {
	Data map[string]any `json:"data" validate:"required,min=1"`
}

type CreateRecordResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	RecordID string `json:"record_id"`
}

// UpdateRecordRequest sets one column. Value may be null.
type UpdateRecordRequest struct {
	Column string `json:"column" validate:"required"`
	Value  any    `json:"value"`
}

// BulkDeleteRequest accepts ids as strings or numbers.
type BulkDeleteRequest struct {
	RecordIDs []any `json:"record_ids" validate:"required,min=1,dive,required"`
}

// IDs renders every id in its string form.
func (r BulkDeleteRequest) IDs() []string {
	out := make([]string, 0, len(r.RecordIDs))
	for _, id := range r.RecordIDs {
		switch v := id.(type) {
		case string:
			out = append(out, v)
		case json.Number:
			out = append(out, v.String())
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

type DeleteRecordResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deleted_count"`
}

type ClearCacheResponse struct {
	Message             string `json:"message"`
	CacheEntriesCleared int64  `json:"cache_entries_cleared"`
}
