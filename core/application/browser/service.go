package browser

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyperterse/tablescope/core/application/session"
	"github.com/hyperterse/tablescope/core/domain"
	"github.com/hyperterse/tablescope/core/domain/interfaces"
	"github.com/hyperterse/tablescope/core/infrastructure/cache"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
	"github.com/hyperterse/tablescope/core/observability"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

// Service orchestrates one request: resolve the session, consult the cache,
// and only then open an adapter. Adapters never outlive the call that opened
// them.
type Service struct {
	sessions *session.Registry
	cache    *cache.Layer
	open     interfaces.AdapterOpener
	ttl      cache.TTLs
	log      logging.Logger
}

var _ interfaces.BrowserService = (*Service)(nil)

// NewService wires a Service.
func NewService(sessions *session.Registry, layer *cache.Layer, open interfaces.AdapterOpener, ttl cache.TTLs) *Service {
	return &Service{
		sessions: sessions,
		cache:    layer,
		open:     open,
		ttl:      ttl,
		log:      logging.New("browser"),
	}
}

func (s *Service) span(ctx context.Context, op, token string) (context.Context, trace.Span) {
	return observability.StartSpan(ctx, "browser."+op,
		attribute.String(observability.AttrOperation, op),
		attribute.String(observability.AttrSessionPrefix, observability.SessionPrefix(token)),
	)
}

// withAdapter opens an adapter for desc, runs fn and closes the adapter on
// every path.
func (s *Service) withAdapter(ctx context.Context, desc domain.ConnectionDescriptor, fn func(interfaces.Adapter) error) error {
	a, err := s.open(ctx, desc)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			s.log.Warnf("Error closing %s adapter: %v", desc.Kind, cerr)
		}
	}()
	return fn(a)
}

// cached serves key from the cache, or resolves the session, loads through a
// fresh adapter and writes the result back. Cache faults never fail a read.
func cached[T any](ctx context.Context, s *Service, token, key string, ttl time.Duration, load func(interfaces.Adapter) (T, error)) (T, error) {
	var zero T
	desc, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return zero, err
	}

	var v T
	if s.cache.Get(ctx, key, &v) {
		return v, nil
	}

	err = s.withAdapter(ctx, *desc, func(a interfaces.Adapter) error {
		v, err = load(a)
		return err
	})
	if err != nil {
		return zero, err
	}
	s.cache.Remember(ctx, key, v, ttl)
	return v, nil
}

// write runs a mutating adapter call and invalidates the table namespace.
// Invalidation also runs when the call fails, since a partial write may
// already have reached the backend.
func write[T any](ctx context.Context, s *Service, token, table string, do func(interfaces.Adapter) (T, error)) (T, error) {
	var zero T
	desc, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return zero, err
	}
	if strings.TrimSpace(table) == "" {
		return zero, apperrors.ValidationFailed("%s", domain.ErrEmptyTable.Error())
	}

	var v T
	err = s.withAdapter(ctx, *desc, func(a interfaces.Adapter) error {
		v, err = do(a)
		return err
	})
	_, ierr := s.invalidate(ctx, cache.TablePrefix(token, table))
	if err != nil {
		if ierr != nil {
			s.log.Warnf("Invalidation after failed write on %s: %v", table, ierr)
		}
		return zero, err
	}
	if ierr != nil {
		return zero, ierr
	}
	return v, nil
}

func (s *Service) invalidate(ctx context.Context, prefix string) (int64, error) {
	n, err := s.cache.DeleteByPrefix(ctx, prefix)
	if err != nil {
		return n, apperrors.CacheError("cache invalidation", err)
	}
	observability.RecordInvalidation(ctx, n)
	return n, nil
}

// Connect validates desc by connecting and listing tables, then creates the
// session. No session exists when any step fails.
func (s *Service) Connect(ctx context.Context, desc domain.ConnectionDescriptor) (res *interfaces.ConnectResult, err error) {
	ctx, span := s.span(ctx, "connect", "")
	defer func() { observability.EndSpan(span, err) }()

	desc = desc.Normalize()
	if err := desc.Validate(); err != nil {
		return nil, apperrors.ValidationFailed("%s", err.Error())
	}

	var tables []domain.TableDescriptor
	err = s.withAdapter(ctx, desc, func(a interfaces.Adapter) error {
		tables, err = a.ListTables(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	token, err := s.sessions.Create(ctx, desc)
	if err != nil {
		return nil, err
	}
	s.cache.Remember(ctx, cache.TablesKey(token), tables, s.ttl.Tables)
	s.log.Infof("Session %s connected to %s", observability.SessionPrefix(token), desc)

	return &interfaces.ConnectResult{
		SessionID: token,
		Tables:    tables,
		Kind:      desc.Kind,
		Database:  desc.Database,
	}, nil
}

// Reconnect re-validates the stored descriptor, refreshes its lifetime and
// the cached table list.
func (s *Service) Reconnect(ctx context.Context, token string) (res *interfaces.ConnectResult, err error) {
	ctx, span := s.span(ctx, "reconnect", token)
	defer func() { observability.EndSpan(span, err) }()

	desc, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	var tables []domain.TableDescriptor
	err = s.withAdapter(ctx, *desc, func(a interfaces.Adapter) error {
		tables, err = a.ListTables(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Refresh(ctx, token, *desc); err != nil {
		return nil, err
	}
	s.cache.Remember(ctx, cache.TablesKey(token), tables, s.ttl.Tables)

	return &interfaces.ConnectResult{
		SessionID: token,
		Tables:    tables,
		Kind:      desc.Kind,
		Database:  desc.Database,
	}, nil
}

// Disconnect clears the session's cache namespace, then forgets the session.
func (s *Service) Disconnect(ctx context.Context, token string) (int64, error) {
	if _, err := s.sessions.Resolve(ctx, token); err != nil {
		return 0, err
	}
	n, err := s.invalidate(ctx, cache.SessionPrefix(token))
	if err != nil {
		return n, err
	}
	if _, err := s.sessions.Destroy(ctx, token); err != nil {
		return n, err
	}
	s.log.Infof("Session %s disconnected", observability.SessionPrefix(token))
	return n, nil
}

// ConnectionInfo returns the session's descriptor without its password.
func (s *Service) ConnectionInfo(ctx context.Context, token string) (*domain.ConnectionDescriptor, error) {
	desc, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	redacted := desc.Redacted()
	return &redacted, nil
}

func (s *Service) Sessions(ctx context.Context) ([]string, error) {
	return s.sessions.List(ctx)
}

// DropSession forgets a session without touching its cache namespace; the
// reaper collects that later.
func (s *Service) DropSession(ctx context.Context, token string) (bool, error) {
	return s.sessions.Destroy(ctx, token)
}

func (s *Service) Tables(ctx context.Context, token string) ([]domain.TableDescriptor, error) {
	return cached(ctx, s, token, cache.TablesKey(token), s.ttl.Tables,
		func(a interfaces.Adapter) ([]domain.TableDescriptor, error) {
			return a.ListTables(ctx)
		})
}

func (s *Service) Columns(ctx context.Context, token, table string) ([]domain.ColumnDescriptor, error) {
	if strings.TrimSpace(table) == "" {
		return nil, apperrors.ValidationFailed("%s", domain.ErrEmptyTable.Error())
	}
	return cached(ctx, s, token, cache.SchemaKey(token, table), s.ttl.Schema,
		func(a interfaces.Adapter) ([]domain.ColumnDescriptor, error) {
			return a.ListColumns(ctx, table)
		})
}

func (s *Service) Count(ctx context.Context, token, table string) (int64, error) {
	if strings.TrimSpace(table) == "" {
		return 0, apperrors.ValidationFailed("%s", domain.ErrEmptyTable.Error())
	}
	return cached(ctx, s, token, cache.CountKey(token, table), s.ttl.Count,
		func(a interfaces.Adapter) (int64, error) {
			return a.RecordCount(ctx, table)
		})
}

func (s *Service) Preview(ctx context.Context, token, table string) ([]domain.Record, error) {
	if strings.TrimSpace(table) == "" {
		return nil, apperrors.ValidationFailed("%s", domain.ErrEmptyTable.Error())
	}
	return cached(ctx, s, token, cache.PreviewKey(token, table), s.ttl.Preview,
		func(a interfaces.Adapter) ([]domain.Record, error) {
			return a.FirstNRecords(ctx, table, domain.PreviewSize)
		})
}

// Records pages through a table. A column projection is cached under its own
// key so it never aliases the unprojected page.
func (s *Service) Records(ctx context.Context, token string, req domain.PageRequest) (res *domain.PageResult, err error) {
	ctx, span := s.span(ctx, "records", token)
	defer func() { observability.EndSpan(span, err) }()

	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, apperrors.ValidationFailed("%s", err.Error())
	}
	key := cache.RecordsKey(token, req.Table, req.Page, req.PageSize)
	if req.Projected() {
		key = cache.SelectedKey(token, req.Table, req.Columns, req.Page, req.PageSize)
	}
	return cached(ctx, s, token, key, s.ttl.Records,
		func(a interfaces.Adapter) (*domain.PageResult, error) {
			return a.Paginate(ctx, req)
		})
}

// Record fetches one record. A missing record is ObjectNotFound and is never
// cached.
func (s *Service) Record(ctx context.Context, token, table, id string) (domain.Record, error) {
	if strings.TrimSpace(table) == "" {
		return nil, apperrors.ValidationFailed("%s", domain.ErrEmptyTable.Error())
	}
	desc, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	key := cache.RecordKey(token, table, id)
	var rec domain.Record
	if s.cache.Get(ctx, key, &rec) && rec != nil {
		return rec, nil
	}
	err = s.withAdapter(ctx, *desc, func(a interfaces.Adapter) error {
		rec, err = a.GetByID(ctx, table, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.ObjectNotFound("record", id)
	}
	s.cache.Remember(ctx, key, rec, s.ttl.Record)
	return rec, nil
}

func (s *Service) CreateRecord(ctx context.Context, token, table string, data domain.Record) (id string, err error) {
	ctx, span := s.span(ctx, "create_record", token)
	defer func() { observability.EndSpan(span, err) }()

	return write(ctx, s, token, table, func(a interfaces.Adapter) (string, error) {
		return a.Insert(ctx, table, data)
	})
}

func (s *Service) UpdateRecord(ctx context.Context, token, table, id, column string, value any) (ok bool, err error) {
	ctx, span := s.span(ctx, "update_record", token)
	defer func() { observability.EndSpan(span, err) }()

	return write(ctx, s, token, table, func(a interfaces.Adapter) (bool, error) {
		return a.Update(ctx, table, id, column, value)
	})
}

func (s *Service) DeleteRecord(ctx context.Context, token, table, id string) (ok bool, err error) {
	ctx, span := s.span(ctx, "delete_record", token)
	defer func() { observability.EndSpan(span, err) }()

	return write(ctx, s, token, table, func(a interfaces.Adapter) (bool, error) {
		return a.Delete(ctx, table, id)
	})
}

func (s *Service) BulkDelete(ctx context.Context, token, table string, ids []string) (n int64, err error) {
	ctx, span := s.span(ctx, "bulk_delete", token)
	defer func() { observability.EndSpan(span, err) }()

	return write(ctx, s, token, table, func(a interfaces.Adapter) (int64, error) {
		return a.BulkDelete(ctx, table, ids)
	})
}

// CacheStatus counts the session's cached entries per category.
func (s *Service) CacheStatus(ctx context.Context, token string) (*interfaces.CacheStatus, error) {
	if _, err := s.sessions.Resolve(ctx, token); err != nil {
		return nil, err
	}
	keys, err := s.cache.Keys(ctx, cache.SessionPrefix(token))
	if err != nil {
		return nil, apperrors.CacheError("cache status", err)
	}
	categories := map[string]int{
		cache.CategoryTables:   0,
		cache.CategorySchema:   0,
		cache.CategoryCount:    0,
		cache.CategoryRecords:  0,
		cache.CategorySelected: 0,
		cache.CategoryRecord:   0,
		cache.CategoryPreview:  0,
	}
	for _, k := range keys {
		categories[cache.Category(token, k)]++
	}
	return &interfaces.CacheStatus{
		SessionID:  token,
		TotalKeys:  len(keys),
		Categories: categories,
		Store:      s.cache.Stats(ctx),
	}, nil
}

// ClearSessionCache drops every derived entry; the session stays valid.
func (s *Service) ClearSessionCache(ctx context.Context, token string) (int64, error) {
	if _, err := s.sessions.Resolve(ctx, token); err != nil {
		return 0, err
	}
	return s.invalidate(ctx, cache.SessionPrefix(token))
}

func (s *Service) ClearTableCache(ctx context.Context, token, table string) (int64, error) {
	if _, err := s.sessions.Resolve(ctx, token); err != nil {
		return 0, err
	}
	if strings.TrimSpace(table) == "" {
		return 0, apperrors.ValidationFailed("%s", domain.ErrEmptyTable.Error())
	}
	return s.invalidate(ctx, cache.TablePrefix(token, table))
}

// Health reports whether the cache store answers.
func (s *Service) Health(ctx context.Context) error {
	if err := s.cache.Ping(ctx); err != nil {
		return apperrors.CacheError("cache ping", err)
	}
	return nil
}

// CacheStats describes the cache store. Stores without statistics yield an
// empty map.
func (s *Service) CacheStats(ctx context.Context) (map[string]string, error) {
	if err := s.Health(ctx); err != nil {
		return nil, err
	}
	stats := s.cache.Stats(ctx)
	if stats == nil {
		stats = map[string]string{}
	}
	return stats, nil
}

// Reap removes cache namespaces left behind by expired sessions.
func (s *Service) Reap(ctx context.Context) (int, error) {
	return s.sessions.Reap(ctx)
}
