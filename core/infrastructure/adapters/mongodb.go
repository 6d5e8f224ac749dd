package adapters

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/hyperterse/tablescope/core/domain"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
	"github.com/hyperterse/tablescope/core/observability"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
	"github.com/hyperterse/tablescope/core/shared/redact"
)

const mongoNamespaceNotFound = 26

// mongoAdapter exposes collections as tables.
type mongoAdapter struct {
	opts   Options
	desc   domain.ConnectionDescriptor
	client *mongo.Client
	db     *mongo.Database
	known  map[string]bool
	log    logging.Logger
}

func newMongoAdapter(opts Options) *mongoAdapter {
	return &mongoAdapter{
		opts:  opts.withDefaults(),
		known: make(map[string]bool),
		log:   logging.New("adapter:mongodb"),
	}
}

func (m *mongoAdapter) Kind() domain.BackendKind { return domain.KindMongoDB }

// mongoURI builds a URI with an escaped password, or passes a full
// mongodb:// or mongodb+srv:// server value through untouched.
func mongoURI(desc domain.ConnectionDescriptor) string {
	if strings.HasPrefix(desc.Server, "mongodb://") || strings.HasPrefix(desc.Server, "mongodb+srv://") {
		return desc.Server
	}
	u := &url.URL{
		Scheme: "mongodb",
		Host:   desc.Server + ":" + strconv.Itoa(desc.EffectivePort()),
		Path:   "/",
	}
	if desc.User != "" {
		u.User = url.UserPassword(desc.User, desc.Password)
	}
	return u.String()
}

func (m *mongoAdapter) Connect(ctx context.Context, desc domain.ConnectionDescriptor) (err error) {
	ctx, done := track(ctx, string(domain.KindMongoDB), "connect")
	defer done(&err)

	desc = desc.Normalize()
	if err := desc.Validate(); err != nil {
		return apperrors.ValidationFailed("%s", err.Error())
	}
	m.desc = desc

	m.log.Debugf("Opening MongoDB connection to %s", desc)
	opts := mongoOptions.Client().
		ApplyURI(mongoURI(desc)).
		SetConnectTimeout(m.opts.ConnectTimeout).
		SetServerSelectionTimeout(m.opts.ConnectTimeout)
	client, err := mongo.Connect(opts)
	if err != nil {
		return apperrors.ConnectFailed("mongodb", errors.New(redact.Scrub(err.Error(), desc.Password)))
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return apperrors.ConnectFailed("mongodb", errors.New(redact.Scrub(err.Error(), desc.Password)))
	}

	m.client = client
	m.db = client.Database(desc.Database)
	m.log.Debugf("MongoDB connection opened successfully")
	return nil
}

func (m *mongoAdapter) ready() error {
	if m.db == nil {
		return apperrors.NewAppError(apperrors.ErrCodeInternalError, "adapter is not connected", nil)
	}
	return nil
}

func (m *mongoAdapter) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	code := classifyTransport(err)
	var cmdErr mongo.CommandError
	switch {
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		code = apperrors.ErrCodeConnectFailed
	case errors.As(err, &cmdErr) && cmdErr.Code == mongoNamespaceNotFound:
		code = apperrors.ErrCodeObjectNotFound
	}
	return wrapClassified("mongodb", op, code, err, m.desc.Password)
}

// collection validates that name exists before handing out a handle.
func (m *mongoAdapter) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.ValidationFailed("%s", domain.ErrEmptyTable.Error())
	}
	if !m.known[name] {
		names, err := m.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, apperrors.ObjectNotFound("collection", name)
		}
		m.known[name] = true
	}
	return m.db.Collection(name), nil
}

func (m *mongoAdapter) ListTables(ctx context.Context) (tables []domain.TableDescriptor, err error) {
	ctx, done := track(ctx, "mongodb", "list_tables")
	defer done(&err)
	if err := m.ready(); err != nil {
		return nil, err
	}
	names, err := m.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, m.fail("list collections", err)
	}
	sort.Strings(names)
	tables = make([]domain.TableDescriptor, 0, len(names))
	for _, n := range names {
		m.known[n] = true
		tables = append(tables, domain.TableDescriptor{Database: m.desc.Database, Table: n})
	}
	return tables, nil
}

func (m *mongoAdapter) ListColumns(ctx context.Context, table string) (cols []domain.ColumnDescriptor, err error) {
	ctx, done := track(ctx, "mongodb", "list_columns")
	defer done(&err)
	if err := m.ready(); err != nil {
		return nil, err
	}
	coll, err := m.collection(ctx, table)
	if err != nil {
		return nil, m.fail("describe collection", err)
	}
	var sample bson.D
	err = coll.FindOne(ctx, bson.D{}).Decode(&sample)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return flattenDocument(nil), nil
	}
	if err != nil {
		return nil, m.fail("describe collection", err)
	}
	return flattenDocument(sample), nil
}

func (m *mongoAdapter) RecordCount(ctx context.Context, table string) (n int64, err error) {
	ctx, done := track(ctx, "mongodb", "count")
	defer done(&err)
	if err := m.ready(); err != nil {
		return 0, err
	}
	coll, err := m.collection(ctx, table)
	if err != nil {
		return 0, m.fail("count", err)
	}
	n, err = coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, m.fail("count", err)
	}
	return n, nil
}

func (m *mongoAdapter) find(ctx context.Context, coll *mongo.Collection, projection bson.D, skip, limit int64) ([]domain.Record, error) {
	opts := mongoOptions.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit)
	if projection != nil {
		opts.SetProjection(projection)
	}
	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := make([]domain.Record, 0)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		records = append(records, bsonMToMap(doc))
	}
	return records, cursor.Err()
}

func (m *mongoAdapter) FirstNRecords(ctx context.Context, table string, n int) (records []domain.Record, err error) {
	ctx, done := track(ctx, "mongodb", "preview")
	defer done(&err)
	if err := m.ready(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = domain.PreviewSize
	}
	coll, err := m.collection(ctx, table)
	if err != nil {
		return nil, m.fail("preview", err)
	}
	records, err = m.find(ctx, coll, nil, 0, int64(n))
	if err != nil {
		return nil, m.fail("preview", err)
	}
	return records, nil
}

func (m *mongoAdapter) Paginate(ctx context.Context, req domain.PageRequest) (res *domain.PageResult, err error) {
	ctx, done := track(ctx, "mongodb", "paginate")
	defer done(&err)
	if err := m.ready(); err != nil {
		return nil, err
	}
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, apperrors.ValidationFailed("%s", err.Error())
	}
	coll, err := m.collection(ctx, req.Table)
	if err != nil {
		return nil, m.fail("paginate", err)
	}
	total, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, m.fail("paginate", err)
	}

	res = &domain.PageResult{
		Records:    []domain.Record{},
		TotalCount: total,
		TotalPages: domain.TotalPages(total, req.PageSize),
	}
	if int64(req.Offset()) >= total {
		return res, nil
	}
	records, err := m.find(ctx, coll, mongoProjection(req.Columns), int64(req.Offset()), int64(req.PageSize))
	observability.RecordPaginationAttempt(ctx, "mongodb", "skip_limit", err == nil)
	if err != nil {
		return nil, m.fail("paginate", err)
	}
	res.Records = records
	return res, nil
}

func idFilter(ids ...string) bson.D {
	var candidates bson.A
	for _, id := range ids {
		candidates = append(candidates, idCandidates(id)...)
	}
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: candidates}}}}
}

func (m *mongoAdapter) GetByID(ctx context.Context, table, id string) (rec domain.Record, err error) {
	ctx, done := track(ctx, "mongodb", "get")
	defer done(&err)
	if err := m.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.ValidationFailed("%s", domain.ErrEmptyRecordID.Error())
	}
	coll, err := m.collection(ctx, table)
	if err != nil {
		return nil, m.fail("get record", err)
	}
	var doc bson.M
	err = coll.FindOne(ctx, idFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, m.fail("get record", err)
	}
	return bsonMToMap(doc), nil
}

func (m *mongoAdapter) Insert(ctx context.Context, table string, data domain.Record) (id string, err error) {
	ctx, done := track(ctx, "mongodb", "insert")
	defer done(&err)
	if err := m.ready(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", apperrors.ValidationFailed("%s for collection '%s'", domain.ErrEmptyInsertValue.Error(), table)
	}
	coll, err := m.collection(ctx, table)
	if err != nil {
		return "", m.fail("insert", err)
	}
	res, err := coll.InsertOne(ctx, toBSON(data))
	if err != nil {
		return "", m.fail("insert", err)
	}
	return formatMongoID(res.InsertedID), nil
}

func (m *mongoAdapter) Update(ctx context.Context, table, id, column string, value any) (ok bool, err error) {
	ctx, done := track(ctx, "mongodb", "update")
	defer done(&err)
	if err := m.ready(); err != nil {
		return false, err
	}
	if strings.TrimSpace(id) == "" {
		return false, apperrors.ValidationFailed("%s", domain.ErrEmptyRecordID.Error())
	}
	if column == "_id" || !fieldPath.MatchString(column) {
		return false, apperrors.ValidationFailed("invalid field path '%s'", column)
	}
	coll, err := m.collection(ctx, table)
	if err != nil {
		return false, m.fail("update", err)
	}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: column, Value: toBSONValue(value)}}}}
	res, err := coll.UpdateOne(ctx, idFilter(id), update)
	if err != nil {
		return false, m.fail("update", err)
	}
	return res.MatchedCount > 0, nil
}

func (m *mongoAdapter) Delete(ctx context.Context, table, id string) (ok bool, err error) {
	ctx, done := track(ctx, "mongodb", "delete")
	defer done(&err)
	if err := m.ready(); err != nil {
		return false, err
	}
	if strings.TrimSpace(id) == "" {
		return false, apperrors.ValidationFailed("%s", domain.ErrEmptyRecordID.Error())
	}
	coll, err := m.collection(ctx, table)
	if err != nil {
		return false, m.fail("delete", err)
	}
	res, err := coll.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return false, m.fail("delete", err)
	}
	return res.DeletedCount > 0, nil
}

func (m *mongoAdapter) BulkDelete(ctx context.Context, table string, ids []string) (total int64, err error) {
	ctx, done := track(ctx, "mongodb", "bulk_delete")
	defer done(&err)
	if err := m.ready(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	coll, err := m.collection(ctx, table)
	if err != nil {
		return 0, m.fail("bulk delete", err)
	}
	for start := 0; start < len(ids); start += bulkDeleteChunk {
		end := min(start+bulkDeleteChunk, len(ids))
		res, err := coll.DeleteMany(ctx, idFilter(ids[start:end]...))
		if err != nil {
			return total, m.fail("bulk delete", err)
		}
		total += res.DeletedCount
	}
	return total, nil
}

// Close disconnects with a bounded timeout. It is idempotent.
func (m *mongoAdapter) Close() error {
	if m.client == nil {
		return nil
	}
	m.log.Debugf("Closing MongoDB connection")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.client.Disconnect(ctx)
	if err != nil {
		m.log.Errorf("Error closing MongoDB connection: %v", redact.Scrub(err.Error(), m.desc.Password))
	}
	m.client = nil
	m.db = nil
	return err
}
