package adapters

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/hyperterse/tablescope/core/domain"
)

var fieldPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

// toBSON converts a decoded JSON object into an ordered document. Keys are
// sorted so the stored field order is stable.
func toBSON(m map[string]any) bson.D {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := make(bson.D, 0, len(m))
	for _, k := range keys {
		result = append(result, bson.E{Key: k, Value: toBSONValue(m[k])})
	}
	return result
}

func toBSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if oid, ok := objectIDFromMap(val); ok {
			return oid
		}
		return toBSON(val)
	case []any:
		arr := make(bson.A, len(val))
		for i, item := range val {
			arr[i] = toBSONValue(item)
		}
		return arr
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}

func bsonMToMap(doc bson.M) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = bsonValueToAny(v)
	}
	return out
}

func bsonDToMap(doc bson.D) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for _, elem := range doc {
		out[elem.Key] = bsonValueToAny(elem.Value)
	}
	return out
}

func bsonValueToAny(v any) any {
	switch val := v.(type) {
	case bson.M:
		return bsonMToMap(val)
	case bson.D:
		return bsonDToMap(val)
	case bson.A:
		arr := make([]any, len(val))
		for i, item := range val {
			arr[i] = bsonValueToAny(item)
		}
		return arr
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time()
	case bson.Decimal128:
		return val.String()
	default:
		return v
	}
}

// objectIDFromMap recognizes the extended JSON form {"$oid": "..."}.
func objectIDFromMap(m map[string]any) (bson.ObjectID, bool) {
	if len(m) != 1 {
		return bson.ObjectID{}, false
	}
	s, ok := m["$oid"].(string)
	if !ok {
		return bson.ObjectID{}, false
	}
	oid, err := bson.ObjectIDFromHex(s)
	if err != nil {
		return bson.ObjectID{}, false
	}
	return oid, true
}

// idCandidates lists every _id value a client-supplied id string could mean.
func idCandidates(id string) bson.A {
	var out bson.A
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		out = append(out, oid)
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		out = append(out, n)
	}
	return append(out, id)
}

// formatMongoID renders a stored _id back into the string clients send.
func formatMongoID(v any) string {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func bsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bson.ObjectID:
		return "objectId"
	case string:
		return "string"
	case int32:
		return "int"
	case int64:
		return "long"
	case float64:
		return "double"
	case bool:
		return "bool"
	case bson.DateTime:
		return "date"
	case bson.Decimal128:
		return "decimal"
	case bson.Binary:
		return "binData"
	case bson.Timestamp:
		return "timestamp"
	case bson.A:
		return "array"
	case bson.D, bson.M:
		return "object"
	default:
		return "mixed"
	}
}

// flattenDocument describes one sampled document as dot-path columns with
// _id first.
func flattenDocument(doc bson.D) []domain.ColumnDescriptor {
	var cols []domain.ColumnDescriptor
	var walk func(prefix string, d bson.D)
	walk = func(prefix string, d bson.D) {
		for _, e := range d {
			path := e.Key
			if prefix != "" {
				path = prefix + "." + e.Key
			}
			if nested, ok := e.Value.(bson.D); ok && len(nested) > 0 {
				walk(path, nested)
				continue
			}
			typ := bsonTypeName(e.Value)
			cols = append(cols, domain.ColumnDescriptor{
				Name:            path,
				Type:            typ,
				FullType:        typ,
				Nullable:        path != "_id",
				IsPrimaryKey:    path == "_id",
				IsAutoIncrement: path == "_id",
			})
		}
	}
	walk("", doc)

	sort.SliceStable(cols, func(i, j int) bool {
		return cols[i].Name == "_id" && cols[j].Name != "_id"
	})
	if len(cols) == 0 || cols[0].Name != "_id" {
		cols = append([]domain.ColumnDescriptor{idColumn()}, cols...)
	}
	for i := range cols {
		cols[i].Finalize()
	}
	return cols
}

func idColumn() domain.ColumnDescriptor {
	return domain.ColumnDescriptor{Name: "_id", Type: "objectId", FullType: "objectId", IsPrimaryKey: true, IsAutoIncrement: true}
}

// mongoProjection keeps syntactically valid field paths and always includes
// _id. It returns nil when nothing beyond _id survives.
func mongoProjection(columns []string) bson.D {
	proj := bson.D{{Key: "_id", Value: 1}}
	seen := map[string]bool{"_id": true}
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if !fieldPath.MatchString(c) || seen[c] || strings.HasPrefix(c, "_id.") {
			continue
		}
		seen[c] = true
		proj = append(proj, bson.E{Key: c, Value: 1})
	}
	if len(proj) == 1 && !containsID(columns) {
		return nil
	}
	return proj
}

func containsID(columns []string) bool {
	for _, c := range columns {
		if strings.TrimSpace(c) == "_id" {
			return true
		}
	}
	return false
}
