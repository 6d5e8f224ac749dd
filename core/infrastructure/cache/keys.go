package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Key categories inside a table namespace.
const (
	CategoryTables   = "tables"
	CategorySchema   = "schema"
	CategoryCount    = "count"
	CategoryRecords  = "records"
	CategorySelected = "selected"
	CategoryRecord   = "record"
	CategoryPreview  = "preview"
	CategoryOther    = "other"
)

const connectionPrefix = "connection:"

// TTLs for each key family.
type TTLs struct {
	Connection time.Duration
	Tables     time.Duration
	Schema     time.Duration
	Count      time.Duration
	Records    time.Duration
	Record     time.Duration
	Preview    time.Duration
}

// DefaultTTLs mirrors the lifetimes the browsing UI was tuned against.
func DefaultTTLs() TTLs {
	return TTLs{
		Connection: time.Hour,
		Tables:     time.Hour,
		Schema:     time.Hour,
		Count:      30 * time.Minute,
		Records:    30 * time.Minute,
		Record:     30 * time.Minute,
		Preview:    5 * time.Minute,
	}
}

var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// escapeSegment keeps user-controlled key segments from containing the ':'
// separator, so one table's prefix can never be a prefix of another's.
func escapeSegment(s string) string {
	return segmentEscaper.Replace(s)
}

// ConnectionPrefix is the namespace of stored session descriptors.
func ConnectionPrefix() string { return connectionPrefix }

// ConnectionKey stores the descriptor for a session.
func ConnectionKey(sid string) string { return connectionPrefix + sid }

// SessionPrefix covers every derived entry of a session.
func SessionPrefix(sid string) string { return sid + ":" }

// TablesKey holds the table list of a session.
func TablesKey(sid string) string { return SessionPrefix(sid) + "all_tables" }

// TablePrefix covers every entry derived from one table.
func TablePrefix(sid, table string) string {
	return SessionPrefix(sid) + "table:" + escapeSegment(table) + ":"
}

func SchemaKey(sid, table string) string  { return TablePrefix(sid, table) + CategorySchema }
func CountKey(sid, table string) string   { return TablePrefix(sid, table) + CategoryCount }
func PreviewKey(sid, table string) string { return TablePrefix(sid, table) + CategoryPreview }

func RecordsKey(sid, table string, page, size int) string {
	return TablePrefix(sid, table) + fmt.Sprintf("records:page:%d:size:%d", page, size)
}

func SelectedKey(sid, table string, columns []string, page, size int) string {
	return TablePrefix(sid, table) + fmt.Sprintf("selected:%s:page:%d:size:%d", ColumnSetHash(columns), page, size)
}

func RecordKey(sid, table, id string) string {
	return TablePrefix(sid, table) + "record:" + escapeSegment(id)
}

// ColumnSetHash is an order-independent content hash of a column selection.
// Names are de-duplicated, sorted and joined on the unit separator, which
// cannot appear in a quoted identifier.
func ColumnSetHash(columns []string) string {
	set := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		set[c] = struct{}{}
	}
	sorted := make([]string, 0, len(set))
	for c := range set {
		sorted = append(sorted, c)
	}
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x1f")))
	return hex.EncodeToString(sum[:16])
}

// Category classifies a key inside a session namespace.
func Category(sid, key string) string {
	rest, ok := strings.CutPrefix(key, SessionPrefix(sid))
	if !ok {
		return CategoryOther
	}
	if rest == "all_tables" {
		return CategoryTables
	}
	rest, ok = strings.CutPrefix(rest, "table:")
	if !ok {
		return CategoryOther
	}
	_, variant, ok := strings.Cut(rest, ":")
	if !ok {
		return CategoryOther
	}
	kind, _, _ := strings.Cut(variant, ":")
	switch kind {
	case CategorySchema, CategoryCount, CategoryRecords, CategorySelected, CategoryRecord, CategoryPreview:
		return kind
	}
	return CategoryOther
}
