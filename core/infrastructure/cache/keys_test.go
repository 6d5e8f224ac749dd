package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnSetHashIsOrderIndependent(t *testing.T) {
	a := SelectedKey("s1", "users", []string{"name", "email", "id"}, 2, 25)
	b := SelectedKey("s1", "users", []string{"id", "name", "email"}, 2, 25)
	c := SelectedKey("s1", "users", []string{"email", "id", "name", "id"}, 2, 25)
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)

	assert.NotEqual(t, a, SelectedKey("s1", "users", []string{"name", "email"}, 2, 25))
	assert.NotEqual(t, a, SelectedKey("s1", "users", []string{"name", "email", "id"}, 3, 25))
	assert.NotEqual(t,
		ColumnSetHash([]string{"ab", "c"}),
		ColumnSetHash([]string{"a", "bc"}),
	)
	assert.Len(t, ColumnSetHash([]string{"x"}), 32)
}

func TestKeyLayout(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"connection", ConnectionKey("s1"), "connection:s1"},
		{"tables", TablesKey("s1"), "s1:all_tables"},
		{"schema", SchemaKey("s1", "users"), "s1:table:users:schema"},
		{"count", CountKey("s1", "users"), "s1:table:users:count"},
		{"records", RecordsKey("s1", "users", 3, 50), "s1:table:users:records:page:3:size:50"},
		{"record", RecordKey("s1", "users", "42"), "s1:table:users:record:42"},
		{"preview", PreviewKey("s1", "users"), "s1:table:users:preview"},
		{"schema qualified", CountKey("s1", "sales.orders"), "s1:table:sales.orders:count"},
		{"escaped separator", CountKey("s1", "odd:name"), "s1:table:odd%3Aname:count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestTablePrefixesDoNotOverlap(t *testing.T) {
	orders := TablePrefix("s1", "orders")
	assert.False(t, strings.HasPrefix(CountKey("s1", "orders:archive"), orders))
	assert.False(t, strings.HasPrefix(CountKey("s1", "orders_archive"), orders))
	assert.True(t, strings.HasPrefix(RecordKey("s1", "orders", "1"), orders))
}

func TestCategory(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{TablesKey("s1"), CategoryTables},
		{SchemaKey("s1", "t"), CategorySchema},
		{CountKey("s1", "t"), CategoryCount},
		{RecordsKey("s1", "t", 1, 10), CategoryRecords},
		{SelectedKey("s1", "t", []string{"a"}, 1, 10), CategorySelected},
		{RecordKey("s1", "t", "9"), CategoryRecord},
		{PreviewKey("s1", "t"), CategoryPreview},
		{"s1:something-else", CategoryOther},
		{ConnectionKey("s1"), CategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Category("s1", tt.key), tt.key)
	}
}
