package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// TableDescriptor names a table or collection. Table is the display name and
// the only spelling the adapters accept back.
type TableDescriptor struct {
	Database string `json:"database"`
	Table    string `json:"table"`
}

// ColumnDescriptor is the backend-neutral view of one column.
type ColumnDescriptor struct {
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	FullType        string  `json:"full_type"`
	Nullable        bool    `json:"nullable"`
	Default         *string `json:"default"`
	IsPrimaryKey    bool    `json:"is_primary_key"`
	IsAutoIncrement bool    `json:"is_auto_increment"`
	MaxLength       *int    `json:"max_length"`
	Precision       *int    `json:"precision"`
	Scale           *int    `json:"scale"`
	Required        bool    `json:"required"`
}

// Finalize derives Type and the size annotations from FullType when the
// backend did not report them separately, and computes Required.
func (c *ColumnDescriptor) Finalize() {
	base, length, precision, scale := SplitType(c.FullType)
	if c.Type == "" {
		c.Type = base
	}
	if c.MaxLength == nil {
		c.MaxLength = length
	}
	if c.Precision == nil {
		c.Precision = precision
	}
	if c.Scale == nil {
		c.Scale = scale
	}
	c.Required = !c.Nullable && c.Default == nil && !c.IsAutoIncrement
}

var typeArgs = regexp.MustCompile(`^\s*([^(]*?)\s*\(\s*([^)]*)\)\s*(.*)$`)

var lengthTypes = map[string]bool{
	"char": true, "varchar": true, "nchar": true, "nvarchar": true,
	"character": true, "character varying": true, "varchar2": true, "nvarchar2": true,
	"binary": true, "varbinary": true, "raw": true, "bit varying": true,
}

// SplitType separates a declared type such as "varchar(255)" or
// "numeric(10,2) unsigned" into its lower-cased base name and size annotations.
func SplitType(full string) (base string, length, precision, scale *int) {
	full = strings.TrimSpace(full)
	m := typeArgs.FindStringSubmatch(full)
	if m == nil {
		return strings.ToLower(full), nil, nil, nil
	}
	base = strings.ToLower(strings.TrimSpace(m[1]))
	parts := strings.Split(m[2], ",")
	first, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		// enum('a','b'), set(...) and "max" lengths carry no numeric size
		return base, nil, nil, nil
	}
	if lengthTypes[base] {
		return base, &first, nil, nil
	}
	precision = &first
	if len(parts) > 1 {
		if s, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			scale = &s
		}
	}
	return base, nil, precision, scale
}

// IsIntegerType reports whether a base type name stores whole numbers.
func IsIntegerType(base string) bool {
	switch strings.ToLower(base) {
	case "int", "integer", "smallint", "bigint", "tinyint", "mediumint",
		"int2", "int4", "int8", "serial", "bigserial", "smallserial":
		return true
	}
	return false
}
