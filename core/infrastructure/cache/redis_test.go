package cache

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestParseInfo(t *testing.T) {
	raw := "# Server\r\nredis_version:7.2.4\r\n\r\n# Stats\r\nkeyspace_hits:12\r\nmalformed\r\n"
	info := parseInfo(raw)
	assert.Equal(t, "7.2.4", info["redis_version"])
	assert.Equal(t, "12", info["keyspace_hits"])
	assert.NotContains(t, info, "malformed")
}

func TestInfoStats(t *testing.T) {
	raw := "# Server\r\nredis_version:7.2.4\r\nos:Linux\r\n" +
		"# Clients\r\nconnected_clients:3\r\n" +
		"# Memory\r\nused_memory:1024\r\nused_memory_human:1.00K\r\nused_memory_peak:4096\r\n" +
		"# Stats\r\nexpired_keys:7\r\nevicted_keys:0\r\n"
	stats := infoStats(raw)

	tests := []struct {
		field string
		want  string
	}{
		{field: "backend", want: "redis"},
		{field: "redis_version", want: "7.2.4"},
		{field: "connected_clients", want: "3"},
		{field: "used_memory_human", want: "1.00K"},
		{field: "used_memory_peak", want: "4096"},
		{field: "expired_keys", want: "7"},
		{field: "evicted_keys", want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, stats[tt.field])
		})
	}
	assert.NotContains(t, stats, "os")
	assert.NotContains(t, stats, "used_memory")
	assert.NotContains(t, stats, "keyspace_hits")
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "sid:table:orders:", want: "sid:table:orders:"},
		{in: "sid:table:a*b?:", want: `sid:table:a\*b\?:`},
		{in: "x[1]", want: `x\[1\]`},
		{in: `back\slash`, want: `back\\slash`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeGlob(tt.in))
		})
	}
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	store := NewRedisStoreFromClient(client, "ts:")
	defer store.Close()

	assert.Equal(t, "ts:connection:abc", store.key("connection:abc"))
	assert.Same(t, client, store.Client())
}
