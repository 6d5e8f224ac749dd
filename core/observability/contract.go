package observability

const (
	AttrBackendKind   = "db.system"
	AttrOperation     = "tablescope.operation"
	AttrTable         = "db.collection.name"
	AttrStrategy      = "tablescope.pagination.strategy"
	AttrOutcome       = "tablescope.outcome"
	AttrCacheResult   = "tablescope.cache.result"
	AttrErrorType     = "error.type"
	AttrSessionPrefix = "tablescope.session.prefix"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Cache lookup results.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheCorrupt = "corrupt"
	CacheError   = "error"
)

// SessionPrefix shortens a session token for telemetry; the full token is a
// bearer credential.
func SessionPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
