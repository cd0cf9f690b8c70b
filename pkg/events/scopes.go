package events

// Scope constructors for the lifecycle events observed by the core. Keeping
// them here gives producers and consumers one spelling per scope.

const (
	scopeLoading    = "loading/"
	scopeResponse   = "response/"
	scopeAbort      = "abort/"
	scopeAbortByID  = "abort-id/"
	scopeRevalidate = "revalidate/"
	scopeCache      = "cache/"

	// ScopeOnline and ScopeOffline are global connectivity scopes.
	ScopeOnline  = "app/online"
	ScopeOffline = "app/offline"

	// ScopeFocus and ScopeBlur are global window focus scopes.
	ScopeFocus = "app/focus"
	ScopeBlur  = "app/blur"
)

// LoadingScope scopes loading-state changes of one queue.
func LoadingScope(queueKey string) string { return scopeLoading + queueKey }

// ResponseScope scopes completed responses of one cache key.
func ResponseScope(cacheKey string) string { return scopeResponse + cacheKey }

// AbortScope scopes abort notifications of one abort key.
func AbortScope(abortKey string) string { return scopeAbort + abortKey }

// AbortByIDScope scopes abort notifications of one request id.
func AbortByIDScope(requestID string) string { return scopeAbortByID + requestID }

// RevalidateScope scopes revalidation triggers of one cache key. The cacheKey
// may be a '*' wildcard pattern when used with EmitMatch.
func RevalidateScope(cacheKey string) string { return scopeRevalidate + cacheKey }

// CacheUpdateScope scopes cache-entry writes of one cache key.
func CacheUpdateScope(cacheKey string) string { return scopeCache + cacheKey }
