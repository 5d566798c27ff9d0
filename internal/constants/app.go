package constants

// Rate-limit counter key prefixes. Counters are keyed per client IP
// and per target email so either identity can trip independently.
const (
	LoginIPKeyPrefix    = "login:ip:"
	LoginEmailKeyPrefix = "login:email:"
)

// Anonymized identity placeholders applied on soft delete. Derived from
// the user id so the original email/username become free for reuse.
const (
	DeletedEmailFormat    = "deleted_%d@deleted.local"
	DeletedUsernameFormat = "deleted_%d"
)

// Gin context key under which RequireAuth stores the authenticated user.
const CtxAuthUser = "auth_user"
