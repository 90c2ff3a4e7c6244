package values

type contextKey string

// Response statuses. util.StatusCode maps each to an HTTP code.
const (
	Success        = "success"
	Created        = "created"
	Failed         = "failed"
	Error          = "error"
	BadRequestBody = "bad_request_body"
	Unprocessable  = "unprocessable"
	NotAllowed     = "not_allowed"
	NotAMember     = "not_a_member"
	Conflict       = "conflict"
	NotFound       = "not_found"
	NotAuthorised  = "not_authorised"
	TokenExpired   = "token_expired"
)

const (
	HeaderRequestSource = "X-Request-Source"
	HeaderRequestID     = "X-Request-ID"

	ContextTracingKey contextKey = "tracing"
	ContextUserKey    contextKey = "user"
	ContextProfileKey contextKey = "profile"
	ContextIdentity   contextKey = "identity"
)
