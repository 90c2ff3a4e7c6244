package tracing

// Context identifies a single API request across logs.
type Context struct {
	RequestID     string
	RequestSource string
}
