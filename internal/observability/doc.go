// Package observability builds the process logger and carries a
// request-scoped child logger through the request context.
package observability
