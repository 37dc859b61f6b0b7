// Package tracing provides a thin wrapper around OpenTelemetry so that the
// rest of the code base can start and end spans without depending on the
// upstream API directly. Applications that do not need tracing simply never
// call Init and every span becomes a no-op.
package tracing
