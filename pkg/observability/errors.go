package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error classification attribute values for spans. Types answer "what went
// wrong", sources answer "whose fault it was".
const (
	// ErrTypeValidation marks malformed or rejected input.
	ErrTypeValidation = "validation"
	// ErrTypeNotFound marks a missing manifest, target, or source directory.
	ErrTypeNotFound = "not_found"
	// ErrTypeDependencyUnavailable marks an unreachable external dependency.
	ErrTypeDependencyUnavailable = "dependency_unavailable"
	// ErrTypeInternal marks unexpected internal failures.
	ErrTypeInternal = "internal"
)

const (
	// ErrSourceClient attributes the failure to the caller.
	ErrSourceClient = "client"
	// ErrSourceServer attributes the failure to this process.
	ErrSourceServer = "server"
	// ErrSourceDependency attributes the failure to something external.
	ErrSourceDependency = "dependency"
)

const (
	attrErrType   = "error.type"
	attrErrSource = "error.source"
)

// RecordSpanError marks a span failed and classifies the error. An empty
// errSource leaves the source attribute unset.
func RecordSpanError(span trace.Span, err error, errType, errSource string) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(attrErrType, errType))

	if errSource != "" {
		span.SetAttributes(attribute.String(attrErrSource, errSource))
	}
}
