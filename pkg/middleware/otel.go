package middleware

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/ssrdata/internal/errors"
	"github.com/vango-dev/ssrdata/pkg/auth"
	"github.com/vango-dev/ssrdata/pkg/ssr"
)

// Default tracer name for ssrdata applications.
const defaultTracerName = "ssrdata"

// OTelConfig configures the OpenTelemetry tracing.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "ssrdata").
	TracerName string

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	// IncludeUserID adds the token subject to request spans.
	// May contain sensitive information - disabled by default.
	IncludeUserID bool

	// Filter determines which requests to trace.
	// Return true to trace the request. If nil, all requests are traced.
	Filter func(r *http.Request) bool

	// AttributeExtractor extracts custom attributes from the request.
	AttributeExtractor func(r *http.Request) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry tracing.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeUserID enables including the user ID in traces.
func WithIncludeUserID(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeUserID = include
	}
}

// WithRequestFilter sets a filter function for requests.
func WithRequestFilter(filter func(r *http.Request) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(r *http.Request) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// Tracing creates request and phase spans.
type Tracing struct {
	config OTelConfig
	tracer trace.Tracer
}

var _ ssr.Observer = (*Tracing)(nil)

// NewTracing resolves the tracer.
//
// Configure the global provider in main() before starting the server, or
// pass one with WithTracerProvider:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func NewTracing(opts ...OTelOption) *Tracing {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{config: config, tracer: tp.Tracer(config.TracerName)}
}

// Middleware starts a server span per request. The span is in the request
// context, so phase spans and outgoing GraphQL calls become its children.
func (t *Tracing) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.config.Filter != nil && !t.config.Filter(r) {
			next.ServeHTTP(w, r)
			return
		}

		attrs := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.String("ssrdata.path", r.URL.Path),
		}
		if t.config.IncludeUserID {
			if p, ok := auth.PrincipalFrom(r.Context()); ok {
				attrs = append(attrs, attribute.String("ssrdata.user_id", p.ID))
			}
		}
		if t.config.AttributeExtractor != nil {
			attrs = append(attrs, t.config.AttributeExtractor(r)...)
		}

		ctx, span := t.tracer.Start(r.Context(),
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		sw := newStatusWriter(w)
		next.ServeHTTP(sw, r.WithContext(ctx))

		status := sw.Status()
		if status == 0 {
			status = http.StatusOK
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	})
}

// StartPhase implements ssr.Observer with a child span per phase.
func (t *Tracing) StartPhase(ctx context.Context, page string, phase ssr.Phase) (context.Context, func(error)) {
	ctx, span := t.tracer.Start(ctx, "ssr."+string(phase),
		trace.WithAttributes(attribute.String("ssrdata.page", page)),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			if code := errors.Code(err); code != "" {
				span.SetAttributes(attribute.String("ssrdata.error_code", code))
			}
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// SnapshotExtracted implements ssr.Observer.
func (t *Tracing) SnapshotExtracted(ctx context.Context, page string, records int) {
	trace.SpanFromContext(ctx).AddEvent("snapshot extracted", trace.WithAttributes(
		attribute.String("ssrdata.page", page),
		attribute.Int("ssrdata.snapshot_records", records),
	))
}
