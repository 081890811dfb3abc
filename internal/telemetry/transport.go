package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HTTPInstrumentationName names the tracer and meter of outbound requests
	HTTPInstrumentationName = "github.com/vellankikoti/tool-versions/http"
)

// Transport is an http.RoundTripper that traces and counts upstream requests
type Transport struct {
	base            http.RoundTripper
	tracer          trace.Tracer
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewTransport wraps base (http.DefaultTransport when nil). Nil providers
// disable the matching signal.
func NewTransport(base http.RoundTripper, tp trace.TracerProvider, mp metric.MeterProvider) (*Transport, error) {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{base: base}

	if tp != nil {
		t.tracer = tp.Tracer(HTTPInstrumentationName)
	}

	if mp != nil {
		meter := mp.Meter(HTTPInstrumentationName)

		requestsTotal, err := meter.Int64Counter(
			"tool_versions_http_requests_total",
			metric.WithDescription("Upstream HTTP requests by host and status code"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			return nil, err
		}

		requestDuration, err := meter.Float64Histogram(
			"tool_versions_http_request_duration_seconds",
			metric.WithDescription("Duration of upstream HTTP requests in seconds"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
		)
		if err != nil {
			return nil, err
		}

		t.requestsTotal = requestsTotal
		t.requestDuration = requestDuration
	}

	return t, nil
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	var span trace.Span
	if t.tracer != nil {
		ctx, span = t.tracer.Start(ctx, fmt.Sprintf("HTTP %s", req.Method),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(req.Method),
				semconv.ServerAddress(req.URL.Hostname()),
				semconv.URLPath(req.URL.Path),
			),
		)
		defer span.End()
		req = req.WithContext(ctx)
	}

	resp, err := t.base.RoundTrip(req)

	statusCode := "error"
	if err == nil {
		statusCode = strconv.Itoa(resp.StatusCode)
	}

	if span != nil {
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, "request failed")
		case resp.StatusCode >= 400:
			span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
			span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		default:
			span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
		}
	}

	if t.requestsTotal != nil {
		host := attribute.String("host", req.URL.Hostname())
		t.requestsTotal.Add(ctx, 1, metric.WithAttributes(host, attribute.String("status_code", statusCode)))
		t.requestDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(host))
	}

	return resp, err
}
