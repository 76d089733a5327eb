package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	productsSpanName    = "marketplace.products.query"
	productsEventName   = "products.query"
	productsEventDomain = "marketplace"
)

// productRequestMetrics records per-request observability data for the
// product listing endpoint: one span plus one structured
// "observability.event" log entry carrying the same attributes.
type productRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	authDuration   time.Duration
	fetchDuration  time.Duration
	encodeDuration time.Duration
	cursorProvided bool
	itemsReturned  int
	hasNextPage    bool
	errorStage     string
}

func newProductRequestMetrics(ctx context.Context, logger *log.Logger) (*productRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer("marketplace/api").Start(ctx, productsSpanName)
	return &productRequestMetrics{logger: logger, span: span, start: time.Now()}, spanCtx
}

func (m *productRequestMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *productRequestMetrics) ObserveFetch(d time.Duration) {
	if d > 0 {
		m.fetchDuration = d
	}
}

func (m *productRequestMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *productRequestMetrics) SetCursorProvided(provided bool) {
	m.cursorProvided = provided
}

func (m *productRequestMetrics) SetItemsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.itemsReturned = count
}

func (m *productRequestMetrics) SetHasNextPage(hasNext bool) {
	m.hasNextPage = hasNext
}

func (m *productRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log finalizes the span and emits the observability event. Safe on a
// nil receiver so handlers can defer it unconditionally.
func (m *productRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	attrs := []attribute.KeyValue{
		attribute.String("http.route", "/api/products"),
		attribute.Int("http.status_code", status),
		attribute.Float64("marketplace.products.total_ms", totalMs),
		attribute.Bool("marketplace.products.cursor_provided", m.cursorProvided),
		attribute.Int("marketplace.products.items_returned", m.itemsReturned),
		attribute.Bool("marketplace.products.has_next_page", m.hasNextPage),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("marketplace.products.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.fetchDuration > 0 {
		attrs = append(attrs, attribute.Float64("marketplace.products.fetch_ms", durationToMillis(m.fetchDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("marketplace.products.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("marketplace.products.error_stage", m.errorStage))
	}

	severityText, severityNumber := "INFO", 9
	if err != nil {
		severityText, severityNumber = "ERROR", 17
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		eventAttrs := append([]attribute.KeyValue{
			attribute.String("event.name", productsEventName),
			attribute.String("event.domain", productsEventDomain),
			attribute.String("severity_text", severityText),
		}, attrs...)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		if err != nil {
			m.span.SetStatus(codes.Error, err.Error())
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	attrMap := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      productsEventName,
		"event.domain":    productsEventDomain,
		"attributes":      attrMap,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil && m.span.SpanContext().HasTraceID() {
		fields["trace_id"] = m.span.SpanContext().TraceID().String()
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info("observability.event")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
