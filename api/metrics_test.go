package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return tp, exporter
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestProductRequestMetricsLogProducesObservabilityEvent(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetFormatter(&log.JSONFormatter{})

	tp, exporter := setupTestTracer(t)

	metrics, _ := newProductRequestMetrics(context.Background(), logger)
	metrics.start = metrics.start.Add(-50 * time.Millisecond)
	metrics.ObserveAuth(10 * time.Millisecond)
	metrics.ObserveFetch(15 * time.Millisecond)
	metrics.ObserveEncode(5 * time.Millisecond)
	metrics.SetCursorProvided(true)
	metrics.SetItemsReturned(3)
	metrics.SetHasNextPage(true)

	metrics.Log(http.StatusOK, nil)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Message != "observability.event" {
		t.Fatalf("unexpected log entry: %#v", entry)
	}
	if entry.Data["event.name"] != productsEventName || entry.Data["event.domain"] != productsEventDomain {
		t.Fatalf("unexpected event identity: %#v", entry.Data)
	}
	attrsVal, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes not logged as map: %#v", entry.Data["attributes"])
	}
	if attrsVal["http.route"] != "/api/products" {
		t.Fatalf("unexpected route attribute: %#v", attrsVal["http.route"])
	}
	if attrsVal["marketplace.products.cursor_provided"] != true {
		t.Fatal("expected cursor_provided true")
	}
	if attrsVal["marketplace.products.has_next_page"] != true {
		t.Fatal("expected has_next_page true")
	}
	if total, ok := attrsVal["marketplace.products.total_ms"].(float64); !ok || total == 0 {
		t.Fatalf("expected total_ms to be set, got %#v", attrsVal["marketplace.products.total_ms"])
	}
	if entry.Data["severity_text"] != "INFO" || entry.Data["severity_number"] != 9 {
		t.Fatalf("unexpected severity: %#v", entry.Data)
	}
	if traceID, ok := entry.Data["trace_id"].(string); !ok || traceID == "" {
		t.Fatalf("expected trace_id, got %#v", entry.Data["trace_id"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != productsSpanName {
		t.Fatalf("unexpected span name: %s", span.Name)
	}
	spanAttrs := attributesToMap(span.Attributes)
	if spanAttrs["http.route"] != "/api/products" {
		t.Fatalf("span route mismatch: %#v", spanAttrs["http.route"])
	}
	if code, ok := spanAttrs["http.status_code"].(int64); !ok || code != int64(http.StatusOK) {
		t.Fatalf("unexpected http.status_code: %#v", spanAttrs["http.status_code"])
	}
	if span.Status.Code != codes.Ok {
		t.Fatalf("expected span status Ok, got %v", span.Status.Code)
	}

	var found bool
	for _, ev := range span.Events {
		if ev.Name != "observability.event" {
			continue
		}
		found = true
		eventAttrs := attributesToMap(ev.Attributes)
		if eventAttrs["event.name"] != productsEventName {
			t.Fatalf("unexpected event.name: %#v", eventAttrs["event.name"])
		}
		if eventAttrs["severity_text"] != "INFO" {
			t.Fatalf("unexpected event severity: %#v", eventAttrs["severity_text"])
		}
	}
	if !found {
		t.Fatalf("expected observability.event span event, got %#v", span.Events)
	}
}

func TestProductRequestMetricsLogWithErrorSetsSpanStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetFormatter(&log.JSONFormatter{})

	tp, exporter := setupTestTracer(t)

	metrics, _ := newProductRequestMetrics(context.Background(), logger)
	metrics.SetErrorStage("storage")
	boom := errors.New("storage failure")

	metrics.Log(http.StatusInternalServerError, boom)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Fatalf("expected span status error, got %v", spans[0].Status.Code)
	}
	spanAttrs := attributesToMap(spans[0].Attributes)
	if spanAttrs["marketplace.products.error_stage"] != "storage" {
		t.Fatalf("error stage missing: %#v", spanAttrs)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Data["severity_text"] != "ERROR" || entry.Data["severity_number"] != 17 {
		t.Fatalf("unexpected severity: %#v", entry.Data)
	}
	if entry.Data["error"] != "storage failure" {
		t.Fatalf("error field missing: %#v", entry.Data)
	}
}

func TestProductRequestMetricsNilSafe(t *testing.T) {
	var m *productRequestMetrics
	m.Log(http.StatusOK, nil)
}
