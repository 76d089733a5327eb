package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"marketplace/command"
	"marketplace/domain"
	"marketplace/query"
)

type stubQueries struct {
	page       *query.Page
	productErr error
	product    *domain.ProductView
	location   *domain.LocationView
	lastQuery  query.ProductQuery
}

func (s *stubQueries) Products(_ context.Context, q query.ProductQuery) (*query.Page, error) {
	s.lastQuery = q
	if s.page == nil {
		return nil, &query.InvalidCursorError{Token: q.ExclusiveStartKey}
	}
	return s.page, nil
}

func (s *stubQueries) Product(_ context.Context, _ string) (*domain.ProductView, error) {
	if s.productErr != nil {
		return nil, s.productErr
	}
	return s.product, nil
}

func (s *stubQueries) SearchByName(context.Context, string, int) ([]domain.ProductView, error) {
	return nil, nil
}

func (s *stubQueries) Recommended(context.Context, string) ([]domain.ProductView, error) {
	return nil, nil
}

func (s *stubQueries) CurrentLocation(context.Context, string) (*domain.LocationView, error) {
	if s.location == nil {
		return nil, domain.ErrNotFound
	}
	return s.location, nil
}

type stubDispatcher struct {
	envs []domain.CommandEnvelope
	err  error
}

func (s *stubDispatcher) Dispatch(_ context.Context, env domain.CommandEnvelope) (command.Result, error) {
	s.envs = append(s.envs, env)
	if s.err != nil {
		return command.Result{}, s.err
	}
	return command.Result{AggregateID: "agg-1", EventID: "ev-1", EventType: "x"}, nil
}

type stubNotifications struct {
	feed []domain.Notification
}

func (s *stubNotifications) Notifications(context.Context, string, int) ([]domain.Notification, error) {
	return s.feed, nil
}

type stubAuth struct {
	userID string
}

func (s *stubAuth) UserIDFromAuthHeader(h string) (string, error) {
	if s.userID == "" || h == "" {
		return "", errMissingAuthorization
	}
	return s.userID, nil
}

func newTestServer(q *stubQueries, d *stubDispatcher, a Authenticator) *echo.Echo {
	e := echo.New()
	Register(e, q, d, &stubNotifications{}, a, log.New())
	return e
}

func TestGetProductsReturnsPage(t *testing.T) {
	link := "/api/products?category=coffee"
	queries := &stubQueries{page: &query.Page{
		Items:            []domain.ProductView{{ProductID: "p1", DiscountRate: 20}},
		Count:            1,
		LastEvaluatedURL: &link,
	}}
	e := newTestServer(queries, &stubDispatcher{}, &stubAuth{})

	req := httptest.NewRequest(http.MethodGet, "/api/products?category=coffee&sortBy=discountRate&limit=5&latitude=37.5&longitude=127.0", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var page query.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Count != 1 || page.Items[0].ProductID != "p1" {
		t.Fatalf("page = %+v", page)
	}
	if queries.lastQuery.Limit != 5 || queries.lastQuery.Latitude == nil || *queries.lastQuery.Latitude != 37.5 {
		t.Fatalf("query params not forwarded: %+v", queries.lastQuery)
	}
}

func TestGetProductsRejectsBadCursor(t *testing.T) {
	e := newTestServer(&stubQueries{}, &stubDispatcher{}, &stubAuth{})

	req := httptest.NewRequest(http.MethodGet, "/api/products?category=coffee&exclusiveStartKey=garbage", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetProductsRejectsBadLimit(t *testing.T) {
	e := newTestServer(&stubQueries{page: &query.Page{}}, &stubDispatcher{}, &stubAuth{})

	req := httptest.NewRequest(http.MethodGet, "/api/products?category=coffee&limit=zero", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetProductNotFound(t *testing.T) {
	e := newTestServer(&stubQueries{productErr: domain.ErrNotFound}, &stubDispatcher{}, &stubAuth{})

	req := httptest.NewRequest(http.MethodGet, "/api/products/ghost", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPostCommandsRequiresAuth(t *testing.T) {
	e := newTestServer(&stubQueries{}, &stubDispatcher{}, &stubAuth{})

	req := httptest.NewRequest(http.MethodPost, "/api/commands", strings.NewReader(`[]`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPostCommandsDispatchesBatch(t *testing.T) {
	dispatcher := &stubDispatcher{}
	e := newTestServer(&stubQueries{}, dispatcher, &stubAuth{userID: "user-1"})

	body := `[
		{"type":"create-product","data":{"name":"americano"}},
		{"type":"create-order","idempotencyKey":"key-2","data":{"items":[]}}
	]`
	req := httptest.NewRequest(http.MethodPost, "/api/commands", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer t.t.t")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(dispatcher.envs) != 2 {
		t.Fatalf("dispatched %d commands", len(dispatcher.envs))
	}
	if dispatcher.envs[0].ActorID != "user-1" {
		t.Fatalf("actor = %s", dispatcher.envs[0].ActorID)
	}
	if dispatcher.envs[0].Command.IdempotencyKey == "" || dispatcher.envs[0].Command.ID == "" {
		t.Fatal("idempotency key not assigned")
	}
	if dispatcher.envs[1].Command.IdempotencyKey != "key-2" {
		t.Fatalf("provided key overwritten: %s", dispatcher.envs[1].Command.IdempotencyKey)
	}

	var resp postCommandResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[0].AggregateID != "agg-1" {
		t.Fatalf("results = %+v", resp.Results)
	}
}

func TestPostCommandsMapsValidationTo400(t *testing.T) {
	dispatcher := &stubDispatcher{err: domain.Invalid("name", "must not be empty")}
	e := newTestServer(&stubQueries{}, dispatcher, &stubAuth{userID: "user-1"})

	req := httptest.NewRequest(http.MethodPost, "/api/commands", strings.NewReader(`[{"type":"create-product","data":{}}]`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer t.t.t")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPostCommandsRejectsUnknownFields(t *testing.T) {
	e := newTestServer(&stubQueries{}, &stubDispatcher{}, &stubAuth{userID: "user-1"})

	req := httptest.NewRequest(http.MethodPost, "/api/commands", strings.NewReader(`[{"type":"x","bogus":1}]`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer t.t.t")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCurrentLocationNotFound(t *testing.T) {
	e := newTestServer(&stubQueries{}, &stubDispatcher{}, &stubAuth{userID: "user-1"})

	req := httptest.NewRequest(http.MethodGet, "/api/locations/current", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer t.t.t")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestServer(&stubQueries{}, &stubDispatcher{}, &stubAuth{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
