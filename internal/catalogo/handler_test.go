package catalogo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"mercadito/internal/auth"
	"mercadito/internal/observability"
)

type stubStore struct {
	product Product
	err     error
	deleted int64
}

func (s *stubStore) Create(ctx context.Context, nombre string, precio float64) (Product, error) {
	return Product{ID: 1, Nombre: nombre, Precio: precio}, s.err
}

func (s *stubStore) Get(ctx context.Context, id int64) (Product, error) {
	return s.product, s.err
}

func (s *stubStore) List(ctx context.Context) ([]Product, error) {
	return []Product{s.product}, s.err
}

func (s *stubStore) Update(ctx context.Context, id int64, nombre *string, precio *float64) error {
	return s.err
}

func (s *stubStore) Delete(ctx context.Context, id int64) error {
	s.deleted = id
	return s.err
}

func newCatalogEcho(store ProductStore) *echo.Echo {
	e := echo.New()
	h := NewHandler(store, observability.NewMetrics("catalogo"), func(string, ...any) {})
	h.Register(e, auth.RequireToken("penguin-secret"))
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer penguin-secret")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Create(t *testing.T) {
	e := newCatalogEcho(&stubStore{})

	rec := doJSON(t, e, http.MethodPost, "/productos", `{"nombre":"yerba","precio":15000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"nombre":"yerba"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Create_MissingFields(t *testing.T) {
	e := newCatalogEcho(&stubStore{})

	rec := doJSON(t, e, http.MethodPost, "/productos", `{"nombre":"yerba"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	e := newCatalogEcho(&stubStore{err: ErrProductNotFound})

	rec := doJSON(t, e, http.MethodGet, "/productos/99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No encontrado") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Update_NothingToUpdate(t *testing.T) {
	e := newCatalogEcho(&stubStore{})

	rec := doJSON(t, e, http.MethodPut, "/productos/1", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Delete(t *testing.T) {
	store := &stubStore{}
	e := newCatalogEcho(store)

	rec := doJSON(t, e, http.MethodDelete, "/productos/3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if store.deleted != 3 {
		t.Fatalf("expected delete of product 3, got %d", store.deleted)
	}
}

func TestHandler_List(t *testing.T) {
	e := newCatalogEcho(&stubStore{product: Product{ID: 1, Nombre: "yerba", Precio: 15000}})

	rec := doJSON(t, e, http.MethodGet, "/productos", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_RequiresToken(t *testing.T) {
	e := newCatalogEcho(&stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/productos/1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
