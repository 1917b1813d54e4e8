package inventario

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

type stubLedger struct {
	reserveRes Reservation
	reserveErr error

	transitionStatus  string
	transitionChanged bool
	transitionErr     error

	stock int64
}

func (s *stubLedger) Reserve(ctx context.Context, productID, quantity int64) (Reservation, error) {
	return s.reserveRes, s.reserveErr
}

func (s *stubLedger) Release(ctx context.Context, id string) (string, bool, error) {
	return s.transitionStatus, s.transitionChanged, s.transitionErr
}

func (s *stubLedger) Consume(ctx context.Context, id string) (string, bool, error) {
	return s.transitionStatus, s.transitionChanged, s.transitionErr
}

func (s *stubLedger) UpsertStock(ctx context.Context, productID, quantity int64) error {
	s.stock = quantity
	return nil
}

func (s *stubLedger) GetStock(ctx context.Context, productID int64) (int64, error) {
	return s.stock, nil
}

func newLedgerEcho(ledger Ledger) *echo.Echo {
	e := echo.New()
	h := NewHandler(ledger, observability.NewMetrics("inventario"), func(string, ...any) {})
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

func TestHandler_Reserve_OK(t *testing.T) {
	ledger := &stubLedger{reserveRes: Reservation{ID: "res-1", ProductID: 10, Quantity: 5, Status: StatusActive}}
	e := newLedgerEcho(ledger)

	rec := doJSON(t, e, http.MethodPost, "/reservar", `{"producto_id":10,"cantidad":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"reserva_id":"res-1"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Reserve_Insufficient(t *testing.T) {
	ledger := &stubLedger{reserveErr: &InsufficientStockError{ProductID: 10, Available: 5}}
	e := newLedgerEcho(ledger)

	rec := doJSON(t, e, http.MethodPost, "/reservar", `{"producto_id":10,"cantidad":20}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"disponible":5`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Reserve_BadRequest(t *testing.T) {
	e := newLedgerEcho(&stubLedger{})

	rec := doJSON(t, e, http.MethodPost, "/reservar", `{"producto_id":10}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Release_Idempotent(t *testing.T) {
	ledger := &stubLedger{transitionStatus: StatusReleased, transitionChanged: false}
	e := newLedgerEcho(ledger)

	rec := doJSON(t, e, http.MethodPost, "/liberar", `{"reserva_id":"res-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Reserva ya liberada") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Consume_NotFound(t *testing.T) {
	ledger := &stubLedger{transitionErr: ErrReservationNotFound}
	e := newLedgerEcho(ledger)

	rec := doJSON(t, e, http.MethodPost, "/consumir", `{"reserva_id":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_RequiresToken(t *testing.T) {
	e := newLedgerEcho(&stubLedger{})

	req := httptest.NewRequest(http.MethodPost, "/reservar", strings.NewReader(`{"producto_id":1,"cantidad":1}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandler_StockRoundTrip(t *testing.T) {
	ledger := &stubLedger{}
	e := newLedgerEcho(ledger)

	rec := doJSON(t, e, http.MethodPost, "/stock", `{"producto_id":10,"cantidad":25}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, e, http.MethodGet, "/stock/10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"cantidad":25`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_HealthIsPublic(t *testing.T) {
	e := newLedgerEcho(&stubLedger{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
