package inventario

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"mercadito/internal/observability"
)

// Ledger is the store surface the HTTP layer needs.
type Ledger interface {
	Reserve(ctx context.Context, productID, quantity int64) (Reservation, error)
	Release(ctx context.Context, reservationID string) (string, bool, error)
	Consume(ctx context.Context, reservationID string) (string, bool, error)
	UpsertStock(ctx context.Context, productID, quantity int64) error
	GetStock(ctx context.Context, productID int64) (int64, error)
}

// Handler exposes the ledger over HTTP.
type Handler struct {
	ledger  Ledger
	metrics *observability.Metrics
	logf    func(format string, args ...any)
}

// NewHandler constructs a Handler.
func NewHandler(ledger Ledger, metrics *observability.Metrics, logf func(format string, args ...any)) *Handler {
	if logf == nil {
		logf = log.Printf
	}
	return &Handler{ledger: ledger, metrics: metrics, logf: logf}
}

// Register mounts the ledger routes. Everything except health and metrics
// sits behind the auth middleware.
func (h *Handler) Register(e *echo.Echo, authMW echo.MiddlewareFunc) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "inventario"})
	})
	e.GET("/metrics", observability.Handler(h.metrics))

	g := e.Group("", authMW)
	g.POST("/reservar", h.reserve)
	g.POST("/liberar", h.release)
	g.POST("/consumir", h.consume)
	g.POST("/stock", h.upsertStock)
	g.GET("/stock/:id", h.getStock)
}

type reserveRequest struct {
	ProductoID int64 `json:"producto_id"`
	Cantidad   int64 `json:"cantidad"`
}

func (h *Handler) reserve(c echo.Context) error {
	var req reserveRequest
	if err := c.Bind(&req); err != nil || req.ProductoID <= 0 || req.Cantidad <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Faltan campos"})
	}

	span := h.metrics.Start("reservar")
	res, err := h.ledger.Reserve(c.Request().Context(), req.ProductoID, req.Cantidad)
	span.End(err)

	if err != nil {
		var insufficient *InsufficientStockError
		if errors.As(err, &insufficient) {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":      "Stock insuficiente",
				"disponible": insufficient.Available,
			})
		}
		h.logf("inventario: reservar producto %d: %v", req.ProductoID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"reserva_id":  res.ID,
		"producto_id": res.ProductID,
		"cantidad":    res.Quantity,
	})
}

type reservationRequest struct {
	ReservaID string `json:"reserva_id"`
}

func (h *Handler) release(c echo.Context) error {
	return h.transition(c, "liberar", h.ledger.Release)
}

func (h *Handler) consume(c echo.Context) error {
	return h.transition(c, "consumir", h.ledger.Consume)
}

func (h *Handler) transition(c echo.Context, op string, fn func(context.Context, string) (string, bool, error)) error {
	var req reservationRequest
	if err := c.Bind(&req); err != nil || req.ReservaID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Falta reserva_id"})
	}

	span := h.metrics.Start(op)
	status, changed, err := fn(c.Request().Context(), req.ReservaID)
	span.End(err)

	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Reserva no existe"})
		}
		h.logf("inventario: %s reserva %s: %v", op, req.ReservaID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}
	if !changed {
		return c.JSON(http.StatusOK, echo.Map{"ok": true, "detalle": "Reserva ya " + status})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

type stockRequest struct {
	ProductoID int64  `json:"producto_id"`
	Cantidad   *int64 `json:"cantidad"`
}

func (h *Handler) upsertStock(c echo.Context) error {
	var req stockRequest
	if err := c.Bind(&req); err != nil || req.ProductoID <= 0 || req.Cantidad == nil || *req.Cantidad < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Faltan campos"})
	}

	if err := h.ledger.UpsertStock(c.Request().Context(), req.ProductoID, *req.Cantidad); err != nil {
		h.logf("inventario: upsert stock producto %d: %v", req.ProductoID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *Handler) getStock(c echo.Context) error {
	var productID int64
	if err := echo.PathParamsBinder(c).Int64("id", &productID).BindError(); err != nil || productID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Id invalido"})
	}

	quantity, err := h.ledger.GetStock(c.Request().Context(), productID)
	if err != nil {
		h.logf("inventario: stock producto %d: %v", productID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}
	return c.JSON(http.StatusOK, echo.Map{"producto_id": productID, "cantidad": quantity})
}
