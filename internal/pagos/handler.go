package pagos

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"mercadito/internal/observability"
)

// Recorder is the store surface the HTTP layer needs.
type Recorder interface {
	Record(ctx context.Context, monto float64, moneda, medio, referencia, estado string) (Payment, error)
}

// Handler exposes the payment oracle over HTTP.
type Handler struct {
	store   Recorder
	metrics *observability.Metrics
	logf    func(format string, args ...any)
}

// NewHandler constructs a Handler.
func NewHandler(store Recorder, metrics *observability.Metrics, logf func(format string, args ...any)) *Handler {
	if logf == nil {
		logf = log.Printf
	}
	return &Handler{store: store, metrics: metrics, logf: logf}
}

// Register mounts the gateway routes behind the auth middleware.
func (h *Handler) Register(e *echo.Echo, authMW echo.MiddlewareFunc) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "pagos"})
	})
	e.GET("/metrics", observability.Handler(h.metrics))

	e.POST("/pagar", h.pay, authMW)
}

type payRequest struct {
	Monto      float64 `json:"monto"`
	Moneda     string  `json:"moneda"`
	Medio      string  `json:"medio"`
	Referencia string  `json:"referencia"`
	Fail       bool    `json:"fail"`
}

// pay approves everything unless the caller forces a rejection. The
// approval decision itself is out of scope here, this service is the
// oracle the orchestrator consults.
func (h *Handler) pay(c echo.Context) error {
	var req payRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Cuerpo invalido"})
	}
	if req.Moneda == "" {
		req.Moneda = "PYG"
	}
	if req.Medio == "" {
		req.Medio = "tarjeta"
	}
	estado := EstadoAprobado
	if req.Fail {
		estado = EstadoRechazado
	}

	span := h.metrics.Start("pagar")
	payment, err := h.store.Record(c.Request().Context(), req.Monto, req.Moneda, req.Medio, req.Referencia, estado)
	span.End(err)

	if err != nil {
		h.logf("pagos: registrar pago: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}
	return c.JSON(http.StatusOK, echo.Map{"pago_id": payment.ID, "estado": payment.Estado})
}
