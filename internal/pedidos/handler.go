package pedidos

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"mercadito/internal/observability"
	"mercadito/internal/realtime"
)

// OrderCreator is the orchestrator surface the HTTP layer needs.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderResult, error)
}

// Handler exposes the order service over HTTP.
type Handler struct {
	orchestrator OrderCreator
	store        OrderStore
	feed         *realtime.Hub
	metrics      *observability.Metrics
	logf         func(format string, args ...any)
	upgrader     websocket.Upgrader
}

// NewHandler constructs a Handler. The feed may be nil, in which case the
// websocket route is not registered.
func NewHandler(orchestrator OrderCreator, store OrderStore, feed *realtime.Hub, metrics *observability.Metrics, logf func(format string, args ...any)) *Handler {
	if logf == nil {
		logf = log.Printf
	}
	return &Handler{
		orchestrator: orchestrator,
		store:        store,
		feed:         feed,
		metrics:      metrics,
		logf:         logf,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the order routes behind the auth middleware.
func (h *Handler) Register(e *echo.Echo, authMW echo.MiddlewareFunc) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "pedidos"})
	})
	e.GET("/metrics", observability.Handler(h.metrics))

	g := e.Group("/pedidos", authMW)
	g.POST("", h.create)
	g.GET("", h.list)
	if h.feed != nil {
		g.GET("/ws", h.subscribe)
	}
	g.GET("/:id", h.get)
}

func (h *Handler) create(c echo.Context) error {
	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Cuerpo invalido"})
	}

	span := h.metrics.Start("crear_pedido")
	result, err := h.orchestrator.CreateOrder(c.Request().Context(), req)
	span.End(err)

	if err != nil {
		return h.writeError(c, err)
	}

	status := http.StatusCreated
	if result.Order.Estado == EstadoCancelado {
		status = http.StatusAccepted
	}
	body := echo.Map{
		"pedido_id": result.Order.ID,
		"estado":    result.Order.Estado,
		"total":     result.Order.Total,
		"items":     result.Lines,
	}
	if result.Payment != nil {
		body["pago"] = result.Payment
	}
	return c.JSON(status, body)
}

// writeError maps saga outcomes to HTTP statuses: the caller's fault is 4xx,
// an unreachable collaborator is 502, a broken order record is 500.
func (h *Handler) writeError(c echo.Context, err error) error {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validation.Detail})
	}

	var pricing *PricingError
	if errors.As(err, &pricing) {
		var notFound *ProductNotFoundError
		if errors.As(err, &notFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"error":       "Producto no encontrado",
				"producto_id": notFound.ProductID,
			})
		}
		h.logf("pedidos: fase de precios: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "Servicio de productos no disponible"})
	}

	var reservation *ReservationError
	if errors.As(err, &reservation) {
		var conflict *StockConflictError
		if errors.As(err, &conflict) {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":       "Stock insuficiente",
				"producto_id": conflict.ProductID,
				"disponible":  conflict.Disponible,
			})
		}
		h.logf("pedidos: fase de reserva: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "Servicio de inventario no disponible"})
	}

	h.logf("pedidos: crear pedido: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
}

func (h *Handler) list(c echo.Context) error {
	span := h.metrics.Start("listar_pedidos")
	orders, err := h.store.ListOrders(c.Request().Context())
	span.End(err)

	if err != nil {
		h.logf("pedidos: listar: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": orders})
}

func (h *Handler) get(c echo.Context) error {
	span := h.metrics.Start("ver_pedido")
	order, lines, err := h.store.GetOrder(c.Request().Context(), c.Param("id"))
	span.End(err)

	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "No encontrado"})
		}
		h.logf("pedidos: ver pedido: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}
	return c.JSON(http.StatusOK, echo.Map{"pedido": order, "items": lines})
}

// subscribe upgrades the connection and hands it to the hub. The read loop
// only exists to notice the peer going away.
func (h *Handler) subscribe(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	h.feed.Register <- conn
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.feed.Unregister <- conn
				return
			}
		}
	}()
	return nil
}
