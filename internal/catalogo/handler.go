package catalogo

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"mercadito/internal/observability"
)

// Handler exposes the product catalog over HTTP.
type Handler struct {
	store   ProductStore
	metrics *observability.Metrics
	logf    func(format string, args ...any)
}

// NewHandler constructs a Handler.
func NewHandler(store ProductStore, metrics *observability.Metrics, logf func(format string, args ...any)) *Handler {
	if logf == nil {
		logf = log.Printf
	}
	return &Handler{store: store, metrics: metrics, logf: logf}
}

// Register mounts the catalog routes behind the auth middleware.
func (h *Handler) Register(e *echo.Echo, authMW echo.MiddlewareFunc) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "catalogo"})
	})
	e.GET("/metrics", observability.Handler(h.metrics))

	g := e.Group("/productos", authMW)
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

type productRequest struct {
	Nombre *string  `json:"nombre"`
	Precio *float64 `json:"precio"`
}

func (h *Handler) create(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil || req.Nombre == nil || *req.Nombre == "" || req.Precio == nil || *req.Precio < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Faltan campos"})
	}

	span := h.metrics.Start("productos.crear")
	product, err := h.store.Create(c.Request().Context(), *req.Nombre, *req.Precio)
	span.End(err)

	if err != nil {
		h.logf("catalogo: crear producto: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}
	return c.JSON(http.StatusCreated, product)
}

func (h *Handler) list(c echo.Context) error {
	span := h.metrics.Start("productos.listar")
	products, err := h.store.List(c.Request().Context())
	span.End(err)

	if err != nil {
		h.logf("catalogo: listar productos: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": products})
}

func (h *Handler) get(c echo.Context) error {
	id, ok := h.pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Id invalido"})
	}

	span := h.metrics.Start("productos.detalle")
	product, err := h.store.Get(c.Request().Context(), id)
	span.End(err)

	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "No encontrado"})
		}
		h.logf("catalogo: producto %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}
	return c.JSON(http.StatusOK, product)
}

func (h *Handler) update(c echo.Context) error {
	id, ok := h.pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Id invalido"})
	}
	var req productRequest
	if err := c.Bind(&req); err != nil || (req.Nombre == nil && req.Precio == nil) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Nada para actualizar"})
	}

	span := h.metrics.Start("productos.editar")
	err := h.store.Update(c.Request().Context(), id, req.Nombre, req.Precio)
	span.End(err)

	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "No encontrado"})
		}
		h.logf("catalogo: editar producto %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *Handler) delete(c echo.Context) error {
	id, ok := h.pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Id invalido"})
	}

	span := h.metrics.Start("productos.borrar")
	err := h.store.Delete(c.Request().Context(), id)
	span.End(err)

	if err != nil {
		h.logf("catalogo: borrar producto %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Fallo interno"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *Handler) pathID(c echo.Context) (int64, bool) {
	var id int64
	if err := echo.PathParamsBinder(c).Int64("id", &id).BindError(); err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
