package observability

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler serves the metrics snapshot as JSON.
func Handler(metrics *Metrics) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, metrics.Snapshot())
	}
}
