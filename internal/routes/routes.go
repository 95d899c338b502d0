// Package routes registers the HTTP surface on an echo instance.
package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pmorrisey/njord/internal/handler"
)

// Deps carries the handlers the route table needs.
type Deps struct {
	Checkout *handler.CheckoutHandler
	Operator *handler.OperatorHandler
}

// Register wires middleware and routes.
func Register(e *echo.Echo, deps Deps) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/checkout", deps.Checkout.Submit)
	e.GET("/checkout/return", deps.Checkout.Return)
	e.POST("/checkout/coupon", deps.Checkout.Coupon)
	e.GET("/checkout/rates", deps.Checkout.Rates)

	// Operator surface. Keep behind network-level access control; there
	// is no storefront auth on this service.
	e.GET("/operator/settlement-failures", deps.Operator.Failures)
}
