package pedidos

import (
	"context"
	"fmt"
	"net/http"

	"mercadito/internal/remoto"
)

// Destination names used for circuit breaker accounting.
const (
	svcProductos  = "productos"
	svcInventario = "inventario"
	svcPagos      = "pagos"
)

// Product is a priced catalog entry as the catalog service reports it.
type Product struct {
	ID     int64   `json:"id"`
	Nombre string  `json:"nombre"`
	Precio float64 `json:"precio"`
}

// PaymentRequest is what the orchestrator sends to the gateway.
type PaymentRequest struct {
	Monto      float64 `json:"monto"`
	Moneda     string  `json:"moneda"`
	Medio      string  `json:"medio"`
	Referencia string  `json:"referencia,omitempty"`
	Fail       bool    `json:"fail,omitempty"`
}

// PaymentResult is the gateway's verdict.
type PaymentResult struct {
	PagoID string `json:"pago_id"`
	Estado string `json:"estado"`
}

// Catalog prices products.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
}

// Inventory is the reservation ledger boundary.
type Inventory interface {
	Reserve(ctx context.Context, productID, quantity int64) (string, error)
	Release(ctx context.Context, reservationID string) error
	Consume(ctx context.Context, reservationID string) error
}

// Payments authorizes order totals.
type Payments interface {
	Pay(ctx context.Context, req PaymentRequest) (PaymentResult, error)
}

// ProductNotFoundError signals the catalog does not know a product.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("producto %d no encontrado", e.ProductID)
}

// StockConflictError signals the ledger refused a reservation.
type StockConflictError struct {
	ProductID  int64
	Disponible int64
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("stock insuficiente para producto %d: disponible %d", e.ProductID, e.Disponible)
}

// HTTPCatalog reaches the catalog service through the resilient caller.
type HTTPCatalog struct {
	caller  *remoto.Client
	baseURL string
}

// NewHTTPCatalog constructs an HTTPCatalog.
func NewHTTPCatalog(caller *remoto.Client, baseURL string) *HTTPCatalog {
	return &HTTPCatalog{caller: caller, baseURL: baseURL}
}

func (c *HTTPCatalog) GetProduct(ctx context.Context, id int64) (Product, error) {
	resp, err := c.caller.Get(ctx, svcProductos, fmt.Sprintf("%s/productos/%d", c.baseURL, id))
	if err != nil {
		return Product{}, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		var product Product
		if err := resp.JSON(&product); err != nil {
			return Product{}, fmt.Errorf("respuesta de productos invalida: %w", err)
		}
		return product, nil
	case http.StatusNotFound:
		return Product{}, &ProductNotFoundError{ProductID: id}
	default:
		return Product{}, fmt.Errorf("productos respondio HTTP %d", resp.StatusCode)
	}
}

// HTTPInventory reaches the reservation ledger through the resilient caller.
type HTTPInventory struct {
	caller  *remoto.Client
	baseURL string
}

// NewHTTPInventory constructs an HTTPInventory.
func NewHTTPInventory(caller *remoto.Client, baseURL string) *HTTPInventory {
	return &HTTPInventory{caller: caller, baseURL: baseURL}
}

func (c *HTTPInventory) Reserve(ctx context.Context, productID, quantity int64) (string, error) {
	resp, err := c.caller.Post(ctx, svcInventario, c.baseURL+"/reservar", map[string]int64{
		"producto_id": productID,
		"cantidad":    quantity,
	})
	if err != nil {
		return "", err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			ReservaID string `json:"reserva_id"`
		}
		if err := resp.JSON(&body); err != nil {
			return "", fmt.Errorf("respuesta de inventario invalida: %w", err)
		}
		return body.ReservaID, nil
	case http.StatusConflict:
		var body struct {
			Disponible int64 `json:"disponible"`
		}
		_ = resp.JSON(&body)
		return "", &StockConflictError{ProductID: productID, Disponible: body.Disponible}
	default:
		return "", fmt.Errorf("inventario respondio HTTP %d", resp.StatusCode)
	}
}

func (c *HTTPInventory) Release(ctx context.Context, reservationID string) error {
	return c.transition(ctx, "/liberar", reservationID)
}

func (c *HTTPInventory) Consume(ctx context.Context, reservationID string) error {
	return c.transition(ctx, "/consumir", reservationID)
}

func (c *HTTPInventory) transition(ctx context.Context, path, reservationID string) error {
	resp, err := c.caller.Post(ctx, svcInventario, c.baseURL+path, map[string]string{
		"reserva_id": reservationID,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inventario%s respondio HTTP %d", path, resp.StatusCode)
	}
	return nil
}

// HTTPPayments reaches the payment gateway through the resilient caller.
type HTTPPayments struct {
	caller  *remoto.Client
	baseURL string
}

// NewHTTPPayments constructs an HTTPPayments.
func NewHTTPPayments(caller *remoto.Client, baseURL string) *HTTPPayments {
	return &HTTPPayments{caller: caller, baseURL: baseURL}
}

func (c *HTTPPayments) Pay(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	resp, err := c.caller.Post(ctx, svcPagos, c.baseURL+"/pagar", req)
	if err != nil {
		return PaymentResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return PaymentResult{}, fmt.Errorf("pagos respondio HTTP %d", resp.StatusCode)
	}
	var result PaymentResult
	if err := resp.JSON(&result); err != nil {
		return PaymentResult{}, fmt.Errorf("respuesta de pagos invalida: %w", err)
	}
	return result, nil
}
