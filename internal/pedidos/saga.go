package pedidos

import (
	"context"
	"log"

	"mercadito/internal/observability"
	"mercadito/internal/realtime"
)

// ValidationError rejects a malformed order request.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

// PricingError aborts the saga during the catalog lookup phase. It wraps
// either a ProductNotFoundError or a communication failure.
type PricingError struct {
	Err error
}

func (e *PricingError) Error() string { return "fase de precios: " + e.Err.Error() }
func (e *PricingError) Unwrap() error { return e.Err }

// ReservationError aborts the saga during the reservation phase. It wraps
// either a StockConflictError or a communication failure.
type ReservationError struct {
	Err error
}

func (e *ReservationError) Error() string { return "fase de reserva: " + e.Err.Error() }
func (e *ReservationError) Unwrap() error { return e.Err }

// PersistenceError signals the order record could not be written after the
// side effects were already applied.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "persistencia de pedido: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// ItemRequest is one requested order line.
type ItemRequest struct {
	ProductoID int64 `json:"producto_id"`
	Cantidad   int64 `json:"cantidad"`
}

// PaymentOptions carries optional payment parameters of an order request.
type PaymentOptions struct {
	Moneda     string `json:"moneda"`
	Medio      string `json:"medio"`
	Referencia string `json:"referencia"`
	Fail       bool   `json:"fail"`
}

// CreateOrderRequest is the inbound order payload.
type CreateOrderRequest struct {
	Items []ItemRequest  `json:"items"`
	Pago  PaymentOptions `json:"pago"`
}

// OrderResult is the outcome of a completed saga, confirmed or cancelled.
type OrderResult struct {
	Order   Order
	Lines   []OrderLine
	Payment *PaymentResult
}

// Orchestrator runs the order saga: price, reserve, pay, settle, persist.
type Orchestrator struct {
	catalog   Catalog
	inventory Inventory
	payments  Payments
	store     OrderStore
	events    EventPublisher
	feed      *realtime.Hub
	metrics   *observability.Metrics
	logf      func(format string, args ...any)
}

// OrchestratorConfig wires the orchestrator's collaborators. Events and
// Feed may be nil; Logf defaults to log.Printf.
type OrchestratorConfig struct {
	Catalog   Catalog
	Inventory Inventory
	Payments  Payments
	Store     OrderStore
	Events    EventPublisher
	Feed      *realtime.Hub
	Metrics   *observability.Metrics
	Logf      func(format string, args ...any)
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Orchestrator{
		catalog:   cfg.Catalog,
		inventory: cfg.Inventory,
		payments:  cfg.Payments,
		store:     cfg.Store,
		events:    cfg.Events,
		feed:      cfg.Feed,
		metrics:   cfg.Metrics,
		logf:      logf,
	}
}

// CreateOrder runs the full saga for one request. A rejected or unreachable
// payment cancels the order but is not an error: the cancelled order is
// still persisted and returned. Errors abort before any record is written.
func (o *Orchestrator) CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderResult, error) {
	if err := validate(req); err != nil {
		return OrderResult{}, err
	}

	lines, total, err := o.price(ctx, req.Items)
	if err != nil {
		return OrderResult{}, &PricingError{Err: err}
	}

	reservations, err := o.reserve(ctx, lines)
	if err != nil {
		return OrderResult{}, &ReservationError{Err: err}
	}

	estado, payment := o.pay(ctx, total, req.Pago)

	alarma := o.settle(ctx, estado, reservations)

	span := o.metrics.Start("pedidos.persistir")
	order, err := o.store.CreateOrder(ctx, total, estado, lines)
	span.End(err)
	if err != nil {
		o.logf("[alarma] pedido %s no persistido, reservas y pago ya aplicados: %v", estado, err)
		return OrderResult{}, &PersistenceError{Err: err}
	}

	o.announce(ctx, order, alarma)
	return OrderResult{Order: order, Lines: lines, Payment: payment}, nil
}

func validate(req CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return &ValidationError{Detail: "Debes enviar items"}
	}
	for _, item := range req.Items {
		if item.ProductoID <= 0 || item.Cantidad <= 0 {
			return &ValidationError{Detail: "Items invalidos"}
		}
	}
	return nil
}

// price looks up every product and computes the order total. Any failure
// aborts: nothing has been reserved yet, so there is nothing to undo.
func (o *Orchestrator) price(ctx context.Context, items []ItemRequest) ([]OrderLine, float64, error) {
	span := o.metrics.Start("pedidos.precios")

	lines := make([]OrderLine, 0, len(items))
	total := 0.0
	for _, item := range items {
		product, err := o.catalog.GetProduct(ctx, item.ProductoID)
		if err != nil {
			span.End(err)
			return nil, 0, err
		}
		total += product.Precio * float64(item.Cantidad)
		lines = append(lines, OrderLine{
			ProductoID: item.ProductoID,
			Cantidad:   item.Cantidad,
			PrecioUnit: product.Precio,
		})
	}

	span.End(nil)
	return lines, total, nil
}

// reserve claims stock line by line. On the first failure every reservation
// already granted is released and the failure is returned.
func (o *Orchestrator) reserve(ctx context.Context, lines []OrderLine) ([]string, error) {
	span := o.metrics.Start("pedidos.reservas")

	reservations := make([]string, 0, len(lines))
	for _, line := range lines {
		id, err := o.inventory.Reserve(ctx, line.ProductoID, line.Cantidad)
		if err != nil {
			o.compensate(ctx, reservations)
			span.End(err)
			return nil, err
		}
		reservations = append(reservations, id)
	}

	span.End(nil)
	return reservations, nil
}

// pay consults the gateway. An unreachable gateway is treated like a
// rejection: the order is cancelled, not failed, so reserved stock can be
// returned and the outcome recorded.
func (o *Orchestrator) pay(ctx context.Context, total float64, opts PaymentOptions) (string, *PaymentResult) {
	moneda := opts.Moneda
	if moneda == "" {
		moneda = "PYG"
	}
	medio := opts.Medio
	if medio == "" {
		medio = "tarjeta"
	}

	span := o.metrics.Start("pedidos.pago")
	result, err := o.payments.Pay(ctx, PaymentRequest{
		Monto:      total,
		Moneda:     moneda,
		Medio:      medio,
		Referencia: opts.Referencia,
		Fail:       opts.Fail,
	})
	span.End(err)

	if err != nil {
		o.logf("pedidos: pasarela de pagos inaccesible, se cancela el pedido: %v", err)
		return EstadoCancelado, nil
	}
	if result.Estado != "aprobado" {
		o.logf("pedidos: pago %s rechazado por la pasarela", result.PagoID)
		return EstadoCancelado, &result
	}
	return EstadoConfirmado, &result
}

// settle consumes reservations on approval or releases them on
// cancellation. Returns an alarm note when a confirmed order leaves a
// reservation unconsumed.
func (o *Orchestrator) settle(ctx context.Context, estado string, reservations []string) string {
	if estado != EstadoConfirmado {
		o.compensate(ctx, reservations)
		return ""
	}

	alarma := ""
	for _, id := range reservations {
		if err := o.inventory.Consume(ctx, id); err != nil {
			o.logf("[alarma] reserva %s sin consumir tras pago aprobado: %v", id, err)
			alarma = "reserva sin consumir"
		}
	}
	return alarma
}

// compensate releases reservations best effort. Every release is attempted
// even when earlier ones fail; failures are logged and never surfaced, the
// primary outcome must not be masked by a cleanup problem.
func (o *Orchestrator) compensate(ctx context.Context, reservations []string) {
	for _, id := range reservations {
		if err := o.inventory.Release(ctx, id); err != nil {
			o.logf("[compensacion] no se pudo liberar reserva %s: %v", id, err)
		}
	}
}

// announce fans the persisted outcome out to the event queue and the
// websocket feed. Both are advisory: failures are logged and ignored.
func (o *Orchestrator) announce(ctx context.Context, order Order, alarma string) {
	o.feed.Publish(realtime.OrderUpdate{
		PedidoID: order.ID,
		Estado:   order.Estado,
		Total:    order.Total,
		Alarma:   alarma,
	})
	if o.events == nil {
		return
	}
	event := OrderEvent{
		PedidoID: order.ID,
		Estado:   order.Estado,
		Total:    order.Total,
		Alarma:   alarma,
	}
	if err := o.events.PublishOrderEvent(ctx, event); err != nil {
		o.logf("pedidos: publicar evento de pedido %s: %v", order.ID, err)
	}
}
