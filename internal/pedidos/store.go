// Package pedidos orchestrates order creation across the catalog,
// inventory and payment services and keeps the order record.
package pedidos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Order outcomes.
const (
	EstadoConfirmado = "confirmado"
	EstadoCancelado  = "cancelado"
)

// ErrOrderNotFound is returned when an order id does not exist.
var ErrOrderNotFound = errors.New("pedido no existe")

// Order is the persisted record of one orchestration, successful or not.
type Order struct {
	ID        string    `json:"id"`
	Total     float64   `json:"total"`
	Estado    string    `json:"estado"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderLine is one priced item of an order.
type OrderLine struct {
	ProductoID int64   `json:"producto_id"`
	Cantidad   int64   `json:"cantidad"`
	PrecioUnit float64 `json:"precio_unit"`
}

// OrderStore persists and reads back order records.
type OrderStore interface {
	CreateOrder(ctx context.Context, total float64, estado string, lines []OrderLine) (Order, error)
	GetOrder(ctx context.Context, id string) (Order, []OrderLine, error)
	ListOrders(ctx context.Context) ([]Order, error)
}

// Store is the Postgres OrderStore.
type Store struct {
	db    *sql.DB
	newID func() string
}

// NewStore constructs a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, newID: uuid.NewString}
}

// NewStoreWithSchema initializes the schema then returns the store.
func NewStoreWithSchema(ctx context.Context, db *sql.DB) (*Store, error) {
	store := NewStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the order tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pedidos (
			id UUID PRIMARY KEY,
			total DOUBLE PRECISION NOT NULL,
			estado TEXT NOT NULL CHECK (estado IN ('confirmado', 'cancelado')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS pedido_items (
			pedido_id UUID NOT NULL REFERENCES pedidos(id),
			producto_id BIGINT NOT NULL,
			cantidad BIGINT NOT NULL,
			precio_unit DOUBLE PRECISION NOT NULL
		)
	`)
	return err
}

// CreateOrder writes the order and its items in one transaction.
func (s *Store) CreateOrder(ctx context.Context, total float64, estado string, lines []OrderLine) (Order, error) {
	order := Order{ID: s.newID(), Total: total, Estado: estado}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO pedidos (id, total, estado)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		order.ID, total, estado,
	)
	if err := row.Scan(&order.CreatedAt); err != nil {
		return Order{}, err
	}

	for _, line := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pedido_items (pedido_id, producto_id, cantidad, precio_unit)
			VALUES ($1, $2, $3, $4)`,
			order.ID, line.ProductoID, line.Cantidad, line.PrecioUnit,
		); err != nil {
			return Order{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Order{}, err
	}
	return order, nil
}

// GetOrder loads one order and its items.
func (s *Store) GetOrder(ctx context.Context, id string) (Order, []OrderLine, error) {
	order := Order{ID: id}
	row := s.db.QueryRowContext(ctx, `
		SELECT total, estado, created_at FROM pedidos WHERE id = $1`, id)
	if err := row.Scan(&order.Total, &order.Estado, &order.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, nil, ErrOrderNotFound
		}
		return Order{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT producto_id, cantidad, precio_unit
		FROM pedido_items WHERE pedido_id = $1`, id)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ProductoID, &line.Cantidad, &line.PrecioUnit); err != nil {
			return Order{}, nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return Order{}, nil, err
	}
	return order, lines, nil
}

// ListOrders returns all orders, newest first.
func (s *Store) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, total, estado, created_at
		FROM pedidos ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		var order Order
		if err := rows.Scan(&order.ID, &order.Total, &order.Estado, &order.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
