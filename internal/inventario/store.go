// Package inventario owns stock counters and the reservation ledger.
package inventario

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reservation statuses. A reservation leaves "activa" exactly once and the
// terminal statuses never transition again.
const (
	StatusActive   = "activa"
	StatusReleased = "liberada"
	StatusConsumed = "consumida"
)

// ErrReservationNotFound signals an unknown reservation id.
var ErrReservationNotFound = errors.New("reserva no existe")

// InsufficientStockError reports how much stock was actually available.
type InsufficientStockError struct {
	ProductID int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para producto %d: disponible %d", e.ProductID, e.Available)
}

// Reservation is a provisional hold on stock.
type Reservation struct {
	ID        string
	ProductID int64
	Quantity  int64
	Status    string
	CreatedAt time.Time
}

// Store persists stock and reservations in Postgres. Reserve, Release and
// Consume each run as one transaction holding a row lock, so concurrent
// operations on the same product serialize instead of losing updates.
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

// InitSchema creates the ledger tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS stock (
			producto_id BIGINT PRIMARY KEY,
			cantidad BIGINT NOT NULL CHECK (cantidad >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS reservas (
			id UUID PRIMARY KEY,
			producto_id BIGINT NOT NULL,
			cantidad BIGINT NOT NULL CHECK (cantidad > 0),
			estado TEXT NOT NULL CHECK (estado IN ('activa', 'liberada', 'consumida')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// Reserve atomically checks stock and, if enough is available, creates an
// active reservation and deducts the quantity. Deducting at reservation
// time is what keeps concurrent reservations from overselling.
func (s *Store) Reserve(ctx context.Context, productID, quantity int64) (Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Reservation{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var available int64
	row := tx.QueryRowContext(ctx, `SELECT cantidad FROM stock WHERE producto_id = $1 FOR UPDATE`, productID)
	if err := row.Scan(&available); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return Reservation{}, err
		}
		available = 0
	}
	if available < quantity {
		return Reservation{}, &InsufficientStockError{ProductID: productID, Available: available}
	}

	res := Reservation{
		ID:        s.newID(),
		ProductID: productID,
		Quantity:  quantity,
		Status:    StatusActive,
	}
	row = tx.QueryRowContext(ctx, `
		INSERT INTO reservas (id, producto_id, cantidad, estado)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		res.ID, res.ProductID, res.Quantity, res.Status,
	)
	if err := row.Scan(&res.CreatedAt); err != nil {
		return Reservation{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE stock SET cantidad = cantidad - $2 WHERE producto_id = $1`,
		productID, quantity,
	); err != nil {
		return Reservation{}, err
	}

	if err := tx.Commit(); err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// Release returns a reservation's quantity to stock and marks it released.
// Releasing a non-active reservation is a no-op that reports the current
// status, so compensation can be retried safely.
func (s *Store) Release(ctx context.Context, reservationID string) (string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = tx.Rollback() }()

	var productID, quantity int64
	var status string
	row := tx.QueryRowContext(ctx,
		`SELECT producto_id, cantidad, estado FROM reservas WHERE id = $1 FOR UPDATE`,
		reservationID,
	)
	if err := row.Scan(&productID, &quantity, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, ErrReservationNotFound
		}
		return "", false, err
	}
	if status != StatusActive {
		return status, false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock (producto_id, cantidad) VALUES ($1, $2)
		ON CONFLICT (producto_id) DO UPDATE SET cantidad = stock.cantidad + EXCLUDED.cantidad`,
		productID, quantity,
	); err != nil {
		return "", false, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservas SET estado = $2 WHERE id = $1`,
		reservationID, StatusReleased,
	); err != nil {
		return "", false, err
	}

	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	return StatusReleased, true, nil
}

// Consume finalizes a reservation. Stock was already deducted when the
// reservation was created, so only the status changes. Consuming a
// non-active reservation is a no-op that reports the current status.
func (s *Store) Consume(ctx context.Context, reservationID string) (string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	row := tx.QueryRowContext(ctx,
		`SELECT estado FROM reservas WHERE id = $1 FOR UPDATE`,
		reservationID,
	)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, ErrReservationNotFound
		}
		return "", false, err
	}
	if status != StatusActive {
		return status, false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE reservas SET estado = $2 WHERE id = $1`,
		reservationID, StatusConsumed,
	); err != nil {
		return "", false, err
	}

	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	return StatusConsumed, true, nil
}

// UpsertStock sets the absolute stock level for a product.
func (s *Store) UpsertStock(ctx context.Context, productID, quantity int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock (producto_id, cantidad) VALUES ($1, $2)
		ON CONFLICT (producto_id) DO UPDATE SET cantidad = EXCLUDED.cantidad`,
		productID, quantity,
	)
	return err
}

// GetStock reads the stock level for a product; absent products have zero.
func (s *Store) GetStock(ctx context.Context, productID int64) (int64, error) {
	var quantity int64
	row := s.db.QueryRowContext(ctx, `SELECT cantidad FROM stock WHERE producto_id = $1`, productID)
	if err := row.Scan(&quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return quantity, nil
}
