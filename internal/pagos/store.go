// Package pagos is the payment gateway: an approve/reject oracle that
// records every attempt.
package pagos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Payment outcomes.
const (
	EstadoAprobado  = "aprobado"
	EstadoRechazado = "rechazado"
)

// Payment is a recorded payment attempt.
type Payment struct {
	ID         string
	Monto      float64
	Moneda     string
	Medio      string
	Referencia string
	Estado     string
	CreatedAt  time.Time
}

// Store persists payment attempts in Postgres.
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

// InitSchema creates the payments table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pagos (
			id UUID PRIMARY KEY,
			monto DOUBLE PRECISION NOT NULL,
			moneda TEXT NOT NULL,
			medio TEXT NOT NULL,
			referencia TEXT,
			estado TEXT NOT NULL CHECK (estado IN ('aprobado', 'rechazado')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// Record inserts one payment attempt, approved or rejected alike.
func (s *Store) Record(ctx context.Context, monto float64, moneda, medio, referencia, estado string) (Payment, error) {
	payment := Payment{
		ID:         s.newID(),
		Monto:      monto,
		Moneda:     moneda,
		Medio:      medio,
		Referencia: referencia,
		Estado:     estado,
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO pagos (id, monto, moneda, medio, referencia, estado)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING created_at`,
		payment.ID, monto, moneda, medio, referencia, estado,
	)
	if err := row.Scan(&payment.CreatedAt); err != nil {
		return Payment{}, err
	}
	return payment, nil
}
