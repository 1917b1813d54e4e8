// Package catalogo owns the product catalog.
package catalogo

import (
	"context"
	"database/sql"
	"errors"
)

// ErrProductNotFound signals an unknown product id.
var ErrProductNotFound = errors.New("producto no existe")

// Product is a catalog entry.
type Product struct {
	ID     int64   `json:"id"`
	Nombre string  `json:"nombre"`
	Precio float64 `json:"precio"`
}

// ProductStore is the catalog surface consumed by the HTTP layer and the
// cache decorator.
type ProductStore interface {
	Create(ctx context.Context, nombre string, precio float64) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context) ([]Product, error)
	Update(ctx context.Context, id int64, nombre *string, precio *float64) error
	Delete(ctx context.Context, id int64) error
}

// Store persists products in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore constructs a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewStoreWithSchema initializes the schema then returns the store.
func NewStoreWithSchema(ctx context.Context, db *sql.DB) (*Store, error) {
	store := NewStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the products table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS productos (
			id BIGSERIAL PRIMARY KEY,
			nombre TEXT NOT NULL,
			precio DOUBLE PRECISION NOT NULL CHECK (precio >= 0)
		)
	`)
	return err
}

func (s *Store) Create(ctx context.Context, nombre string, precio float64) (Product, error) {
	product := Product{Nombre: nombre, Precio: precio}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO productos (nombre, precio) VALUES ($1, $2) RETURNING id`,
		nombre, precio,
	)
	if err := row.Scan(&product.ID); err != nil {
		return Product{}, err
	}
	return product, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Product, error) {
	var product Product
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nombre, precio FROM productos WHERE id = $1`, id)
	if err := row.Scan(&product.ID, &product.Nombre, &product.Precio); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return product, nil
}

func (s *Store) List(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, nombre, precio FROM productos ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var product Product
		if err := rows.Scan(&product.ID, &product.Nombre, &product.Precio); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// Update changes the provided fields only; nil means keep the current value.
func (s *Store) Update(ctx context.Context, id int64, nombre *string, precio *float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE productos
		SET nombre = COALESCE($2, nombre), precio = COALESCE($3, precio)
		WHERE id = $1`,
		id, nombre, precio,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM productos WHERE id = $1`, id)
	return err
}
