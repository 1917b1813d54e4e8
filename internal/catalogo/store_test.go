package catalogo

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		mock.ExpectClose()
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	return NewStore(db), mock
}

func TestStore_Create(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO productos").
		WithArgs("yerba", 15000.0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	product, err := store.Create(context.Background(), "yerba", 15000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if product.ID != 1 || product.Nombre != "yerba" || product.Precio != 15000 {
		t.Fatalf("unexpected product: %+v", product)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, nombre, precio FROM productos").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), 99)
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestStore_List(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, nombre, precio FROM productos").
		WillReturnRows(sqlmock.NewRows([]string{"id", "nombre", "precio"}).
			AddRow(int64(1), "yerba", 15000.0).
			AddRow(int64(2), "azucar", 8000.0))

	products, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(products) != 2 || products[1].Nombre != "azucar" {
		t.Fatalf("unexpected products: %+v", products)
	}
}

func TestStore_Update_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	nombre := "yerba premium"
	mock.ExpectExec("UPDATE productos").
		WithArgs(int64(99), "yerba premium", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), 99, &nombre, nil)
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM productos").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Delete(context.Background(), 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
