package store

import (
	"context"
	"database/sql"
	"errors"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
)

// CreateCustomer inserts a customer. Customers are only needed here as the
// join target of orders; their lifecycle is managed elsewhere.
func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	err := s.db.GetContext(ctx, &c.CreatedAt, `
		INSERT INTO customers (id, store_id, name, phone, email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		c.ID, c.StoreID, c.Name, c.Phone, c.Email)
	if err != nil {
		return apperr.Database("failed to insert customer", err)
	}
	return nil
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id string) (*models.Customer, error) {
	var c models.Customer
	err := s.db.GetContext(ctx, &c, "SELECT * FROM customers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Customer with ID %s not found", id)
	}
	if err != nil {
		return nil, apperr.Database("failed to get customer", err)
	}
	return &c, nil
}
