package customer

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrEmailTaken is returned when registering a customer with an email
	// that is already in use.
	ErrEmailTaken = errors.New("email already registered")

	// ErrEmptyName and ErrInvalidEmail reject malformed registration input.
	ErrEmptyName    = errors.New("name required")
	ErrInvalidEmail = errors.New("valid email required")
)

// Customer represents a registered customer that may place orders.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// New validates registration input and returns a Customer with a fresh ID.
func New(name, email string) (*Customer, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, ErrEmptyName
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	return &Customer{
		ID:    uuid.New().String(),
		Name:  name,
		Email: email,
	}, nil
}

// Repository defines persistence operations for customers.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	FindByID(ctx context.Context, id string) (*Customer, error)
	FindByEmail(ctx context.Context, email string) (*Customer, error)
}
