package categories

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Category is static reference data attached to transactions for reporting.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrNameTaken indicates a duplicate category name.
var ErrNameTaken = errors.New("categories: name already exists")
