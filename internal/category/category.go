package category

import (
	"strings"
	"time"

	categoryDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/category"
)

// Category is an entry of the global expense category catalog. Expenses
// reference it by Name, which is stored in its canonical lower-case form.
type Category struct {
	ID          int64
	Name        string
	Description string
	Active      bool
	CreatedAt   time.Time
}

// CanonicalName is the form category names are stored and matched in.
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func NewCategory(name, description string) *Category {
	return &Category{
		Name:        CanonicalName(name),
		Description: strings.TrimSpace(description),
		Active:      true,
		CreatedAt:   time.Now(),
	}
}

// Selectable reports whether new expenses may be filed under the category.
func (c *Category) Selectable() bool {
	return c != nil && c.Active
}

func (c *Category) row() *categoryDatamodel.ExpenseCategory {
	return &categoryDatamodel.ExpenseCategory{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		IsActive:    c.Active,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.CreatedAt,
	}
}

// ToRow and FromRow convert between the catalog entry and its table row.
func ToRow(c *Category) *categoryDatamodel.ExpenseCategory { return c.row() }

func FromRow(r *categoryDatamodel.ExpenseCategory) *Category {
	return &Category{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Active:      r.IsActive,
		CreatedAt:   r.CreatedAt,
	}
}
