package company

import (
	"time"

	companyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/company"
)

type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

var countryCurrencies = map[string]string{
	"US": "USD",
	"IN": "INR",
	"UK": "GBP",
}

const defaultCurrency = "USD"

// CurrencyForCountry picks the company's reporting currency from its country code.
func CurrencyForCountry(country string) string {
	if c, ok := countryCurrencies[country]; ok {
		return c
	}
	return defaultCurrency
}

func (c *Company) ToDataModel() *companyDatamodel.Company {
	return &companyDatamodel.Company{
		ID:        c.ID,
		Name:      c.Name,
		Country:   c.Country,
		Currency:  c.Currency,
		CreatedAt: c.CreatedAt,
	}
}

func FromDataModel(m *companyDatamodel.Company) *Company {
	return &Company{
		ID:        m.ID,
		Name:      m.Name,
		Country:   m.Country,
		Currency:  m.Currency,
		CreatedAt: m.CreatedAt,
	}
}
