package category

// Option is a category an employee can pick when filing an expense.
type Option struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type CatalogResponse struct {
	Categories []Option `json:"categories"`
	Total      int      `json:"total"`
}

func optionsOf(categories []*Category) []Option {
	options := make([]Option, 0, len(categories))
	for _, c := range categories {
		if c.Selectable() {
			options = append(options, Option{ID: c.ID, Name: c.Name, Description: c.Description})
		}
	}
	return options
}
