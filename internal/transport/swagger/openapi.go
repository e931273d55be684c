package swagger

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Spec is a loaded and validated OpenAPI document.
type Spec struct {
	Doc  *openapi3.T
	path string
}

// LoadSpec parses the OpenAPI document at path and validates it.
func LoadSpec(ctx context.Context, path string) (*Spec, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec %s: %w", path, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi spec %s: %w", path, err)
	}
	return &Spec{Doc: doc, path: path}, nil
}

// ServeFile serves the document as written on disk.
func (s *Spec) ServeFile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	http.ServeFile(w, r, s.path)
}

// Documents reports whether method and path (chi pattern, relative to the server base) are described.
func (s *Spec) Documents(method, path string) bool {
	item := s.Doc.Paths.Find(strings.TrimSuffix(path, "/"))
	if item == nil {
		return false
	}
	return item.GetOperation(strings.ToUpper(method)) != nil
}
