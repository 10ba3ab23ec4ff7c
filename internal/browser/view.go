package browser

import (
	"fmt"
	"slices"

	"catalog/browser/internal/domain"
	"catalog/browser/internal/pagination"
)

// FetchError is a failed listing fetch. It is always retryable.
type FetchError struct {
	Query domain.Query
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load categories: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Retryable() bool {
	return true
}

// View is the output model handed to the presentation layer.
type View struct {
	Query      domain.Query          `json:"-"`
	Address    string                `json:"address"`
	Nodes      []domain.Node         `json:"nodes"`
	Breadcrumb []domain.Crumb        `json:"breadcrumb"`
	Pagination pagination.Descriptor `json:"pagination"`
	Loading    bool                  `json:"loading"`
	Err        error                 `json:"-"`
	Error      string                `json:"error,omitempty"`
	Notice     string                `json:"notice,omitempty"` // Transient mutation failure
}

// ShowsErrorPanel reports whether the list is replaced by an error panel,
// which happens only when a fetch failed and nothing was loaded before.
func (v View) ShowsErrorPanel() bool {
	return v.Err != nil && v.Nodes == nil
}

// Stale reports whether the visible list belongs to an earlier, successful
// fetch while the latest fetch failed.
func (v View) Stale() bool {
	return v.Err != nil && v.Nodes != nil
}

func (v View) clone() View {
	out := v
	out.Nodes = slices.Clone(v.Nodes)
	out.Breadcrumb = slices.Clone(v.Breadcrumb)
	out.Pagination.Pages = slices.Clone(v.Pagination.Pages)
	return out
}
