// Package urlstate maps a listing Query to and from its shareable address form.
//
// The address is a canonical query string: keys are sorted, each key appears
// at most once, and keys holding their default value are omitted, so two
// equal views always produce the same address.
package urlstate

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"catalog/browser/internal/domain"
	"catalog/browser/internal/state"
)

const (
	KeyParent    = "parent"
	KeyPage      = "page"
	KeyLimit     = "limit"
	KeyStatus    = "status"
	KeyFeatured  = "featured"
	KeySortBy    = "sortBy"
	KeySortOrder = "sortOrder"
	KeySearch    = "search"
)

// Parent selects a subtree; a nil ID selects the root.
type Parent struct {
	ID *string
}

// Patch is a partial change to the current Query. Nil fields are left as is.
type Patch struct {
	Parent    *Parent
	Page      *int
	Limit     *int
	Status    *domain.Status
	Featured  *domain.Featured
	SortBy    *domain.SortBy
	SortOrder *domain.SortOrder
	Search    *string
}

func (p Patch) WithParent(id *string) Patch {
	p.Parent = &Parent{ID: id}
	return p
}

func (p Patch) WithPage(page int) Patch {
	p.Page = &page
	return p
}

func (p Patch) WithLimit(limit int) Patch {
	p.Limit = &limit
	return p
}

func (p Patch) WithStatus(s domain.Status) Patch {
	p.Status = &s
	return p
}

func (p Patch) WithFeatured(f domain.Featured) Patch {
	p.Featured = &f
	return p
}

func (p Patch) WithSort(by domain.SortBy, order domain.SortOrder) Patch {
	p.SortBy = &by
	p.SortOrder = &order
	return p
}

func (p Patch) WithSearch(search string) Patch {
	p.Search = &search
	return p
}

// Apply merges the patch into q and normalizes the result.
func (p Patch) Apply(q domain.Query) domain.Query {
	if p.Parent != nil {
		q.ParentID = p.Parent.ID
	}
	if p.Page != nil {
		q.Page = *p.Page
	}
	if p.Limit != nil {
		q.Limit = *p.Limit
	}
	if p.Status != nil {
		q.Status = *p.Status
	}
	if p.Featured != nil {
		q.Featured = *p.Featured
	}
	if p.SortBy != nil {
		q.SortBy = *p.SortBy
	}
	if p.SortOrder != nil {
		q.SortOrder = *p.SortOrder
	}
	if p.Search != nil {
		q.Search = *p.Search
	}
	return Normalize(q)
}

// Normalize replaces every out-of-domain field of q with its default.
func Normalize(q domain.Query) domain.Query {
	def := domain.DefaultQuery()
	if q.ParentID != nil && strings.TrimSpace(*q.ParentID) == "" {
		q.ParentID = nil
	}
	if q.ParentID != nil {
		id := *q.ParentID
		q.ParentID = &id
	}
	if q.Page < 1 {
		q.Page = def.Page
	}
	if q.Limit < 1 {
		q.Limit = def.Limit
	}
	if !q.Status.Valid() {
		q.Status = def.Status
	}
	if !q.Featured.Valid() {
		q.Featured = def.Featured
	}
	if !q.SortBy.Valid() {
		q.SortBy = def.SortBy
	}
	if !q.SortOrder.Valid() {
		q.SortOrder = def.SortOrder
	}
	return q
}

// Decode parses an address. Malformed or unknown values fall back to defaults.
func Decode(address string) domain.Query {
	// ParseQuery keeps every well-formed pair even when it reports an error.
	values, _ := url.ParseQuery(strings.TrimPrefix(address, "?"))

	q := domain.DefaultQuery()
	if v := values.Get(KeyParent); v != "" {
		q.ParentID = &v
	}
	if n, err := strconv.Atoi(values.Get(KeyPage)); err == nil {
		q.Page = n
	}
	if n, err := strconv.Atoi(values.Get(KeyLimit)); err == nil {
		q.Limit = n
	}
	if v := values.Get(KeyStatus); v != "" {
		q.Status = domain.Status(v)
	}
	if v := values.Get(KeyFeatured); v != "" {
		q.Featured = domain.Featured(v)
	}
	if v := values.Get(KeySortBy); v != "" {
		q.SortBy = domain.SortBy(v)
	}
	if v := values.Get(KeySortOrder); v != "" {
		q.SortOrder = domain.SortOrder(v)
	}
	q.Search = values.Get(KeySearch)
	return Normalize(q)
}

// Encode renders q in canonical form, omitting default-valued keys.
func Encode(q domain.Query) string {
	q = Normalize(q)
	def := domain.DefaultQuery()

	values := url.Values{}
	if q.ParentID != nil {
		values.Set(KeyParent, *q.ParentID)
	}
	if q.Page != def.Page {
		values.Set(KeyPage, strconv.Itoa(q.Page))
	}
	if q.Limit != def.Limit {
		values.Set(KeyLimit, strconv.Itoa(q.Limit))
	}
	if q.Status != def.Status {
		values.Set(KeyStatus, q.Status.String())
	}
	if q.Featured != def.Featured {
		values.Set(KeyFeatured, q.Featured.String())
	}
	if q.SortBy != def.SortBy {
		values.Set(KeySortBy, q.SortBy.String())
	}
	if q.SortOrder != def.SortOrder {
		values.Set(KeySortOrder, q.SortOrder.String())
	}
	if q.Search != def.Search {
		values.Set(KeySearch, q.Search)
	}
	return values.Encode()
}

// Adapter is the single source of truth for navigation intent.
type Adapter struct {
	store state.AddressStore
}

func NewAdapter(store state.AddressStore) *Adapter {
	return &Adapter{store: store}
}

// Read returns the current Query with defaults filled in.
func (a *Adapter) Read(ctx context.Context) (domain.Query, error) {
	address, err := a.store.Load(ctx)
	if err != nil {
		return domain.DefaultQuery(), fmt.Errorf("failed to read address: %w", err)
	}
	return Decode(address), nil
}

// Write merges patch into the current Query and persists the canonical form.
func (a *Adapter) Write(ctx context.Context, patch Patch) (domain.Query, error) {
	current, err := a.Read(ctx)
	if err != nil {
		return current, err
	}

	next := patch.Apply(current)
	if err := a.store.Save(ctx, Encode(next)); err != nil {
		return current, fmt.Errorf("failed to write address: %w", err)
	}
	return next, nil
}

// SetParent moves into the subtree of id (nil for the root) on its first page.
func (a *Adapter) SetParent(ctx context.Context, id *string) (domain.Query, error) {
	return a.Write(ctx, Patch{}.WithParent(id).WithPage(domain.DefaultPage))
}

// Address returns the persisted, shareable form of the current Query.
func (a *Adapter) Address(ctx context.Context) (string, error) {
	q, err := a.Read(ctx)
	if err != nil {
		return "", err
	}
	return Encode(q), nil
}
