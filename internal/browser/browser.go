package browser

import (
	"context"
	"errors"
	"sync"

	"catalog/browser/internal/breadcrumb"
	"catalog/browser/internal/domain"
	"catalog/browser/internal/listing"
	"catalog/browser/internal/mutation"
	"catalog/browser/internal/pagination"
	"catalog/browser/internal/urlstate"

	log "github.com/sirupsen/logrus"
)

// Browser drives navigation over the category tree. Every input is a method
// call (or a Dispatch of an Event) and every method returns the settled View.
type Browser struct {
	address   *urlstate.Adapter
	engine    *listing.Engine
	mutations *mutation.Coordinator

	mu     sync.Mutex
	view   View
	issued string         // key of the most recently issued query
	loaded bool           // at least one page has been shown
	known  map[string]int // total pages per result scope
}

func New(address *urlstate.Adapter, engine *listing.Engine, mutations *mutation.Coordinator) *Browser {
	root := domain.DefaultQuery()
	return &Browser{
		address:   address,
		engine:    engine,
		mutations: mutations,
		known:     make(map[string]int),
		view: View{
			Query:      root,
			Breadcrumb: breadcrumb.Build(nil, nil, ""),
			Pagination: pagination.Describe(domain.Pagination{Page: root.Page, Limit: root.Limit}),
		},
	}
}

// View returns a snapshot of the current view model.
func (b *Browser) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view.clone()
}

// Load shows whatever the persisted address points at.
func (b *Browser) Load(ctx context.Context) View {
	return b.load(ctx, false)
}

// Refresh refetches the current page, bypassing the cache.
func (b *Browser) Refresh(ctx context.Context) View {
	return b.load(ctx, true)
}

// Retry re-reads the current page after a failed fetch.
func (b *Browser) Retry(ctx context.Context) View {
	return b.load(ctx, false)
}

// SetParent drills into id, or back to the root when id is nil.
func (b *Browser) SetParent(ctx context.Context, id *string) View {
	if _, err := b.address.SetParent(ctx, id); err != nil {
		return b.notice(err)
	}
	return b.load(ctx, false)
}

// SelectCrumb navigates to the breadcrumb entry at index. The current
// location is not clickable and leaves the view as is.
func (b *Browser) SelectCrumb(ctx context.Context, index int) View {
	b.mu.Lock()
	trail := b.view.Breadcrumb
	b.mu.Unlock()

	if index < 0 || index >= len(trail) {
		return b.View()
	}
	id, ok := breadcrumb.Target(trail[index])
	if !ok {
		return b.View()
	}
	return b.SetParent(ctx, id)
}

// Up moves to the parent of the current location.
func (b *Browser) Up(ctx context.Context) View {
	b.mu.Lock()
	trail := b.view.Breadcrumb
	b.mu.Unlock()

	if len(trail) < 2 {
		return b.View()
	}
	return b.SelectCrumb(ctx, len(trail)-2)
}

// SetPage moves to page n, clamped to the known page count.
func (b *Browser) SetPage(ctx context.Context, n int) View {
	q, err := b.address.Read(ctx)
	if err != nil {
		log.Warnf("⚠️ %v, using defaults", err)
	}
	n = b.clampPage(q, n)
	if _, err := b.address.Write(ctx, urlstate.Patch{}.WithPage(n)); err != nil {
		return b.notice(err)
	}
	return b.load(ctx, false)
}

func (b *Browser) NextPage(ctx context.Context) View {
	b.mu.Lock()
	page := b.view.Pagination.Page
	hasNext := b.view.Pagination.HasNext
	b.mu.Unlock()

	if !hasNext {
		return b.View()
	}
	return b.SetPage(ctx, page+1)
}

func (b *Browser) PrevPage(ctx context.Context) View {
	b.mu.Lock()
	page := b.view.Pagination.Page
	hasPrev := b.view.Pagination.HasPrev
	b.mu.Unlock()

	if !hasPrev {
		return b.View()
	}
	return b.SetPage(ctx, page-1)
}

// SetFilter applies filter, sort or search changes. Unless the patch names a
// page, the listing restarts at page 1.
func (b *Browser) SetFilter(ctx context.Context, patch urlstate.Patch) View {
	if patch.Page == nil {
		patch = patch.WithPage(domain.DefaultPage)
	}
	if _, err := b.address.Write(ctx, patch); err != nil {
		return b.notice(err)
	}
	return b.load(ctx, false)
}

// Delete removes a category. On failure the view and the cache are left as
// they were and the reason is shown as a notice.
func (b *Browser) Delete(ctx context.Context, id string) View {
	if err := b.mutations.Delete(ctx, id); err != nil {
		return b.notice(err)
	}
	return b.load(ctx, false)
}

// ToggleStatus flips the active flag of a category on the current page.
func (b *Browser) ToggleStatus(ctx context.Context, id string) View {
	node, ok := b.nodeByID(id)
	if !ok {
		return b.notice(&mutation.MutationError{Op: "set_active", ID: id, Message: "Category not found", Err: domain.ErrNotFound})
	}
	if err := b.mutations.SetActive(ctx, id, !node.IsActive); err != nil {
		return b.notice(err)
	}
	return b.load(ctx, false)
}

// Invalidated reacts to a change made elsewhere: the cache is dropped and the
// current page is fetched again.
func (b *Browser) Invalidated(ctx context.Context) View {
	b.engine.Invalidate()
	return b.load(ctx, false)
}

// Close aborts in-flight fetches. Late results never reach the cache.
func (b *Browser) Close() {
	b.engine.Cancel()
}

func (b *Browser) nodeByID(id string) (domain.Node, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, n := range b.view.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return domain.Node{}, false
}

func (b *Browser) clampPage(q domain.Query, page int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if total, ok := b.known[q.ScopeKey()]; ok {
		return pagination.Clamp(page, total)
	}
	if page < 1 {
		return 1
	}
	return page
}

func (b *Browser) load(ctx context.Context, force bool) View {
	q, err := b.address.Read(ctx)
	if err != nil {
		log.Warnf("⚠️ %v, using defaults", err)
	}

	if clamped := b.clampPage(q, q.Page); clamped != q.Page {
		if q, err = b.address.Write(ctx, urlstate.Patch{}.WithPage(clamped)); err != nil {
			return b.notice(err)
		}
	}

	b.mu.Lock()
	b.issued = q.Key()
	b.view.Loading = true
	b.view.Notice = ""
	b.mu.Unlock()

	var result *domain.ListResult
	if force {
		result, err = b.engine.Refresh(ctx, q)
	} else {
		result, err = b.engine.Fetch(ctx, q)
	}
	if errors.Is(err, listing.ErrStale) || errors.Is(err, listing.ErrCanceled) {
		return b.View()
	}

	clamped, view := b.settle(ctx, q, result, err)
	if clamped == 0 {
		return view
	}

	log.Debugf("📄 Page %d is outside the result, moving to page %d", q.Page, clamped)
	if _, err := b.address.Write(ctx, urlstate.Patch{}.WithPage(clamped)); err != nil {
		return b.notice(err)
	}
	return b.load(ctx, false)
}

// settle applies a fetch outcome to the view if q is still the latest issued
// query. It returns a non-zero page when q.Page lies outside the result and
// must be clamped before anything is rendered.
func (b *Browser) settle(ctx context.Context, q domain.Query, result *domain.ListResult, err error) (int, View) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.issued != q.Key() {
		return 0, b.view.clone()
	}

	switch {
	case err != nil && ctx.Err() != nil:
		b.view.Loading = false
	case err != nil:
		b.renderError(q, err)
	default:
		totalPages := result.Pagination.TotalPages
		if totalPages == 0 && result.Pagination.TotalCount > 0 {
			totalPages = pagination.TotalPages(result.Pagination.TotalCount, q.Limit)
		}
		b.known[q.ScopeKey()] = totalPages

		if clamped := pagination.Clamp(q.Page, totalPages); clamped != q.Page {
			return clamped, b.view.clone()
		}
		b.render(q, result, totalPages)
	}
	return 0, b.view.clone()
}

func (b *Browser) render(q domain.Query, result *domain.ListResult, totalPages int) {
	nodes := result.Nodes
	if nodes == nil {
		nodes = []domain.Node{}
	}

	b.view = View{
		Query:      q,
		Address:    urlstate.Encode(q),
		Nodes:      nodes,
		Breadcrumb: breadcrumb.FromResult(q.ParentID, result),
		Pagination: pagination.Describe(domain.Pagination{
			TotalCount: result.Pagination.TotalCount,
			TotalPages: totalPages,
			Page:       q.Page,
			Limit:      q.Limit,
		}),
	}
	b.loaded = true
}

func (b *Browser) renderError(q domain.Query, err error) {
	fetchErr := &FetchError{Query: q, Err: err}
	log.Warnf("❌ %v", fetchErr)

	b.view.Loading = false
	b.view.Err = fetchErr
	b.view.Error = fetchErr.Error()
	if !b.loaded {
		b.view.Query = q
		b.view.Address = urlstate.Encode(q)
		b.view.Nodes = nil
		b.view.Breadcrumb = breadcrumb.Build(q.ParentID, nil, "")
	}
}

func (b *Browser) notice(err error) View {
	msg := err.Error()
	var mErr *mutation.MutationError
	if errors.As(err, &mErr) {
		msg = mErr.Message
	} else {
		log.Warnf("⚠️ %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.view.Notice = msg
	return b.view.clone()
}
