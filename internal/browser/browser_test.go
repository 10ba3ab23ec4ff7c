package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"catalog/browser/internal/domain"
	"catalog/browser/internal/listing"
	"catalog/browser/internal/mutation"
	"catalog/browser/internal/pagination"
	"catalog/browser/internal/state"
	"catalog/browser/internal/urlstate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog is an in-memory category tree serving as both listing source
// and mutator.
type fakeCatalog struct {
	mu      sync.Mutex
	nodes   []domain.Node
	calls   int
	gates   map[string]chan struct{} // keyed by search text
	listErr error
	mutErr  error
}

func newFakeCatalog(nodes ...domain.Node) *fakeCatalog {
	return &fakeCatalog{nodes: nodes, gates: make(map[string]chan struct{})}
}

func node(id, name string, parent *string) domain.Node {
	return domain.Node{ID: id, Name: name, IsActive: true, ParentID: parent}
}

func ptr(s string) *string {
	return &s
}

// seededCatalog holds 30 root categories, with Node 01 > Child 1 > Leaf 1
// below the first of them.
func seededCatalog() *fakeCatalog {
	var nodes []domain.Node
	for i := 1; i <= 30; i++ {
		nodes = append(nodes, node(fmt.Sprintf("node-%02d", i), fmt.Sprintf("Node %02d", i), nil))
	}
	nodes = append(nodes,
		node("child-1", "Child 1", ptr("node-01")),
		node("child-2", "Child 2", ptr("node-01")),
		node("leaf-1", "Leaf 1", ptr("child-1")),
	)
	return newFakeCatalog(nodes...)
}

func (f *fakeCatalog) block(search string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[search] = gate
	return gate
}

func (f *fakeCatalog) failLists(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCatalog) List(ctx context.Context, q domain.Query) (*domain.ListResult, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[q.Search]
	err := f.listErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []domain.Node
	for _, n := range f.nodes {
		parent := ""
		if n.ParentID != nil {
			parent = *n.ParentID
		}
		if parent != q.Parent() {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(n.Name), strings.ToLower(q.Search)) {
			continue
		}
		if q.Status == domain.StatusActive && !n.IsActive || q.Status == domain.StatusInactive && n.IsActive {
			continue
		}
		matched = append(matched, n)
	}

	total := len(matched)
	start := min((q.Page-1)*q.Limit, total)
	end := min(start+q.Limit, total)

	result := &domain.ListResult{
		Nodes: append([]domain.Node{}, matched[start:end]...),
		Pagination: domain.Pagination{
			TotalCount: total,
			TotalPages: pagination.TotalPages(total, q.Limit),
			Page:       q.Page,
			Limit:      q.Limit,
		},
	}
	if q.ParentID != nil {
		result.Parent = f.parentInfoLocked(*q.ParentID)
	}
	return result, nil
}

func (f *fakeCatalog) parentInfoLocked(id string) *domain.ParentInfo {
	byID := make(map[string]domain.Node, len(f.nodes))
	for _, n := range f.nodes {
		byID[n.ID] = n
	}
	self, ok := byID[id]
	if !ok {
		return nil
	}

	var ancestors []domain.Ancestor
	for cur := self.ParentID; cur != nil; {
		a := byID[*cur]
		ancestors = append([]domain.Ancestor{{ID: a.ID, Name: a.Name}}, ancestors...)
		cur = a.ParentID
	}
	return &domain.ParentInfo{ID: self.ID, Name: self.Name, Ancestors: ancestors}
}

func (f *fakeCatalog) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutErr != nil {
		return f.mutErr
	}
	for i, n := range f.nodes {
		if n.ID == id {
			f.nodes = append(f.nodes[:i], f.nodes[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeCatalog) SetActive(_ context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutErr != nil {
		return f.mutErr
	}
	for i := range f.nodes {
		if f.nodes[i].ID == id {
			f.nodes[i].IsActive = active
			return nil
		}
	}
	return domain.ErrNotFound
}

func newTestBrowser(t *testing.T, cat *fakeCatalog, address string) *Browser {
	t.Helper()
	engine := listing.NewEngine(cat)
	t.Cleanup(engine.Close)
	adapter := urlstate.NewAdapter(state.NewMemoryAddressStore(address))
	return New(adapter, engine, mutation.NewCoordinator(cat, engine, nil, "test"))
}

func ids(nodes []domain.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestLoadRootFirstPage(t *testing.T) {
	b := newTestBrowser(t, seededCatalog(), "")

	v := b.Load(context.Background())

	require.Nil(t, v.Err)
	assert.Len(t, v.Nodes, 12)
	assert.Equal(t, "node-01", v.Nodes[0].ID)
	assert.Equal(t, "1 to 12 of 30", v.Pagination.Range)
	assert.Equal(t, []int{1, 2, 3}, v.Pagination.Pages)
	assert.True(t, v.Pagination.HasNext)
	assert.False(t, v.Pagination.HasPrev)
	assert.Equal(t, "", v.Address)
	require.Len(t, v.Breadcrumb, 1)
	assert.Equal(t, domain.RootName, v.Breadcrumb[0].Name)
	assert.True(t, v.Breadcrumb[0].Current)
	assert.False(t, v.Loading)
}

func TestNextAndPrevPage(t *testing.T) {
	b := newTestBrowser(t, seededCatalog(), "")
	ctx := context.Background()
	b.Load(ctx)

	v := b.NextPage(ctx)
	assert.Equal(t, 2, v.Pagination.Page)
	assert.Equal(t, "13 to 24 of 30", v.Pagination.Range)
	assert.Equal(t, "page=2", v.Address)

	v = b.NextPage(ctx)
	assert.Equal(t, "25 to 30 of 30", v.Pagination.Range)
	assert.False(t, v.Pagination.HasNext)

	v = b.NextPage(ctx)
	assert.Equal(t, 3, v.Pagination.Page)

	v = b.PrevPage(ctx)
	assert.Equal(t, 2, v.Pagination.Page)
}

func TestSetPageClampsToKnownTotal(t *testing.T) {
	cat := seededCatalog()
	b := newTestBrowser(t, cat, "")
	ctx := context.Background()
	b.Load(ctx)

	v := b.SetPage(ctx, 20)

	assert.Equal(t, 3, v.Pagination.Page)
	assert.Equal(t, "page=3", v.Address)
	assert.Equal(t, 2, cat.callCount())
}

func TestOutOfRangeAddressIsClampedAfterFetch(t *testing.T) {
	b := newTestBrowser(t, seededCatalog(), "page=20")

	v := b.Load(context.Background())

	assert.Equal(t, 3, v.Pagination.Page)
	assert.Equal(t, "page=3", v.Address)
	assert.Equal(t, []string{"node-25", "node-26", "node-27", "node-28", "node-29", "node-30"}, ids(v.Nodes))
}

func TestBreadcrumbFollowsNavigation(t *testing.T) {
	cat := seededCatalog()
	b := newTestBrowser(t, cat, "")
	ctx := context.Background()
	b.Load(ctx)

	v := b.SetParent(ctx, ptr("child-1"))
	require.Len(t, v.Breadcrumb, 3)
	assert.Equal(t, []string{domain.RootName, "Node 01", "Child 1"},
		[]string{v.Breadcrumb[0].Name, v.Breadcrumb[1].Name, v.Breadcrumb[2].Name})
	assert.True(t, v.Breadcrumb[2].Current)
	assert.Equal(t, []string{"leaf-1"}, ids(v.Nodes))
	assert.Equal(t, "parent=child-1", v.Address)

	calls := cat.callCount()
	v = b.SelectCrumb(ctx, 2)
	assert.Equal(t, calls, cat.callCount(), "the current crumb is not clickable")
	assert.Len(t, v.Breadcrumb, 3)

	v = b.SelectCrumb(ctx, 1)
	require.Len(t, v.Breadcrumb, 2)
	assert.Equal(t, []string{"child-1", "child-2"}, ids(v.Nodes))

	v = b.Up(ctx)
	assert.Len(t, v.Breadcrumb, 1)
	assert.Equal(t, "", v.Address)
	assert.Len(t, v.Nodes, 12)
}

func TestSetParentResetsPage(t *testing.T) {
	b := newTestBrowser(t, seededCatalog(), "page=2")
	ctx := context.Background()
	b.Load(ctx)

	v := b.SetParent(ctx, ptr("node-01"))

	assert.Equal(t, 1, v.Pagination.Page)
	assert.Equal(t, "parent=node-01", v.Address)
}

func TestSetFilterRestartsAtFirstPage(t *testing.T) {
	b := newTestBrowser(t, seededCatalog(), "page=2")
	ctx := context.Background()
	b.Load(ctx)

	v := b.SetFilter(ctx, urlstate.Patch{}.WithStatus(domain.StatusInactive))

	assert.Equal(t, "status=inactive", v.Address)
	assert.Empty(t, v.Nodes)
	assert.NotNil(t, v.Nodes)
	assert.Equal(t, "0 to 0 of 0", v.Pagination.Range)
	assert.False(t, v.ShowsErrorPanel())
}

func TestLatestQueryWins(t *testing.T) {
	cat := newFakeCatalog(node("a1", "alpha", nil), node("b1", "beta", nil))
	gate := cat.block("alpha")
	b := newTestBrowser(t, cat, "")
	ctx := context.Background()

	done := make(chan View, 1)
	go func() {
		done <- b.SetFilter(ctx, urlstate.Patch{}.WithSearch("alpha"))
	}()
	require.Eventually(t, func() bool { return cat.callCount() == 1 }, time.Second, time.Millisecond)

	v := b.SetFilter(ctx, urlstate.Patch{}.WithSearch("beta"))
	assert.Equal(t, []string{"b1"}, ids(v.Nodes))

	close(gate)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("slow query never settled")
	}

	v = b.View()
	assert.Equal(t, []string{"b1"}, ids(v.Nodes))
	assert.Equal(t, "search=beta", v.Address)
}

func TestDeleteRefetchesCurrentPage(t *testing.T) {
	cat := seededCatalog()
	b := newTestBrowser(t, cat, "")
	ctx := context.Background()
	b.Load(ctx)

	v := b.Delete(ctx, "node-05")

	require.Empty(t, v.Notice)
	assert.Equal(t, 2, cat.callCount())
	assert.NotContains(t, ids(v.Nodes), "node-05")
	assert.Equal(t, "1 to 12 of 29", v.Pagination.Range)
}

func TestToggleStatusRefetches(t *testing.T) {
	cat := seededCatalog()
	b := newTestBrowser(t, cat, "")
	ctx := context.Background()
	b.Load(ctx)

	v := b.ToggleStatus(ctx, "node-01")

	require.Empty(t, v.Notice)
	assert.Equal(t, "node-01", v.Nodes[0].ID)
	assert.False(t, v.Nodes[0].IsActive)
}

func TestToggleStatusOfUnknownNode(t *testing.T) {
	cat := seededCatalog()
	b := newTestBrowser(t, cat, "")
	ctx := context.Background()
	b.Load(ctx)

	v := b.ToggleStatus(ctx, "nope")

	assert.Equal(t, "Category not found", v.Notice)
	assert.Equal(t, 1, cat.callCount())
}

func TestFailedMutationKeepsViewAndCache(t *testing.T) {
	cat := seededCatalog()
	b := newTestBrowser(t, cat, "")
	ctx := context.Background()
	before := b.Load(ctx)

	cat.mutErr = errors.New("connection reset")
	v := b.Delete(ctx, "node-05")

	assert.Equal(t, "Failed to delete category", v.Notice)
	assert.Equal(t, ids(before.Nodes), ids(v.Nodes))
	assert.Equal(t, 1, cat.callCount())

	v = b.Load(ctx)
	assert.Equal(t, 1, cat.callCount(), "cache must survive a failed mutation")
	assert.Empty(t, v.Notice)
}

func TestFirstFetchFailureShowsErrorPanel(t *testing.T) {
	cat := seededCatalog()
	cat.failLists(errors.New("connection refused"))
	b := newTestBrowser(t, cat, "")
	ctx := context.Background()

	v := b.Load(ctx)

	assert.True(t, v.ShowsErrorPanel())
	assert.Nil(t, v.Nodes)
	assert.Contains(t, v.Error, "failed to load categories")
	var fetchErr *FetchError
	require.ErrorAs(t, v.Err, &fetchErr)
	assert.True(t, fetchErr.Retryable())

	cat.failLists(nil)
	v = b.Retry(ctx)

	assert.False(t, v.ShowsErrorPanel())
	assert.Nil(t, v.Err)
	assert.Len(t, v.Nodes, 12)
}

func TestLaterFetchFailureKeepsPreviousNodes(t *testing.T) {
	cat := seededCatalog()
	b := newTestBrowser(t, cat, "")
	ctx := context.Background()
	before := b.Load(ctx)

	cat.failLists(errors.New("timeout"))
	v := b.Refresh(ctx)

	assert.True(t, v.Stale())
	assert.False(t, v.ShowsErrorPanel())
	assert.Equal(t, ids(before.Nodes), ids(v.Nodes))
}

func TestFailureAfterEmptyPageKeepsEmptyList(t *testing.T) {
	cat := seededCatalog()
	b := newTestBrowser(t, cat, "")
	ctx := context.Background()

	v := b.SetFilter(ctx, urlstate.Patch{}.WithStatus(domain.StatusInactive))
	require.NotNil(t, v.Nodes)
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"nodes":[]`)

	cat.failLists(errors.New("timeout"))
	v = b.SetFilter(ctx, urlstate.Patch{}.WithSearch("x"))

	assert.True(t, v.Stale())
	assert.False(t, v.ShowsErrorPanel())
	assert.NotNil(t, v.Nodes)
	assert.Empty(t, v.Nodes)
}

func TestInvalidatedRefetches(t *testing.T) {
	cat := seededCatalog()
	b := newTestBrowser(t, cat, "")
	ctx := context.Background()
	b.Load(ctx)

	b.Invalidated(ctx)

	assert.Equal(t, 2, cat.callCount())
}

func TestDispatchRoutesEvents(t *testing.T) {
	b := newTestBrowser(t, seededCatalog(), "")
	ctx := context.Background()

	v := b.Dispatch(ctx, Load{})
	assert.Equal(t, 1, v.Pagination.Page)

	v = b.Dispatch(ctx, SetPage{Page: 2})
	assert.Equal(t, 2, v.Pagination.Page)

	v = b.Dispatch(ctx, SetParent{ID: ptr("node-01")})
	assert.Len(t, v.Breadcrumb, 2)

	v = b.Dispatch(ctx, SelectCrumb{Index: 0})
	assert.Len(t, v.Breadcrumb, 1)

	v = b.Dispatch(ctx, SetFilter{Patch: urlstate.Patch{}.WithSearch("Node 3")})
	assert.Equal(t, []string{"node-30"}, ids(v.Nodes))
	assert.Equal(t, "search=Node+3", v.Address)
}
