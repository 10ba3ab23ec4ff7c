package browser

import (
	"context"

	"catalog/browser/internal/urlstate"

	log "github.com/sirupsen/logrus"
)

// Event is a single user or system input to the browser.
type Event interface {
	event()
}

type (
	Load        struct{}
	Refresh     struct{}
	Retry       struct{}
	Up          struct{}
	NextPage    struct{}
	PrevPage    struct{}
	Invalidated struct{}

	SetParent struct {
		ID *string // nil is the root
	}

	SelectCrumb struct {
		Index int
	}

	SetPage struct {
		Page int
	}

	SetFilter struct {
		Patch urlstate.Patch
	}

	Delete struct {
		ID string
	}

	ToggleStatus struct {
		ID string
	}
)

func (Load) event()         {}
func (Refresh) event()      {}
func (Retry) event()        {}
func (Up) event()           {}
func (NextPage) event()     {}
func (PrevPage) event()     {}
func (Invalidated) event()  {}
func (SetParent) event()    {}
func (SelectCrumb) event()  {}
func (SetPage) event()      {}
func (SetFilter) event()    {}
func (Delete) event()       {}
func (ToggleStatus) event() {}

// Dispatch routes e to the matching operation and returns the settled view.
func (b *Browser) Dispatch(ctx context.Context, e Event) View {
	switch e := e.(type) {
	case Load:
		return b.Load(ctx)
	case Refresh:
		return b.Refresh(ctx)
	case Retry:
		return b.Retry(ctx)
	case Up:
		return b.Up(ctx)
	case NextPage:
		return b.NextPage(ctx)
	case PrevPage:
		return b.PrevPage(ctx)
	case Invalidated:
		return b.Invalidated(ctx)
	case SetParent:
		return b.SetParent(ctx, e.ID)
	case SelectCrumb:
		return b.SelectCrumb(ctx, e.Index)
	case SetPage:
		return b.SetPage(ctx, e.Page)
	case SetFilter:
		return b.SetFilter(ctx, e.Patch)
	case Delete:
		return b.Delete(ctx, e.ID)
	case ToggleStatus:
		return b.ToggleStatus(ctx, e.ID)
	default:
		log.Warnf("⚠️ Unknown browser event %T", e)
		return b.View()
	}
}
