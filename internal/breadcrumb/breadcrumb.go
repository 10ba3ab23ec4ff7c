// Package breadcrumb derives the navigation trail shown above a category listing.
package breadcrumb

import "catalog/browser/internal/domain"

// Root returns the synthetic "All Categories" crumb.
func Root() domain.Crumb {
	return domain.Crumb{ID: nil, Name: domain.RootName}
}

// Build returns the trail for the selected parent. With no parent the trail is
// just the root; otherwise root, every ancestor, then the parent itself.
func Build(parentID *string, ancestors []domain.Ancestor, parentName string) []domain.Crumb {
	if parentID == nil {
		root := Root()
		root.Current = true
		return []domain.Crumb{root}
	}

	trail := make([]domain.Crumb, 0, len(ancestors)+2)
	trail = append(trail, Root())
	for _, a := range ancestors {
		id := a.ID
		trail = append(trail, domain.Crumb{ID: &id, Name: a.Name})
	}

	id := *parentID
	trail = append(trail, domain.Crumb{ID: &id, Name: parentName, Current: true})
	return trail
}

// FromResult builds the trail from a listing result fetched for parentID.
func FromResult(parentID *string, result *domain.ListResult) []domain.Crumb {
	if parentID == nil || result == nil || result.Parent == nil {
		return Build(parentID, nil, "")
	}
	return Build(parentID, result.Parent.Ancestors, result.Parent.Name)
}

// Target returns the parent id a click on crumb navigates to and whether the
// crumb is clickable at all. The terminal crumb is the current location.
func Target(crumb domain.Crumb) (*string, bool) {
	if crumb.Current {
		return nil, false
	}
	if crumb.ID == nil {
		return nil, true
	}
	id := *crumb.ID
	return &id, true
}
