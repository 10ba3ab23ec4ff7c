package domain

import "errors"

var ErrNotFound = errors.New("category not found")

// RootName is the label of the synthetic root crumb.
const RootName = "All Categories"

// Node is a single category record as returned by the listing endpoint.
type Node struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	ImageURL         string  `json:"image"`
	IsActive         bool    `json:"isActive"`
	IsFeatured       bool    `json:"isFeatured"`
	ProductCount     int     `json:"productCount"`
	SubcategoryCount int     `json:"subcategoryCount"`
	ParentID         *string `json:"parentId"`
	Slug             string  `json:"slug"`
	Excerpt          string  `json:"excerpt,omitempty"` // Plain-text description
}

// Ancestor is a minimal path element from the root to the current parent.
type Ancestor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParentInfo describes the currently selected parent and its ancestor chain.
type ParentInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Ancestors []Ancestor `json:"ancestors"`
}

// Pagination is the server-side page metadata.
type Pagination struct {
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
}

func (p Pagination) HasNext() bool {
	return p.Page < p.TotalPages
}

func (p Pagination) HasPrev() bool {
	return p.Page > 1
}

// ListResult is one page of nodes plus the parent chain when inside a subtree.
type ListResult struct {
	Nodes      []Node      `json:"data"`
	Pagination Pagination  `json:"pagination"`
	Parent     *ParentInfo `json:"parent,omitempty"`
}

// Crumb is one clickable entry of the breadcrumb trail. ID is nil for the root.
type Crumb struct {
	ID      *string `json:"id"`
	Name    string  `json:"name"`
	Current bool    `json:"current"`
}
