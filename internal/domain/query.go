package domain

import (
	"strconv"
	"strings"
)

type Status string

const (
	StatusAll      Status = "all"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusAll, StatusActive, StatusInactive:
		return true
	}
	return false
}

type Featured string

const (
	FeaturedAll   Featured = "all"
	FeaturedTrue  Featured = "true"
	FeaturedFalse Featured = "false"
)

func (f Featured) String() string {
	return string(f)
}

func (f Featured) Valid() bool {
	switch f {
	case FeaturedAll, FeaturedTrue, FeaturedFalse:
		return true
	}
	return false
}

type SortBy string

const (
	SortByName         SortBy = "name"
	SortByCreatedAt    SortBy = "createdAt"
	SortByProductCount SortBy = "productCount"
)

func (s SortBy) String() string {
	return string(s)
}

func (s SortBy) Valid() bool {
	switch s {
	case SortByName, SortByCreatedAt, SortByProductCount:
		return true
	}
	return false
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (s SortOrder) String() string {
	return string(s)
}

func (s SortOrder) Valid() bool {
	return s == SortAsc || s == SortDesc
}

const (
	DefaultPage  = 1
	DefaultLimit = 12
)

// Query is the canonical description of one listing view.
type Query struct {
	ParentID  *string
	Page      int
	Limit     int
	Status    Status
	Featured  Featured
	SortBy    SortBy
	SortOrder SortOrder
	Search    string
}

// DefaultQuery returns the root view with every filter at its default.
func DefaultQuery() Query {
	return Query{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		Status:    StatusAll,
		Featured:  FeaturedAll,
		SortBy:    SortByName,
		SortOrder: SortAsc,
	}
}

// Parent returns the selected parent id or "" at the root.
func (q Query) Parent() string {
	if q.ParentID == nil {
		return ""
	}
	return *q.ParentID
}

// Key is the canonical cache key of the full query tuple.
func (q Query) Key() string {
	return q.scope() + "|" + strconv.Itoa(q.Page)
}

// ScopeKey identifies the result set independent of the page number.
func (q Query) ScopeKey() string {
	return q.scope()
}

func (q Query) scope() string {
	parent := "-"
	if q.ParentID != nil {
		parent = strconv.Quote(*q.ParentID)
	}
	return strings.Join([]string{
		parent,
		strconv.Itoa(q.Limit),
		q.Status.String(),
		q.Featured.String(),
		q.SortBy.String(),
		q.SortOrder.String(),
		strconv.Quote(q.Search),
	}, "|")
}
