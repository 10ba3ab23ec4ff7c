package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"catalog/browser/internal/domain"
	"catalog/browser/internal/excerpt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// maxDepth bounds the ancestor walk so a corrupt parent cycle cannot loop.
const maxDepth = 64

const foreignKeyViolation = "23503"

type CategoryRepository interface {
	List(ctx context.Context, q domain.Query) (*domain.ListResult, error)
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// StoreError is a rejected write with a message suitable for operators.
type StoreError struct {
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *StoreError) StoreMessage() string {
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

type categoryRepository struct {
	db *pgxpool.Pool
}

func NewCategoryRepository(db *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{
		db: db,
	}
}

var sortColumns = map[domain.SortBy]string{
	domain.SortByName:         "c.name",
	domain.SortByCreatedAt:    "c.created_at",
	domain.SortByProductCount: "c.product_count",
}

type listQuery struct {
	count string
	list  string
	args  []any // shared by both statements; list appends limit and offset
}

func buildListQuery(q domain.Query) listQuery {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.ParentID == nil {
		where = append(where, "c.parent_id IS NULL")
	} else {
		where = append(where, "c.parent_id = "+arg(*q.ParentID))
	}
	switch q.Status {
	case domain.StatusActive:
		where = append(where, "c.is_active = "+arg(true))
	case domain.StatusInactive:
		where = append(where, "c.is_active = "+arg(false))
	}
	switch q.Featured {
	case domain.FeaturedTrue:
		where = append(where, "c.is_featured = "+arg(true))
	case domain.FeaturedFalse:
		where = append(where, "c.is_featured = "+arg(false))
	}
	if q.Search != "" {
		p := arg("%" + escapeLike(q.Search) + "%")
		where = append(where, "(c.name ILIKE "+p+" OR c.description ILIKE "+p+")")
	}

	filter := strings.Join(where, " AND ")

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = sortColumns[domain.SortByName]
	}
	direction := "ASC"
	if q.SortOrder == domain.SortDesc {
		direction = "DESC"
	}

	countSQL := `SELECT count(*) FROM categories c WHERE ` + filter

	n := len(args)
	listSQL := `
	SELECT c.id, c.name, c.description, c.image, c.is_active, c.is_featured, c.product_count,
		(SELECT count(*) FROM categories s WHERE s.parent_id = c.id) AS subcategory_count,
		c.parent_id, c.slug
	FROM categories c
	WHERE ` + filter + `
	ORDER BY ` + column + ` ` + direction + `, c.id ` + direction + `
	LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)

	return listQuery{count: countSQL, list: listSQL, args: args}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

const ancestorsSQL = `
	WITH RECURSIVE chain AS (
		SELECT id, name, parent_id, 0 AS depth
		FROM categories
		WHERE id = $1
		UNION ALL
		SELECT p.id, p.name, p.parent_id, chain.depth + 1
		FROM categories p
		JOIN chain ON p.id = chain.parent_id
		WHERE chain.depth < $2
	)
	SELECT id, name FROM chain ORDER BY depth DESC`

func (r *categoryRepository) List(ctx context.Context, q domain.Query) (*domain.ListResult, error) {
	built := buildListQuery(q)

	var total int
	if err := r.db.QueryRow(ctx, built.count, built.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}

	args := append(append([]any{}, built.args...), q.Limit, (q.Page-1)*q.Limit)
	rows, err := r.db.Query(ctx, built.list, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	nodes, err := pgx.CollectRows(rows, scanNode)
	if err != nil {
		return nil, fmt.Errorf("failed to scan categories: %w", err)
	}

	result := &domain.ListResult{
		Nodes: nodes,
		Pagination: domain.Pagination{
			TotalCount: total,
			TotalPages: (total + q.Limit - 1) / q.Limit,
			Page:       q.Page,
			Limit:      q.Limit,
		},
	}

	if q.ParentID != nil {
		if result.Parent, err = r.parentInfo(ctx, *q.ParentID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func scanNode(row pgx.CollectableRow) (domain.Node, error) {
	var n domain.Node
	var description, image, slug *string
	err := row.Scan(&n.ID, &n.Name, &description, &image, &n.IsActive, &n.IsFeatured,
		&n.ProductCount, &n.SubcategoryCount, &n.ParentID, &slug)
	if err != nil {
		return n, err
	}
	n.Description = deref(description)
	n.ImageURL = deref(image)
	n.Slug = deref(slug)
	n.Excerpt = excerpt.FromHTML(n.Description)
	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *categoryRepository) parentInfo(ctx context.Context, id string) (*domain.ParentInfo, error) {
	rows, err := r.db.Query(ctx, ancestorsSQL, id, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to load ancestors of %s: %w", id, err)
	}
	chain, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Ancestor])
	if err != nil {
		return nil, fmt.Errorf("failed to scan ancestors of %s: %w", id, err)
	}
	return parentFromChain(id, chain)
}

// parentFromChain splits a root-first chain ending at the parent itself.
func parentFromChain(id string, chain []domain.Ancestor) (*domain.ParentInfo, error) {
	if len(chain) == 0 || chain[len(chain)-1].ID != id {
		return nil, fmt.Errorf("parent %s: %w", id, domain.ErrNotFound)
	}
	self := chain[len(chain)-1]
	return &domain.ParentInfo{
		ID:        self.ID,
		Name:      self.Name,
		Ancestors: append([]domain.Ancestor{}, chain[:len(chain)-1]...),
	}, nil
}

func (r *categoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return wrapWriteError("delete", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete category %s: %w", id, domain.ErrNotFound)
	}
	log.Debugf("Deleted category %s", id)
	return nil
}

func (r *categoryRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE categories SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return wrapWriteError("update", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update category %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func wrapWriteError(op, id string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return &StoreError{Message: "Category still has subcategories or products", Err: err}
	}
	return fmt.Errorf("failed to %s category %s: %w", op, id, err)
}
