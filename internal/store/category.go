package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tiketi/apiserver/types"
)

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns every category with the number of events it owns.
func (r *CategoryRepository) List(ctx context.Context) ([]types.Category, error) {
	const query = `
		SELECT c.id, c.name, COUNT(e.id), c.created_at, c.updated_at
		FROM categories c
		LEFT JOIN events e ON e.category_id = c.id
		GROUP BY c.id
		ORDER BY c.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]types.Category, 0)
	for rows.Next() {
		var category types.Category
		if err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.EventCount,
			&category.CreatedAt,
			&category.UpdatedAt,
		); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *CategoryRepository) GetByName(ctx context.Context, name string) (types.Category, error) {
	const query = `SELECT id, name, created_at, updated_at FROM categories WHERE name = $1`
	var category types.Category
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&category.ID,
		&category.Name,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Category{}, ErrNotFound
		}
		return types.Category{}, err
	}
	return category, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category types.Category) (types.Category, error) {
	now := time.Now()
	category.CreatedAt = now
	category.UpdatedAt = now

	const query = `
		INSERT INTO categories (name, created_at, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, category.Name, category.CreatedAt, category.UpdatedAt).Scan(&category.ID); err != nil {
		return types.Category{}, classify(err)
	}
	return category, nil
}
