package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/go-storefront-api/internal/model"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Review, error)
	GetByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*model.Review, error)
	ListApprovedByProduct(ctx context.Context, productID uuid.UUID) ([]model.Review, error)
	ListAll(ctx context.Context) ([]model.Review, error)
	SetStatus(ctx context.Context, id uuid.UUID, status model.ReviewStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgReviewRepo struct{ pool *pgxpool.Pool }

func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &pgReviewRepo{pool: pool}
}

func (r *pgReviewRepo) Create(ctx context.Context, review *model.Review) error {
	review.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO reviews (id, user_id, product_id, rating, title, comment, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING created_at`,
		review.ID, review.UserID, review.ProductID, review.Rating, review.Title,
		review.Comment, review.Status,
	).Scan(&review.CreatedAt)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (r *pgReviewRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Review, error) {
	return r.getOne(ctx,
		`SELECT id, user_id, product_id, rating, title, comment, status, created_at
		 FROM reviews WHERE id = $1`, id)
}

func (r *pgReviewRepo) GetByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*model.Review, error) {
	return r.getOne(ctx,
		`SELECT id, user_id, product_id, rating, title, comment, status, created_at
		 FROM reviews WHERE user_id = $1 AND product_id = $2`, userID, productID)
}

func (r *pgReviewRepo) getOne(ctx context.Context, query string, args ...any) (*model.Review, error) {
	review := &model.Review{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&review.ID, &review.UserID, &review.ProductID, &review.Rating,
		&review.Title, &review.Comment, &review.Status, &review.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

func (r *pgReviewRepo) ListApprovedByProduct(ctx context.Context, productID uuid.UUID) ([]model.Review, error) {
	return r.list(ctx,
		`SELECT id, user_id, product_id, rating, title, comment, status, created_at
		 FROM reviews WHERE product_id = $1 AND status = 'approved' ORDER BY created_at DESC`,
		productID)
}

func (r *pgReviewRepo) ListAll(ctx context.Context) ([]model.Review, error) {
	return r.list(ctx,
		`SELECT id, user_id, product_id, rating, title, comment, status, created_at
		 FROM reviews ORDER BY created_at DESC`)
}

func (r *pgReviewRepo) list(ctx context.Context, query string, args ...any) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var review model.Review
		if err := rows.Scan(&review.ID, &review.UserID, &review.ProductID, &review.Rating,
			&review.Title, &review.Comment, &review.Status, &review.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

func (r *pgReviewRepo) SetStatus(ctx context.Context, id uuid.UUID, status model.ReviewStatus) error {
	ct, err := r.pool.Exec(ctx, `UPDATE reviews SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set review status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgReviewRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
