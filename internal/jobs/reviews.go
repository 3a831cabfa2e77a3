package jobs

import (
	"context"

	"catalogetl/internal/ingest"
	"catalogetl/internal/report"
	"catalogetl/pkg/domain"

	"github.com/jmoiron/sqlx"
)

// ReviewsKey is the report written by the reviews job.
const ReviewsKey = "second_task_reviews.json"

const insertReview = `INSERT INTO property_reviews (property_name, rating, convenience, security, functionality, comment)
VALUES (:property_name, :rating, :convenience, :security, :functionality, :comment)`

const (
	avgRatingQuery = `SELECT p.name, AVG(r.rating) AS avg_rating
FROM properties p JOIN property_reviews r ON p.name = r.property_name
GROUP BY p.name ORDER BY p.name`
	highRatedQuery = `SELECT p.name, p.city, r.rating
FROM properties p JOIN property_reviews r ON p.name = r.property_name
WHERE r.rating > 4 ORDER BY r.rating DESC, p.name, r.id`
	reviewCountQuery = `SELECT p.name, COUNT(r.id) AS review_count
FROM properties p JOIN property_reviews r ON p.name = r.property_name
GROUP BY p.name ORDER BY review_count DESC, p.name`
)

// Reviews replaces the stored reviews with those at source and writes the
// per-property rating report. Reviews join properties by name, so the
// properties job should have run first.
func Reviews(ctx context.Context, env Env, source string) (Summary, error) {
	const job = "reviews"
	sum := Summary{Job: job}
	db := env.db()

	var reviews []domain.Review
	if err := env.step(ctx, job, "parse", func(context.Context) error {
		var err error
		reviews, err = ingest.FromFile(source, ingest.ReadReviews)
		return err
	}); err != nil {
		return sum, err
	}
	if err := env.step(ctx, job, "load", func(ctx context.Context) error {
		if err := Migrate(ctx, db, env.Store.Dialect()); err != nil {
			return err
		}
		return inTx(ctx, db, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, "DELETE FROM property_reviews"); err != nil {
				return err
			}
			n, err := insertAll(ctx, tx, insertReview, reviews)
			sum.Loaded = n
			return err
		})
	}); err != nil {
		return sum, err
	}

	doc := report.Object{}
	for _, q := range []struct{ key, query string }{
		{"avg_rating", avgRatingQuery},
		{"high_rated", highRatedQuery},
		{"review_counts", reviewCountQuery},
	} {
		rows, err := selectRows(ctx, db, q.query)
		if err != nil {
			return sum, err
		}
		doc = append(doc, report.Field{Key: q.key, Value: rows})
	}
	if err := env.write(ctx, job, &sum, ReviewsKey, doc); err != nil {
		return sum, err
	}
	return sum, nil
}
