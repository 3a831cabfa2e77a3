package jobs

import (
	"context"
	"fmt"

	"catalogetl/internal/ingest"
	"catalogetl/internal/report"
	"catalogetl/pkg/domain"

	"github.com/jmoiron/sqlx"
)

// MoviesKey is the report written by the movies job.
const MoviesKey = "movie_analysis.json"

// MoviesInput names the two movie sources.
type MoviesInput struct {
	CSV       string
	JSONLines string
}

const movieColumns = `(id, original_title, release_date, genre, duration, country, director, income, votes, score)
VALUES (:id, :original_title, :release_date, :genre, :duration, :country, :director, :income, :votes, :score)`

const movieYear = `SUBSTR(release_date, 1, 4)`

var movieAnalyses = []struct {
	key   string
	query string
}{
	{"genre_income_analysis", `SELECT genre,
	COUNT(*) AS movie_count,
	CAST(SUM(income) AS DOUBLE PRECISION) AS total_income,
	MIN(income) AS min_income,
	MAX(income) AS max_income,
	AVG(income) AS avg_income
FROM combined_movies
GROUP BY genre
ORDER BY total_income DESC, genre`},
	{"movies_by_year", `SELECT ` + movieYear + ` AS year,
	COUNT(*) AS movie_count,
	AVG(income) AS avg_income
FROM combined_movies
WHERE release_date IS NOT NULL AND income IS NOT NULL
GROUP BY ` + movieYear + `
ORDER BY year DESC`},
	{"movies_by_country", `SELECT country,
	COUNT(*) AS movie_count,
	AVG(income) AS avg_income
FROM combined_movies
WHERE country IS NOT NULL AND income IS NOT NULL
GROUP BY country
ORDER BY movie_count DESC, country`},
	{"top_movies_by_income", `SELECT original_title, income
FROM combined_movies
WHERE income IS NOT NULL
ORDER BY income DESC, original_title
LIMIT 10`},
	{"movies_by_year_and_income", `SELECT ` + movieYear + ` AS year,
	COUNT(*) AS movie_count,
	AVG(income) AS avg_income
FROM combined_movies
WHERE release_date IS NOT NULL AND income IS NOT NULL
GROUP BY ` + movieYear + `
ORDER BY year`},
	{"genre_distribution", `SELECT genre,
	COUNT(*) AS movie_count,
	AVG(income) AS avg_income
FROM combined_movies
WHERE genre IS NOT NULL AND income IS NOT NULL
GROUP BY genre
ORDER BY movie_count DESC, genre`},
}

// Movies replaces csv_movies and json_movies with the two sources and writes
// the combined analysis.
func Movies(ctx context.Context, env Env, in MoviesInput) (Summary, error) {
	const job = "movies"
	sum := Summary{Job: job}
	db := env.db()

	var fromCSV, fromJSON []domain.Movie
	if err := env.step(ctx, job, "parse", func(context.Context) error {
		var err error
		if fromCSV, err = ingest.FromFile(in.CSV, ingest.ReadMoviesCSV); err != nil {
			return err
		}
		fromJSON, err = ingest.FromFile(in.JSONLines, ingest.ReadMoviesJSONLines)
		return err
	}); err != nil {
		return sum, err
	}
	if err := env.step(ctx, job, "load", func(ctx context.Context) error {
		if err := Migrate(ctx, db, env.Store.Dialect()); err != nil {
			return err
		}
		return inTx(ctx, db, func(tx *sqlx.Tx) error {
			for _, load := range []struct {
				table  string
				movies []domain.Movie
			}{
				{"csv_movies", fromCSV},
				{"json_movies", fromJSON},
			} {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+load.table); err != nil {
					return fmt.Errorf("clear %s: %w", load.table, err)
				}
				n, err := insertAll(ctx, tx, "INSERT INTO "+load.table+" "+movieColumns, load.movies)
				if err != nil {
					return fmt.Errorf("load %s: %w", load.table, err)
				}
				sum.Loaded += n
			}
			return nil
		})
	}); err != nil {
		return sum, err
	}

	doc := make(report.Object, 0, len(movieAnalyses))
	if err := env.step(ctx, job, "analyze", func(ctx context.Context) error {
		for _, a := range movieAnalyses {
			rows, err := selectRows(ctx, db, a.query)
			if err != nil {
				return fmt.Errorf("%s: %w", a.key, err)
			}
			doc = append(doc, report.Field{Key: a.key, Value: rows})
		}
		return nil
	}); err != nil {
		return sum, err
	}
	if err := env.write(ctx, job, &sum, MoviesKey, doc); err != nil {
		return sum, err
	}
	return sum, nil
}
