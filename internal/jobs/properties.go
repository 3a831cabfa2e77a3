package jobs

import (
	"context"

	"catalogetl/internal/ingest"
	"catalogetl/internal/report"
	"catalogetl/pkg/domain"

	"github.com/jmoiron/sqlx"
)

// Report keys written by the properties job.
const (
	PropertiesSortedKey   = "first_task_sorted_properties.json"
	PropertiesFilteredKey = "first_task_filtered_sorted_properties.json"
	PropertiesStatsKey    = "first_task_stats.json"
)

// PropertiesLimit bounds both property exports.
const PropertiesLimit = 26

const upsertProperty = `INSERT INTO properties (id, name, street, city, zipcode, floors, year, parking, prob_price, views)
VALUES (:id, :name, :street, :city, :zipcode, :floors, :year, :parking, :prob_price, :views)
ON CONFLICT (name) DO UPDATE SET
	street = excluded.street,
	city = excluded.city,
	zipcode = excluded.zipcode,
	floors = excluded.floors,
	year = excluded.year,
	parking = excluded.parking,
	prob_price = excluded.prob_price,
	views = excluded.views`

func propertyArgs(props []domain.Property) []map[string]any {
	out := make([]map[string]any, len(props))
	for i, p := range props {
		parking := 0
		if p.Parking {
			parking = 1
		}
		out[i] = map[string]any{
			"id": p.ID, "name": p.Name, "street": p.Street, "city": p.City,
			"zipcode": p.Zipcode, "floors": p.Floors, "year": p.Year,
			"parking": parking, "prob_price": p.ProbPrice, "views": p.Views,
		}
	}
	return out
}

// Properties loads the property listings at source and writes the sorted,
// filtered and statistics reports.
func Properties(ctx context.Context, env Env, source string) (Summary, error) {
	const job = "properties"
	sum := Summary{Job: job}
	db := env.db()

	var props []domain.Property
	if err := env.step(ctx, job, "parse", func(context.Context) error {
		var err error
		props, err = ingest.FromFile(source, ingest.ReadProperties)
		return err
	}); err != nil {
		return sum, err
	}
	if err := env.step(ctx, job, "load", func(ctx context.Context) error {
		if err := Migrate(ctx, db, env.Store.Dialect()); err != nil {
			return err
		}
		return inTx(ctx, db, func(tx *sqlx.Tx) error {
			n, err := insertAll(ctx, tx, upsertProperty, propertyArgs(props))
			sum.Loaded = n
			return err
		})
	}); err != nil {
		return sum, err
	}

	sorted, err := Export{Table: "properties", SortBy: "prob_price", Limit: PropertiesLimit}.Run(ctx, db)
	if err != nil {
		return sum, err
	}
	if err := env.write(ctx, job, &sum, PropertiesSortedKey, sorted); err != nil {
		return sum, err
	}

	filtered, err := Export{Table: "properties", SortBy: "views", Filter: "parking == 1", Limit: PropertiesLimit}.Run(ctx, db)
	if err != nil {
		return sum, err
	}
	if err := env.write(ctx, job, &sum, PropertiesFilteredKey, filtered); err != nil {
		return sum, err
	}

	stats, err := fieldStats(ctx, db, "properties", "views")
	if err != nil {
		return sum, err
	}
	cities, err := frequency(ctx, db, "properties", "city")
	if err != nil {
		return sum, err
	}
	doc := report.Object{
		{Key: "views", Value: stats},
		{Key: "city_frequency", Value: cities},
	}
	if err := env.write(ctx, job, &sum, PropertiesStatsKey, doc); err != nil {
		return sum, err
	}
	return sum, nil
}
