package jobs

import (
	"context"
	"database/sql"
	"fmt"

	"catalogetl/internal/core"
	"catalogetl/internal/ingest"
	"catalogetl/pkg/domain"
)

// ProductsKey is the report written by the products job.
const ProductsKey = "fourth_task_analysis.json"

// ProductsInput names the product catalogue and the update batch applied to it.
type ProductsInput struct {
	Products string
	Updates  string
}

type updatedProduct struct {
	Name    string `db:"name" json:"name"`
	Updates int64  `db:"updates" json:"updates"`
}

type priceGroup struct {
	Category     string  `db:"category" json:"category"`
	TotalPrice   float64 `db:"total_price" json:"total_price"`
	MinPrice     float64 `db:"min_price" json:"min_price"`
	MaxPrice     float64 `db:"max_price" json:"max_price"`
	AvgPrice     float64 `db:"avg_price" json:"avg_price"`
	ProductCount int64   `db:"product_count" json:"product_count"`
}

type quantityGroup struct {
	Category      string  `db:"category" json:"category"`
	TotalQuantity int64   `db:"total_quantity" json:"total_quantity"`
	MinQuantity   int64   `db:"min_quantity" json:"min_quantity"`
	MaxQuantity   int64   `db:"max_quantity" json:"max_quantity"`
	AvgQuantity   float64 `db:"avg_quantity" json:"avg_quantity"`
	ProductCount  int64   `db:"product_count" json:"product_count"`
}

type pricedProduct struct {
	Name    string  `db:"name" json:"name"`
	Updates int64   `db:"updates" json:"updates"`
	Price   float64 `db:"price" json:"price"`
}

type highPriceProducts struct {
	AvgPrice *float64        `json:"avg_price"`
	Products []pricedProduct `json:"products"`
}

// ProductAnalysis is the document stored under ProductsKey.
type ProductAnalysis struct {
	TopUpdated       []updatedProduct  `json:"top_10_updated_products"`
	PriceAnalysis    []priceGroup      `json:"price_analysis"`
	QuantityAnalysis []quantityGroup   `json:"quantity_analysis"`
	HighPrice        highPriceProducts `json:"avg_price_and_high_price_products"`
}

const (
	topUpdatedQuery = `SELECT DISTINCT name, update_count AS updates FROM products_data
ORDER BY updates DESC, name LIMIT 10`
	priceGroupQuery = `SELECT category,
	CAST(SUM(price) AS DOUBLE PRECISION) AS total_price,
	MIN(price) AS min_price,
	MAX(price) AS max_price,
	AVG(price) AS avg_price,
	COUNT(*) AS product_count
FROM products_data GROUP BY category ORDER BY category`
	quantityGroupQuery = `SELECT category,
	CAST(SUM(quantity) AS BIGINT) AS total_quantity,
	MIN(quantity) AS min_quantity,
	MAX(quantity) AS max_quantity,
	AVG(CAST(quantity AS DOUBLE PRECISION)) AS avg_quantity,
	COUNT(*) AS product_count
FROM products_data GROUP BY category ORDER BY category`
	highPriceQuery = `SELECT name, update_count AS updates, price FROM products_data
WHERE price > ? ORDER BY updates DESC, name LIMIT 10`
)

const avgPriceQuery = `SELECT AVG(price) FROM products_data`

// Products loads the catalogue, applies the update batch in one transaction
// and writes the catalogue analysis.
func Products(ctx context.Context, env Env, in ProductsInput) (Summary, error) {
	const job = "products"
	sum := Summary{Job: job}

	var products []domain.Product
	var cmds []domain.UpdateCommand
	if err := env.step(ctx, job, "parse", func(context.Context) error {
		var err error
		if products, err = ingest.FromFile(in.Products, ingest.ReadProducts); err != nil {
			return err
		}
		cmds, err = ingest.ReadUpdates(in.Updates)
		return err
	}); err != nil {
		return sum, err
	}
	if err := env.step(ctx, job, "load", func(ctx context.Context) error {
		stats, err := env.Store.LoadProducts(ctx, products)
		sum.Loaded = stats.Rows
		return err
	}); err != nil {
		return sum, err
	}
	if err := env.step(ctx, job, "apply", func(ctx context.Context) error {
		stats, err := env.applicator().Apply(ctx, env.Store, cmds)
		if err != nil {
			return err
		}
		sum.Apply = &stats
		sum.Skipped = stats.Skipped()
		return nil
	}); err != nil {
		return sum, err
	}

	var doc ProductAnalysis
	if err := env.step(ctx, job, "analyze", func(ctx context.Context) error {
		var err error
		doc, err = analyzeProducts(ctx, env)
		return err
	}); err != nil {
		return sum, err
	}
	if err := env.write(ctx, job, &sum, ProductsKey, doc); err != nil {
		return sum, err
	}
	return sum, nil
}

func analyzeProducts(ctx context.Context, env Env) (ProductAnalysis, error) {
	db := env.db()
	var doc ProductAnalysis
	if err := db.SelectContext(ctx, &doc.TopUpdated, topUpdatedQuery); err != nil {
		return doc, fmt.Errorf("top updated products: %w", err)
	}
	if err := db.SelectContext(ctx, &doc.PriceAnalysis, priceGroupQuery); err != nil {
		return doc, fmt.Errorf("price analysis: %w", err)
	}
	if err := db.SelectContext(ctx, &doc.QuantityAnalysis, quantityGroupQuery); err != nil {
		return doc, fmt.Errorf("quantity analysis: %w", err)
	}

	var avg sql.NullFloat64
	if err := db.GetContext(ctx, &avg, avgPriceQuery); err != nil {
		return doc, fmt.Errorf("average price: %w", err)
	}
	if avg.Valid {
		doc.HighPrice.AvgPrice = &avg.Float64
		if err := db.SelectContext(ctx, &doc.HighPrice.Products, db.Rebind(highPriceQuery), avg.Float64); err != nil {
			return doc, fmt.Errorf("high price products: %w", err)
		}
	}

	doc.TopUpdated = orEmpty(doc.TopUpdated)
	doc.PriceAnalysis = orEmpty(doc.PriceAnalysis)
	doc.QuantityAnalysis = orEmpty(doc.QuantityAnalysis)
	doc.HighPrice.Products = orEmpty(doc.HighPrice.Products)
	return doc, nil
}

// applicator builds an Applicator reporting through the job's observability.
func (e Env) applicator() *core.Applicator {
	obs := e.Obs.WithDefaults()
	return core.NewApplicator(core.WithLogger(obs.Logger), core.WithMetrics(obs.Metrics))
}
