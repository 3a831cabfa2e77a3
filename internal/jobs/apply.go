package jobs

import (
	"context"

	"catalogetl/internal/core"
	"catalogetl/internal/ingest"
	"catalogetl/internal/report"
	"catalogetl/pkg/domain"
)

// PreviewKey is the artifact written by a dry run.
const PreviewKey = "apply_preview.json"

// Apply runs the update batch at source against the stored catalogue. With
// dryRun the batch runs in a discarded transaction and the changes it would
// have made are returned and stored under PreviewKey.
func Apply(ctx context.Context, env Env, source string, dryRun bool) (Summary, domain.Result, error) {
	const job = "apply"
	sum := Summary{Job: job}

	var cmds []domain.UpdateCommand
	if err := env.step(ctx, job, "parse", func(context.Context) error {
		var err error
		cmds, err = ingest.ReadUpdates(source)
		return err
	}); err != nil {
		return sum, domain.Result{}, err
	}

	var res domain.Result
	if err := env.step(ctx, job, "apply", func(ctx context.Context) error {
		var (
			stats core.ApplyStats
			err   error
		)
		if dryRun {
			stats, res, err = env.applicator().Preview(ctx, env.Store, cmds)
		} else {
			stats, err = env.applicator().Apply(ctx, env.Store, cmds)
		}
		if err != nil {
			return err
		}
		sum.Apply = &stats
		sum.Skipped = stats.Skipped()
		return nil
	}); err != nil {
		return sum, domain.Result{}, err
	}
	if !dryRun {
		return sum, res, nil
	}

	doc := report.Object{
		{Key: "stats", Value: sum.Apply},
		{Key: "changes", Value: orEmpty(res.Changes)},
	}
	if err := env.write(ctx, job, &sum, PreviewKey, doc); err != nil {
		return sum, res, err
	}
	return sum, res, nil
}
