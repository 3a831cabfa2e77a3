package jobs

import (
	"context"

	"catalogetl/internal/ingest"
	"catalogetl/internal/report"
	"catalogetl/pkg/domain"

	"github.com/jmoiron/sqlx"
)

// Report keys written by the tracks job.
const (
	TracksSortedKey   = "third_task_sorted.json"
	TracksFilteredKey = "third_task_filtered.json"
	TracksStatsKey    = "third_task_stats.json"
)

const insertTrack = `INSERT INTO music_data (artist, song, duration_ms, year, tempo, genre)
VALUES (:artist, :song, :duration_ms, :year, :tempo, :genre)
ON CONFLICT (artist, song, year) DO NOTHING`

// TracksInput names the two track sources.
type TracksInput struct {
	Text   string
	Pickle string
}

// Tracks merges both track sources into music_data, skipping records without
// artist, song or year and keeping the first copy of each (artist, song,
// year), then writes the sorted, filtered and statistics reports.
func Tracks(ctx context.Context, env Env, in TracksInput) (Summary, error) {
	const job = "tracks"
	sum := Summary{Job: job}
	db := env.db()

	var tracks []domain.Track
	if err := env.step(ctx, job, "parse", func(context.Context) error {
		text, err := ingest.FromFile(in.Text, ingest.ReadTrackBlocks)
		if err != nil {
			return err
		}
		pickled, err := ingest.FromFile(in.Pickle, ingest.DecodeTracksPickle)
		if err != nil {
			return err
		}
		for _, t := range append(text, pickled...) {
			if !t.Complete() {
				sum.Skipped++
				continue
			}
			tracks = append(tracks, t)
		}
		return nil
	}); err != nil {
		return sum, err
	}
	if err := env.step(ctx, job, "load", func(ctx context.Context) error {
		if err := Migrate(ctx, db, env.Store.Dialect()); err != nil {
			return err
		}
		return inTx(ctx, db, func(tx *sqlx.Tx) error {
			n, err := insertAll(ctx, tx, insertTrack, tracks)
			sum.Loaded = n
			sum.Skipped += len(tracks) - n
			return err
		})
	}); err != nil {
		return sum, err
	}

	sorted, err := Export{Table: "music_data", SortBy: "duration_ms", Limit: 26}.Run(ctx, db)
	if err != nil {
		return sum, err
	}
	if err := env.write(ctx, job, &sum, TracksSortedKey, sorted); err != nil {
		return sum, err
	}

	filtered, err := Export{Table: "music_data", SortBy: "duration_ms", Filter: "year > 2010", Limit: 31}.Run(ctx, db)
	if err != nil {
		return sum, err
	}
	if err := env.write(ctx, job, &sum, TracksFilteredKey, filtered); err != nil {
		return sum, err
	}

	stats, err := fieldStats(ctx, db, "music_data", "tempo")
	if err != nil {
		return sum, err
	}
	genres, err := frequency(ctx, db, "music_data", "genre")
	if err != nil {
		return sum, err
	}
	doc := report.Object{
		{Key: "tempo", Value: stats},
		{Key: "genre_frequency", Value: genres},
	}
	if err := env.write(ctx, job, &sum, TracksStatsKey, doc); err != nil {
		return sum, err
	}
	return sum, nil
}
