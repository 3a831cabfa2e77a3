package core

import (
	"context"
	"math"

	"catalogetl/pkg/domain"
)

// Outcome classifies how the applicator handled a single command.
type Outcome string

// Command outcomes. Only OutcomeApplied and OutcomeRemoved touch the store.
const (
	OutcomeApplied   Outcome = "applied"
	OutcomeRemoved   Outcome = "removed"
	OutcomeMissing   Outcome = "missing"
	OutcomeUnknown   Outcome = "unknown"
	OutcomeMalformed Outcome = "malformed"
)

// ApplyStats counts command outcomes for one batch. It is diagnostic only.
type ApplyStats struct {
	Commands  int `json:"commands"`
	Applied   int `json:"applied"`
	Removed   int `json:"removed"`
	Missing   int `json:"missing"`
	Unknown   int `json:"unknown"`
	Malformed int `json:"malformed"`
}

// Skipped returns the number of commands that left the store untouched.
func (s ApplyStats) Skipped() int {
	return s.Missing + s.Unknown + s.Malformed
}

func (s *ApplyStats) record(o Outcome) {
	s.Commands++
	switch o {
	case OutcomeApplied:
		s.Applied++
	case OutcomeRemoved:
		s.Removed++
	case OutcomeMissing:
		s.Missing++
	case OutcomeUnknown:
		s.Unknown++
	case OutcomeMalformed:
		s.Malformed++
	}
}

// Applicator applies update batches to a product store.
type Applicator struct {
	logger  Logger
	metrics MetricsRecorder
}

// ApplicatorOption customises an Applicator.
type ApplicatorOption func(*Applicator)

// WithLogger sets the logger used for per-command diagnostics.
func WithLogger(l Logger) ApplicatorOption {
	return func(a *Applicator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics sets the recorder receiving per-command outcomes.
func WithMetrics(m MetricsRecorder) ApplicatorOption {
	return func(a *Applicator) {
		if m != nil {
			a.metrics = m
		}
	}
}

// NewApplicator constructs an Applicator.
func NewApplicator(opts ...ApplicatorOption) *Applicator {
	a := &Applicator{logger: noopLogger{}, metrics: noopMetrics{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ApplyUpdates applies cmds to store with a default Applicator.
func ApplyUpdates(ctx context.Context, store domain.ProductStore, cmds []domain.UpdateCommand) (ApplyStats, error) {
	return NewApplicator().Apply(ctx, store, cmds)
}

// Apply runs the whole batch inside one transaction. Commands that reference
// unknown products, unknown operations or unusable parameters are skipped.
// Any storage failure rolls the batch back and is returned as a
// *domain.StorageError.
func (a *Applicator) Apply(ctx context.Context, store domain.ProductStore, cmds []domain.UpdateCommand) (ApplyStats, error) {
	stats, _, err := a.run(ctx, store, cmds, false)
	return stats, err
}

// Preview runs the batch in a transaction that is always rolled back and
// returns the changes it would have made.
func (a *Applicator) Preview(ctx context.Context, store domain.ProductStore, cmds []domain.UpdateCommand) (ApplyStats, domain.Result, error) {
	return a.run(ctx, store, cmds, true)
}

func (a *Applicator) run(ctx context.Context, store domain.ProductStore, cmds []domain.UpdateCommand, discard bool) (ApplyStats, domain.Result, error) {
	var stats ApplyStats
	var outcomes []Outcome
	res, err := store.RunInTransaction(ctx, func(tx domain.ProductTx) error {
		stats = ApplyStats{}
		outcomes = outcomes[:0]
		for i, cmd := range cmds {
			outcome, err := a.dispatch(tx, cmd)
			if err != nil {
				return domain.AsStorageError(string(cmd.Operation), err)
			}
			stats.record(outcome)
			outcomes = append(outcomes, outcome)
			if outcome != OutcomeApplied && outcome != OutcomeRemoved {
				a.logger.Debug("update command skipped", "index", i, "name", cmd.Name, "operation", string(cmd.Operation), "outcome", string(outcome))
			}
		}
		if discard {
			return domain.ErrRollback
		}
		return nil
	})
	if err != nil {
		return ApplyStats{}, domain.Result{}, domain.AsStorageError("apply batch", err)
	}
	// Only committed batches reach the command counters.
	if !discard {
		for i, outcome := range outcomes {
			a.metrics.CountCommand(string(cmds[i].Operation), string(outcome))
		}
	}
	a.logger.Info("update batch applied",
		"commands", stats.Commands,
		"applied", stats.Applied,
		"removed", stats.Removed,
		"skipped", stats.Skipped(),
		"dry_run", discard,
	)
	return stats, res, nil
}

func (a *Applicator) dispatch(tx domain.ProductTx, cmd domain.UpdateCommand) (Outcome, error) {
	current, ok, err := tx.FindProduct(cmd.Name)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeMissing, nil
	}

	switch cmd.Operation {
	case domain.OpAvailable:
		flag, ok := cmd.Param.Bool()
		if !ok {
			return OutcomeMalformed, nil
		}
		return a.update(tx, cmd.Name, func(p *domain.Product) { p.Available = flag })
	case domain.OpPriceAbs:
		price, ok := cmd.Param.Float()
		if !ok {
			return OutcomeMalformed, nil
		}
		return a.update(tx, cmd.Name, func(p *domain.Product) { p.Price = clampPrice(price) })
	case domain.OpPricePercent:
		delta, ok := cmd.Param.Float()
		if !ok {
			return OutcomeMalformed, nil
		}
		price := clampPrice(current.Price * (1 + delta))
		return a.update(tx, cmd.Name, func(p *domain.Product) { p.Price = price })
	case domain.OpQuantityAdd:
		delta, ok := cmd.Param.Int()
		if !ok {
			return OutcomeMalformed, nil
		}
		qty := clampQuantity(saturatingAdd(current.Quantity, delta))
		return a.update(tx, cmd.Name, func(p *domain.Product) { p.Quantity = qty })
	case domain.OpQuantitySub:
		delta, ok := cmd.Param.Int()
		if !ok {
			return OutcomeMalformed, nil
		}
		qty := clampQuantity(saturatingSub(current.Quantity, delta))
		return a.update(tx, cmd.Name, func(p *domain.Product) { p.Quantity = qty })
	case domain.OpRemove:
		if err := tx.DeleteProduct(cmd.Name); err != nil {
			return "", err
		}
		return OutcomeRemoved, nil
	default:
		return OutcomeUnknown, nil
	}
}

func (a *Applicator) update(tx domain.ProductTx, name string, set func(*domain.Product)) (Outcome, error) {
	_, err := tx.UpdateProduct(name, func(p *domain.Product) error {
		set(p)
		return nil
	})
	if err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func clampPrice(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < domain.PriceFloor {
		return domain.PriceFloor
	}
	return v
}

func clampQuantity(v int64) int64 {
	if v < domain.QuantityFloor {
		return domain.QuantityFloor
	}
	return v
}

// saturatingAdd returns a+b, pinned to the int64 range instead of wrapping.
func saturatingAdd(a, b int64) int64 {
	sum := a + b
	switch {
	case b > 0 && sum < a:
		return math.MaxInt64
	case b < 0 && sum > a:
		return math.MinInt64
	}
	return sum
}

func saturatingSub(a, b int64) int64 {
	if b == math.MinInt64 {
		if a >= 0 {
			return math.MaxInt64
		}
		return a - b
	}
	return saturatingAdd(a, -b)
}
