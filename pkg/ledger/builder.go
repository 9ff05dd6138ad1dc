// Package ledger composes a day's seed, sweeps, and seal into the two
// derived attestation artifacts: the Ledger view (counts plus day root) and
// the DayRoot record (leaf hashes plus root, for external attestation and
// signing). Both are pure functions of their inputs and regenerable at any
// time.
package ledger

import (
	"fmt"
	"log/slog"

	"github.com/kaizencycle/hive-ledger/pkg/daystore"
	"github.com/kaizencycle/hive-ledger/pkg/merkle"
	"github.com/kaizencycle/hive-ledger/pkg/records"
)

// IncompleteDayError reports a ledger or day-root build attempted before the
// day has both a seed and a seal. Sweeps may be empty; seed and seal may not.
type IncompleteDayError struct {
	Day         string
	MissingSeed bool
	MissingSeal bool
}

func (e *IncompleteDayError) Error() string {
	switch {
	case e.MissingSeed && e.MissingSeal:
		return fmt.Sprintf("ledger: day %s has no seed and no seal", e.Day)
	case e.MissingSeed:
		return fmt.Sprintf("ledger: day %s has no seed", e.Day)
	default:
		return fmt.Sprintf("ledger: day %s has no seal", e.Day)
	}
}

// Builder derives Ledger and DayRoot records from the day store.
type Builder struct {
	store  *daystore.Store
	logger *slog.Logger
}

// NewBuilder creates a Builder over the given store.
func NewBuilder(store *daystore.Store) *Builder {
	return &Builder{
		store:  store,
		logger: slog.Default().With("component", "ledger"),
	}
}

// leafHashes computes the ordered leaves for the day: seed, sweeps in
// submission order, seal.
func leafHashes(seed *records.Seed, sweeps []records.Sweep, seal *records.Seal) (seedHash string, sweepHashes []string, sealHash string, err error) {
	seedHash, err = merkle.Leaf(seed)
	if err != nil {
		return "", nil, "", err
	}
	sweepHashes = make([]string, 0, len(sweeps))
	for i := range sweeps {
		h, err := merkle.Leaf(&sweeps[i])
		if err != nil {
			return "", nil, "", err
		}
		sweepHashes = append(sweepHashes, h)
	}
	sealHash, err = merkle.Leaf(seal)
	if err != nil {
		return "", nil, "", err
	}
	return seedHash, sweepHashes, sealHash, nil
}

func (b *Builder) loadComplete(day string) (*records.Seed, []records.Sweep, *records.Seal, error) {
	seed, sweeps, seal, err := b.store.ReadDay(day)
	if err != nil {
		return nil, nil, nil, err
	}
	if seed == nil || seal == nil {
		return nil, nil, nil, &IncompleteDayError{
			Day:         day,
			MissingSeed: seed == nil,
			MissingSeal: seal == nil,
		}
	}
	return seed, sweeps, seal, nil
}

// BuildLedger computes and persists the day's ledger view. The record's
// timestamp is the seal's timestamp, so rebuilding on unchanged inputs
// yields bit-identical output.
func (b *Builder) BuildLedger(day string) (*records.Ledger, error) {
	seed, sweeps, seal, err := b.loadComplete(day)
	if err != nil {
		return nil, err
	}

	seedHash, sweepHashes, sealHash, err := leafHashes(seed, sweeps, seal)
	if err != nil {
		return nil, err
	}
	leaves := append(append([]string{seedHash}, sweepHashes...), sealHash)

	led := &records.Ledger{
		Date:    day,
		DayRoot: merkle.Root(leaves),
		Counts: records.LedgerCounts{
			Seeds:  1,
			Sweeps: len(sweeps),
			Seals:  1,
		},
		Links: b.store.Links(day),
		TS:    seal.TS,
	}
	if err := b.store.WriteLedger(led); err != nil {
		return nil, err
	}
	b.logger.Info("ledger built", "day", day, "day_root", led.DayRoot, "sweeps", len(sweeps))
	return led, nil
}

// BuildDayRoot computes and persists the day-root attestation artifact. Same
// input requirements and determinism as BuildLedger.
func (b *Builder) BuildDayRoot(day string) (*records.DayRoot, error) {
	seed, sweeps, seal, err := b.loadComplete(day)
	if err != nil {
		return nil, err
	}

	seedHash, sweepHashes, sealHash, err := leafHashes(seed, sweeps, seal)
	if err != nil {
		return nil, err
	}
	leaves := append(append([]string{seedHash}, sweepHashes...), sealHash)

	root := &records.DayRoot{
		Type: records.TypeDayRoot,
		Date: day,
		Inputs: records.DayRootInputs{
			Seed: seedHash,
			Echo: sweepHashes,
			Seal: sealHash,
		},
		Root:   merkle.Root(leaves),
		Method: merkle.MethodID,
		TS:     seal.TS,
	}
	if err := b.store.WriteDayRoot(root); err != nil {
		return nil, err
	}
	b.logger.Info("day root built", "day", day, "root", root.Root)
	return root, nil
}

// SweepProof builds the inclusion proof for the sweep at index idx against
// the day's root, for external verification of a single note.
func (b *Builder) SweepProof(day string, idx int) (merkle.InclusionProof, error) {
	seed, sweeps, seal, err := b.loadComplete(day)
	if err != nil {
		return merkle.InclusionProof{}, err
	}
	if idx < 0 || idx >= len(sweeps) {
		return merkle.InclusionProof{}, fmt.Errorf("ledger: day %s has no sweep %d", day, idx)
	}
	seedHash, sweepHashes, sealHash, err := leafHashes(seed, sweeps, seal)
	if err != nil {
		return merkle.InclusionProof{}, err
	}
	leaves := append(append([]string{seedHash}, sweepHashes...), sealHash)
	proof, _ := merkle.BuildProof(leaves, 1+idx)
	return proof, nil
}
