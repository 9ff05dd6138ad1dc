// Package daystore persists one calendar day's records as JSON files under a
// per-day directory:
//
//	<root>/<day>/<day>.seed.json    one seed, last write wins
//	<root>/<day>/<day>.echo.json    ordered sweep list
//	<root>/<day>/<day>.seal.json    at most one seal
//	<root>/<day>/<day>.ledger.json  derived ledger view
//	<root>/<day>/<day>.root.json    day-root attestation
//	<root>/<day>/<day>.gic.jsonl    reward transaction mirror
//
// Absent seed/seal are returned as nil, not errors; callers decide whether
// absence is fatal. Writers to the same day key are serialized by a per-day
// mutex so concurrent sweep appends cannot lose updates. Every write goes
// through a temp file and rename so a crash never leaves a torn record.
package daystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kaizencycle/hive-ledger/pkg/records"
)

// StorageError wraps an I/O failure with the operation and day key so callers
// can retry or report.
type StorageError struct {
	Op  string
	Day string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("daystore: %s %s: %v", e.Op, e.Day, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store is a per-day-key file store.
type Store struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a store rooted at dir. The directory is created lazily on
// first write.
func New(dir string) *Store {
	return &Store{
		root:   dir,
		logger: slog.Default().With("component", "daystore"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

// DayDir returns the directory holding one day's files.
func (s *Store) DayDir(day string) string { return filepath.Join(s.root, day) }

// GicMirrorPath is where the reward store mirrors the day's transactions as
// JSONL.
func (s *Store) GicMirrorPath(day string) string {
	return filepath.Join(s.DayDir(day), day+".gic.jsonl")
}

// Links returns the relative paths of the day's primary artifacts, as
// recorded on Ledger and DaySummary records.
func (s *Store) Links(day string) map[string]string {
	rel := func(kind string) string { return filepath.ToSlash(filepath.Join(day, day+"."+kind)) }
	return map[string]string{
		"seed":   rel("seed.json"),
		"echo":   rel("echo.json"),
		"seal":   rel("seal.json"),
		"ledger": rel("ledger.json"),
		"root":   rel("root.json"),
	}
}

func (s *Store) path(day, kind string) string {
	return filepath.Join(s.DayDir(day), day+"."+kind)
}

// dayLock returns the mutex serializing writers for one day key.
func (s *Store) dayLock(day string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[day]
	if !ok {
		l = &sync.Mutex{}
		s.locks[day] = l
	}
	return l
}

func (s *Store) checkDay(op, day string) error {
	if !records.ValidDayKey(day) {
		return &StorageError{Op: op, Day: day, Err: errors.New("invalid day key")}
	}
	return nil
}

// WriteSeed persists the day's seed. Re-submission overwrites.
func (s *Store) WriteSeed(seed *records.Seed) error {
	if err := s.checkDay("write seed", seed.Date); err != nil {
		return err
	}
	lock := s.dayLock(seed.Date)
	lock.Lock()
	defer lock.Unlock()
	return s.writeJSON("write seed", seed.Date, s.path(seed.Date, "seed.json"), seed)
}

// ReadSeed returns the day's seed, or nil if none was written.
func (s *Store) ReadSeed(day string) (*records.Seed, error) {
	if err := s.checkDay("read seed", day); err != nil {
		return nil, err
	}
	var seed records.Seed
	ok, err := s.readJSON("read seed", day, s.path(day, "seed.json"), &seed)
	if err != nil || !ok {
		return nil, err
	}
	return &seed, nil
}

// AppendSweep appends one sweep to the day's ordered list, initializing the
// list on first call. Submission order is preserved.
func (s *Store) AppendSweep(sw *records.Sweep) error {
	if err := s.checkDay("append sweep", sw.Date); err != nil {
		return err
	}
	lock := s.dayLock(sw.Date)
	lock.Lock()
	defer lock.Unlock()

	sweeps, err := s.readSweeps(sw.Date)
	if err != nil {
		return err
	}
	sweeps = append(sweeps, *sw)
	return s.writeJSON("append sweep", sw.Date, s.path(sw.Date, "echo.json"), sweeps)
}

// ReadSweeps returns the day's sweeps in submission order. A legacy
// single-object echo file is upgraded to a one-element list.
func (s *Store) ReadSweeps(day string) ([]records.Sweep, error) {
	if err := s.checkDay("read sweeps", day); err != nil {
		return nil, err
	}
	return s.readSweeps(day)
}

func (s *Store) readSweeps(day string) ([]records.Sweep, error) {
	path := s.path(day, "echo.json")
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read sweeps", Day: day, Err: err}
	}
	var sweeps []records.Sweep
	if err := json.Unmarshal(raw, &sweeps); err == nil {
		return sweeps, nil
	}
	// Legacy form: a bare sweep object instead of a list. Upgrade it.
	var single records.Sweep
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, &StorageError{Op: "read sweeps", Day: day, Err: err}
	}
	s.logger.Warn("upgrading legacy single-object sweep file", "day", day)
	return []records.Sweep{single}, nil
}

// WriteSeal persists the day's closing seal.
func (s *Store) WriteSeal(seal *records.Seal) error {
	if err := s.checkDay("write seal", seal.Date); err != nil {
		return err
	}
	lock := s.dayLock(seal.Date)
	lock.Lock()
	defer lock.Unlock()
	return s.writeJSON("write seal", seal.Date, s.path(seal.Date, "seal.json"), seal)
}

// ReadSeal returns the day's seal, or nil if the day is not closed.
func (s *Store) ReadSeal(day string) (*records.Seal, error) {
	if err := s.checkDay("read seal", day); err != nil {
		return nil, err
	}
	var seal records.Seal
	ok, err := s.readJSON("read seal", day, s.path(day, "seal.json"), &seal)
	if err != nil || !ok {
		return nil, err
	}
	return &seal, nil
}

// ReadDay loads the three record groups for a day. Absent seed/seal are nil;
// absent sweeps are an empty list.
func (s *Store) ReadDay(day string) (*records.Seed, []records.Sweep, *records.Seal, error) {
	seed, err := s.ReadSeed(day)
	if err != nil {
		return nil, nil, nil, err
	}
	sweeps, err := s.ReadSweeps(day)
	if err != nil {
		return nil, nil, nil, err
	}
	seal, err := s.ReadSeal(day)
	if err != nil {
		return nil, nil, nil, err
	}
	return seed, sweeps, seal, nil
}

// WriteLedger persists the derived ledger view.
func (s *Store) WriteLedger(led *records.Ledger) error {
	if err := s.checkDay("write ledger", led.Date); err != nil {
		return err
	}
	lock := s.dayLock(led.Date)
	lock.Lock()
	defer lock.Unlock()
	return s.writeJSON("write ledger", led.Date, s.path(led.Date, "ledger.json"), led)
}

// ReadLedger returns the day's ledger, or nil if it was never built.
func (s *Store) ReadLedger(day string) (*records.Ledger, error) {
	if err := s.checkDay("read ledger", day); err != nil {
		return nil, err
	}
	var led records.Ledger
	ok, err := s.readJSON("read ledger", day, s.path(day, "ledger.json"), &led)
	if err != nil || !ok {
		return nil, err
	}
	return &led, nil
}

// WriteDayRoot persists the day-root attestation artifact.
func (s *Store) WriteDayRoot(root *records.DayRoot) error {
	if err := s.checkDay("write day root", root.Date); err != nil {
		return err
	}
	lock := s.dayLock(root.Date)
	lock.Lock()
	defer lock.Unlock()
	return s.writeJSON("write day root", root.Date, s.path(root.Date, "root.json"), root)
}

// ReadDayRoot returns the day-root artifact, or nil if the day has not been
// rooted.
func (s *Store) ReadDayRoot(day string) (*records.DayRoot, error) {
	if err := s.checkDay("read day root", day); err != nil {
		return nil, err
	}
	var root records.DayRoot
	ok, err := s.readJSON("read day root", day, s.path(day, "root.json"), &root)
	if err != nil || !ok {
		return nil, err
	}
	return &root, nil
}

// ListDays returns all day keys with a data directory, ascending.
func (s *Store) ListDays() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "list days", Day: "", Err: err}
	}
	var days []string
	for _, e := range entries {
		if e.IsDir() && records.ValidDayKey(e.Name()) {
			days = append(days, e.Name())
		}
	}
	sort.Strings(days)
	return days, nil
}

// Summary builds the verification view for one day. The Gic section is
// filled by the caller from the reward store.
func (s *Store) Summary(day string) (*records.DaySummary, error) {
	seed, sweeps, seal, err := s.ReadDay(day)
	if err != nil {
		return nil, err
	}
	led, err := s.ReadLedger(day)
	if err != nil {
		return nil, err
	}

	sum := &records.DaySummary{
		Date:  day,
		Links: s.Links(day),
		Present: records.DayPresence{
			Seed:   seed != nil,
			Echo:   len(sweeps) > 0,
			Seal:   seal != nil,
			Ledger: led != nil,
			Gic:    fileExists(s.GicMirrorPath(day)),
		},
		Counts: records.LedgerCounts{
			Sweeps: len(sweeps),
		},
	}
	if seed != nil {
		sum.Counts.Seeds = 1
	}
	if seal != nil {
		sum.Counts.Seals = 1
	}
	if led != nil {
		sum.DayRoot = led.DayRoot
	}
	return sum, nil
}

// ExportDay returns every JSON artifact in the day directory keyed by file
// name.
func (s *Store) ExportDay(day string) (map[string]json.RawMessage, error) {
	if err := s.checkDay("export day", day); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.DayDir(day))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "export day", Day: day, Err: err}
	}
	out := make(map[string]json.RawMessage)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.DayDir(day), e.Name()))
		if err != nil {
			return nil, &StorageError{Op: "export day", Day: day, Err: err}
		}
		out[e.Name()] = json.RawMessage(raw)
	}
	return out, nil
}

func (s *Store) writeJSON(op, day, path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &StorageError{Op: op, Day: day, Err: err}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &StorageError{Op: op, Day: day, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return &StorageError{Op: op, Day: day, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &StorageError{Op: op, Day: day, Err: err}
	}
	return nil
}

func (s *Store) readJSON(op, day, path string, into interface{}) (bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &StorageError{Op: op, Day: day, Err: err}
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return false, &StorageError{Op: op, Day: day, Err: err}
	}
	return true, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
