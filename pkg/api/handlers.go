package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kaizencycle/hive-ledger/pkg/audit"
	"github.com/kaizencycle/hive-ledger/pkg/bonus"
	"github.com/kaizencycle/hive-ledger/pkg/canonical"
	"github.com/kaizencycle/hive-ledger/pkg/records"
	"github.com/kaizencycle/hive-ledger/pkg/reward"
	"github.com/kaizencycle/hive-ledger/pkg/signing"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) dayVar(w http.ResponseWriter, r *http.Request) (string, bool) {
	day := mux.Vars(r)["date"]
	if !records.ValidDayKey(day) {
		WriteError(w, r, http.StatusBadRequest, "Bad Day Key", "date must be YYYY-MM-DD")
		return "", false
	}
	return day, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		WriteError(w, r, http.StatusBadRequest, "Bad Request Body", err.Error())
		return false
	}
	return true
}

// mergeMeta overlays the node identity onto caller-supplied metadata.
func (s *Server) mergeMeta(meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta)+4)
	for k, v := range meta {
		out[k] = v
	}
	for k, v := range s.cfg.Node.Meta() {
		out[k] = v
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true,
		"ts": records.Timestamp(time.Now()),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":         "hive-ledger",
		"demo_mode":       s.cfg.DemoMode,
		"gic_per_private": s.cfg.GicPerPrivate,
		"gic_per_publish": s.cfg.GicPerPublish,
		"reward_min_len":  s.cfg.RewardMinLen,
	})
}

type seedRequest struct {
	Date   string                 `json:"date"`
	Time   string                 `json:"time"`
	Intent string                 `json:"intent"`
	Meta   map[string]interface{} `json:"meta"`
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !records.ValidDayKey(req.Date) {
		WriteError(w, r, http.StatusBadRequest, "Bad Day Key", "date must be YYYY-MM-DD")
		return
	}

	seed := &records.Seed{
		Type:   records.TypeSeed,
		Date:   req.Date,
		Time:   req.Time,
		Intent: req.Intent,
		Meta:   s.mergeMeta(req.Meta),
		TS:     records.Timestamp(time.Now()),
	}
	if err := s.store.WriteSeed(seed); err != nil {
		writeCoreError(w, r, err)
		return
	}
	hash, err := canonical.Hash(seed)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	_ = s.audit.Record(r.Context(), audit.EventMutation, "seed.write", "day/"+req.Date, nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"seed_hash": hash,
		"file":      s.store.Links(req.Date)["seed"],
	})
}

type sweepRequest struct {
	Date        string                 `json:"date"`
	Chamber     string                 `json:"chamber"`
	Note        string                 `json:"note"`
	User        string                 `json:"user"`
	Tier        records.Tier           `json:"tier"`
	ContentHash string                 `json:"content_hash"`
	Meta        map[string]interface{} `json:"meta"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !records.ValidDayKey(req.Date) {
		WriteError(w, r, http.StatusBadRequest, "Bad Day Key", "date must be YYYY-MM-DD")
		return
	}

	meta := s.mergeMeta(req.Meta)
	if req.Tier == records.TierPublishFeature {
		meta["featured"] = true
	}
	sweep := &records.Sweep{
		Type:    records.TypeSweep,
		Date:    req.Date,
		Chamber: req.Chamber,
		Note:    req.Note,
		Meta:    meta,
		TS:      records.Timestamp(time.Now()),
	}
	if err := s.store.AppendSweep(sweep); err != nil {
		writeCoreError(w, r, err)
		return
	}
	attestation, err := canonical.Hash(sweep)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}

	res, err := s.rewards.Process(r.Context(), reward.Submission{
		Day:         req.Date,
		User:        req.User,
		Tier:        req.Tier,
		Note:        req.Note,
		ContentHash: req.ContentHash,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if err := s.gic.MirrorDay(r.Context(), req.Date, s.store.GicMirrorPath(req.Date)); err != nil {
		s.logger.Warn("gic mirror failed", "day", req.Date, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attestation":  attestation,
		"sweep_file":   s.store.Links(req.Date)["echo"],
		"gic":          res.Amount,
		"deduplicated": res.Deduplicated,
		"downgraded":   res.Downgraded,
		"featured":     res.Featured,
		"gic_file":     filepath.ToSlash(filepath.Join(req.Date, req.Date+".gic.jsonl")),
	})
}

type sealRequest struct {
	Date           string                 `json:"date"`
	Wins           string                 `json:"wins"`
	Blocks         string                 `json:"blocks"`
	TomorrowIntent string                 `json:"tomorrow_intent"`
	Meta           map[string]interface{} `json:"meta"`
}

// handleSeal optionally persists the seal body, then builds the ledger and
// day root in one operation.
func (s *Server) handleSeal(w http.ResponseWriter, r *http.Request) {
	var req sealRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !records.ValidDayKey(req.Date) {
		WriteError(w, r, http.StatusBadRequest, "Bad Day Key", "date must be YYYY-MM-DD")
		return
	}

	if req.Wins != "" || req.Blocks != "" || req.TomorrowIntent != "" {
		seal := &records.Seal{
			Type:           records.TypeSeal,
			Date:           req.Date,
			Wins:           req.Wins,
			Blocks:         req.Blocks,
			TomorrowIntent: req.TomorrowIntent,
			Meta:           s.mergeMeta(req.Meta),
			TS:             records.Timestamp(time.Now()),
		}
		if err := s.store.WriteSeal(seal); err != nil {
			writeCoreError(w, r, err)
			return
		}
	}

	led, err := s.builder.BuildLedger(req.Date)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	root, err := s.builder.BuildDayRoot(req.Date)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}

	_ = s.audit.Record(r.Context(), audit.EventMutation, "day.seal", "day/"+req.Date, map[string]interface{}{
		"day_root": root.Root,
	})
	links := s.store.Links(req.Date)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"day_root":    led.DayRoot,
		"counts":      led.Counts,
		"seal_file":   links["seal"],
		"ledger_file": links["ledger"],
		"root_file":   links["root"],
	})
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dayVar(w, r)
	if !ok {
		return
	}
	led, err := s.store.ReadLedger(day)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if led == nil {
		WriteError(w, r, http.StatusNotFound, "Not Found", "no ledger for "+day)
		return
	}
	writeJSON(w, http.StatusOK, led)
}

func (s *Server) handleGetDayRoot(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dayVar(w, r)
	if !ok {
		return
	}
	root, err := s.store.ReadDayRoot(day)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if root == nil {
		WriteError(w, r, http.StatusNotFound, "Not Found", "no day root for "+day)
		return
	}
	writeJSON(w, http.StatusOK, root)
}

func (s *Server) handleSweepProof(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dayVar(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(mux.Vars(r)["idx"])
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "Bad Index", err.Error())
		return
	}
	proof, err := s.builder.SweepProof(day, idx)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

func (s *Server) summarize(r *http.Request, day string) (*records.DaySummary, error) {
	sum, err := s.store.Summary(day)
	if err != nil {
		return nil, err
	}
	gic, err := s.gic.DayTotals(r.Context(), day)
	if err != nil {
		return nil, err
	}
	sum.Gic = gic
	sum.Present.Gic = sum.Present.Gic || gic.Count > 0
	return sum, nil
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dayVar(w, r)
	if !ok {
		return
	}
	sum, err := s.summarize(r, day)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dayVar(w, r)
	if !ok {
		return
	}
	files, err := s.store.ExportDay(day)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":  day,
		"files": files,
	})
}

func (s *Server) handleGicDay(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dayVar(w, r)
	if !ok {
		return
	}
	txs, err := s.gic.QueryDay(r.Context(), day)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	totals, err := s.gic.DayTotals(r.Context(), day)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":  day,
		"count": totals.Count,
		"sum":   totals.Sum,
		"txs":   txs,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	days, err := s.store.ListDays()
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	total := len(days)

	order := r.URL.Query().Get("order")
	if order == "" {
		order = "desc"
	}
	if order == "desc" {
		for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
			days[i], days[j] = days[j], days[i]
		}
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if len(days) > limit {
		days = days[:limit]
	}

	items := make([]*records.DaySummary, 0, len(days))
	for _, day := range days {
		sum, err := s.summarize(r, day)
		if err != nil {
			writeCoreError(w, r, err)
			return
		}
		items = append(items, sum)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_days": total,
		"returned":   len(items),
		"order":      order,
		"items":      items,
	})
}

func (s *Server) handleBonusRun(w http.ResponseWriter, r *http.Request) {
	var params bonus.Params
	if !decodeBody(w, r, &params) {
		return
	}
	if params.TopN == 0 {
		params.TopN = s.cfg.BonusTopN
	}
	if params.MinLen == 0 {
		params.MinLen = s.cfg.BonusMinLen
	}
	if params.Min == 0 {
		params.Min = s.cfg.BonusMin
	}
	if params.Max == 0 {
		params.Max = s.cfg.BonusMax
	}

	res, err := s.bonuses.Run(r.Context(), params)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if !res.DryRun && res.Written > 0 {
		if err := s.gic.MirrorDay(r.Context(), res.PayoutDay, s.store.GicMirrorPath(res.PayoutDay)); err != nil {
			s.logger.Warn("gic mirror failed", "day", res.PayoutDay, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dayVar(w, r)
	if !ok {
		return
	}
	zipPath, err := s.archiver.ArchiveDay(day)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"zip_file": zipPath,
	})
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dayVar(w, r)
	if !ok {
		return
	}
	if s.signer == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "Signer Unavailable", "no signing key configured")
		return
	}

	var files []string
	for _, rel := range []string{"seed", "echo", "seal", "ledger", "root"} {
		path := filepath.Join(s.store.Root(), s.store.Links(day)[rel])
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		WriteError(w, r, http.StatusNotFound, "Not Found", "no files to sign for "+day)
		return
	}

	manifest, err := s.signer.SignFiles(day, files)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	manifestPath := filepath.Join(s.store.DayDir(day), day+".sign-manifest.json")
	if err := signing.WriteManifest(manifest, manifestPath); err != nil {
		writeCoreError(w, r, err)
		return
	}
	_ = s.audit.Record(r.Context(), audit.EventMutation, "day.sign", "day/"+day, map[string]interface{}{
		"files": len(manifest.Files),
	})
	writeJSON(w, http.StatusOK, manifest)
}
