package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kaizencycle/hive-ledger/pkg/archive"
	"github.com/kaizencycle/hive-ledger/pkg/audit"
	"github.com/kaizencycle/hive-ledger/pkg/bonus"
	"github.com/kaizencycle/hive-ledger/pkg/config"
	"github.com/kaizencycle/hive-ledger/pkg/daystore"
	"github.com/kaizencycle/hive-ledger/pkg/gicstore"
	"github.com/kaizencycle/hive-ledger/pkg/ledger"
	"github.com/kaizencycle/hive-ledger/pkg/reward"
	"github.com/kaizencycle/hive-ledger/pkg/signing"
)

// Server wires the core engines behind HTTP routes.
type Server struct {
	cfg      *config.Config
	store    *daystore.Store
	gic      *gicstore.Store
	builder  *ledger.Builder
	rewards  *reward.Engine
	bonuses  *bonus.Engine
	archiver *archive.Archiver
	signer   *signing.Signer
	audit    audit.Logger
	logger   *slog.Logger
}

// NewServer assembles a Server over the given components. signer may be nil;
// the sign route then responds 503.
func NewServer(
	cfg *config.Config,
	store *daystore.Store,
	gic *gicstore.Store,
	builder *ledger.Builder,
	rewards *reward.Engine,
	bonuses *bonus.Engine,
	archiver *archive.Archiver,
	signer *signing.Signer,
	auditLog audit.Logger,
) *Server {
	if auditLog == nil {
		auditLog = audit.Nop()
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		gic:      gic,
		builder:  builder,
		rewards:  rewards,
		bonuses:  bonuses,
		archiver: archiver,
		signer:   signer,
		audit:    auditLog,
		logger:   slog.Default().With("component", "api"),
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)

	r.HandleFunc("/seed", s.handleSeed).Methods(http.MethodPost)
	r.HandleFunc("/sweep", s.handleSweep).Methods(http.MethodPost)
	r.HandleFunc("/seal", s.handleSeal).Methods(http.MethodPost)

	r.HandleFunc("/ledger/{date}", s.handleGetLedger).Methods(http.MethodGet)
	r.HandleFunc("/root/{date}", s.handleGetDayRoot).Methods(http.MethodGet)
	r.HandleFunc("/proof/{date}/{idx:[0-9]+}", s.handleSweepProof).Methods(http.MethodGet)
	r.HandleFunc("/verify/{date}", s.handleVerify).Methods(http.MethodGet)
	r.HandleFunc("/export/{date}", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/gic/{date}", s.handleGicDay).Methods(http.MethodGet)
	r.HandleFunc("/index", s.handleIndex).Methods(http.MethodGet)

	r.HandleFunc("/bonus/run", s.handleBonusRun).Methods(http.MethodPost)
	r.HandleFunc("/archive/{date}", s.handleArchive).Methods(http.MethodPost)
	r.HandleFunc("/sign/{date}", s.handleSign).Methods(http.MethodPost)

	limiter := NewRateLimiter(20, 40)
	return requestLogger(s.logger, limiter.Middleware(r))
}
