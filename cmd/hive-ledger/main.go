// Command hive-ledger runs the day-ledger attestation node: an HTTP service
// plus operator subcommands for sealing, verification, bonus payouts,
// archival, and signing.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

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

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the dispatcher entrypoint, split from main for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()
	cfg := config.Load()
	if path := os.Getenv("LEDGER_PROFILE"); path != "" {
		profile, err := config.LoadProfile(path)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		profile.Apply(cfg)
	}
	setupLogging(cfg.LogLevel)

	if len(args) < 2 {
		return runServe(cfg, stderr)
	}
	switch args[1] {
	case "serve", "server":
		return runServe(cfg, stderr)
	case "seal":
		return runSealCmd(cfg, args[2:], stdout, stderr)
	case "root":
		return runRootCmd(cfg, args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(cfg, args[2:], stdout, stderr)
	case "index":
		return runIndexCmd(cfg, args[2:], stdout, stderr)
	case "bonus":
		return runBonusCmd(cfg, args[2:], stdout, stderr)
	case "archive":
		return runArchiveCmd(cfg, args[2:], stdout, stderr)
	case "sign":
		return runSignCmd(cfg, args[2:], stdout, stderr)
	case "keygen":
		return runKeygenCmd(cfg, args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if strings.HasPrefix(args[1], "-") {
			return runServe(cfg, stderr)
		}
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

// components is the assembled core shared by the server and the operator
// subcommands.
type components struct {
	cfg      *config.Config
	store    *daystore.Store
	gic      *gicstore.Store
	builder  *ledger.Builder
	rewards  *reward.Engine
	bonuses  *bonus.Engine
	archiver *archive.Archiver
	signer   *signing.Signer
	audit    audit.Logger
}

func setup(cfg *config.Config) (*components, error) {
	gic, err := gicstore.Open(cfg.GicDBPath)
	if err != nil {
		return nil, err
	}
	store := daystore.New(cfg.DataDir)
	auditLog := audit.NewLogger(cfg.Node.NodeID)

	var signer *signing.Signer
	if cfg.SignerIdentity != "" {
		signer, err = signing.LoadOrCreateSigner(cfg.SignerKeyPath, cfg.SignerIdentity)
		if err != nil {
			_ = gic.Close()
			return nil, err
		}
	}

	return &components{
		cfg:     cfg,
		store:   store,
		gic:     gic,
		builder: ledger.NewBuilder(store),
		rewards: reward.NewEngine(reward.Config{
			PerPrivate: cfg.GicPerPrivate,
			PerPublish: cfg.GicPerPublish,
			MinLen:     cfg.RewardMinLen,
		}, gic, auditLog),
		bonuses:  bonus.NewEngine(gic, auditLog),
		archiver: archive.NewArchiver(store, cfg.ArchiveDir, auditLog),
		signer:   signer,
		audit:    auditLog,
	}, nil
}

func (c *components) Close() {
	_ = c.gic.Close()
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "hive-ledger — tamper-evident day-ledger node")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "USAGE:")
	_, _ = fmt.Fprintln(w, "  hive-ledger <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "COMMANDS:")
	_, _ = fmt.Fprintln(w, "  serve     Run the HTTP service (default)")
	_, _ = fmt.Fprintln(w, "  seal      Build the ledger and day root for a day (--date)")
	_, _ = fmt.Fprintln(w, "  root      Print a day's root artifact (--date)")
	_, _ = fmt.Fprintln(w, "  verify    Print a day's verification summary (--date)")
	_, _ = fmt.Fprintln(w, "  index     List known days with summaries (--limit)")
	_, _ = fmt.Fprintln(w, "  bonus     Run the weekly featured-bonus payout (--week|--start/--end, --dry)")
	_, _ = fmt.Fprintln(w, "  archive   Bundle a rooted day into a zip (--date)")
	_, _ = fmt.Fprintln(w, "  sign      Sign a day's artifacts and write the manifest (--date)")
	_, _ = fmt.Fprintln(w, "  keygen    Generate a signing keypair (--out)")
	_, _ = fmt.Fprintln(w, "  help      Show this help")
}
