package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kaizencycle/hive-ledger/pkg/bonus"
	"github.com/kaizencycle/hive-ledger/pkg/config"
	"github.com/kaizencycle/hive-ledger/pkg/signing"
)

// runBonusCmd executes one featured-bonus payout run.
//
// Exit codes: 0 = run completed (including no candidates), 1 = run failed,
// 2 = usage.
func runBonusCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("bonus", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var p bonus.Params
	cmd.StringVar(&p.Week, "week", "", `Window selector; "latest" for the last full Mon-Sun week`)
	cmd.StringVar(&p.Start, "start", "", "Window start day (YYYY-MM-DD)")
	cmd.StringVar(&p.End, "end", "", "Window end day (YYYY-MM-DD)")
	cmd.StringVar(&p.PayoutDay, "payout", "", "Day key the payouts are written under (default today)")
	cmd.IntVar(&p.TopN, "top", cfg.BonusTopN, "Number of winners")
	cmd.IntVar(&p.MinLen, "min-len", cfg.BonusMinLen, "Minimum content length to be eligible")
	cmd.Int64Var(&p.Min, "min", cfg.BonusMin, "Lowest payout amount")
	cmd.Int64Var(&p.Max, "max", cfg.BonusMax, "Highest payout amount")
	cmd.BoolVar(&p.DryRun, "dry", false, "Compute winners without writing payouts")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if p.Week == "" && (p.Start == "" || p.End == "") {
		_, _ = fmt.Fprintln(stderr, "Error: provide --week latest or both --start and --end")
		return 2
	}

	c, err := setup(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer c.Close()

	ctx := context.Background()
	res, err := c.bonuses.Run(ctx, p)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if !res.DryRun && res.Written > 0 {
		if err := c.gic.MirrorDay(ctx, res.PayoutDay, c.store.GicMirrorPath(res.PayoutDay)); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: gic mirror failed: %v\n", err)
		}
	}
	printJSON(stdout, res)
	return 0
}

// runArchiveCmd bundles a rooted day into a zip under the archive directory.
func runArchiveCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("archive", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	date, ok := dayFlag(cmd, stderr, args)
	if !ok {
		return 2
	}

	c, err := setup(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer c.Close()

	zipPath, err := c.archiver.ArchiveDay(date)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, zipPath)
	return 0
}

// runSignCmd signs a day's artifacts and writes the signing manifest next to
// them.
func runSignCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("sign", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	date, ok := dayFlag(cmd, stderr, args)
	if !ok {
		return 2
	}

	c, err := setup(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer c.Close()

	signer := c.signer
	if signer == nil {
		// No configured identity; fall back to the node id so the operator
		// subcommand still works on a fresh install.
		signer, err = signing.LoadOrCreateSigner(cfg.SignerKeyPath, cfg.Node.NodeID)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	var files []string
	links := c.store.Links(date)
	for _, kind := range []string{"seed", "echo", "seal", "ledger", "root"} {
		path := filepath.Join(c.store.Root(), links[kind])
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		_, _ = fmt.Fprintf(stderr, "Error: no files to sign for %s\n", date)
		return 1
	}

	manifest, err := signer.SignFiles(date, files)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	manifestPath := filepath.Join(c.store.DayDir(date), date+".sign-manifest.json")
	if err := signing.WriteManifest(manifest, manifestPath); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	printJSON(stdout, manifest)
	return 0
}

// runKeygenCmd generates a signing keypair and stores the seed.
func runKeygenCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("keygen", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var out, identity string
	cmd.StringVar(&out, "out", cfg.SignerKeyPath, "Key file to write")
	cmd.StringVar(&identity, "identity", cfg.Node.NodeID, "Signer identity recorded in manifests")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if _, err := os.Stat(out); err == nil {
		_, _ = fmt.Fprintf(stderr, "Error: %s already exists; refusing to overwrite\n", out)
		return 1
	}
	signer, err := signing.NewSigner(identity)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := signer.Save(out); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "wrote %s\npublic key: %s\n", out, signer.PublicKey())
	return 0
}
