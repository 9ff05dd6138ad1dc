package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/kaizencycle/hive-ledger/pkg/config"
	"github.com/kaizencycle/hive-ledger/pkg/records"
)

func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func dayFlag(cmd *flag.FlagSet, stderr io.Writer, args []string) (string, bool) {
	var date string
	cmd.StringVar(&date, "date", "", "Day key, YYYY-MM-DD (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return "", false
	}
	if !records.ValidDayKey(date) {
		_, _ = fmt.Fprintln(stderr, "Error: --date must be a valid YYYY-MM-DD day key")
		return "", false
	}
	return date, true
}

// runSealCmd builds the ledger and day root for an already-written day.
//
// Exit codes: 0 = built, 1 = day incomplete or build failed, 2 = usage.
func runSealCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("seal", flag.ContinueOnError)
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

	led, err := c.builder.BuildLedger(date)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := c.builder.BuildDayRoot(date); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	printJSON(stdout, led)
	return 0
}

// runRootCmd prints the day's root artifact.
func runRootCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("root", flag.ContinueOnError)
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

	root, err := c.store.ReadDayRoot(date)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if root == nil {
		_, _ = fmt.Fprintf(stderr, "Error: no day root for %s; run seal first\n", date)
		return 1
	}
	printJSON(stdout, root)
	return 0
}

// runVerifyCmd prints the verification summary for one day.
func runVerifyCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
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

	sum, err := c.store.Summary(date)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	gic, err := c.gic.DayTotals(context.Background(), date)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	sum.Gic = gic
	printJSON(stdout, sum)
	return 0
}

// runIndexCmd lists known days, newest first.
func runIndexCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("index", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var limit int
	cmd.IntVar(&limit, "limit", 100, "Maximum days to list")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	c, err := setup(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer c.Close()

	days, err := c.store.ListDays()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
		days[i], days[j] = days[j], days[i]
	}
	if len(days) > limit {
		days = days[:limit]
	}
	for _, day := range days {
		sum, err := c.store.Summary(day)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		gic, err := c.gic.DayTotals(context.Background(), day)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		sum.Gic = gic
		_, _ = fmt.Fprintln(stdout, sum.String())
	}
	return 0
}
