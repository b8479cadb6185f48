// Portfolio simulation tool for exercising the Kestrel decision engine.
//
// Usage:
//   go run cmd/simulate/main.go -n 10000 -seed 42 -workers 8
//
// This tool:
//   1. Generates a deterministic applicant population from a seed
//   2. Runs the full decision waterfall over the population in-process
//   3. Prints approval, risk, and expected-loss metrics per policy
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/bureau"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/portfolio"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

func main() {
	count := flag.Int("n", 10000, "Number of applicants to simulate")
	seed := flag.Int64("seed", 42, "Random seed for the applicant population")
	workers := flag.Int("workers", 8, "Number of concurrent evaluation workers")
	tenantID := flag.String("tenant", "simulation", "Tenant ID for the run")
	policiesPath := flag.String("policies", "", "Path to a policy set JSON file (default: builtin)")
	weightsPath := flag.String("weights", "", "Path to a score weights JSON file (default: builtin)")
	lgdPath := flag.String("lgd", "", "Path to an LGD table JSON file (default: builtin)")
	verbose := flag.Bool("verbose", false, "Print each rejected applicant")
	flag.Parse()

	// Keep engine logging out of the report output.
	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         KESTREL SIMULATE - Portfolio Decisioning Run          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nApplicants:  %d\n", *count)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Println()

	eng, err := buildEngine(*policiesPath, *weightsPath, *lgdPath, *workers)
	if err != nil {
		fmt.Printf("ERROR: failed to assemble engine: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d applicant profiles...\n", *count)
	profiles := bureau.NewMockBureau(*seed).Generate(*count)
	fmt.Printf("✓ Population ready\n")

	fmt.Printf("\nRunning portfolio evaluation with %d workers...\n", *workers)
	start := time.Now()
	result, err := eng.EvaluatePortfolio(context.Background(), *tenantID, profiles)
	if err != nil {
		fmt.Printf("ERROR: portfolio evaluation failed: %v\n", err)
		os.Exit(1)
	}
	duration := time.Since(start)

	if *verbose {
		printRejections(result)
	}
	printResults(result, duration)
}

func buildEngine(policiesPath, weightsPath, lgdPath string, workers int) (*engine.Engine, error) {
	weights, err := scoring.LoadWeights(weightsPath)
	if err != nil {
		return nil, err
	}
	oracle, err := scoring.NewHeuristicOracle(weights)
	if err != nil {
		return nil, err
	}

	set, err := policy.LoadPolicySet(policiesPath)
	if err != nil {
		return nil, err
	}
	store, err := policy.NewStore(set)
	if err != nil {
		return nil, err
	}

	table, err := risk.LoadLGDTable(lgdPath)
	if err != nil {
		return nil, err
	}

	// No repository, cache, or event bus: the run is in-process and
	// throwaway.
	return engine.New(oracle, store, risk.NewAnalyzer(table), engine.Options{
		PortfolioWorkers: workers,
	}), nil
}

func printRejections(result *portfolio.Result) {
	fmt.Println("\nRejected applicants:")
	for i := range result.Items {
		item := &result.Items[i]
		if item.Err != "" {
			fmt.Printf("  ✗ %-12s | error: %s\n", item.ApplicantID, item.Err)
			continue
		}
		d := item.Decision
		if d.Approved {
			continue
		}
		fmt.Printf("  ✗ %-12s | score: %4d | pd: %.3f\n", item.ApplicantID, d.Score, d.PD)
	}
}

func printResults(result *portfolio.Result, duration time.Duration) {
	m := result.Metrics

	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      SIMULATION RESULTS                       ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 PORTFOLIO\n")
	fmt.Printf("   Total Evaluated:   %d\n", m.Total)
	fmt.Printf("   Approved:          %d (%.2f%%)\n", m.Approved, m.ApprovalRate*100)
	fmt.Printf("   Rejected:          %d\n", m.Rejected)
	fmt.Printf("   Failures:          %d\n", m.Failures)
	fmt.Printf("   Human Review:      %.2f%%\n", m.HumanReviewRate*100)

	fmt.Printf("\n📈 BY POLICY (routed / approved / rate / mean EL)\n")
	names := make([]string, 0, len(m.ByPolicy))
	for name := range m.ByPolicy {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pm := m.ByPolicy[name]
		fmt.Printf("   %-12s %6d %6d  %6.2f%%  %10.2f\n",
			name, pm.Routed, pm.Approved, pm.ApprovalRate*100, pm.MeanExpectedLoss)
	}

	fmt.Printf("\n🎯 RISK PROFILE (approved book)\n")
	fmt.Printf("   Mean Score:          %.1f\n", m.MeanScoreApproved)
	fmt.Printf("   Mean PD:             %.4f\n", m.MeanPDApproved)
	fmt.Printf("   Total Expected Loss: %.2f\n", m.TotalExpectedLoss)
	fmt.Printf("   Mean Expected Loss:  %.2f\n", m.MeanExpectedLoss)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.Total > 0 && duration > 0 {
		fmt.Printf("   Throughput:       %.2f applicants/sec\n", float64(m.Total)/duration.Seconds())
	}
	fmt.Printf("   Config Version:   %d\n", result.Version)

	fmt.Println()
}
