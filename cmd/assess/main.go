// Package main scores a single candidate snapshot offline: JSON snapshot
// in, viability assessment out. Useful for tuning scoring weights against
// captured candidates without running the engine.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"token-sniper/internal/config"
	"token-sniper/internal/domain"
	"token-sniper/internal/feed"
	"token-sniper/internal/scoring"
)

type factorOut struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Raw    float64 `json:"raw"`
	Delta  float64 `json:"delta"`
}

type assessmentOut struct {
	CandidateID string      `json:"candidate_id"`
	Mint        string      `json:"mint"`
	Score       float64     `json:"score"`
	Admit       bool        `json:"admit"`
	Factors     []factorOut `json:"factors"`
	Degraded    []string    `json:"degraded,omitempty"`
	EvaluatedAt int64       `json:"evaluated_at"`
}

func main() {
	input := flag.String("input", "-", "Candidate snapshot JSON file, - for stdin")
	configPath := flag.String("config", "", "Path to YAML config file (defaults apply when empty)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	data, err := readInput(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(1)
	}

	snap, err := feed.ParseCandidate(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	assessment, err := scoring.Assess(&snap, cfg.Scoring)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assess: %v\n", err)
		os.Exit(1)
	}

	if err := printAssessment(assessment); err != nil {
		fmt.Fprintf(os.Stderr, "encode assessment: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printAssessment(a *domain.ViabilityAssessment) error {
	out := assessmentOut{
		CandidateID: a.CandidateID,
		Mint:        a.Mint,
		Score:       a.Score,
		Admit:       a.Admit,
		Degraded:    a.Degraded,
		EvaluatedAt: a.EvaluatedAt,
	}
	for _, f := range a.Factors {
		out.Factors = append(out.Factors, factorOut{Name: f.Name, Weight: f.Weight, Raw: f.Raw, Delta: f.Delta})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
