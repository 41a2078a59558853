// Command arena drives a voice comparison end to end from the terminal:
// configure the two sides, wait for generation, take the blind listening
// test, and print the evaluation. It also manages history and shows the
// lifetime voice leaderboard.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/echolab/voicearena/internal/analytics"
	"github.com/echolab/voicearena/internal/blindtest"
	"github.com/echolab/voicearena/internal/client"
	"github.com/echolab/voicearena/internal/config"
	"github.com/echolab/voicearena/internal/models"
	"github.com/echolab/voicearena/internal/orchestrator"
	"github.com/google/uuid"
)

func main() {
	cfg := config.LoadClient()

	backend := flag.String("backend", cfg.BackendURL, "Backend base URL")
	apiKey := flag.String("api-key", cfg.APIKey, "Backend API key")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	c := client.New(*backend, *apiKey)
	ctx := context.Background()

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "run":
		err = runComparison(ctx, c, cfg, flag.Args()[1:])
	case "list":
		err = listComparisons(ctx, c)
	case "delete":
		err = deleteComparisons(ctx, c, flag.Args()[1:])
	case "analytics":
		err = showAnalytics(ctx, c, flag.Args()[1:])
	case "texts":
		err = generateTexts(ctx, c, flag.Args()[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: arena [flags] <command>

Commands:
  run        create a comparison, wait for it, take the blind test, show results
  list       show comparison history
  delete     delete comparisons by id
  analytics  show the lifetime voice leaderboard
  texts      generate sample texts with the backend LLM

Flags:
`)
	flag.PrintDefaults()
}

func runComparison(ctx context.Context, c *client.Client, cfg *config.ClientConfig, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	name := fs.String("name", "", "Comparison name (default: \"<provider-a> vs <provider-b>\")")
	providerA := fs.String("provider-a", "elevenlabs", "Provider for side A")
	modelA := fs.String("model-a", "eleven_turbo_v2", "Model for side A")
	voicesA := fs.String("voices-a", "", "Comma-separated voice ids for side A")
	providerB := fs.String("provider-b", "cartesia", "Provider for side B")
	modelB := fs.String("model-b", "sonic-2", "Model for side B")
	voicesB := fs.String("voices-b", "", "Comma-separated voice ids for side B")
	texts := fs.String("texts", "", "Sample texts separated by |")
	runs := fs.Int("runs", 1, "Runs per text/voice combination (1-10)")
	skipBlind := fs.Bool("skip-blind", false, "Skip the blind test, metrics only")
	pollInterval := fs.Duration("poll-interval", cfg.PollInterval, "Progress polling cadence")
	maxPoll := fs.Duration("max-poll", cfg.MaxPollDuration, "Give up polling after this long (0 = never)")
	fs.Parse(args)

	spec := orchestrator.Spec{
		Name:        *name,
		ProviderA:   selection(*providerA, *modelA, *voicesA),
		ProviderB:   selection(*providerB, *modelB, *voicesB),
		SampleTexts: splitNonEmpty(*texts, "|"),
		NumRuns:     *runs,
	}

	var o *orchestrator.Orchestrator
	o = orchestrator.New(c,
		orchestrator.WithPollInterval(*pollInterval),
		orchestrator.WithMaxPollDuration(*maxPoll),
		orchestrator.WithPollObserver(func() {
			fmt.Printf("\rProgress: %3d%%", o.Progress())
		}),
	)

	if err := o.Create(ctx, spec); err != nil {
		return err
	}
	fmt.Printf("Comparison created, generating %d samples...\n", expectedCount(spec))

	err := o.Wait(ctx)
	fmt.Println()
	if err != nil {
		return err
	}

	if o.Step() != orchestrator.StepBlindTest {
		comparison := o.Comparison()
		if comparison != nil && comparison.ErrorMessage != nil {
			return fmt.Errorf("comparison failed: %s", *comparison.ErrorMessage)
		}
		return fmt.Errorf("comparison did not complete")
	}

	if *skipBlind {
		if err := o.SkipBlindTest(); err != nil {
			return err
		}
	} else if err := takeBlindTest(ctx, o); err != nil {
		return err
	}

	printSummary(o.Summary())
	return nil
}

func selection(provider, model, voices string) models.ProviderSelection {
	sel := models.ProviderSelection{Provider: provider, Model: model}
	for _, id := range splitNonEmpty(voices, ",") {
		sel.Voices = append(sel.Voices, models.Voice{ID: id})
	}
	return sel
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func expectedCount(spec orchestrator.Spec) int {
	return len(spec.SampleTexts) * (len(spec.ProviderA.Voices) + len(spec.ProviderB.Voices)) * spec.NumRuns
}

// takeBlindTest walks the anonymized pairs on stdin. Listeners may skip
// individual pairs; skipping all of them falls back to metrics-only results.
func takeBlindTest(ctx context.Context, o *orchestrator.Orchestrator) error {
	pairs := o.Pairs()
	if len(pairs) == 0 {
		fmt.Println("No blind pairs available, showing metrics only.")
		return o.SkipBlindTest()
	}

	fmt.Printf("\nBlind test: %d pairs. For each, listen to X and Y, then pick.\n", len(pairs))
	reader := bufio.NewReader(os.Stdin)

	var choices []blindtest.Choice
	for i, p := range pairs {
		fmt.Printf("\n[%d/%d] %q\n", i+1, len(pairs), p.Text)
		fmt.Printf("  X: %s\n", audioURL(p.X()))
		fmt.Printf("  Y: %s\n", audioURL(p.Y()))

		for {
			fmt.Print("Prefer x, y, or s to skip: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "x":
				choices = append(choices, blindtest.Choice{SampleIndex: p.SampleIndex, Picked: blindtest.LabelX})
			case "y":
				choices = append(choices, blindtest.Choice{SampleIndex: p.SampleIndex, Picked: blindtest.LabelY})
			case "s":
			default:
				continue
			}
			break
		}
	}

	if len(choices) == 0 {
		fmt.Println("All pairs skipped, showing metrics only.")
		return o.SkipBlindTest()
	}
	return o.SubmitChoices(ctx, choices)
}

func audioURL(s models.Sample) string {
	if s.AudioURL != nil {
		return *s.AudioURL
	}
	return "(no audio url)"
}

func printSummary(s *models.EvaluationSummary) {
	if s == nil {
		return
	}

	fmt.Println("\nResults")
	fmt.Println("-------")
	printAggregate("A", s.ProviderA)
	printAggregate("B", s.ProviderB)

	if s.BlindTest != nil {
		fmt.Printf("Blind test: A %d wins (%.0f%%), B %d wins (%.0f%%)\n",
			s.BlindTest.AWins, s.BlindTest.APct, s.BlindTest.BWins, s.BlindTest.BPct)
	}

	winner := s.ProviderA
	if s.Winner == models.ProviderB {
		winner = s.ProviderB
	}
	fmt.Printf("Winner: %s (%s/%s)\n", strings.ToUpper(string(s.Winner)), winner.Provider, winner.Model)
}

func printAggregate(side string, agg models.ProviderAggregate) {
	fmt.Printf("%s: %s/%s, %d samples", side, agg.Provider, agg.Model, agg.SampleCount)
	for _, name := range []string{models.MetricMOS, models.MetricValence, models.MetricArousal, models.MetricProsody, models.MetricLatencyMs} {
		if v, ok := agg.Means[name]; ok {
			fmt.Printf(", %s=%.2f", name, v)
		}
	}
	fmt.Println()
}

func listComparisons(ctx context.Context, c *client.Client) error {
	summaries, err := c.ListComparisons(ctx)
	if err != nil {
		return err
	}

	if len(summaries) == 0 {
		fmt.Println("No comparisons yet.")
		return nil
	}

	for _, s := range summaries {
		fmt.Printf("%s  %-10s  %-30s  %s vs %s  (%d texts, %d runs, %d samples)\n",
			s.ID, s.Status, s.Name, s.ProviderA, s.ProviderB, s.TextCount, s.NumRuns, s.SampleCount)
		if s.ErrorMessage != nil {
			fmt.Printf("    error: %s\n", *s.ErrorMessage)
		}
	}
	return nil
}

func deleteComparisons(ctx context.Context, c *client.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("delete requires at least one comparison id")
	}

	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return fmt.Errorf("invalid comparison id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}

	deleted, failures := c.DeleteComparisons(ctx, ids)
	fmt.Printf("Deleted %d of %d comparisons\n", deleted, len(ids))
	for _, f := range failures {
		fmt.Printf("  %s: %v\n", f.ID, f.Err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d deletions failed", len(failures))
	}
	return nil
}

func showAnalytics(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("analytics", flag.ExitOnError)
	sortKey := fs.String("sort", string(analytics.KeyAvgMOS), "Sort column: provider, model, voice_name, sample_count, avg_mos, avg_valence, avg_arousal, avg_prosody, avg_latency_ms")
	reverse := fs.Bool("reverse", false, "Reverse the column's default direction")
	fs.Parse(args)

	rows, err := c.GetAnalytics(ctx)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		fmt.Println("No analytics yet.")
		return nil
	}

	var state analytics.State
	state.Select(analytics.Key(*sortKey))
	if *reverse {
		state.Select(analytics.Key(*sortKey))
	}
	analytics.Sort(rows, state.Key, state.Direction)

	fmt.Printf("%-12s %-20s %-20s %8s %8s %8s %8s %8s %10s\n",
		"PROVIDER", "MODEL", "VOICE", "SAMPLES", "MOS", "VALENCE", "AROUSAL", "PROSODY", "LATENCY")
	for _, r := range rows {
		fmt.Printf("%-12s %-20s %-20s %8d %8s %8s %8s %8s %10s\n",
			r.Provider, r.Model, r.VoiceName, r.SampleCount,
			fmtMetric(r.AvgMOS), fmtMetric(r.AvgValence), fmtMetric(r.AvgArousal),
			fmtMetric(r.AvgProsody), fmtMetric(r.AvgLatencyMs))
	}
	return nil
}

func fmtMetric(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func generateTexts(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("texts", flag.ExitOnError)
	topic := fs.String("topic", "", "Topic for the generated sentences")
	style := fs.String("style", "", "Optional speaking style, e.g. \"customer support\"")
	count := fs.Int("count", 5, "Number of sentences")
	fs.Parse(args)

	if *topic == "" {
		return fmt.Errorf("texts requires -topic")
	}

	texts, err := c.GenerateSampleTexts(ctx, models.GenerateSampleTextsRequest{
		Topic: *topic,
		Style: *style,
		Count: *count,
	})
	if err != nil {
		return err
	}

	for _, t := range texts {
		fmt.Println(t)
	}
	return nil
}
