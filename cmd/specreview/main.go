// Command specreview reviews a single technical specification from the
// terminal and writes the annotated report next to it.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/techspec-reviewer/backend/internal/config"
	"github.com/techspec-reviewer/backend/internal/extract"
	"github.com/techspec-reviewer/backend/internal/models"
	"github.com/techspec-reviewer/backend/internal/report"
	"github.com/techspec-reviewer/backend/internal/review"
	"github.com/techspec-reviewer/backend/internal/reviewer"
)

type options struct {
	configPath string
	provider   string
	model      string
	template   string
	rules      string
	out        string
	format     string
	timeout    time.Duration
}

func main() {
	opts := parseFlags()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: specreview [flags] <document>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(opts, flag.Arg(0)); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "XML config file (defaults are used when empty)")
	flag.StringVar(&opts.provider, "provider", "", "review provider: bedrock, openai, ollama or mock")
	flag.StringVar(&opts.model, "model", "", "model id (overrides config)")
	flag.StringVar(&opts.template, "template", "", "template DOCX (overrides config)")
	flag.StringVar(&opts.rules, "rules", "", "section rules YAML (overrides config)")
	flag.StringVar(&opts.out, "out", "", "report path (default <document>_review.<format>)")
	flag.StringVar(&opts.format, "format", "pdf", "report format: pdf, md, json or msgpack")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "give up after this long")
	flag.Parse()
	return opts
}

func loadConfig(opts options) (*config.AppConfig, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.provider != "" {
		cfg.Review.Provider = strings.ToLower(opts.provider)
	}
	if opts.model != "" {
		cfg.Review.ModelID = opts.model
	}
	if opts.template != "" {
		cfg.Review.TemplatePath = opts.template
	}
	if opts.rules != "" {
		cfg.Review.RulesPath = opts.rules
	}
	return cfg, nil
}

func run(opts options, docPath string) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	stat, err := os.Stat(docPath)
	if err != nil {
		return err
	}

	var awsSess client.ConfigProvider
	if cfg.Review.Provider == "" || cfg.Review.Provider == "bedrock" {
		sess, err := session.NewSession(&aws.Config{
			Region:     aws.String(cfg.Review.Region),
			MaxRetries: aws.Int(cfg.Review.MaxRetries),
		})
		if err != nil {
			return fmt.Errorf("failed to create AWS session: %w", err)
		}
		awsSess = sess
	}

	rv, err := reviewer.New(reviewer.Config{
		Provider:          cfg.Review.Provider,
		Model:             cfg.Review.ModelID,
		MaxTokens:         cfg.Review.MaxTokens,
		Temperature:       aws.Float64(cfg.Review.Temperature),
		OpenAIKey:         cfg.Review.OpenAIAPIKey,
		OpenAIBaseURL:     cfg.Review.OpenAIBaseURL,
		OllamaURL:         cfg.Review.OllamaURL,
		RequestsPerMinute: cfg.Review.RequestsPerMinute,
	}, awsSess)
	if err != nil {
		return err
	}

	mgr := review.NewManager(extract.NewRegistry(), rv, review.Options{ChunkAnnotations: cfg.Review.ChunkAnnotations})
	defer mgr.Close()

	if data, err := os.ReadFile(cfg.Review.TemplatePath); err == nil {
		doc, err := extract.ParseTemplate(data)
		if err != nil {
			return fmt.Errorf("failed to parse template: %w", err)
		}
		mgr.SetTemplate(extract.TemplateHeadings(doc), extract.TemplateParagraphs(doc))
	} else {
		color.Yellow("No template at %s, using rule headings", cfg.Review.TemplatePath)
	}
	if rules, err := review.LoadRules(cfg.Review.RulesPath); err == nil {
		mgr.SetRules(rules)
	} else {
		color.Yellow("No rules loaded: %v", err)
	}

	color.Cyan("Reviewing %s with %s / %s", filepath.Base(docPath), rv.Name(), rv.Model())

	file := models.FileInfo{
		ID:         uuid.New().String(),
		Name:       filepath.Base(docPath),
		Size:       stat.Size(),
		UploadedAt: time.Now(),
		Status:     models.FileStatusUploaded,
	}

	events, unsubscribe := mgr.Subscribe()
	defer unsubscribe()

	sess, err := mgr.StartReview(file, docPath)
	if err != nil {
		return err
	}

	final, err := waitForReview(mgr, sess.ID, events, opts.timeout)
	if err != nil {
		return err
	}
	if final.Status == models.SessionStatusError {
		for _, e := range final.Errors {
			color.Red("  %s: %s", e.Stage, e.Reason)
		}
		return fmt.Errorf("review failed")
	}

	result, ok := mgr.GetResult(sess.ID)
	if !ok {
		return fmt.Errorf("review %s produced no result", sess.ID)
	}
	printSummary(result)

	out := opts.out
	if out == "" {
		out = filepath.Join(filepath.Dir(docPath), format.FileName(file.Name))
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.Render(f, format, result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	color.Green("\nReport written to %s", out)
	return nil
}

// waitForReview drives a progress bar until the session finishes. Events can
// be dropped for slow subscribers, so the session is also polled.
func waitForReview(mgr *review.Manager, sessionID string, events <-chan review.Event, timeout time.Duration) (*models.ReviewSession, error) {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(color.BlueString("queued")),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	update := func(stage string, progress float64) {
		bar.Describe(color.BlueString("%-12s", stage))
		_ = bar.Set(int(progress))
	}

	for {
		select {
		case e, ok := <-events:
			if !ok {
				events = nil
			} else if e.SessionID == sessionID {
				update(e.Stage, e.Progress)
			}
		case <-ticker.C:
		case <-deadline:
			return nil, fmt.Errorf("review did not finish within %s", timeout)
		}

		s, ok := mgr.GetSession(sessionID)
		if !ok {
			return nil, fmt.Errorf("review session %s disappeared", sessionID)
		}
		if s.Status == models.SessionStatusComplete || s.Status == models.SessionStatusError {
			update(s.Stage, s.Progress)
			_ = bar.Finish()
			fmt.Println()
			return s, nil
		}
	}
}

func printSummary(result *models.ReviewResult) {
	header := color.New(color.Bold).PrintfFunc()
	header("\n%-32s %-10s %s\n", "Section", "Status", "Score")

	for _, s := range result.Structure.Sections {
		status := color.GreenString("%-10s", s.Status)
		switch s.Status {
		case models.SectionMissing:
			status = color.RedString("%-10s", s.Status)
		case models.SectionBoilerplate:
			status = color.YellowString("%-10s", s.Status)
		}
		score := "-"
		if s.AIScore != nil {
			score = fmt.Sprintf("%d/5", *s.AIScore)
		}
		fmt.Printf("%-32s %s %s\n", truncate(s.Header, 32), status, score)
	}

	if result.Structure.OverallScore != nil {
		header("\nOverall: %d/10\n", *result.Structure.OverallScore)
	}
	if result.Structure.OverallComment != "" {
		fmt.Println(result.Structure.OverallComment)
	}
	for _, e := range result.Errors {
		color.Yellow("warning (%s): %s", e.Stage, e.Reason)
	}
	fmt.Printf("%d annotations\n", len(result.Annotations))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
