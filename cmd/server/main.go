package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/labstack/echo/v4"

	"github.com/techspec-reviewer/backend/internal/api"
	"github.com/techspec-reviewer/backend/internal/config"
	"github.com/techspec-reviewer/backend/internal/extract"
	"github.com/techspec-reviewer/backend/internal/history"
	"github.com/techspec-reviewer/backend/internal/report"
	"github.com/techspec-reviewer/backend/internal/review"
	"github.com/techspec-reviewer/backend/internal/reviewer"
	"github.com/techspec-reviewer/backend/internal/storage"
	"github.com/techspec-reviewer/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	configFileName = "TechSpecReviewer.config.xml"
	shutdownGrace  = 10 * time.Second
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup (history database, review
// workers) runs before the process exits.
func run() (exitCode int) {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		return 1
	}

	configPath := flag.String("config", filepath.Join(filepath.Dir(exePath), configFileName), "path to the XML config file")
	port := flag.Int("port", 0, "listen port (overrides config)")
	address := flag.String("address", "", "bind address (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *address != "" {
		cfg.Server.BindAddress = *address
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		return 1
	}

	api.ShowErrorDetails = cfg.Advanced.LogLevel == "debug"
	embeddedMode := web.HasEmbeddedFiles()

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		return 1
	}

	// AWS session backs Bedrock and the S3 archive; credentials come from the
	// usual chain (.env, environment, shared config, instance role)
	var awsSess client.ConfigProvider
	if sess, err := session.NewSession(&aws.Config{
		Region:     aws.String(cfg.Review.Region),
		MaxRetries: aws.Int(cfg.Review.MaxRetries),
	}); err != nil {
		fmt.Printf("Warning: failed to create AWS session: %v\n", err)
	} else {
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
		fmt.Printf("Failed to initialize reviewer: %v\n", err)
		return 1
	}

	opts := review.Options{
		MaxSessions:      cfg.Processing.MaxSessions,
		ChunkAnnotations: cfg.Review.ChunkAnnotations,
	}

	var historyReader api.HistoryReader
	hist, err := history.Open(cfg.Storage.HistoryDatabase)
	if err != nil {
		fmt.Printf("Warning: review history disabled: %v\n", err)
	} else {
		defer hist.Close()
		opts.History = hist
		historyReader = hist
	}

	if cfg.Archive.S3Bucket != "" && awsSess != nil {
		format, err := report.ParseFormat(cfg.Archive.Format)
		if err != nil {
			fmt.Printf("Warning: %v, archiving as json\n", err)
			format = report.FormatJSON
		}
		opts.Archive = storage.NewS3Archive(awsSess, cfg.Archive.S3Bucket, cfg.Archive.S3Prefix)
		opts.ArchiveFormat = format
		fmt.Printf("[Archive] Reports go to s3://%s/%s as %s\n", cfg.Archive.S3Bucket, cfg.Archive.S3Prefix, format)
	}

	reviewMgr := review.NewManager(extract.NewRegistry(), rv, opts)
	defer reviewMgr.Close()

	loadTemplate(reviewMgr, cfg.Review.TemplatePath)
	loadRules(reviewMgr, cfg.Review.RulesPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := reviewMgr.CleanupOldSessions(time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute); n > 0 {
					fmt.Printf("[Cleanup] Removed %d expired review sessions\n", n)
				}
			}
		}
	}()

	go api.SyncFileStatus(ctx, fileStore, reviewMgr)

	var share *report.ShareService
	if cfg.Security.ShareSecret != "" {
		share = report.NewShareService(cfg.Security.ShareSecret, cfg.Server.PublicURL,
			time.Duration(cfg.Security.ShareTTLMinutes)*time.Minute)
	}

	maxFileSize, err := cfg.MaxFileSizeBytes()
	if err != nil {
		fmt.Printf("Failed to parse MaxFileSize: %v\n", err)
		return 1
	}

	e := echo.New()
	e.HideBanner = true

	api.SetupMiddleware(e, api.MiddlewareOptions{
		RequestLogging:    cfg.Advanced.EnableRequestLogging,
		Timeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		BodyLimit:         cfg.Server.BodyLimit,
		EnableCompression: cfg.Processing.EnableCompression,
		CompressionLevel:  cfg.Processing.CompressionLevel,
		EnableCORS:        cfg.Server.EnableCORS,
		AllowOrigins:      api.SplitOrigins(cfg.Server.AllowOrigins),
	})

	handlers := api.NewHandlers(&api.Dependencies{
		Store:   fileStore,
		Reviews: reviewMgr,
		History: historyReader,
		Share:   share,
		Limits: api.UploadLimits{
			AllowedTypes: storage.ParseAllowedTypes(cfg.Security.AllowedFileTypes),
			MaxFileSize:  maxFileSize,
		},
		TemplatePath: cfg.Review.TemplatePath,
		RulesPath:    cfg.Review.RulesPath,
		Version:      Version,
		Provider:     rv.Name(),
		Model:        rv.Model(),
	})
	api.RegisterRoutes(e, handlers, api.RouteOptions{AllowFileDeletion: cfg.Security.AllowFileDeletion})

	// Register embedded frontend if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			fmt.Printf("Warning: failed to register static routes: %v\n", err)
		} else {
			fmt.Println("Serving embedded frontend from binary")
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	shareState := "disabled"
	if share != nil {
		shareState = "enabled"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           TechSpec Reviewer Server                        ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Provider:   %-45s║\n", rv.Name()+" / "+rv.Model())
	fmt.Printf("║  Share:      %-45s║\n", shareState)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Server:     http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:   %-45s║\n", truncate(cfg.GetDataDir(), 45))
	fmt.Printf("║  Config:     %-45s║\n", truncate(*configPath, 45))
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if err := serve(ctx, e, s, shutdownGrace); err != nil {
		fmt.Printf("Server error: %v\n", err)
		exitCode = 1
	}
	fmt.Println("[Server] Stopped")
	return exitCode
}

// serve runs s until ctx is cancelled, then gives in-flight requests up to
// grace to finish. e.Shutdown only knows e.Server, so s is shut down directly.
func serve(ctx context.Context, e *echo.Echo, s *http.Server, grace time.Duration) error {
	errc := make(chan error, 1)
	go func() { errc <- e.StartServer(s) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	fmt.Println("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// loadTemplate installs the template DOCX if one is present
func loadTemplate(m *review.Manager, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Warning: no review template loaded (%v); section headings come from the rules\n", err)
		return
	}
	doc, err := extract.ParseTemplate(data)
	if err != nil {
		fmt.Printf("Warning: failed to parse template %s: %v\n", path, err)
		return
	}
	headings := extract.TemplateHeadings(doc)
	m.SetTemplate(headings, extract.TemplateParagraphs(doc))
	fmt.Printf("[Template] Loaded %s with %d headings\n", filepath.Base(path), len(headings))
}

// loadRules installs the section rules file if one is present
func loadRules(m *review.Manager, path string) {
	rules, err := review.LoadRules(path)
	if err != nil {
		fmt.Printf("Warning: failed to load review rules: %v\n", err)
		return
	}
	m.SetRules(rules)
	fmt.Printf("[Rules] Loaded %d sections, %d mandatory\n", len(rules.Sections), len(rules.Mandatory()))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n+3:]
}
