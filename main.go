package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"cetcompare/cmd"
	"cetcompare/internal/agent"
	"cetcompare/internal/api"
	"cetcompare/internal/chat"
	"cetcompare/internal/compare"
	"cetcompare/internal/config"
)

var logger *zap.Logger

// setupLogger creates and configures the application logger
func setupLogger(dataDir, level string) (*zap.Logger, error) {
	logPath := filepath.Join(dataDir, "err.log")

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zc := zap.NewProductionConfig()
	zc.Level = lvl
	zc.OutputPaths = []string{logPath}
	zc.ErrorOutputPaths = []string{logPath}
	zc.Sampling = nil

	l, err := zc.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger = l
	logger.Info("Application started", zap.String("data_dir", dataDir))
	return l, nil
}

// renderMarkdown renders markdown content with glamour for beautiful display
func renderMarkdown(content string, width int) (string, error) {
	// Account for borders, padding, and glamour's internal gutter
	const glamourGutter = 2
	const borderWidth = 4

	renderWidth := width - borderWidth - glamourGutter
	if renderWidth < 40 {
		renderWidth = 40
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(content)
}

// openDB opens the cutoff database, failing early with a hint when no
// yearly CSV is present.
func openDB(cfg *config.Config) (*DB, error) {
	if missing := CheckDataFiles(cfg.DataDir, cfg.DataURL); len(missing) == len(cutoffYears) {
		return nil, fmt.Errorf("no cutoff files in %s; run `cetcompare fetch-data` or copy 2021.csv..2025.csv there", TrendsDir(cfg.DataDir))
	}
	return NewDB(cfg.DataDir)
}

// initDB initializes the database for CLI commands
func initDB(cfg *config.Config) (cmd.StoreInterface, func(), error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, func() { db.Close() }, nil
}

// localBackend serves a Session straight from the local database, with
// the same validation and errors as the HTTP API.
type localBackend struct {
	service *ComparisonService
}

var _ compare.Backend = (*localBackend)(nil)

func (b *localBackend) SearchColleges(ctx context.Context, query string) ([]compare.College, error) {
	return b.service.Search(query)
}

func (b *localBackend) Branches(ctx context.Context, collegeCodes []string) ([]compare.Branch, error) {
	branches, err := b.service.Branches(collegeCodes)
	return branches, asServerError("branches", err)
}

func (b *localBackend) Compare(ctx context.Context, req compare.Request) (*compare.ComparisonResult, error) {
	codes := req.CollegeCodes
	branch := req.BranchCode
	in := compareInput{
		CollegeCodes: &codes,
		BranchCode:   &branch,
		Category:     string(req.Category),
		Metric:       string(req.Metric),
	}
	validated, err := in.validate()
	if err != nil {
		return nil, asServerError("compare", err)
	}
	result, err := b.service.Compare(validated)
	return result, asServerError("compare", err)
}

// asServerError gives local failures the shape the HTTP client produces.
func asServerError(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return &api.ServerError{Op: op, Status: http.StatusBadRequest, Message: verr.Detail}
	case errors.Is(err, ErrNoData):
		return &api.ServerError{Op: op, Status: http.StatusNotFound, Message: err.Error()}
	}
	return err
}

// newBackend returns the HTTP client, or the local database when local is set.
func newBackend(cfg *config.Config, local bool) (compare.Backend, func(), error) {
	if !local {
		client, err := newAPIClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &localBackend{service: NewComparisonService(db)}, func() { db.Close() }, nil
}

func newAPIClient(cfg *config.Config) (*api.Client, error) {
	return api.NewClient(api.Config{
		APIURL:     cfg.Client.APIURL,
		CompareURL: cfg.Client.CompareURL,
		Timeout:    cfg.Client.Timeout,
	}, logger)
}

func chatSettings(cfg *config.Config) agent.Settings {
	return agent.Settings{
		Provider:        cfg.Chat.Provider,
		Model:           cfg.Chat.Model,
		GeminiAPIKey:    cfg.Chat.GeminiAPIKey,
		AnthropicAPIKey: cfg.Chat.AnthropicAPIKey,
	}
}

// startServer opens the store and assistant and serves the API. A store
// that fails to load leaves the comparison endpoints answering 503.
func startServer(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		if logger != nil {
			logger.Error("Comparison service unavailable", zap.Error(err))
		}
		fmt.Fprintf(os.Stderr, "Warning: comparison service unavailable: %v\n", err)
		db = nil
	} else {
		defer db.Close()
	}

	provider, available, err := agent.Select(ctx, chatSettings(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to configure assistant: %w", err)
	}
	chatHandler := &ChatHandler{Provider: provider, Available: available}
	if db != nil {
		chatHandler.Store = db
	}

	fmt.Printf("Assistant: %s (available: %t)\n", provider.Name(), available)
	return StartServer(ctx, ServerConfig{
		Port:           cfg.Server.Port,
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		RequestTimeout: cfg.Server.RequestTimeout,
		Watch:          cfg.Server.Watch,
		DB:             db,
		Chat:           chatHandler,
	})
}

// askAssistant answers one question in process.
func askAssistant(ctx context.Context, cfg *config.Config, question string) (string, string, error) {
	provider, _, err := agent.Select(ctx, chatSettings(cfg), logger)
	if err != nil {
		return "", "", err
	}
	reply, err := provider.Reply(ctx, question, nil)
	if err != nil {
		if logger != nil {
			logger.Error("Assistant reply failed", zap.String("service", provider.Name()), zap.Error(err))
		}
		return agent.FriendlyError(err), provider.Name(), nil
	}
	return reply, provider.Name(), nil
}

// fetchData downloads missing yearly CSVs, asking first unless assumeYes.
func fetchData(ctx context.Context, cfg *config.Config, assumeYes bool) error {
	missing := CheckDataFiles(cfg.DataDir, cfg.DataURL)
	if len(missing) == 0 {
		fmt.Println("All cutoff files are present.")
		return nil
	}

	client := &http.Client{Timeout: cfg.Client.Timeout * 4}
	var total int64
	for _, f := range missing {
		if size, err := GetFileSize(ctx, client, f.URL); err == nil && size > 0 {
			total += size
		}
	}
	if total > 0 {
		fmt.Printf("%d files to download (%d KB)\n", len(missing), total/1024)
	}

	if !assumeYes && !PromptUserForDownload(os.Stdin, os.Stdout, missing) {
		if logger != nil {
			logger.Warn("User declined to download cutoff files", zap.Int("missing", len(missing)))
		}
		return errors.New("download cancelled")
	}
	return DownloadDataFiles(ctx, client, os.Stdout, cfg.DataDir, missing)
}

// launchTUI starts the interactive TUI application
func launchTUI(ctx context.Context, cfg *config.Config, local bool) error {
	backend, cleanup, err := newBackend(cfg, local)
	if err != nil {
		return err
	}
	defer cleanup()

	var widget *chat.Widget
	if client, err := newAPIClient(cfg); err == nil {
		widget = chat.NewWidget(client, logger)
	}

	session := compare.NewSession(backend, compare.WithLogger(logger))
	p := tea.NewProgram(
		initialModel(ctx, session, widget),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

func main() {
	// Set up cmd package callbacks
	cmd.SetupLogger = setupLogger
	cmd.LaunchTUI = launchTUI
	cmd.InitDB = initDB
	cmd.NewBackend = newBackend
	cmd.StartServer = startServer
	cmd.FetchData = fetchData
	cmd.AskAssistant = askAssistant
	cmd.RenderComparison = RenderComparison

	// Execute the CLI
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
	if logger != nil {
		_ = logger.Sync()
	}
}
