package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"lessonweaver/common"
	"lessonweaver/pipelines/lesson"
)

func main() {
	serverMode := flag.Bool("server", false, "Run as HTTP server")
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	profilePath := flag.String("profile", "", "Path to student profile JSON (CLI mode)")
	flag.Parse()

	if err := common.LoadEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found or error reading it")
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := common.NewLogger(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if os.Getenv("GEMINI_API_KEY") == "" {
		log.Fatal("GEMINI_API_KEY not set")
	}

	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal("failed to create data directories", "error", err)
	}

	deps, closeDeps, err := newDeps(cfg, log)
	if err != nil {
		log.Fatal("failed to build pipeline dependencies", "error", err)
	}
	defer closeDeps()

	if *serverMode {
		StartServer(cfg, log, deps)
		return
	}

	args := flag.Args()
	if *profilePath == "" || len(args) < 1 {
		log.Fatal("usage: lessonweaver --profile profile.json <lesson-url>  |  lessonweaver --server")
	}

	profile, err := loadProfile(*profilePath)
	if err != nil {
		log.Fatal("failed to load student profile", "error", err)
	}

	pipe := lesson.New(deps, lesson.Options{DeriveRules: true, WithMedia: true})
	final, err := pipe.Run(context.Background(), lesson.State{
		Profile:   profile,
		LessonURL: args[0],
	})
	if err != nil {
		log.Fatal("pipeline failed", "error", err)
	}

	log.Info("pipeline completed",
		"rules", final.Rules,
		"text", final.FinalTextPath,
		"json", final.FinalJSONPath,
		"markdown", final.FinalMarkdownPath)
}

func loadProfile(path string) (lesson.StudentProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var profile lesson.StudentProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return profile, nil
}

// newDeps wires the concrete collaborators into the pipeline dependency set.
// The returned closer releases the Gemini client.
func newDeps(cfg common.Config, log *common.Logger) (lesson.Deps, func(), error) {
	gemini, err := common.NewGeminiClient(os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		return lesson.Deps{}, nil, err
	}

	kb, err := lesson.LoadKnowledgeBase(cfg.KnowledgeBasePath)
	if err != nil {
		gemini.Close()
		return lesson.Deps{}, nil, err
	}

	deps := lesson.Deps{
		Log:         log,
		Generator:   gemini,
		Fetcher:     common.NewFileDownloader(log, cfg.UploadDir(), cfg.FetchTimeout()),
		Extractor:   common.NewDocumentExtractor(log),
		Synthesizer: common.NewSarvamClient(log, os.Getenv("SARVAM_API_KEY")),
		Searcher:    common.NewSerpAPIClient(log, os.Getenv("SERPAPI_KEY")),
		Images:      common.NewImageDownloader(log),

		KB: kb,

		AudioDir:    cfg.AudioDir(),
		ImageDir:    cfg.ImageDir(),
		FinalDir:    cfg.FinalDir(),
		JSONDir:     cfg.JSONDir(),
		MarkdownDir: cfg.MarkdownDir(),

		PublicBaseURL:  cfg.PublicBaseURL,
		ConflictPolicy: cfg.ConflictPolicy,

		GenTimeout:      cfg.GenerationTimeout(),
		MaxAudioChunks:  cfg.MaxAudioChunks,
		MaxImageQueries: cfg.MaxImageQueries,
	}
	return deps, gemini.Close, nil
}
