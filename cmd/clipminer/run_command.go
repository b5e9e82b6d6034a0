package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"clipminer/internal/cache"
	"clipminer/internal/config"
	"clipminer/internal/download"
	"clipminer/internal/logging"
	"clipminer/internal/media"
	"clipminer/internal/notifications"
	"clipminer/internal/pipeline"
	"clipminer/internal/scoring"
	"clipminer/internal/services/catalog"
	"clipminer/internal/services/llm"
	"clipminer/internal/services/speech"
	"clipminer/internal/sink"
	"clipminer/internal/state"
	"clipminer/internal/textmatch"
	"clipminer/internal/vocab"
)

type runFlags struct {
	wordsFile     string
	bundlePath    string
	bundleName    string
	storageDir    string
	outputDir     string
	backendURL    string
	maxCandidates int
	minScore      float64
	minFinalScore float64
	workers       int
	upload        bool
	downloadOnly  bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mine the catalog for vocabulary teaching clips",
		Long: "Searches the clip catalog for every pending vocabulary word, scores " +
			"candidates with the configured LLM, downloads and transcribes the " +
			"survivors, and commits verified clips to the configured sink. Safe to " +
			"interrupt and re-run; completed work is never redone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runPipeline(cmd, cfg, flags)
		},
	}

	cmd.Flags().StringVar(&flags.wordsFile, "words-file", "", "Word list file, one word per line")
	cmd.Flags().StringVar(&flags.bundlePath, "bundle", "", "SQLite vocabulary bundle path")
	cmd.Flags().StringVar(&flags.bundleName, "bundle-name", "", "Restrict the bundle to a named collection")
	cmd.Flags().StringVar(&flags.storageDir, "storage-dir", "", "Override the storage directory")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "Override the directory sink output path")
	cmd.Flags().StringVar(&flags.backendURL, "backend-url", "", "Override the upload backend URL")
	cmd.Flags().IntVar(&flags.maxCandidates, "max-candidates", 0, "Maximum catalog candidates per word")
	cmd.Flags().Float64Var(&flags.minScore, "min-score", 0, "Minimum pre-download relevance score")
	cmd.Flags().Float64Var(&flags.minFinalScore, "min-final-score", 0, "Minimum post-download relevance score")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Concurrent word workers")
	cmd.Flags().BoolVar(&flags.upload, "upload", false, "Commit clips to the backend instead of the output directory")
	cmd.Flags().BoolVar(&flags.downloadOnly, "download-only", false, "Commit clips to the output directory (default)")

	return cmd
}

func applyRunFlags(cfg *config.Config, flags *runFlags) error {
	if flags.upload && flags.downloadOnly {
		return fmt.Errorf("--upload and --download-only are mutually exclusive")
	}
	if flags.wordsFile != "" && flags.bundlePath != "" {
		return fmt.Errorf("--words-file and --bundle are mutually exclusive")
	}

	if flags.wordsFile != "" {
		expanded, err := config.ExpandPath(flags.wordsFile)
		if err != nil {
			return err
		}
		cfg.Vocabulary.WordsFile = expanded
		cfg.Vocabulary.BundlePath = ""
	}
	if flags.bundlePath != "" {
		expanded, err := config.ExpandPath(flags.bundlePath)
		if err != nil {
			return err
		}
		cfg.Vocabulary.BundlePath = expanded
		cfg.Vocabulary.WordsFile = ""
	}
	if flags.bundleName != "" {
		cfg.Vocabulary.BundleName = flags.bundleName
	}
	if flags.storageDir != "" {
		expanded, err := config.ExpandPath(flags.storageDir)
		if err != nil {
			return err
		}
		cfg.Paths.StorageDir = expanded
	}
	if flags.outputDir != "" {
		expanded, err := config.ExpandPath(flags.outputDir)
		if err != nil {
			return err
		}
		cfg.Paths.OutputDir = expanded
	}
	if flags.backendURL != "" {
		cfg.Sink.BackendURL = flags.backendURL
	}
	if flags.maxCandidates > 0 {
		cfg.Catalog.MaxCandidates = flags.maxCandidates
	}
	if flags.minScore > 0 {
		cfg.Scoring.MinRelevance = flags.minScore
	}
	if flags.minFinalScore > 0 {
		cfg.Scoring.MinFinalRelevance = flags.minFinalScore
	}
	if flags.workers > 0 {
		cfg.Workflow.WordWorkers = flags.workers
	}
	if flags.upload {
		cfg.Sink.Mode = "upload"
	}
	if flags.downloadOnly {
		cfg.Sink.Mode = "directory"
	}
	return nil
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, flags *runFlags) error {
	if err := applyRunFlags(cfg, flags); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", filepath.Join(cfg.Paths.LogDir, "clipminer.log")},
	})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	extractor := media.NewExtractor(cfg.FFmpegBinary())
	if cfg.Sink.Mode == "directory" {
		if err := extractor.Available(); err != nil {
			return err
		}
	}

	lock, err := state.AcquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer lock.Release()

	tracker, err := state.Open(cfg.StateDir())
	if err != nil {
		return err
	}
	defer tracker.Close()

	source, err := vocabularySource(cfg)
	if err != nil {
		return err
	}
	words, err := source.Words()
	if err != nil {
		return err
	}
	if len(words) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending vocabulary words.")
		return nil
	}

	pipe := buildPipeline(cfg, tracker, extractor, logger)
	notifier := notifications.NewService(cfg, logger)

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	notifier.RunStarted(runCtx, len(words))

	summary, runErr := pipe.Run(runCtx, words)
	if runErr != nil {
		notifier.RunFailed(context.Background(), runErr)
		printSummary(cmd, cfg, summary)
		return runErr
	}

	notifier.RunCompleted(context.Background(),
		summary.WordsProcessed, summary.ClipsCommitted, summary.Failures, time.Since(started))
	printSummary(cmd, cfg, summary)
	return nil
}

func vocabularySource(cfg *config.Config) (vocab.Source, error) {
	if cfg.Vocabulary.BundlePath != "" {
		return &vocab.BundleSource{
			Path:       cfg.Vocabulary.BundlePath,
			BundleName: cfg.Vocabulary.BundleName,
			Language:   cfg.Vocabulary.Language,
		}, nil
	}
	if cfg.Vocabulary.WordsFile != "" {
		return &vocab.FileSource{
			Path:     cfg.Vocabulary.WordsFile,
			Language: cfg.Vocabulary.Language,
		}, nil
	}
	return nil, fmt.Errorf("no vocabulary source configured: set words_file or bundle_path")
}

func buildPipeline(cfg *config.Config, tracker *state.Tracker, extractor *media.Extractor, logger *logging.Logger) *pipeline.Pipeline {
	searcher := catalog.NewClient(catalog.Config{
		BaseURL:        cfg.Catalog.BaseURL,
		APIKey:         cfg.Catalog.APIKey,
		MaxCandidates:  cfg.Catalog.MaxCandidates,
		MinDurationSec: cfg.Catalog.MinDurationSec,
		MaxDurationSec: cfg.Catalog.MaxDurationSec,
		Timeout:        time.Duration(cfg.Catalog.TimeoutSeconds) * time.Second,
	}, nil)

	completer := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Referer: cfg.LLM.Referer,
		Title:   cfg.LLM.Title,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}, nil)

	scorer := scoring.NewScorer(completer,
		textmatch.NewMatcher(vocab.NormalizeLanguage(cfg.Vocabulary.Language)),
		scoring.Options{
			MinRelevance:       cfg.Scoring.MinRelevance,
			MinFinalRelevance:  cfg.Scoring.MinFinalRelevance,
			MaxMappingsPerClip: cfg.Scoring.MaxMappingsPerClip,
		})

	downloader := download.NewAcquirer(download.Config{
		MediaDir:     cfg.MediaDir(),
		MaxBytes:     cfg.Download.MaxBytes,
		Timeout:      time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
		ShowProgress: true,
	}, nil)

	transcriber := speech.NewClient(speech.Config{
		APIKey:  cfg.Speech.APIKey,
		BaseURL: cfg.Speech.BaseURL,
		Model:   cfg.Speech.Model,
		Timeout: time.Duration(cfg.Speech.TimeoutSeconds) * time.Second,
	}, nil)

	var committer sink.Sink
	if cfg.Sink.Mode == "upload" {
		committer = sink.NewUploadSink(sink.UploadConfig{
			BackendURL: cfg.Sink.BackendURL,
			SourceID:   cfg.Sink.SourceID,
			Timeout:    time.Duration(cfg.Sink.TimeoutSeconds) * time.Second,
		}, nil)
	} else {
		committer = sink.NewDirectorySink(cfg.Paths.OutputDir, extractor)
	}

	return pipeline.New(cache.NewStore(cfg.CacheDir()), tracker, searcher, scorer,
		downloader, transcriber, committer, logger, pipeline.Options{
			WordWorkers: cfg.Workflow.WordWorkers,
			SourceID:    cfg.Sink.SourceID,
		})
}

func printSummary(cmd *cobra.Command, cfg *config.Config, summary pipeline.Summary) {
	rows := [][]string{
		{"Words processed", strconv.Itoa(summary.WordsProcessed)},
		{"Clips scored", strconv.Itoa(summary.ClipsScored)},
		{"Clips downloaded", strconv.Itoa(summary.ClipsDownloaded)},
		{"Clips committed", strconv.Itoa(summary.ClipsCommitted)},
		{"Clips rejected", strconv.Itoa(summary.ClipsRejected)},
		{"Failures", strconv.Itoa(summary.Failures)},
		{"Elapsed", summary.Elapsed.Round(time.Second).String()},
	}
	if summary.ClipsDownloaded > 0 {
		rows = append(rows, []string{"Size ceiling", humanize.Bytes(uint64(cfg.Download.MaxBytes))})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
	if summary.Failures > 0 {
		fmt.Fprintf(out, "%d failed attempts recorded in %s\n",
			summary.Failures, filepath.Join(cfg.StateDir(), "failed_attempts.jsonl"))
	}
	if !strings.EqualFold(cfg.Sink.Mode, "upload") {
		fmt.Fprintf(out, "Curated clips in %s\n", cfg.Paths.OutputDir)
	}
}
