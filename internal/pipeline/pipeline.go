package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipminer/internal/cache"
	"clipminer/internal/logging"
	"clipminer/internal/scoring"
	"clipminer/internal/services"
	"clipminer/internal/services/catalog"
	"clipminer/internal/services/speech"
	"clipminer/internal/sink"
	"clipminer/internal/state"
	"clipminer/internal/vocab"
)

// Status names the stations a clip moves through. Rejected and Committed
// are terminal; Failed is terminal for the attempt but the clip is retried
// on the next run from its last cached stage.
type Status string

const (
	StatusFound       Status = "found"
	StatusPreScored   Status = "pre_scored"
	StatusDownloaded  Status = "downloaded"
	StatusTranscribed Status = "transcribed"
	StatusFinalScored Status = "final_scored"
	StatusCommitted   Status = "committed"
	StatusRejected    Status = "rejected"
	StatusFailed      Status = "failed"
)

// Stage names used in failure records and log lines.
const (
	stageSearch     = "search"
	stagePreScore   = "pre_score"
	stageDownload   = "download"
	stageTranscribe = "transcribe"
	stageFinalScore = "final_score"
	stageCommit     = "commit"
)

// Searcher finds candidate clips for a word.
type Searcher interface {
	Search(ctx context.Context, word, language string) ([]catalog.Clip, error)
}

// Scorer runs the pre- and post-download LLM passes.
type Scorer interface {
	ScorePre(ctx context.Context, clip catalog.Clip, words []vocab.Word) (*scoring.Analysis, error)
	ScoreFinal(ctx context.Context, clip catalog.Clip, transcript *speech.Transcript, words []vocab.Word) (*scoring.Analysis, error)
}

// Downloader fetches a clip's media to local disk.
type Downloader interface {
	Fetch(ctx context.Context, slug, downloadURL string) (string, int64, error)
}

// Transcriber produces a verified transcript from downloaded media.
type Transcriber interface {
	Transcribe(ctx context.Context, slug, path, language string) (*speech.Transcript, error)
}

// Options tune a pipeline run.
type Options struct {
	WordWorkers int
	SourceID    string
}

// Summary reports what a run accomplished.
type Summary struct {
	WordsProcessed  int
	ClipsScored     int
	ClipsDownloaded int
	ClipsCommitted  int
	ClipsRejected   int
	Failures        int
	Elapsed         time.Duration
}

// Pipeline wires the discovery stages together. Every stage consults the
// cache before touching the network, and every durable result is written
// before the next stage starts, so an interrupted run resumes where it
// stopped.
type Pipeline struct {
	cache       *cache.Store
	tracker     *state.Tracker
	searcher    Searcher
	scorer      Scorer
	downloader  Downloader
	transcriber Transcriber
	sink        sink.Sink
	logger      *logging.Logger
	opts        Options

	mu      sync.Mutex
	summary Summary

	slugMu    sync.Mutex
	slugLocks map[string]*sync.Mutex
}

func New(cacheStore *cache.Store, tracker *state.Tracker, searcher Searcher, scorer Scorer,
	downloader Downloader, transcriber Transcriber, committer sink.Sink,
	logger *logging.Logger, opts Options) *Pipeline {

	if opts.WordWorkers <= 0 {
		opts.WordWorkers = 2
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cache:       cacheStore,
		tracker:     tracker,
		searcher:    searcher,
		scorer:      scorer,
		downloader:  downloader,
		transcriber: transcriber,
		sink:        committer,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		opts:        opts,
		slugLocks:   make(map[string]*sync.Mutex),
	}
}

// Run processes every word not yet recorded as done. Per-clip failures are
// recorded and skipped; only context cancellation aborts the run.
func (p *Pipeline) Run(ctx context.Context, words []vocab.Word) (Summary, error) {
	started := time.Now()
	ctx = services.WithRequestID(ctx, uuid.NewString())

	p.mu.Lock()
	p.summary = Summary{}
	p.mu.Unlock()

	pending := make([]vocab.Word, 0, len(words))
	for _, word := range words {
		if p.tracker.IsDone(state.SetProcessedWords, word.Text) {
			p.logger.Debug("word already processed", logging.String(logging.FieldWord, word.Text))
			continue
		}
		pending = append(pending, word)
	}
	p.logger.Info("run starting",
		logging.Int("words_total", len(words)),
		logging.Int("words_pending", len(pending)),
		logging.Int("workers", p.opts.WordWorkers))

	sem := make(chan struct{}, p.opts.WordWorkers)
	var wg sync.WaitGroup
	for _, word := range pending {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(word vocab.Word) {
			defer wg.Done()
			defer func() { <-sem }()
			p.processWord(ctx, word, words)
		}(word)
	}
	wg.Wait()

	p.mu.Lock()
	summary := p.summary
	p.mu.Unlock()
	summary.Elapsed = time.Since(started)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (p *Pipeline) processWord(ctx context.Context, word vocab.Word, vocabulary []vocab.Word) {
	ctx = services.WithWord(ctx, word.Text)
	logger := logging.WithContext(ctx, p.logger)

	clips, err := p.searchClips(ctx, word)
	if err != nil {
		logger.Error("candidate search failed", logging.Error(err))
		p.recordFailure(word.Text, stageSearch, err)
		return
	}
	logger.Info("candidates found", logging.Int("count", len(clips)))

	for _, clip := range clips {
		if ctx.Err() != nil {
			return
		}
		status, stage, err := p.processClip(ctx, word, clip, vocabulary)
		if err != nil {
			logger.Error("clip failed",
				logging.String(logging.FieldSlug, clip.Slug),
				logging.String(logging.FieldStage, stage),
				logging.Error(err))
			p.recordFailure(clip.Slug, stage, err)
			continue
		}
		logger.Debug("clip finished",
			logging.String(logging.FieldSlug, clip.Slug),
			logging.String("status", string(status)))
	}

	if ctx.Err() != nil {
		return
	}
	if err := p.tracker.MarkDone(state.SetProcessedWords, word.Text); err != nil {
		logger.Error("mark word processed failed", logging.Error(err))
		return
	}
	p.count(func(s *Summary) { s.WordsProcessed++ })
	logger.Info("word processed")
}

type searchIndex struct {
	Slugs []string `json:"slugs"`
}

// searchClips returns the candidate list for word, loading every clip from
// cache when the word was searched before.
func (p *Pipeline) searchClips(ctx context.Context, word vocab.Word) ([]catalog.Clip, error) {
	var index searchIndex
	if p.cache.Get(cache.StageSearch, word.Text, &index) {
		clips := make([]catalog.Clip, 0, len(index.Slugs))
		complete := true
		for _, slug := range index.Slugs {
			var clip catalog.Clip
			if !p.cache.Get(cache.StageClips, cache.Key(word.Text, slug), &clip) {
				complete = false
				break
			}
			clips = append(clips, clip)
		}
		if complete {
			return clips, nil
		}
	}

	clips, err := p.searcher.Search(ctx, word.Text, word.Language)
	if err != nil {
		return nil, err
	}

	index = searchIndex{Slugs: make([]string, 0, len(clips))}
	for _, clip := range clips {
		if err := p.cache.Put(cache.StageClips, cache.Key(word.Text, clip.Slug), clip); err != nil {
			return nil, err
		}
		index.Slugs = append(index.Slugs, clip.Slug)
	}
	if err := p.cache.Put(cache.StageSearch, word.Text, index); err != nil {
		return nil, err
	}
	return clips, nil
}

func (p *Pipeline) processClip(ctx context.Context, word vocab.Word, clip catalog.Clip, vocabulary []vocab.Word) (Status, string, error) {
	ctx = services.WithSlug(ctx, clip.Slug)

	// Searches for different words can surface the same clip. Serialize per
	// slug so only one worker downloads, transcribes, or commits it; the
	// committed check happens under the lock so the loser sees the result.
	unlock := p.lockSlug(clip.Slug)
	defer unlock()

	if p.tracker.IsDone(state.SetCommittedSlugs, clip.Slug) {
		return StatusCommitted, "", nil
	}

	pre, fromCache, err := p.preScore(ctx, word, clip, vocabulary)
	if err != nil {
		return StatusFailed, stagePreScore, err
	}
	if !fromCache {
		p.count(func(s *Summary) { s.ClipsScored++ })
	}
	if !pre.PassedGate {
		p.count(func(s *Summary) { s.ClipsRejected++ })
		return StatusRejected, "", nil
	}

	mediaPath, size, err := p.downloader.Fetch(ctx, clip.Slug, clip.DownloadURL)
	if err != nil {
		return StatusFailed, stageDownload, err
	}
	p.count(func(s *Summary) { s.ClipsDownloaded++ })
	logging.WithContext(ctx, p.logger).Debug("media on disk", logging.Int64("bytes", size))

	transcript, err := p.transcribe(ctx, word, clip.Slug, mediaPath)
	if err != nil {
		return StatusFailed, stageTranscribe, err
	}

	final, err := p.finalScore(ctx, word, clip, transcript, vocabulary)
	if err != nil {
		return StatusFailed, stageFinalScore, err
	}
	if !final.PassedGate {
		p.count(func(s *Summary) { s.ClipsRejected++ })
		return StatusRejected, "", nil
	}

	record := sink.Record{
		Slug:               clip.Slug,
		Title:              clip.Title,
		MovieContext:       clip.MovieContext,
		MediaPath:          mediaPath,
		SubtitleTranscript: clip.SubtitleTranscript,
		AudioTranscript:    transcript,
		Mappings:           final.Mappings,
		SourceID:           p.opts.SourceID,
	}
	result, err := p.sink.Commit(ctx, record)
	if err != nil {
		return StatusFailed, stageCommit, err
	}
	if err := p.tracker.MarkDone(state.SetCommittedSlugs, clip.Slug); err != nil {
		return StatusFailed, stageCommit, err
	}
	p.count(func(s *Summary) { s.ClipsCommitted++ })
	logging.WithContext(ctx, p.logger).Info("clip committed",
		logging.String("location", result.Location),
		logging.Int("mappings", len(record.Mappings)))
	return StatusCommitted, "", nil
}

func (p *Pipeline) preScore(ctx context.Context, word vocab.Word, clip catalog.Clip, vocabulary []vocab.Word) (*scoring.Analysis, bool, error) {
	key := cache.Key(word.Text, clip.Slug)
	var analysis scoring.Analysis
	if p.cache.Get(cache.StageAnalysis, key, &analysis) {
		return &analysis, true, nil
	}

	fresh, err := p.scorer.ScorePre(ctx, clip, vocabulary)
	if err != nil {
		return nil, false, err
	}
	if err := p.cache.Put(cache.StageAnalysis, key, fresh); err != nil {
		return nil, false, err
	}
	return fresh, false, nil
}

func (p *Pipeline) transcribe(ctx context.Context, word vocab.Word, slug, mediaPath string) (*speech.Transcript, error) {
	var transcript speech.Transcript
	if p.cache.Get(cache.StageTranscripts, slug, &transcript) {
		return &transcript, nil
	}

	fresh, err := p.transcriber.Transcribe(ctx, slug, mediaPath, word.Language)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Put(cache.StageTranscripts, slug, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (p *Pipeline) finalScore(ctx context.Context, word vocab.Word, clip catalog.Clip, transcript *speech.Transcript, vocabulary []vocab.Word) (*scoring.Analysis, error) {
	key := cache.Key(word.Text, clip.Slug)
	var analysis scoring.Analysis
	if p.cache.Get(cache.StageFinal, key, &analysis) {
		return &analysis, nil
	}

	fresh, err := p.scorer.ScoreFinal(ctx, clip, transcript, vocabulary)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Put(cache.StageFinal, key, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (p *Pipeline) lockSlug(slug string) func() {
	p.slugMu.Lock()
	lock, ok := p.slugLocks[slug]
	if !ok {
		lock = new(sync.Mutex)
		p.slugLocks[slug] = lock
	}
	p.slugMu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (p *Pipeline) recordFailure(slug, stage string, cause error) {
	p.count(func(s *Summary) { s.Failures++ })
	if errors.Is(cause, context.Canceled) {
		return
	}
	if err := p.tracker.RecordFailure(slug, stage, cause); err != nil {
		p.logger.Error("record failure", logging.Error(fmt.Errorf("recording %s/%s: %w", slug, stage, err)))
	}
}

func (p *Pipeline) count(update func(*Summary)) {
	p.mu.Lock()
	update(&p.summary)
	p.mu.Unlock()
}
