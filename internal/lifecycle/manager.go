// Package lifecycle drives a date partition from raw tweets to a trained
// topic model. Each invocation re-derives the partition's state from the
// document flags and the stored artifacts, so a failed run is recovered by
// running it again.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/dictionary"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/lda"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/phrases"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/report"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/tracing"
)

const (
	kindBootstrap = "bootstrap"
	kindUpdate    = "update"
)

// DocumentStore is the tweet and document storage the manager works on.
type DocumentStore interface {
	Stats(ctx context.Context, date string) (corpus.Stats, error)
	FetchPendingRaw(ctx context.Context, date string) ([]corpus.RawTweet, error)
	InsertNormalizedBatch(ctx context.Context, docs []corpus.Document) (inserted, skipped int, err error)
	FetchAllTokens(ctx context.Context, date string, requireBigram bool) ([][]string, error)
	FetchAllDocuments(ctx context.Context, date string) ([]corpus.Document, error)
	FetchBatch(ctx context.Context, date string, limit int, onlyNotInModel bool) ([]corpus.Document, error)
	FoldBigrams(ctx context.Context, docs []corpus.Document) (int, error)
	ResetBigrams(ctx context.Context, date string) (int, error)
	MarkInModel(ctx context.Context, ids []int64) error
}

// Publisher announces persisted models.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Options are the corpus thresholds and batch sizing of a run.
type Options struct {
	BigramMinCount  int
	BigramThreshold float64
	DictNoBelow     int
	DictNoAbove     float64
	DictKeepN       int
	BatchSize       int
	// MaxBatchesPerRun bounds the update batches of one Train call; zero
	// keeps updating until no document is pending.
	MaxBatchesPerRun int
	PublishTimeout   time.Duration
}

func OptionsFromConfig(cfg config.PipelineConfig) Options {
	return Options{
		BigramMinCount:   cfg.BigramMinCount,
		BigramThreshold:  cfg.BigramThreshold,
		DictNoBelow:      cfg.DictNoBelow,
		DictNoAbove:      cfg.DictNoAbove,
		DictKeepN:        cfg.DictKeepN,
		BatchSize:        cfg.BatchSize,
		MaxBatchesPerRun: cfg.MaxBatchesPerRun,
		PublishTimeout:   10 * time.Second,
	}
}

// Deps are the collaborators of a Manager. Reports defaults to Artifacts;
// Publisher and Metrics are optional.
type Deps struct {
	Documents DocumentStore
	Artifacts artifact.Store
	Reports   artifact.Store
	Engine    lda.Engine
	Publisher Publisher
	Metrics   *metrics.Metrics
}

// ModelEvent is published after every persisted training step.
type ModelEvent struct {
	Date           string    `json:"date"`
	Kind           string    `json:"kind"`
	RunID          string    `json:"run_id,omitempty"`
	Documents      int       `json:"documents"`
	TotalDocuments int       `json:"total_documents"`
	Topics         int       `json:"topics"`
	ModelKey       string    `json:"model_key"`
	ReportKey      string    `json:"report_key"`
	At             time.Time `json:"at"`
}

// PrepareResult summarises the corpus preparation of a date.
type PrepareResult struct {
	Date                string `json:"date"`
	Normalized          int    `json:"normalized"`
	Duplicates          int    `json:"duplicates"`
	BigramComputed      bool   `json:"bigram_computed"`
	Phrases             int    `json:"phrases"`
	Folded              int    `json:"folded"`
	DictionaryGenerated bool   `json:"dictionary_generated"`
	DictionarySize      int    `json:"dictionary_size"`
}

// TrainResult summarises a training run. Complete is set when no pending
// document was left to train on.
type TrainResult struct {
	Date      string        `json:"date"`
	Prepare   PrepareResult `json:"prepare"`
	Mode      string        `json:"mode,omitempty"`
	Batches   int           `json:"batches"`
	Documents int           `json:"documents"`
	Complete  bool          `json:"complete"`
	State     State         `json:"state"`
}

// Manager owns the lifecycle of every date partition.
type Manager struct {
	docs         DocumentStore
	artifacts    artifact.Store
	reports      artifact.Store
	bigrams      *phrases.Cache
	dictionaries *dictionary.Cache
	engine       lda.Engine
	publisher    Publisher
	metrics      *metrics.Metrics
	opts         Options
	logger       *slog.Logger
}

func New(deps Deps, opts Options) *Manager {
	reports := deps.Reports
	if reports == nil {
		reports = deps.Artifacts
	}
	return &Manager{
		docs:         deps.Documents,
		artifacts:    deps.Artifacts,
		reports:      reports,
		bigrams:      phrases.NewCache(deps.Artifacts, deps.Documents, opts.BigramMinCount, opts.BigramThreshold),
		dictionaries: dictionary.NewCache(deps.Artifacts, deps.Documents, opts.DictNoBelow, opts.DictNoAbove, opts.DictKeepN),
		engine:       deps.Engine,
		publisher:    deps.Publisher,
		metrics:      deps.Metrics,
		opts:         opts,
		logger:       slog.Default().With("component", "lifecycle"),
	}
}

type prepared struct {
	result PrepareResult
	bigram *phrases.Model
	dict   *dictionary.Dictionary
}

// Prepare normalizes pending tweets, makes sure the bigram model exists,
// folds phrases into documents that lack them and makes sure the dictionary
// exists.
func (m *Manager) Prepare(ctx context.Context, date string) (PrepareResult, error) {
	if _, err := m.Inspect(ctx, date); err != nil {
		return PrepareResult{Date: date}, err
	}
	p, err := m.prepare(ctx, date)
	if err != nil {
		return p.result, err
	}
	m.observe(ctx, date)
	return p.result, nil
}

func (m *Manager) prepare(ctx context.Context, date string) (prepared, error) {
	p := prepared{result: PrepareResult{Date: date}}
	log := m.log(ctx).With("date", date)

	err := m.step(ctx, "normalize", func(ctx context.Context) error {
		var err error
		p.result.Normalized, p.result.Duplicates, err = m.normalize(ctx, date)
		return err
	})
	if err != nil {
		return p, fmt.Errorf("normalizing %s: %w", date, err)
	}

	err = m.step(ctx, "bigram", func(ctx context.Context) error {
		model, computed, err := m.bigrams.Ensure(ctx, date)
		if err != nil {
			return err
		}
		p.bigram = model
		p.result.BigramComputed = computed
		p.result.Phrases = model.Len()
		m.countCache("bigram", computed)
		return nil
	})
	if err != nil {
		return p, fmt.Errorf("preparing bigram model for %s: %w", date, err)
	}

	err = m.step(ctx, "fold", func(ctx context.Context) error {
		var err error
		p.result.Folded, err = m.fold(ctx, date, p.bigram)
		return err
	})
	if err != nil {
		return p, fmt.Errorf("folding bigrams for %s: %w", date, err)
	}

	err = m.step(ctx, "dictionary", func(ctx context.Context) error {
		d, generated, err := m.dictionaries.Ensure(ctx, date, p.bigram)
		if err != nil {
			return err
		}
		p.dict = d
		p.result.DictionaryGenerated = generated
		p.result.DictionarySize = d.Len()
		m.countCache("dictionary", generated)
		if m.metrics != nil {
			m.metrics.DictionarySize.WithLabelValues(date).Set(float64(d.Len()))
		}
		return nil
	})
	if err != nil {
		return p, fmt.Errorf("preparing dictionary for %s: %w", date, err)
	}

	log.Info("corpus prepared",
		"normalized", p.result.Normalized,
		"duplicates", p.result.Duplicates,
		"phrases", p.result.Phrases,
		"folded", p.result.Folded,
		"terms", p.result.DictionarySize,
	)
	return p, nil
}

// normalize tokenizes every raw tweet of date that has no document yet.
// Documents another run stored first are skipped.
func (m *Manager) normalize(ctx context.Context, date string) (inserted, skipped int, err error) {
	raws, err := m.docs.FetchPendingRaw(ctx, date)
	if err != nil {
		return 0, 0, err
	}
	size := m.opts.BatchSize
	if size <= 0 {
		size = len(raws)
	}
	for start := 0; start < len(raws); start += size {
		end := min(start+size, len(raws))
		docs := make([]corpus.Document, 0, end-start)
		for _, t := range raws[start:end] {
			docs = append(docs, corpus.Document{ID: t.ID, Date: date, Tokens: normalize.Tokenize(t.Text)})
		}
		n, dup, err := m.docs.InsertNormalizedBatch(ctx, docs)
		if err != nil {
			return inserted, skipped, err
		}
		inserted += n
		skipped += dup
	}
	if m.metrics != nil {
		m.metrics.DocsNormalizedTotal.WithLabelValues(date).Add(float64(inserted))
		m.metrics.DuplicatesSkipped.WithLabelValues("tokens").Add(float64(skipped))
	}
	return inserted, skipped, nil
}

// fold appends phrases to the stored tokens of every document that has not
// received them yet.
func (m *Manager) fold(ctx context.Context, date string, bigram *phrases.Model) (int, error) {
	stats, err := m.docs.Stats(ctx, date)
	if err != nil {
		return 0, err
	}
	if stats.WithBigram == stats.Normalized {
		return 0, nil
	}
	docs, err := m.docs.FetchAllDocuments(ctx, date)
	if err != nil {
		return 0, err
	}
	var changed []corpus.Document
	for _, d := range docs {
		if folded, ok := bigram.ApplyOnce(d); ok {
			changed = append(changed, folded)
		}
	}
	n, err := m.docs.FoldBigrams(ctx, changed)
	if err != nil {
		return 0, err
	}
	if m.metrics != nil {
		m.metrics.DocsFoldedTotal.WithLabelValues(date).Add(float64(n))
	}
	return n, nil
}

// Train prepares the corpus of date and then bootstraps a model from every
// document or, when a model exists, updates it with pending batches.
func (m *Manager) Train(ctx context.Context, date string) (TrainResult, error) {
	res := TrainResult{Date: date}
	status, err := m.Inspect(ctx, date)
	if err != nil {
		return res, err
	}
	log := m.log(ctx).With("date", date)
	if status.State == StateModelComplete {
		log.Info("model is complete, nothing to train", "state", status.State)
		res.Complete = true
		res.State = status.State
		m.observe(ctx, date)
		return res, nil
	}

	p, err := m.prepare(ctx, date)
	res.Prepare = p.result
	if err != nil {
		return res, err
	}

	if status.Model {
		res.Mode = kindUpdate
		err = m.update(ctx, date, p, &res)
	} else {
		res.Mode = kindBootstrap
		err = m.bootstrap(ctx, date, p, &res)
	}
	if err != nil {
		m.countRun(res.Mode, "failed")
		res.State = m.observe(context.WithoutCancel(ctx), date)
		return res, err
	}

	final := m.observe(ctx, date)
	res.State = final
	if res.Complete {
		log.Info("no pending documents, model is complete", "state", final)
	}
	return res, nil
}

func (m *Manager) bootstrap(ctx context.Context, date string, p prepared, res *TrainResult) error {
	docs, err := m.docs.FetchAllDocuments(ctx, date)
	if err != nil {
		return fmt.Errorf("reading corpus for %s: %w", date, err)
	}
	bows := encode(docs, p.bigram, p.dict)

	var st *lda.State
	err = m.step(ctx, "train", func(ctx context.Context) error {
		var err error
		st, err = m.engine.Train(ctx, bows, p.dict.Len())
		return err
	})
	if errors.Is(err, apperrors.ErrEmptyBatch) {
		res.Complete = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("training model for %s: %w", date, err)
	}
	if err := m.persist(ctx, date, kindBootstrap, st, bows, p.dict, corpus.IDs(docs)); err != nil {
		return err
	}
	res.Batches = 1
	res.Documents = len(docs)
	return nil
}

func (m *Manager) update(ctx context.Context, date string, p prepared, res *TrainResult) error {
	st, err := m.loadModel(ctx, date)
	if err != nil {
		return err
	}
	if st.NumTerms != p.dict.Len() {
		return apperrors.Newf(apperrors.ErrInternal, apperrors.ExitInternal,
			"model for %s has %d terms but its dictionary has %d", date, st.NumTerms, p.dict.Len())
	}
	m.setState(date, StateModelUpdating)

	for m.opts.MaxBatchesPerRun <= 0 || res.Batches < m.opts.MaxBatchesPerRun {
		batch, err := m.nextBatch(ctx, date)
		if errors.Is(err, apperrors.ErrExhaustedCorpus) {
			res.Complete = true
			return nil
		}
		if err != nil {
			return err
		}
		bows := encode(batch, p.bigram, p.dict)

		var next *lda.State
		err = m.step(ctx, "update", func(ctx context.Context) error {
			var err error
			next, err = m.engine.Update(ctx, st, bows)
			return err
		})
		if errors.Is(err, apperrors.ErrEmptyBatch) {
			res.Complete = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("updating model for %s: %w", date, err)
		}
		if err := m.persist(ctx, date, kindUpdate, next, bows, p.dict, corpus.IDs(batch)); err != nil {
			return err
		}
		st = next
		res.Batches++
		res.Documents += len(batch)
	}
	return nil
}

// nextBatch selects the next documents not yet in the model. An empty
// selection is ErrExhaustedCorpus.
func (m *Manager) nextBatch(ctx context.Context, date string) ([]corpus.Document, error) {
	batch, err := m.docs.FetchBatch(ctx, date, m.opts.BatchSize, true)
	if err != nil {
		return nil, fmt.Errorf("selecting batch for %s: %w", date, err)
	}
	if len(batch) == 0 {
		return nil, apperrors.ErrExhaustedCorpus
	}
	return batch, nil
}

// persist writes the topic report, then the model, and only then marks ids
// as part of the model. Nothing is written when ranking the topics fails.
func (m *Manager) persist(ctx context.Context, date, kind string, st *lda.State, bows []corpus.BoW, dict *dictionary.Dictionary, ids []int64) error {
	return m.step(ctx, "persist", func(ctx context.Context) error {
		topics, err := m.engine.TopTopics(st, bows, dict.Tokens())
		if err != nil {
			return fmt.Errorf("ranking topics for %s: %w", date, err)
		}
		rep, err := report.Encode(date, topics)
		if err != nil {
			return err
		}
		model, err := st.MarshalBinary()
		if err != nil {
			return fmt.Errorf("encoding model for %s: %w", date, err)
		}

		// The model is written last among the artifacts: until it is saved
		// the stored model still matches the in_model flags.
		modelKey, reportKey := artifact.ModelKey(date), artifact.ReportKey(date)
		if err := m.reports.Save(ctx, reportKey, rep); err != nil {
			return fmt.Errorf("saving topic report for %s: %w", date, err)
		}
		if err := artifact.SaveEncoded(ctx, m.artifacts, modelKey, artifact.KindModel, model); err != nil {
			return fmt.Errorf("saving model for %s: %w", date, err)
		}
		if err := m.docs.MarkInModel(ctx, ids); err != nil {
			return fmt.Errorf("marking documents of %s: %w", date, err)
		}

		m.log(ctx).Info("model persisted",
			"date", date,
			"kind", kind,
			"documents", len(ids),
			"total_documents", st.NumDocs,
			"topics", len(topics),
		)
		if m.metrics != nil {
			m.metrics.DocsTrainedTotal.WithLabelValues(date).Add(float64(len(ids)))
		}
		m.countRun(kind, "ok")
		m.publish(ctx, ModelEvent{
			Date:           date,
			Kind:           kind,
			RunID:          logger.RunID(ctx),
			Documents:      len(ids),
			TotalDocuments: st.NumDocs,
			Topics:         len(topics),
			ModelKey:       modelKey,
			ReportKey:      reportKey,
			At:             time.Now().UTC(),
		})
		return nil
	})
}

// Rebuild discards the bigram model and dictionary of date so the next run
// regenerates them from the current corpus. It is refused once a model
// exists because the model's term ids belong to the stored dictionary.
func (m *Manager) Rebuild(ctx context.Context, date string) error {
	status, err := m.Inspect(ctx, date)
	if err != nil {
		return err
	}
	if status.Model {
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage,
			"a model exists for %s; its dictionary cannot be rebuilt", date)
	}
	reset, err := m.docs.ResetBigrams(ctx, date)
	if err != nil {
		return err
	}
	for _, key := range []string{m.dictionaries.Key(date), m.bigrams.Key(date)} {
		if err := m.artifacts.Delete(ctx, key); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}
	m.log(ctx).Info("corpus artifacts discarded", "date", date, "documents_reset", reset)
	m.observe(ctx, date)
	return nil
}

// Report returns the stored topic report of date.
func (m *Manager) Report(ctx context.Context, date string) ([]report.Entry, error) {
	data, err := m.reports.Load(ctx, artifact.ReportKey(date))
	if err != nil {
		return nil, err
	}
	return report.Decode(data)
}

func (m *Manager) loadModel(ctx context.Context, date string) (*lda.State, error) {
	payload, err := artifact.LoadDecoded(ctx, m.artifacts, artifact.ModelKey(date), artifact.KindModel)
	if err != nil {
		return nil, fmt.Errorf("loading model for %s: %w", date, err)
	}
	st := &lda.State{}
	if err := st.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("loading model for %s: %w", date, err)
	}
	return st, nil
}

func encode(docs []corpus.Document, bigram *phrases.Model, dict *dictionary.Dictionary) []corpus.BoW {
	bows := make([]corpus.BoW, len(docs))
	for i, d := range docs {
		d, _ = bigram.ApplyOnce(d)
		bows[i] = dict.Doc2Bow(d.Tokens)
	}
	return bows
}

func (m *Manager) publish(ctx context.Context, ev ModelEvent) {
	if m.publisher == nil {
		return
	}
	err := resilience.WithTimeout(ctx, m.opts.PublishTimeout, "publish model event", func(ctx context.Context) error {
		return m.publisher.Publish(ctx, kafka.Event{Key: ev.Date, Value: ev})
	})
	if err != nil {
		m.log(ctx).Error("model event not published", "date", ev.Date, "kind", ev.Kind, "error", err)
	}
}

func (m *Manager) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartStep(ctx, name)
	err := fn(ctx)
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	span.End()
	if m.metrics != nil {
		m.metrics.StepDuration.WithLabelValues(name).Observe(span.Duration.Seconds())
	}
	return err
}

// observe records the state of date in the gauges and returns it.
func (m *Manager) observe(ctx context.Context, date string) State {
	status, err := m.Inspect(ctx, date)
	if err != nil {
		m.log(ctx).Warn("state query failed", "date", date, "error", err)
		return status.State
	}
	m.setState(date, status.State)
	if m.metrics != nil {
		m.metrics.PendingDocs.WithLabelValues(date).Set(float64(status.Stats.Pending()))
	}
	return status.State
}

func (m *Manager) setState(date string, s State) {
	if m.metrics != nil {
		m.metrics.LifecycleState.WithLabelValues(date).Set(float64(s))
	}
}

func (m *Manager) countCache(kind string, computed bool) {
	if m.metrics == nil {
		return
	}
	result := "hit"
	if computed {
		result = "computed"
	}
	m.metrics.ArtifactCacheTotal.WithLabelValues(kind, result).Inc()
}

func (m *Manager) countRun(kind, status string) {
	if m.metrics != nil {
		m.metrics.ModelRunsTotal.WithLabelValues(kind, status).Inc()
	}
}

func (m *Manager) log(ctx context.Context) *slog.Logger {
	if id := logger.RunID(ctx); id != "" {
		return m.logger.With("run_id", id)
	}
	return m.logger
}
