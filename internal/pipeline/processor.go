package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/jobscout/internal/classify"
	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/extract"
	"github.com/fairyhunter13/jobscout/internal/observability"
)

// Options tunes the processor.
type Options struct {
	// DedupWindow bounds how far back the content-hash lookup reaches.
	DedupWindow time.Duration
	// MinQuality gates the is_active flag together with relevance.
	MinQuality float64
	// StorageRetries caps retries around each storage call.
	StorageRetries int
	// RetryInitial seeds the exponential backoff.
	RetryInitial time.Duration
}

// Processor runs one raw message through classify, extract, dedupe, score
// and persist. Process is idempotent: an already-processed message is a
// no-op, which makes queue redelivery safe.
type Processor struct {
	store      domain.RawMessageStore
	jobs       domain.JobRepository
	classifier *classify.Classifier
	extractor  *extract.Extractor
	prefs      *PrefsCache
	opts       Options
	now        func() time.Time
}

func NewProcessor(
	store domain.RawMessageStore,
	jobs domain.JobRepository,
	classifier *classify.Classifier,
	extractor *extract.Extractor,
	prefs *PrefsCache,
	opts Options,
) *Processor {
	if opts.StorageRetries <= 0 {
		opts.StorageRetries = 3
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 200 * time.Millisecond
	}
	return &Processor{
		store:      store,
		jobs:       jobs,
		classifier: classifier,
		extractor:  extractor,
		prefs:      prefs,
		opts:       opts,
		now:        time.Now,
	}
}

// Process handles one queue task. A returned error means nothing durable
// happened and the task can be redelivered; once any commit lands the
// message is flipped processed and the remainder is logged, not retried.
func (p *Processor) Process(ctx domain.Context, task domain.ProcessTask) error {
	raw, err := p.store.Get(ctx, task.RawMessageID)
	if err != nil {
		return fmt.Errorf("op=pipeline.load_message: %w", err)
	}
	if raw.Processed {
		return nil
	}

	res := p.classifier.Classify(raw.Text)
	if !res.IsJob {
		return p.markOutcome(ctx, raw.ID, domain.OutcomeNotAJob)
	}

	cands := p.extractor.Extract(raw.Text, raw.URLs)
	if len(cands) == 0 {
		return p.markOutcome(ctx, raw.ID, domain.OutcomeNotAJob)
	}

	now := p.now()
	since := now.Add(-p.opts.DedupWindow)

	// Resolve duplicates up front so every commit carries the message's
	// final outcome. A hash repeated within this message counts as fresh
	// once; the repeats resolve against the first commit below.
	originals := make([]string, len(cands))
	seen := map[string]bool{}
	fresh := 0
	for i, c := range cands {
		var dupes []domain.Job
		err := p.retry(ctx, "dedup_lookup", func() error {
			var e error
			dupes, e = p.jobs.FindActiveByHashSince(ctx, c.ContentHash, since)
			return e
		})
		if err != nil {
			return err
		}
		switch {
		case len(dupes) > 0:
			originals[i] = dupes[0].ID
		case seen[c.ContentHash]:
			// intra-message repeat
		default:
			seen[c.ContentHash] = true
			fresh++
		}
	}

	outcome := domain.OutcomeDuplicate
	if fresh > 0 {
		outcome = domain.OutcomeJob
	}

	prefs := p.prefs.Get(ctx)
	committed := 0
	committedByHash := map[string]string{}
	for i, c := range cands {
		if originals[i] == "" {
			// A repeat of a hash already committed for this message dedupes
			// against that commit, keeping at most one active row per hash.
			if prior, ok := committedByHash[c.ContentHash]; ok {
				originals[i] = prior
			}
		}
		dup := originals[i] != ""
		active := false
		if dup {
			if err := p.retry(ctx, "touch_duplicate", func() error {
				return p.jobs.TouchDuplicate(ctx, originals[i], now)
			}); err != nil {
				if committed > 0 {
					slog.Error("duplicate touch failed after partial commit",
						slog.String("raw_message_id", raw.ID), slog.Any("error", err))
					continue
				}
				return err
			}
		} else {
			c.QualityScore = QualityScore(c)
			c.RelevanceScore, c.MeetsRelevance = Relevance(c, prefs, res.Confidence)
			active = c.MeetsRelevance && c.QualityScore >= p.opts.MinQuality
		}

		commit := domain.JobCommit{
			Candidate:     c,
			RawMessageID:  raw.ID,
			ChannelHandle: raw.ChannelHandle,
			Outcome:       outcome,
			IsActive:      active,
			SeenAt:        now,
		}
		var jobID string
		err := p.retry(ctx, "commit_candidate", func() error {
			id, e := p.jobs.CommitCandidate(ctx, commit)
			if e == nil {
				jobID = id
			}
			return e
		})
		if err != nil {
			if committed > 0 {
				// The message is already flipped processed; redelivery would
				// skip it, so surface the loss instead of failing the task.
				slog.Error("candidate commit failed after partial commit",
					slog.String("raw_message_id", raw.ID),
					slog.String("channel", raw.ChannelHandle),
					slog.Any("error", err))
				continue
			}
			return err
		}
		if !dup {
			committedByHash[c.ContentHash] = jobID
		}
		committed++
		observability.JobsPersistedTotal.WithLabelValues(fmt.Sprintf("%t", active)).Inc()
	}

	observability.MessagesProcessedTotal.WithLabelValues(string(outcome)).Inc()
	slog.Info("message processed",
		slog.String("raw_message_id", raw.ID),
		slog.String("channel", raw.ChannelHandle),
		slog.String("outcome", string(outcome)),
		slog.Int("candidates", len(cands)),
		slog.Int("committed", committed))
	return nil
}

// markOutcome tags a message that produced no job rows.
func (p *Processor) markOutcome(ctx domain.Context, rawMessageID string, outcome domain.ProcessingOutcome) error {
	err := p.retry(ctx, "mark_outcome", func() error {
		return p.jobs.MarkMessageOutcome(ctx, rawMessageID, outcome)
	})
	if err != nil {
		return err
	}
	observability.MessagesProcessedTotal.WithLabelValues(string(outcome)).Inc()
	return nil
}

func (p *Processor) retry(ctx domain.Context, op string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.RetryInitial
	err := backoff.Retry(fn, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(p.opts.StorageRetries)), ctx))
	if err != nil {
		return fmt.Errorf("op=pipeline.%s: %w", op, err)
	}
	return nil
}
