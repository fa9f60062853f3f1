package domain

import "time"

// AccountRepository persists the account fleet. Error-counter and join-quota
// updates are single atomic statements so concurrent workers cannot lose
// increments.
type AccountRepository interface {
	List(ctx Context, onlyActive bool) ([]Account, error)
	Get(ctx Context, id int) (Account, error)
	// ReportSuccess resets consecutive_errors, restores degraded->healthy and
	// stamps last_used.
	ReportSuccess(ctx Context, id int) error
	// ReportError atomically increments consecutive_errors and returns the
	// account's resulting health.
	ReportError(ctx Context, id int, kind string) (AccountHealth, error)
	// MarkBanned sets banned+inactive; terminal until manual reset.
	MarkBanned(ctx Context, id int) error
	// RecordJoin bumps the daily join counter for day (resetting it when the
	// day changed) and returns the new count.
	RecordJoin(ctx Context, id int, day string) (int, error)
}

// ChannelRepository owns channel rows.
type ChannelRepository interface {
	// Active returns joined, active channels ordered by
	// (health_score desc, last_scraped_at asc).
	Active(ctx Context) ([]Channel, error)
	Get(ctx Context, handle string) (Channel, error)
	Upsert(ctx Context, c Channel) error
	// AssignAccount sets the owning account at first join.
	AssignAccount(ctx Context, handle string, accountID int) error
	// MarkScraped advances the cursor monotonically (GREATEST) and applies the
	// additive counter delta.
	MarkScraped(ctx Context, handle string, accountID int, newLastSeen int64, d ScrapeDelta) error
	SetStatus(ctx Context, handle string, st ChannelStatus, reason string) error
	// MoveToProbationByAccount parks every channel owned by a banned account
	// until reassignment.
	MoveToProbationByAccount(ctx Context, accountID int) (int, error)
	// JoinCandidates lists not-yet-joined, non-deactivated channels.
	JoinCandidates(ctx Context, limit int) ([]Channel, error)
	// ListScorable returns active and probation channels for the scorer sweep.
	ListScorable(ctx Context) ([]Channel, error)
	// UpdateHealth writes the recomputed score, status, reason and the
	// consecutive low-health window streak.
	UpdateHealth(ctx Context, handle string, score float64, st ChannelStatus, reason string, lowWindows int) error
}

// RawMessageStore is the document-store port for raw messages. Rows are
// append-only for the pipeline; only the persister flips Processed.
type RawMessageStore interface {
	// Upsert inserts the message or absorbs the duplicate key; reports whether
	// a new row was created.
	Upsert(ctx Context, m RawMessage) (bool, error)
	Get(ctx Context, id string) (RawMessage, error)
	GetByKey(ctx Context, platformMessageID int64, channelHandle string) (RawMessage, error)
	// ListPending returns unprocessed messages oldest-first.
	ListPending(ctx Context, limit int) ([]RawMessage, error)
	CountPending(ctx Context) (int64, error)
}

// YieldStats aggregates a channel's persisted jobs inside a scoring window.
type YieldStats struct {
	TotalJobs    int64
	RelevantJobs int64
	AvgQuality   float64
}

// JobCommit is the transactional unit the persister applies: resolve the
// company, insert the job row, tag the raw message, bump channel counters.
type JobCommit struct {
	Candidate     JobCandidate
	RawMessageID  string
	ChannelHandle string
	Outcome       ProcessingOutcome
	IsActive      bool
	SeenAt        time.Time
}

// JobRepository persists canonical jobs. CommitCandidate is atomic; a failure
// leaves the raw message reprocessable.
type JobRepository interface {
	CommitCandidate(ctx Context, c JobCommit) (string, error)
	// MarkMessageOutcome is the no-candidate path (not_a_job with no rows to
	// insert).
	MarkMessageOutcome(ctx Context, rawMessageID string, outcome ProcessingOutcome) error
	// FindActiveByHashSince returns active jobs with the hash first seen at or
	// after since, oldest first.
	FindActiveByHashSince(ctx Context, hash string, since time.Time) ([]Job, error)
	// TouchDuplicate bumps last_seen_at on the surviving row of a dedup
	// collapse.
	TouchDuplicate(ctx Context, jobID string, seenAt time.Time) error
	ChannelYield(ctx Context, handle string, since time.Time) (YieldStats, error)
}

// CompanyRepository resolves canonical employers; creation happens inside the
// persister transaction, this port serves reads.
type CompanyRepository interface {
	GetByNormalizedName(ctx Context, normalized string) (Company, error)
}

// ScrapeRunRepository records batcher invocations.
type ScrapeRunRepository interface {
	Create(ctx Context, run ScrapeRun) (string, error)
	Finish(ctx Context, id string, status ScrapeRunStatus, c RunCounters, errs []RunError) error
	Get(ctx Context, id string) (ScrapeRun, error)
	ListRecent(ctx Context, limit int) ([]ScrapeRun, error)
	// SweepStale moves runs stuck in running since before cutoff to partial.
	SweepStale(ctx Context, cutoff time.Time) (int, error)
}

// PreferencesRepository serves the single active preferences row.
type PreferencesRepository interface {
	GetActive(ctx Context) (Preferences, error)
}

// ProcessTask is the queue hand-off from scraper to processor.
type ProcessTask struct {
	RawMessageID      string `json:"raw_message_id"`
	ChannelHandle     string `json:"channel_handle"`
	PlatformMessageID int64  `json:"platform_message_id"`
	CorrelationID     string `json:"correlation_id"`
}

// ProcessQueue is the stage hand-off port.
type ProcessQueue interface {
	EnqueueProcess(ctx Context, task ProcessTask) error
}

// PlatformMessage is one message returned by the platform client.
type PlatformMessage struct {
	ID         int64
	Text       string
	SenderID   int64
	AuthoredAt time.Time
	URLs       []string
}

// ChannelInfo describes a channel as the platform sees it.
type ChannelInfo struct {
	Handle       string
	Title        string
	MemberCount  int
	IsBroadcast  bool
}

// PlatformSession is an authenticated connection acting as one account.
// Implementations surface FloodWaitError and the channel/auth sentinels.
type PlatformSession interface {
	// FetchHistory returns up to limit messages with id > minID, newest first.
	FetchHistory(ctx Context, channelHandle string, minID int64, limit int) ([]PlatformMessage, error)
	JoinChannel(ctx Context, handle string) (ChannelInfo, error)
	// Export serializes the session for persistence.
	Export() []byte
	Close() error
}

// PlatformClient opens sessions from opaque session blobs.
type PlatformClient interface {
	Connect(ctx Context, accountID int, session []byte) (PlatformSession, error)
}

// SessionStore persists opaque session blobs, one per account.
type SessionStore interface {
	Load(ctx Context, accountID int) ([]byte, error)
	Save(ctx Context, accountID int, blob []byte) error
}
