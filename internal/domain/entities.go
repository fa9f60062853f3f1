// Package domain holds the entities, status enums, sentinel errors and ports
// shared by every pipeline stage. Adapters depend on this package, never the
// other way around.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrLeaseHeld       = errors.New("lease held")
	ErrAccountBanned   = errors.New("account banned")
	ErrChannelPrivate  = errors.New("channel private")
	ErrUsernameInvalid = errors.New("username invalid")
	ErrAuthKeyInvalid  = errors.New("auth key invalid")
	ErrModelNotLoaded  = errors.New("model not loaded")
	ErrInternal        = errors.New("internal error")
)

// FloodWaitError is the platform's backoff directive: do not call again for
// Seconds. The governor turns it into a schedule; the worker turns an
// over-ceiling wait into a channel-level skip.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string { return "flood wait" }

// AsFloodWait unwraps err into a FloodWaitError if possible.
func AsFloodWait(err error) (*FloodWaitError, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw, true
	}
	return nil, false
}

// AccountHealth enumerates account health states.
type AccountHealth string

const (
	AccountHealthy  AccountHealth = "healthy"
	AccountDegraded AccountHealth = "degraded"
	AccountBanned   AccountHealth = "banned"
)

// Account is one authenticated platform identity with its own rate budget.
// Invariants: healthy -> degraded after 3 consecutive errors; degraded ->
// healthy on success; banned is terminal and implies IsActive=false.
type Account struct {
	ID                int
	APIID             int
	APIHash           string
	IsActive          bool
	IsBanned          bool
	Health            AccountHealth
	ConsecutiveErrors int
	LastUsedAt        time.Time
	LastJoinAt        time.Time
	JoinDay           string // YYYY-MM-DD in the configured timezone
	DailyJoins        int
}

// ChannelStatus enumerates channel lifecycle states.
type ChannelStatus string

const (
	ChannelActive      ChannelStatus = "active"
	ChannelProbation   ChannelStatus = "probation"
	ChannelDeactivated ChannelStatus = "deactivated"
)

// Channel is a public group the pipeline harvests. LastSeenID never
// decreases; a deactivated channel is skipped by the batcher.
type Channel struct {
	Handle            string // unique, stored lower-case
	Title             string
	Category          string
	IsMember          bool
	AccountID         int // owning account, 0 until first join
	LastSeenID        int64
	LastScrapedAt     time.Time
	MessagesScraped   int64
	JobMessagesFound  int64
	QualityJobsFound  int64
	HealthScore       float64 // [0,100]
	Status            ChannelStatus
	DeactivatedReason string
	// LowHealthWindows counts consecutive scoring windows below the probation
	// threshold; reaching the demotion limit deactivates the channel.
	LowHealthWindows int
}

// ScrapeDelta carries the additive counter updates for one successful
// per-channel scrape.
type ScrapeDelta struct {
	MessagesScraped  int64
	JobMessagesFound int64
	QualityJobsFound int64
}

// ProcessingOutcome is the terminal tag a processed raw message carries.
type ProcessingOutcome string

const (
	OutcomeJob       ProcessingOutcome = "job"
	OutcomeDuplicate ProcessingOutcome = "duplicate"
	OutcomeNotAJob   ProcessingOutcome = "not_a_job"
)

// RawMessage is one platform message persisted verbatim. Keyed on
// (PlatformMessageID, ChannelHandle); created by the scraper, flipped to
// processed only inside the persister transaction, never deleted.
type RawMessage struct {
	ID                string
	PlatformMessageID int64
	ChannelHandle     string
	Text              string
	SenderID          int64
	AuthoredAt        time.Time
	FetchedAt         time.Time
	FetchedByAccount  int
	URLs              []string
	Processed         bool
	Outcome           ProcessingOutcome
	JobID             string
}

// GeoScope classifies where a posting hires from.
type GeoScope string

const (
	GeoIndia         GeoScope = "india"
	GeoInternational GeoScope = "international"
	GeoUnspecified   GeoScope = "unspecified"
)

// LocationInfo is the parsed location block of a posting.
type LocationInfo struct {
	Raw          string
	Cities       []string
	IsRemote     bool
	IsHybrid     bool
	IsOnsiteOnly bool
	Scope        GeoScope
}

// ExperienceInfo is the parsed experience requirement.
type ExperienceInfo struct {
	Raw       string
	MinYears  int
	MaxYears  int
	IsFresher bool
}

// ApplyChannel carries every way a candidate can apply.
type ApplyChannel struct {
	URL    string
	Emails []string
	Phones []string
}

// JobCandidate is one extracted sub-posting from one raw message. It is
// ephemeral: the persister turns it into a Job row or drops it.
type JobCandidate struct {
	Title           string
	Company         string
	Location        LocationInfo
	Experience      ExperienceInfo
	SalaryMonthly   int64 // INR, 0 when unknown
	Skills          []string
	Category        string
	Apply           ApplyChannel
	Confidence      float64
	QualityScore    float64
	RelevanceScore  float64
	MeetsRelevance  bool
	ContentHash     string
}

// Company is a canonical employer row, matched case- and
// punctuation-insensitively.
type Company struct {
	ID             string
	Name           string
	NormalizedName string
	IsVerified     bool
	CreatedAt      time.Time
}

// Job is a persisted, deduplicated, scored posting.
type Job struct {
	ID             string
	Title          string
	CompanyID      string
	CompanyName    string
	RawMessageID   string
	ChannelHandle  string
	LocationRaw    string
	Cities         []string
	IsRemote       bool
	IsHybrid       bool
	IsOnsiteOnly   bool
	GeoScope       GeoScope
	ExperienceRaw  string
	MinYears       int
	MaxYears       int
	IsFresher      bool
	SalaryMonthly  int64
	Skills         []string
	Category       string
	ApplyURL       string
	ApplyEmails    []string
	ApplyPhones    []string
	QualityScore   float64
	RelevanceScore float64
	ContentHash    string
	IsActive       bool
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
	CreatedAt      time.Time
}

// ScrapeRunStatus enumerates scrape run terminal states.
type ScrapeRunStatus string

const (
	RunRunning ScrapeRunStatus = "running"
	RunSuccess ScrapeRunStatus = "success"
	RunPartial ScrapeRunStatus = "partial"
	RunFailed  ScrapeRunStatus = "failed"
)

// RunCounters aggregates one batcher invocation.
type RunCounters struct {
	AccountsUsed    int
	GroupsProcessed int
	MessagesFetched int
	JobsExtracted   int
	DuplicatesFound int
	Errors          int
}

// RunError is one bounded, structured error descriptor on a run.
type RunError struct {
	Code    string `json:"code"`
	Channel string `json:"channel,omitempty"`
	Account int    `json:"account,omitempty"`
	Message string `json:"message"`
}

// ScrapeRun is one end-to-end batcher invocation.
type ScrapeRun struct {
	ID         string
	Status     ScrapeRunStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Counters   RunCounters
	Errors     []RunError
}

// Preferences is the admin-configured filter set driving relevance scoring.
// The admin API writes it as a JSON payload; validation runs on load.
type Preferences struct {
	AllowedJobTypes  []string  `json:"allowed_job_types" validate:"dive,oneof=full-time part-time internship contract"`
	MinExperience    int       `json:"min_experience" validate:"gte=0,ltefield=MaxExperience"`
	MaxExperience    int       `json:"max_experience" validate:"gte=0"`
	AllowedLocations []string  `json:"allowed_locations"`
	AllowedWorkModes []string  `json:"allowed_work_modes" validate:"dive,oneof=remote hybrid onsite"`
	PrioritySkills   []string  `json:"priority_skills"`
	ExcludedSkills   []string  `json:"excluded_skills"`
	RequiredKeywords []string  `json:"required_keywords"`
	ExcludedKeywords []string  `json:"excluded_keywords"`
	MinConfidence    float64   `json:"min_confidence" validate:"gte=0,lte=1"`
	MinRelevance     float64   `json:"min_relevance" validate:"gte=0,lte=1"`
	UpdatedAt        time.Time `json:"-"`
}

// Context is an alias so ports read cleanly; adapters pass context.Context
// straight through.
type Context = context.Context
