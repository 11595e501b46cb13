package types

import "time"

// ExecutionTokenState is the lifecycle state of an ExecutionToken, per
// spec.md §5's CREATED -> STARTED -> (RETRY)* -> {FINISHED|FAILED}
// state machine. A successful FINISHED token is deleted from the store
// rather than retained, so there is no explicit "removed" state value.
type ExecutionTokenState string

const (
	ExecutionTokenCreated  ExecutionTokenState = "created"
	ExecutionTokenStarted  ExecutionTokenState = "started"
	ExecutionTokenRetry    ExecutionTokenState = "retry"
	ExecutionTokenFinished ExecutionTokenState = "finished"
	ExecutionTokenFailed   ExecutionTokenState = "failed"
)

// ExecutionToken tracks one dispatched Crawl Task from submission
// through terminal state. The Scheduler creates it (state CREATED)
// before dispatch, so a task lost between submission and the
// dispatcher actually starting it is detectable: stuck in CREATED past
// some staleness threshold.
type ExecutionToken struct {
	ID         string              `json:"id"`
	CrawlID    string              `json:"crawl_id"`
	TargetID   string              `json:"target_id"`
	StageName  string              `json:"stage_name"`
	State      ExecutionTokenState `json:"state"`
	Retries    int                 `json:"retries"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// NewExecutionToken creates a token in the CREATED state, as the
// Scheduler does immediately before submitting the corresponding Crawl
// Task to the Dispatcher.
func NewExecutionToken(id, crawlID, targetID, stageName string) *ExecutionToken {
	now := time.Now().UTC()
	return &ExecutionToken{
		ID:        id,
		CrawlID:   crawlID,
		TargetID:  targetID,
		StageName: stageName,
		State:     ExecutionTokenCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start transitions CREATED -> STARTED, called from dispatch Middleware
// before_start.
func (t *ExecutionToken) Start() {
	t.State = ExecutionTokenStarted
	t.UpdatedAt = time.Now().UTC()
}

// Retry transitions {STARTED|RETRY} -> RETRY and bumps the retry count,
// called from dispatch Middleware on_retry.
func (t *ExecutionToken) Retry() {
	t.State = ExecutionTokenRetry
	t.Retries++
	t.UpdatedAt = time.Now().UTC()
}

// Fail transitions to FAILED, a terminal state left in the store for
// inspection, called from dispatch Middleware on_failure once retries
// are exhausted.
func (t *ExecutionToken) Fail() {
	t.State = ExecutionTokenFailed
	t.UpdatedAt = time.Now().UTC()
}

// Finish transitions to FINISHED. Callers delete the token record
// immediately after, per the REMOVED-on-success contract; Finish itself
// only updates in-memory state for callers that want to observe the
// transition before deletion.
func (t *ExecutionToken) Finish() {
	t.State = ExecutionTokenFinished
	t.UpdatedAt = time.Now().UTC()
}
