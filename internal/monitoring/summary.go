package monitoring

import "time"

// Summary surfaces aggregated worker state for the ops surface.
type Summary struct {
	GeneratedAt   time.Time           `json:"generated_at"`
	Scheduler     SchedulerSummary    `json:"scheduler"`
	Notifications NotificationSummary `json:"notifications"`
	Auctions      AuctionSummary      `json:"auctions"`
	Jobs          []JobSummary        `json:"jobs"`
}

type SchedulerSummary struct {
	Ticks      uint64    `json:"ticks"`
	LastTick   uint64    `json:"last_tick"`
	LastTickAt time.Time `json:"last_tick_at"`
	StoreReady bool      `json:"store_ready"`
}

type NotificationSummary struct {
	Created       uint64 `json:"created"`
	PushDelivered uint64 `json:"push_delivered"`
	PushFailed    uint64 `json:"push_failed"`
	PushPruned    uint64 `json:"push_pruned"`
}

type AuctionSummary struct {
	Winner         uint64 `json:"winner"`
	NoBids         uint64 `json:"no_bids"`
	AlreadyHandled uint64 `json:"already_handled"`
}

type JobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	if module := ensureModule(); module != nil && module.stats != nil {
		return module.stats.summary()
	}
	return Summary{GeneratedAt: time.Now()}
}
