package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	ticks      atomic.Uint64
	lastTick   atomic.Uint64
	lastTickAt atomic.Int64 // unix nano
	storeReady atomic.Bool

	notifications atomic.Uint64
	pushDelivered atomic.Uint64
	pushFailed    atomic.Uint64
	pushGone      atomic.Uint64

	auctionsWinner  atomic.Uint64
	auctionsNoBids  atomic.Uint64
	auctionsSkipped atomic.Uint64

	jobs sync.Map // string -> *jobStats
}

func newStatStore() *statStore {
	return &statStore{}
}

func (s *statStore) cloneJobs() []JobSummary {
	summaries := []JobSummary{}
	s.jobs.Range(func(key, value any) bool {
		summaries = append(summaries, value.(*jobStats).snapshot(key.(string)))
		return true
	})
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Job < summaries[j].Job })
	return summaries
}

func (s *statStore) summary() Summary {
	var lastTickAt time.Time
	if nanos := s.lastTickAt.Load(); nanos > 0 {
		lastTickAt = time.Unix(0, nanos)
	}

	return Summary{
		GeneratedAt: time.Now(),
		Scheduler: SchedulerSummary{
			Ticks:      s.ticks.Load(),
			LastTick:   s.lastTick.Load(),
			LastTickAt: lastTickAt,
			StoreReady: s.storeReady.Load(),
		},
		Notifications: NotificationSummary{
			Created:       s.notifications.Load(),
			PushDelivered: s.pushDelivered.Load(),
			PushFailed:    s.pushFailed.Load(),
			PushPruned:    s.pushGone.Load(),
		},
		Auctions: AuctionSummary{
			Winner:         s.auctionsWinner.Load(),
			NoBids:         s.auctionsNoBids.Load(),
			AlreadyHandled: s.auctionsSkipped.Load(),
		},
		Jobs: s.cloneJobs(),
	}
}

func (s *statStore) recordTick(tick uint64) {
	s.ticks.Add(1)
	s.lastTick.Store(tick)
	s.lastTickAt.Store(time.Now().UnixNano())
}

func (s *statStore) recordPush(result string) {
	switch result {
	case "delivered":
		s.pushDelivered.Add(1)
	case "gone":
		s.pushGone.Add(1)
	default:
		s.pushFailed.Add(1)
	}
}

func (s *statStore) recordAuction(outcome string) {
	switch outcome {
	case "winner":
		s.auctionsWinner.Add(1)
	case "no_bids":
		s.auctionsNoBids.Add(1)
	default:
		s.auctionsSkipped.Add(1)
	}
}

func (s *statStore) jobEntry(job string) *jobStats {
	if value, ok := s.jobs.Load(job); ok {
		return value.(*jobStats)
	}
	actual, _ := s.jobs.LoadOrStore(job, &jobStats{})
	return actual.(*jobStats)
}

type jobStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	consecutiveFailures  atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
	consecutiveSuccesses atomic.Uint64
}

func (j *jobStats) snapshot(job string) JobSummary {
	status, _ := j.lastStatus.Load().(string)
	errMsg, _ := j.lastError.Load().(string)

	summary := JobSummary{
		Job:                 job,
		LastStatus:          status,
		LastDuration:        time.Duration(j.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: j.consecutiveFailures.Load(),
		ConsecutiveSuccess:  j.consecutiveSuccesses.Load(),
		TotalRuns:           j.totalRuns.Load(),
	}
	if nanos := j.lastRun.Load(); nanos > 0 {
		summary.LastRunAt = time.Unix(0, nanos)
	}
	if nanos := j.lastSuccessfulRun.Load(); nanos > 0 {
		summary.LastSuccessAt = time.Unix(0, nanos)
	}
	return summary
}

func (j *jobStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	j.lastStatus.Store(result)
	j.lastError.Store(message)
	j.lastRun.Store(now.UnixNano())
	j.lastDuration.Store(int64(duration))
	j.totalRuns.Add(1)

	switch result {
	case "success":
		j.consecutiveFailures.Store(0)
		j.consecutiveSuccesses.Add(1)
		j.lastSuccessfulRun.Store(now.UnixNano())
	case "partial":
		// Some rows failed but the job itself ran; the next tick retries them.
		j.consecutiveFailures.Store(0)
		j.consecutiveSuccesses.Store(0)
	default:
		j.consecutiveFailures.Add(1)
		j.consecutiveSuccesses.Store(0)
	}
}
