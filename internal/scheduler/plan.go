package scheduler

import "github.com/souqly/marketd/internal/jobs"

// dayTicks is the longest cadence; the tick counter restarts after it.
const dayTicks = 1440

// Entry binds a job to its cadence in ticks.
type Entry struct {
	Job   jobs.Job
	Every uint64
}

// DefaultPlan returns the production jobs in execution order. Settlement runs on every tick.
func DefaultPlan(deps jobs.Deps) []Entry {
	return []Entry{
		{Job: jobs.NewSettlement(deps), Every: 1},
		{Job: jobs.NewMatching(deps), Every: 5},
		{Job: jobs.NewEndingSoon(deps), Every: 15},
		{Job: jobs.NewPriceDrop(deps), Every: 30},
		{Job: jobs.NewExpiry(deps), Every: 60},
		{Job: jobs.NewInterest(deps), Every: 360},
		{Job: jobs.NewRetention(deps), Every: dayTicks},
	}
}
