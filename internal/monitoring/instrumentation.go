package monitoring

import (
	"strconv"
	"strings"
	"time"
)

// RecordTick counts a scheduler tick.
func RecordTick(tick uint64) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.schedulerTicks.Inc()
	module.stats.recordTick(tick)
}

// RecordStoreReady reports the outcome of the latest store connectivity check.
func RecordStoreReady(ready bool) {
	module := ensureModule()
	if module == nil {
		return
	}
	value := 0.0
	if ready {
		value = 1
	}
	module.metrics.schedulerReady.Set(value)
	module.stats.storeReady.Store(ready)
}

// RecordJobRun records the completion of a scheduled job.
func RecordJobRun(job, result, message string, affected int64, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)
	module.metrics.jobRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.jobDuration.WithLabelValues(jobID), duration)
	if affected > 0 {
		module.metrics.jobAffected.WithLabelValues(jobID).Add(float64(affected))
	}
	if result == "success" {
		module.metrics.jobLastSuccess.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	module.stats.jobEntry(jobID).record(result, strings.TrimSpace(message), duration)
}

// RecordNotification counts a persisted in-app notification.
func RecordNotification(notificationType string) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(notificationType)
	module.metrics.notifications.WithLabelValues(label).Inc()
	module.stats.notifications.Add(1)
}

// RecordPushDelivery counts a push attempt outcome (delivered, failed, gone).
func RecordPushDelivery(result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(result)
	module.metrics.pushDeliveries.WithLabelValues(label).Inc()
	module.stats.recordPush(label)
}

// RecordAuctionFinalized counts a settlement outcome.
func RecordAuctionFinalized(outcome string) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(outcome)
	module.metrics.auctionsFinalized.WithLabelValues(label).Inc()
	module.stats.recordAuction(label)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	value = strings.ReplaceAll(value, " ", "_")
	if value == "" {
		return "unknown"
	}
	return value
}

// RecordOpsRequest observes an ops HTTP request.
func RecordOpsRequest(method, route string, status int, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	observeDuration(module.metrics.opsRequests.WithLabelValues(method, route, strconv.Itoa(status)), duration)
}
