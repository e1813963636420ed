package jobs

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"frontdesk/internal/services"
)

// PendingEscalationReportJob counts help requests that have waited on a
// supervisor for longer than maxAge
type PendingEscalationReportJob struct {
	requests *services.HelpRequestService
	metrics  *services.Metrics
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time

	lastCount atomic.Int64
}

// NewPendingEscalationReportJob creates a new stale escalation report job
func NewPendingEscalationReportJob(requests *services.HelpRequestService, metrics *services.Metrics, maxAge, interval time.Duration) *PendingEscalationReportJob {
	return &PendingEscalationReportJob{
		requests: requests,
		metrics:  metrics,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
	}
}

// Name implements Job
func (j *PendingEscalationReportJob) Name() string { return "pending_escalation_report" }

// Interval implements Job
func (j *PendingEscalationReportJob) Interval() time.Duration { return j.interval }

// Run counts stale requests and exports the gauge
func (j *PendingEscalationReportJob) Run(ctx context.Context) error {
	stale, err := j.requests.CountStale(ctx, j.now().Add(-j.maxAge))
	if err != nil {
		return err
	}

	j.lastCount.Store(stale)
	j.metrics.SetStaleEscalations(stale)
	if stale > 0 {
		log.Printf("⏳ [ESCALATION-REPORT] %d help request(s) pending for more than %v", stale, j.maxAge)
	}
	return nil
}

// LastCount returns the count from the most recent run
func (j *PendingEscalationReportJob) LastCount() int64 {
	return j.lastCount.Load()
}
