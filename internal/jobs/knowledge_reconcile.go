package jobs

import (
	"context"
	"log"
	"time"

	"frontdesk/internal/services"
)

const reconcileBatchSize = 100

// KnowledgeReconcileJob replays the learn step for resolved help requests
// whose answer never reached the knowledge base
type KnowledgeReconcileJob struct {
	escalations *services.EscalationService
	interval    time.Duration
}

// NewKnowledgeReconcileJob creates a new reconciliation job
func NewKnowledgeReconcileJob(escalations *services.EscalationService, interval time.Duration) *KnowledgeReconcileJob {
	return &KnowledgeReconcileJob{escalations: escalations, interval: interval}
}

// Name implements Job
func (j *KnowledgeReconcileJob) Name() string { return "knowledge_reconcile" }

// Interval implements Job
func (j *KnowledgeReconcileJob) Interval() time.Duration { return j.interval }

// Run repairs up to one batch of unsynced requests
func (j *KnowledgeReconcileJob) Run(ctx context.Context) error {
	repaired, err := j.escalations.ReconcileKnowledge(ctx, reconcileBatchSize)
	if err != nil {
		return err
	}
	if repaired > 0 {
		log.Printf("🔧 [RECONCILE] Synced %d resolved help request(s) into the knowledge base", repaired)
	}
	return nil
}
