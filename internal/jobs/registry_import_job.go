package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegistryImportJobName is the name of the scheduled lead import job
const RegistryImportJobName = "registry_import"

// DefaultImportTimeout bounds a single import run
const DefaultImportTimeout = 10 * time.Minute

// defaultImportLookback is how far back each scheduled run looks. Wider than
// the daily schedule so a missed run is caught up by the next one; duplicates
// are filtered by org number.
const defaultImportLookback = 48 * time.Hour

// LeadImporter pulls newly registered businesses into a tenant's pipeline.
type LeadImporter interface {
	// ImportFromRegistry imports businesses registered since the given time
	// as leads for the tenant. Returns the number of leads created.
	ImportFromRegistry(ctx context.Context, tenantID uuid.UUID, since time.Time, limit int) (int, error)
}

// RegistryImportJob periodically imports newly registered businesses from
// the external business registry into the configured tenant's pipeline.
type RegistryImportJob struct {
	importer  LeadImporter
	tenantID  uuid.UUID
	batchSize int
	logger    *zap.Logger
	timeout   time.Duration
}

// NewRegistryImportJob creates a new registry import job.
func NewRegistryImportJob(importer LeadImporter, tenantID uuid.UUID, batchSize int, logger *zap.Logger, timeout time.Duration) *RegistryImportJob {
	return &RegistryImportJob{
		importer:  importer,
		tenantID:  tenantID,
		batchSize: batchSize,
		logger:    logger,
		timeout:   timeout,
	}
}

// Run executes one import pass. Called by the scheduler.
func (j *RegistryImportJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	since := start.Add(-defaultImportLookback)

	imported, err := j.importer.ImportFromRegistry(ctx, j.tenantID, since, j.batchSize)
	if err != nil {
		j.logger.Error("scheduled registry import failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("scheduled registry import completed",
		zap.Int("imported", imported),
		zap.String("tenant_id", j.tenantID.String()),
		zap.Duration("duration", time.Since(start)))
}

// RegisterRegistryImportJob registers the import job with the scheduler.
// tenantID is the tenant whose pipeline receives the imported leads.
func RegisterRegistryImportJob(scheduler *Scheduler, importer LeadImporter, tenantID uuid.UUID, batchSize int, logger *zap.Logger, cronExpr string) error {
	job := NewRegistryImportJob(importer, tenantID, batchSize, logger, DefaultImportTimeout)
	return scheduler.AddJob(RegistryImportJobName, cronExpr, job.Run)
}
