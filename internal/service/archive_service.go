package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/jobs"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/storage"
)

// ArchiveService renders roster exports in the background and hands out
// signed download links. Files are written to the export store and
// expire together with their link.
type ArchiveService struct {
	exports         *ExportService
	store           *storage.ExportStore
	signer          *storage.DownloadSigner
	queue           *jobs.Queue[exportJob]
	linkTTL         time.Duration
	cleanupInterval time.Duration
	logger          *zap.Logger
}

type exportJob struct {
	grant    AccessGrant
	courseID string
	format   ExportFormat
	filename string
}

// ArchiveTicket is the response to an async export request.
type ArchiveTicket struct {
	JobID       string    `json:"job_id"`
	Filename    string    `json:"filename"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ArchiveConfig sizes the export worker pool and the link lifecycle.
type ArchiveConfig struct {
	Workers         int
	LinkTTL         time.Duration
	CleanupInterval time.Duration
}

// NewArchiveService constructs ArchiveService and its worker queue. Call
// Start before enqueueing and Stop on shutdown.
func NewArchiveService(exports *ExportService, store *storage.ExportStore, signer *storage.DownloadSigner, cfg ArchiveConfig, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 24 * time.Hour
	}
	s := &ArchiveService{
		exports:         exports,
		store:           store,
		signer:          signer,
		linkTTL:         cfg.LinkTTL,
		cleanupInterval: cfg.CleanupInterval,
		logger:          logger,
	}
	s.queue = jobs.NewQueue("roster-export", s.render, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return s
}

// Start launches the export workers and the periodic purge of expired
// files. Both stop when ctx is cancelled or Stop is called.
func (s *ArchiveService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.cleanupInterval > 0 {
		go s.cleanupLoop(s.queue.Context())
	}
}

// Stop drains the export workers.
func (s *ArchiveService) Stop() {
	s.queue.Stop()
}

// Enqueue schedules a roster export and returns the signed download
// ticket. The export renders asynchronously; downloading before the
// worker finishes returns not-found.
func (s *ArchiveService) Enqueue(ctx context.Context, grant AccessGrant, courseID string, format ExportFormat) (*ArchiveTicket, error) {
	if !grant.Allows(courseID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to export this course roster")
	}
	if format != ExportCSV && format != ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown export format")
	}

	jobID := uuid.NewString()
	filename := fmt.Sprintf("%s/roster-%s.%s", courseID, jobID, format)
	token, expiresAt, err := s.signer.Sign(jobID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	err = s.queue.Enqueue(jobs.Job[exportJob]{
		ID:      jobID,
		Payload: exportJob{grant: grant, courseID: courseID, format: format, filename: filename},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	return &ArchiveTicket{
		JobID:       jobID,
		Filename:    filename,
		DownloadURL: fmt.Sprintf("/exports/download?token=%s", token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Download validates a signed token and returns the stored payload with
// its content type.
func (s *ArchiveService) Download(token string) ([]byte, string, error) {
	_, filename, _, err := s.signer.Verify(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download link")
	}
	file, err := s.store.Open(filename)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export not ready or expired")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export")
	}
	return data, contentTypeFor(filename), nil
}

func (s *ArchiveService) render(ctx context.Context, job jobs.Job[exportJob]) error {
	data, _, err := s.exports.Roster(ctx, job.Payload.grant, job.Payload.courseID, job.Payload.format)
	if err != nil {
		return fmt.Errorf("render export %s: %w", job.ID, err)
	}
	if err := s.store.Save(job.Payload.filename, data); err != nil {
		return fmt.Errorf("store export %s: %w", job.ID, err)
	}
	s.logger.Info("roster export ready",
		zap.String("job_id", job.ID),
		zap.String("course_id", job.Payload.courseID),
		zap.String("format", string(job.Payload.format)))
	return nil
}

func (s *ArchiveService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

// cleanupExpired purges files whose download links have lapsed. Anything
// older than the link TTL is unreachable: tokens for it no longer verify.
func (s *ArchiveService) cleanupExpired() {
	deleted, err := s.store.CleanupOlderThan(s.linkTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
}

func contentTypeFor(filename string) string {
	if strings.HasSuffix(filename, ".pdf") {
		return "application/pdf"
	}
	return "text/csv"
}
