package service

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/storage"
)

type archiveStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// ArchivedReport points at one stored consistency report.
type ArchivedReport struct {
	Path      string    `json:"path"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Total     int       `json:"total_findings"`
}

// ArchiveService persists consistency reports on disk and hands out signed
// download tokens so report files never sit behind an unauthenticated path.
type ArchiveService struct {
	store  archiveStore
	signer downloadSigner
	ttl    time.Duration
	logger *zap.Logger
}

// NewArchiveService builds an archive service over local storage.
func NewArchiveService(store *storage.LocalStorage, signer *storage.SignedURLSigner, ttl time.Duration, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{store: store, signer: signer, ttl: ttl, logger: logger}
}

// Archive stores rendered report bytes and returns a signed reference.
func (s *ArchiveService) Archive(report *models.ConsistencyReport, rendered []byte, format string) (*ArchivedReport, error) {
	stamp := report.GeneratedAt.Format("20060102-150405")
	relPath := fmt.Sprintf("consistency/%s.%s", stamp, format)

	saved, err := s.store.Save(relPath, rendered)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive consistency report")
	}

	token, expiresAt, err := s.signer.Generate(stamp, saved)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign archive reference")
	}

	return &ArchivedReport{
		Path:      saved,
		Token:     token,
		ExpiresAt: expiresAt,
		Total:     report.Total,
	}, nil
}

// Open validates a download token and returns the file it references.
func (s *ArchiveService) Open(token string) (io.ReadCloser, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "archived report not found")
	}
	return file, nil
}

// Cleanup removes archives past their retention.
func (s *ArchiveService) Cleanup() {
	deleted, err := s.store.CleanupOlderThan(s.ttl)
	if err != nil {
		s.logger.Warn("archive cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired report archives removed", zap.Int("count", len(deleted)))
	}
}
