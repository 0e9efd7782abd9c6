package service

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/storage"
)

func newArchiveService(t *testing.T) *ArchiveService {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewArchiveService(store, signer, time.Hour, zap.NewNop())
}

func TestArchiveServiceRoundTrip(t *testing.T) {
	svc := newArchiveService(t)
	report := &models.ConsistencyReport{GeneratedAt: time.Now().UTC(), Total: 2}

	archived, err := svc.Archive(report, []byte("relationship,record_id\n"), "csv")
	require.NoError(t, err)
	assert.NotEmpty(t, archived.Token)
	assert.Equal(t, 2, archived.Total)
	assert.True(t, archived.ExpiresAt.After(time.Now()))

	file, err := svc.Open(archived.Token)
	require.NoError(t, err)
	defer file.Close()

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "relationship,record_id\n", string(content))
}

func TestArchiveServiceOpenInvalidToken(t *testing.T) {
	svc := newArchiveService(t)

	_, err := svc.Open("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestArchiveServiceOpenMissingFile(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewArchiveService(store, signer, time.Hour, zap.NewNop())

	token, _, err := signer.Generate("job-1", "consistency/gone.csv")
	require.NoError(t, err)

	_, err = svc.Open(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
