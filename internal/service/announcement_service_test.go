package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type mockAnnouncementRepo struct {
	announcements map[string]models.Announcement
	lastFilter    models.AnnouncementFilter
}

func (m *mockAnnouncementRepo) List(ctx context.Context, orgID string, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	m.lastFilter = filter
	out := make([]models.Announcement, 0, len(m.announcements))
	for _, a := range m.announcements {
		if a.OrganizationID == orgID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (m *mockAnnouncementRepo) FindByID(ctx context.Context, orgID, id string) (*models.Announcement, error) {
	if a, ok := m.announcements[id]; ok && a.OrganizationID == orgID {
		found := a
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	if m.announcements == nil {
		m.announcements = make(map[string]models.Announcement)
	}
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	m.announcements[announcement.ID] = *announcement
	return nil
}

func (m *mockAnnouncementRepo) Delete(ctx context.Context, orgID, id string) error {
	delete(m.announcements, id)
	return nil
}

func TestAnnouncementServiceCreatePublished(t *testing.T) {
	repo := &mockAnnouncementRepo{}
	svc := NewAnnouncementService(repo, &stubAccess{}, validator.New(), zap.NewNop())

	announcement, err := svc.Create(context.Background(), requestContext(models.RoleAdmin), CreateAnnouncementRequest{
		Title:      "Exam schedule",
		Body:       "Final exams start next week.",
		PublishNow: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "org-1", announcement.OrganizationID)
	assert.Equal(t, "user-1", announcement.AuthorUserID)
	assert.Nil(t, announcement.TermID)
	require.NotNil(t, announcement.PublishedAt)
}

func TestAnnouncementServiceCreateTermScoped(t *testing.T) {
	repo := &mockAnnouncementRepo{}
	svc := NewAnnouncementService(repo, &stubAccess{}, validator.New(), zap.NewNop())

	announcement, err := svc.Create(context.Background(), requestContext(models.RoleAdmin), CreateAnnouncementRequest{
		Title:      "Report cards",
		Body:       "Report cards are available.",
		TermScoped: true,
	})
	require.NoError(t, err)
	require.NotNil(t, announcement.TermID)
	assert.Equal(t, "term-1", *announcement.TermID)
}

func TestAnnouncementServiceCreateTermScopedWithoutTerm(t *testing.T) {
	svc := NewAnnouncementService(&mockAnnouncementRepo{}, &stubAccess{}, validator.New(), zap.NewNop())

	rc := requestContext(models.RoleAdmin)
	rc.TermID = ""
	_, err := svc.Create(context.Background(), rc, CreateAnnouncementRequest{
		Title:      "Orientation",
		Body:       "Welcome.",
		TermScoped: true,
	})
	assert.ErrorIs(t, err, appErrors.ErrNoCurrentTerm)
}

func TestAnnouncementServiceListNarrowsToPublished(t *testing.T) {
	repo := &mockAnnouncementRepo{}
	svc := NewAnnouncementService(repo, &stubAccess{}, validator.New(), zap.NewNop())

	_, _, err := svc.List(context.Background(), requestContext(models.RoleStudent), models.AnnouncementFilter{})
	require.NoError(t, err)
	assert.True(t, repo.lastFilter.PublishedOnly)

	_, _, err = svc.List(context.Background(), requestContext(models.RoleAdmin), models.AnnouncementFilter{})
	require.NoError(t, err)
	assert.False(t, repo.lastFilter.PublishedOnly)
}

func TestAnnouncementServiceGetForeignHidden(t *testing.T) {
	repo := &mockAnnouncementRepo{announcements: map[string]models.Announcement{
		"ann-x": {ID: "ann-x", OrganizationID: "org-2", Title: "Foreign"},
	}}
	svc := NewAnnouncementService(repo, &stubAccess{}, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), requestContext(models.RoleAdmin), "ann-x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
