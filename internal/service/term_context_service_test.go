package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type mockTermResolver struct {
	terms map[string]models.Term
}

func (m *mockTermResolver) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if term, ok := m.terms[id]; ok {
		found := term
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermResolver) FindCurrent(ctx context.Context, orgID string) (*models.Term, error) {
	for _, term := range m.terms {
		if term.OrganizationID == orgID && term.IsCurrent {
			found := term
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockTermCache struct {
	current     map[string]*models.Term
	sets        int
	invalidated []string
}

func (m *mockTermCache) CurrentTerm(ctx context.Context, orgID string) (*models.Term, error) {
	if term, ok := m.current[orgID]; ok {
		return term, nil
	}
	return nil, appErrors.ErrCacheMiss
}

func (m *mockTermCache) SetCurrentTerm(ctx context.Context, orgID string, term *models.Term, ttl time.Duration) error {
	if m.current == nil {
		m.current = make(map[string]*models.Term)
	}
	m.current[orgID] = term
	m.sets++
	return nil
}

func (m *mockTermCache) InvalidateCurrentTerm(ctx context.Context, orgID string) error {
	delete(m.current, orgID)
	m.invalidated = append(m.invalidated, orgID)
	return nil
}

func TestResolveTermCurrent(t *testing.T) {
	terms := &mockTermResolver{terms: map[string]models.Term{
		"term-1": {ID: "term-1", OrganizationID: "org-1", IsCurrent: true},
	}}
	cache := &mockTermCache{}
	svc := NewTermContextService(terms, cache, time.Minute, zap.NewNop())

	term, err := svc.ResolveTerm(context.Background(), "org-1", "")
	require.NoError(t, err)
	assert.Equal(t, "term-1", term.ID)
	assert.Equal(t, 1, cache.sets)
}

func TestResolveTermCacheHitSkipsDatabase(t *testing.T) {
	cache := &mockTermCache{current: map[string]*models.Term{
		"org-1": {ID: "term-cached", OrganizationID: "org-1", IsCurrent: true},
	}}
	svc := NewTermContextService(&mockTermResolver{}, cache, time.Minute, zap.NewNop())

	term, err := svc.ResolveTerm(context.Background(), "org-1", "")
	require.NoError(t, err)
	assert.Equal(t, "term-cached", term.ID)
}

func TestResolveTermNoCurrent(t *testing.T) {
	svc := NewTermContextService(&mockTermResolver{}, &mockTermCache{}, time.Minute, zap.NewNop())

	_, err := svc.ResolveTerm(context.Background(), "org-1", "")
	assert.ErrorIs(t, err, appErrors.ErrNoCurrentTerm)
}

func TestResolveTermExplicitSelector(t *testing.T) {
	terms := &mockTermResolver{terms: map[string]models.Term{
		"term-2": {ID: "term-2", OrganizationID: "org-1"},
	}}
	svc := NewTermContextService(terms, &mockTermCache{}, time.Minute, zap.NewNop())

	term, err := svc.ResolveTerm(context.Background(), "org-1", "term-2")
	require.NoError(t, err)
	assert.Equal(t, "term-2", term.ID)
}

func TestResolveTermForeignSelectorRejected(t *testing.T) {
	terms := &mockTermResolver{terms: map[string]models.Term{
		"term-2": {ID: "term-2", OrganizationID: "org-other"},
	}}
	svc := NewTermContextService(terms, &mockTermCache{}, time.Minute, zap.NewNop())

	_, err := svc.ResolveTerm(context.Background(), "org-1", "term-2")
	assert.ErrorIs(t, err, appErrors.ErrTermOrganizationMismatch)
}

func TestResolveTermUnknownSelectorRejected(t *testing.T) {
	svc := NewTermContextService(&mockTermResolver{}, &mockTermCache{}, time.Minute, zap.NewNop())

	_, err := svc.ResolveTerm(context.Background(), "org-1", "nope")
	assert.ErrorIs(t, err, appErrors.ErrTermOrganizationMismatch)
}

func TestResolveTermWithoutOrganization(t *testing.T) {
	svc := NewTermContextService(&mockTermResolver{}, nil, time.Minute, zap.NewNop())

	_, err := svc.ResolveTerm(context.Background(), "", "")
	assert.ErrorIs(t, err, appErrors.ErrNoOrganizationSelected)
}

func TestObservePromotionRefreshesCache(t *testing.T) {
	cache := &mockTermCache{current: map[string]*models.Term{
		"org-1": {ID: "term-old", OrganizationID: "org-1"},
	}}
	svc := NewTermContextService(&mockTermResolver{}, cache, time.Minute, zap.NewNop())

	promoted := &models.Term{ID: "term-new", OrganizationID: "org-1", IsCurrent: true}
	svc.ObservePromotion(context.Background(), "org-1", promoted)

	assert.Contains(t, cache.invalidated, "org-1")
	require.NotNil(t, cache.current["org-1"])
	assert.Equal(t, "term-new", cache.current["org-1"].ID)
}
