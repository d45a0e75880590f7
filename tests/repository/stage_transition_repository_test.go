package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedTransitions(t *testing.T, db *gorm.DB, itemID uuid.UUID, changedBy uuid.UUID, stages []domain.PipelineStatus) {
	t.Helper()

	var from *domain.PipelineStatus
	for i, to := range stages {
		transition := &domain.StageTransition{
			ItemType:      domain.TransitionItemLead,
			ItemID:        itemID,
			FromStage:     from,
			ToStage:       to,
			ChangedByID:   changedBy,
			ChangedByName: "Tester",
			ChangedAt:     time.Now().Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(transition).Error)
		stage := to
		from = &stage
	}
}

func TestStageTransitionRepository_GetByItem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewStageTransitionRepository(db)

	company := testutil.CreateTestCompany(t, db, "Acme", nil)
	user := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	lead := testutil.CreateTestLead(t, db, company.ID, "Tracked")

	seedTransitions(t, db, lead.ID, user.ID, []domain.PipelineStatus{
		domain.StageNew, domain.StageContacted, domain.StageQualified,
	})

	history, err := repo.GetByItem(context.Background(), domain.TransitionItemLead, lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// Newest first
	assert.Equal(t, domain.StageQualified, history[0].ToStage)
	assert.Equal(t, domain.StageNew, history[2].ToStage)
	assert.Nil(t, history[2].FromStage)
}

func TestStageTransitionRepository_GetLatestByItem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewStageTransitionRepository(db)

	company := testutil.CreateTestCompany(t, db, "Acme", nil)
	user := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	lead := testutil.CreateTestLead(t, db, company.ID, "Tracked")

	seedTransitions(t, db, lead.ID, user.ID, []domain.PipelineStatus{
		domain.StageNew, domain.StageContacted,
	})

	latest, err := repo.GetLatestByItem(context.Background(), domain.TransitionItemLead, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageContacted, latest.ToStage)
}

func TestStageTransitionRepository_RecordTransition(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewStageTransitionRepository(db)

	company := testutil.CreateTestCompany(t, db, "Acme", nil)
	user := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	lead := testutil.CreateTestLead(t, db, company.ID, "Tracked")

	from := domain.StageNew
	transition, err := repo.RecordTransition(
		context.Background(),
		domain.TransitionItemLead,
		lead.ID,
		&from,
		domain.StageContacted,
		user.ID,
		"Tester",
		"first call made",
	)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, transition.ID)
	assert.False(t, transition.ChangedAt.IsZero())

	var stored domain.StageTransition
	require.NoError(t, db.First(&stored, "item_id = ?", lead.ID).Error)
	assert.Equal(t, "first call made", stored.Note)
	require.NotNil(t, stored.FromStage)
	assert.Equal(t, domain.StageNew, *stored.FromStage)
}

func TestStageTransitionRepository_ItemsDoNotShareHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewStageTransitionRepository(db)

	company := testutil.CreateTestCompany(t, db, "Acme", nil)
	user := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	leadA := testutil.CreateTestLead(t, db, company.ID, "A")
	leadB := testutil.CreateTestLead(t, db, company.ID, "B")

	seedTransitions(t, db, leadA.ID, user.ID, []domain.PipelineStatus{domain.StageNew, domain.StageContacted})
	seedTransitions(t, db, leadB.ID, user.ID, []domain.PipelineStatus{domain.StageNew})

	historyA, err := repo.GetByItem(context.Background(), domain.TransitionItemLead, leadA.ID)
	require.NoError(t, err)
	assert.Len(t, historyA, 2)

	historyB, err := repo.GetByItem(context.Background(), domain.TransitionItemLead, leadB.ID)
	require.NoError(t, err)
	assert.Len(t, historyB, 1)

	// A company with the same UUID namespace must not collide with lead history
	historyCompany, err := repo.GetByItem(context.Background(), domain.TransitionItemCompany, leadA.ID)
	require.NoError(t, err)
	assert.Empty(t, historyCompany)
}

func TestStageTransitionRepository_DeleteByItem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewStageTransitionRepository(db)

	company := testutil.CreateTestCompany(t, db, "Acme", nil)
	user := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	lead := testutil.CreateTestLead(t, db, company.ID, "Doomed")

	seedTransitions(t, db, lead.ID, user.ID, []domain.PipelineStatus{domain.StageNew, domain.StageContacted})

	require.NoError(t, repo.DeleteByItem(context.Background(), domain.TransitionItemLead, lead.ID))

	var count int64
	db.Model(&domain.StageTransition{}).Where("item_id = ?", lead.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}
