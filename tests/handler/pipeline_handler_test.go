package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/events"
	"github.com/lapublica/platform-api/internal/http/handler"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/service"
	"github.com/lapublica/platform-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createPipelineHandler(db *gorm.DB) *handler.PipelineHandler {
	logger := zap.NewNop()
	auditService := service.NewAuditService(repository.NewAuditLogRepository(db), logger)
	pipelineService := service.NewPipelineService(
		repository.NewLeadRepository(db),
		repository.NewCompanyRepository(db),
		repository.NewStageTransitionRepository(db),
		repository.NewNotificationRepository(db),
		auditService,
		events.NewDisabledPublisher(logger),
		service.PermissiveTransitionPolicy,
		logger,
		db,
	)
	return handler.NewPipelineHandler(pipelineService, logger)
}

func pipelineTestRouter(h *handler.PipelineHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/pipeline/{itemType}/{id}/transition", h.Transition)
	r.Get("/pipeline/{itemType}/{id}/history", h.GetHistory)
	r.Get("/pipeline/board", h.GetBoard)
	return r
}

func TestPipelineHandler_Transition(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createPipelineHandler(db)
	r := pipelineTestRouter(h)

	company := testutil.CreateTestCompany(t, db, "Acme", nil)
	owner := testutil.CreateTestUser(t, db, company.ID, domain.RoleCompanyOwner)
	ctx := testutil.UserContextFor(owner)

	t.Run("moves a lead and returns the result", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Fresh lead")

		body, _ := json.Marshal(domain.TransitionRequest{ToStage: string(domain.StageContacted)})
		req := httptest.NewRequest(http.MethodPost, "/pipeline/lead/"+lead.ID.String()+"/transition", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
		assert.True(t, env.Success)

		var result domain.TransitionResult
		require.NoError(t, json.Unmarshal(env.Data, &result))
		require.NotNil(t, result.FromStage)
		assert.Equal(t, domain.StageNew, *result.FromStage)
		assert.Equal(t, domain.StageContacted, result.ToStage)
	})

	t.Run("stale expected stage returns 409", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Contested lead")

		expected := string(domain.StageContacted)
		body, _ := json.Marshal(domain.TransitionRequest{ToStage: string(domain.StageQualified), ExpectedStage: &expected})
		req := httptest.NewRequest(http.MethodPost, "/pipeline/lead/"+lead.ID.String()+"/transition", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, "conflict", env.Error.Code)

		var stored domain.Lead
		require.NoError(t, db.First(&stored, "id = ?", lead.ID).Error)
		assert.Equal(t, domain.StageNew, stored.Status)
	})

	t.Run("unknown stage returns 400", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Odd lead")

		body, _ := json.Marshal(domain.TransitionRequest{ToStage: "teleported"})
		req := httptest.NewRequest(http.MethodPost, "/pipeline/lead/"+lead.ID.String()+"/transition", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing item returns 404", func(t *testing.T) {
		body, _ := json.Marshal(domain.TransitionRequest{ToStage: string(domain.StageContacted)})
		req := httptest.NewRequest(http.MethodPost, "/pipeline/lead/00000000-0000-0000-0000-000000000001/transition", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestPipelineHandler_GetHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createPipelineHandler(db)
	r := pipelineTestRouter(h)

	company := testutil.CreateTestCompany(t, db, "Acme", nil)
	owner := testutil.CreateTestUser(t, db, company.ID, domain.RoleCompanyOwner)
	ctx := testutil.UserContextFor(owner)
	lead := testutil.CreateTestLead(t, db, company.ID, "Tracked lead")

	for _, stage := range []domain.PipelineStatus{domain.StageContacted, domain.StageQualified} {
		body, _ := json.Marshal(domain.TransitionRequest{ToStage: string(stage)})
		req := httptest.NewRequest(http.MethodPost, "/pipeline/lead/"+lead.ID.String()+"/transition", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/pipeline/lead/"+lead.ID.String()+"/history", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))

	var history []domain.StageTransition
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 2)
	assert.Equal(t, domain.StageQualified, history[0].ToStage)
}

func TestPipelineHandler_GetBoard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createPipelineHandler(db)
	r := pipelineTestRouter(h)

	company := testutil.CreateTestCompany(t, db, "Acme", nil)
	owner := testutil.CreateTestUser(t, db, company.ID, domain.RoleCompanyOwner)
	ctx := testutil.UserContextFor(owner)
	testutil.CreateTestLead(t, db, company.ID, "One")
	testutil.CreateTestLead(t, db, company.ID, "Two")

	req := httptest.NewRequest(http.MethodGet, "/pipeline/board", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Success)
}
