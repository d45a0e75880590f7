package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/http/handler"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/service"
	"github.com/lapublica/platform-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createCompanyHandler(db *gorm.DB) *handler.CompanyHandler {
	logger := zap.NewNop()
	limitService := limitServiceFor(db)
	auditService := service.NewAuditService(repository.NewAuditLogRepository(db), logger)
	companyService := service.NewCompanyService(
		repository.NewCompanyRepository(db),
		repository.NewPlanRepository(db),
		limitService,
		auditService,
		logger,
	)
	return handler.NewCompanyHandler(companyService, limitService, logger)
}

func companyTestRouter(h *handler.CompanyHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/companies", h.Create)
	r.Get("/companies/{id}", h.GetByID)
	r.Put("/companies/{id}/plan", h.AssignPlan)
	r.Get("/companies/{id}/limits", h.GetLimits)
	r.Get("/companies/{id}/limits/{kind}", h.CheckLimit)
	r.Get("/plans", h.ListPlans)
	return r
}

func TestCompanyHandler_Limits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createCompanyHandler(db)
	r := companyTestRouter(h)
	ctx := testutil.AdminContext()

	plan := testutil.CreateTestPlan(t, db, "basic", 2, 5, 1, 1<<30)
	company := testutil.CreateTestCompany(t, db, "Limited AS", &plan.ID)
	testutil.CreateTestOffer(t, db, company.ID, domain.OfferStatusActive, 100, nil)

	t.Run("returns the status of every limit kind", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/companies/"+company.ID.String()+"/limits", nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))

		var statuses []domain.LimitStatus
		require.NoError(t, json.Unmarshal(env.Data, &statuses))
		require.Len(t, statuses, 4)

		byKind := make(map[domain.LimitKind]domain.LimitStatus, len(statuses))
		for _, s := range statuses {
			byKind[s.Kind] = s
		}
		offers := byKind[domain.LimitActiveOffers]
		assert.Equal(t, int64(1), offers.Current)
		assert.Equal(t, int64(2), offers.Limit)
		assert.True(t, offers.Allowed)
	})

	t.Run("single kind check honours the extra parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/companies/"+company.ID.String()+"/limits/active_offers?extra=2", nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))

		var status domain.LimitStatus
		require.NoError(t, json.Unmarshal(env.Data, &status))
		assert.False(t, status.Allowed)
	})

	t.Run("unknown kind returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/companies/"+company.ID.String()+"/limits/api_calls", nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCompanyHandler_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createCompanyHandler(db)
	r := companyTestRouter(h)
	ctx := testutil.AdminContext()

	t.Run("creates a company", func(t *testing.T) {
		body, _ := json.Marshal(handler.CreateCompanyRequest{Name: "Nordlys AS"})
		req := httptest.NewRequest(http.MethodPost, "/companies", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
		var created domain.Company
		require.NoError(t, json.Unmarshal(env.Data, &created))
		assert.Equal(t, "Nordlys AS", created.Name)
		assert.Equal(t, domain.StageNew, created.PipelineStatus)
	})

	t.Run("rejects a missing name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/companies", bytes.NewReader([]byte(`{}`))).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCompanyHandler_AssignPlan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createCompanyHandler(db)
	r := companyTestRouter(h)
	ctx := testutil.AdminContext()

	plan := testutil.CreateTestPlan(t, db, "pro", 50, 20, 5, 10<<30)
	company := testutil.CreateTestCompany(t, db, "Upgrader AS", nil)

	body, _ := json.Marshal(handler.AssignPlanRequest{PlanID: plan.ID})
	req := httptest.NewRequest(http.MethodPut, "/companies/"+company.ID.String()+"/plan", bytes.NewReader(body)).WithContext(ctx)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var stored domain.Company
	require.NoError(t, db.First(&stored, "id = ?", company.ID).Error)
	require.NotNil(t, stored.PlanID)
	assert.Equal(t, plan.ID, *stored.PlanID)
}
