package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bookwarden/bookwarden/internal/apperrors"
	"github.com/bookwarden/bookwarden/internal/models"
)

// MockLoanService is a mock implementation of LoanServiceInterface.
type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) Checkout(ctx context.Context, actor models.Actor, bookID int32, dueAt time.Time) (*models.LoanResponse, error) {
	args := m.Called(ctx, actor, bookID, dueAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoanResponse), args.Error(1)
}

func (m *MockLoanService) Return(ctx context.Context, actor models.Actor, loanID int32) (*models.LoanResponse, error) {
	args := m.Called(ctx, actor, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoanResponse), args.Error(1)
}

func (m *MockLoanService) Renew(ctx context.Context, actor models.Actor, loanID int32, newDueAt time.Time) (*models.LoanResponse, error) {
	args := m.Called(ctx, actor, loanID, newDueAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoanResponse), args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, actor models.Actor, loanID int32) (*models.LoanResponse, error) {
	args := m.Called(ctx, actor, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoanResponse), args.Error(1)
}

func (m *MockLoanService) ListAccountLoans(ctx context.Context, actor models.Actor, accountID, limit, offset int32) ([]models.LoanResponse, error) {
	args := m.Called(ctx, actor, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LoanResponse), args.Error(1)
}

func (m *MockLoanService) ListActiveLoans(ctx context.Context, actor models.Actor) ([]models.LoanResponse, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LoanResponse), args.Error(1)
}

func (m *MockLoanService) ListOverdueLoans(ctx context.Context, actor models.Actor) ([]models.LoanResponse, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LoanResponse), args.Error(1)
}

var testActor = models.Actor{ID: 7, Role: models.RolePatron, IsActive: true}

func setupLoanTestRouter(mockService *MockLoanService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("actor", testActor)
		c.Next()
	})

	handler := NewLoanHandler(mockService)
	r.POST("/loans", handler.Checkout)
	r.POST("/loans/:id/return", handler.Return)
	r.POST("/loans/:id/renew", handler.Renew)
	r.GET("/loans/active", handler.ListActiveLoans)
	r.GET("/loans/:id", handler.GetLoan)
	return r
}

func TestLoanHandler_Checkout(t *testing.T) {
	dueAt := time.Now().UTC().Add(14 * 24 * time.Hour).Truncate(time.Second)

	t.Run("successful checkout", func(t *testing.T) {
		mockService := new(MockLoanService)
		router := setupLoanTestRouter(mockService)

		mockService.On("Checkout", mock.Anything, testActor, int32(1), mock.MatchedBy(func(at time.Time) bool {
			return at.Equal(dueAt)
		})).Return(&models.LoanResponse{ID: 10, BookID: 1, Status: models.LoanStatusActive}, nil)

		body, _ := json.Marshal(models.CheckoutRequest{BookID: 1, DueAt: dueAt})
		req := httptest.NewRequest(http.MethodPost, "/loans", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp SuccessResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
	})

	t.Run("no copies maps to 422", func(t *testing.T) {
		mockService := new(MockLoanService)
		router := setupLoanTestRouter(mockService)

		mockService.On("Checkout", mock.Anything, testActor, int32(1), mock.Anything).
			Return(nil, apperrors.PreconditionFailed("book 1 has no available copies"))

		body, _ := json.Marshal(models.CheckoutRequest{BookID: 1, DueAt: dueAt})
		req := httptest.NewRequest(http.MethodPost, "/loans", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "PRECONDITION_FAILED", resp.Error.Code)
	})

	t.Run("missing body maps to 400", func(t *testing.T) {
		mockService := new(MockLoanService)
		router := setupLoanTestRouter(mockService)

		req := httptest.NewRequest(http.MethodPost, "/loans", bytes.NewReader([]byte("{}")))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Checkout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLoanHandler_Return(t *testing.T) {
	t.Run("double return maps to 409", func(t *testing.T) {
		mockService := new(MockLoanService)
		router := setupLoanTestRouter(mockService)

		mockService.On("Return", mock.Anything, testActor, int32(10)).
			Return(nil, apperrors.AlreadyCompleted("loan 10 is already returned"))

		req := httptest.NewRequest(http.MethodPost, "/loans/10/return", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing loan maps to 404", func(t *testing.T) {
		mockService := new(MockLoanService)
		router := setupLoanTestRouter(mockService)

		mockService.On("Return", mock.Anything, testActor, int32(42)).
			Return(nil, apperrors.NotFound("loan 42 not found"))

		req := httptest.NewRequest(http.MethodPost, "/loans/42/return", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-numeric id maps to 400", func(t *testing.T) {
		mockService := new(MockLoanService)
		router := setupLoanTestRouter(mockService)

		req := httptest.NewRequest(http.MethodPost, "/loans/abc/return", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Return", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLoanHandler_Renew(t *testing.T) {
	t.Run("renewal cap maps to 409", func(t *testing.T) {
		mockService := new(MockLoanService)
		router := setupLoanTestRouter(mockService)

		mockService.On("Renew", mock.Anything, testActor, int32(10), mock.Anything).
			Return(nil, apperrors.LimitExceeded("loan 10 has reached the maximum of 2 renewals"))

		body, _ := json.Marshal(models.RenewRequest{DueAt: time.Now().Add(14 * 24 * time.Hour)})
		req := httptest.NewRequest(http.MethodPost, "/loans/10/renew", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "LIMIT_EXCEEDED", resp.Error.Code)
	})
}

func TestLoanHandler_GetLoan(t *testing.T) {
	t.Run("forbidden maps to 403", func(t *testing.T) {
		mockService := new(MockLoanService)
		router := setupLoanTestRouter(mockService)

		mockService.On("GetLoan", mock.Anything, testActor, int32(10)).
			Return(nil, apperrors.Forbidden("account 7 may not act on records owned by account 99"))

		req := httptest.NewRequest(http.MethodGet, "/loans/10", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestLoanHandler_ListActiveLoans(t *testing.T) {
	t.Run("returns the active loans", func(t *testing.T) {
		mockService := new(MockLoanService)
		router := setupLoanTestRouter(mockService)

		mockService.On("ListActiveLoans", mock.Anything, testActor).
			Return([]models.LoanResponse{{ID: 10, BookID: 1, Status: models.LoanStatusActive}}, nil)

		req := httptest.NewRequest(http.MethodGet, "/loans/active", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp SuccessResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
	})

	t.Run("patron is refused", func(t *testing.T) {
		mockService := new(MockLoanService)
		router := setupLoanTestRouter(mockService)

		mockService.On("ListActiveLoans", mock.Anything, testActor).
			Return(nil, apperrors.Forbidden("requires one of roles [staff administrator]"))

		req := httptest.NewRequest(http.MethodGet, "/loans/active", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
