package services

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bookwarden/bookwarden/internal/apperrors"
	"github.com/bookwarden/bookwarden/internal/database/queries"
	"github.com/bookwarden/bookwarden/internal/models"
)

// MockReservationQuerier is a mock implementation of ReservationStore. It
// records which lock and write calls arrive inside ExecReservationTx so
// tests can check that queue rewrites never escape the transaction.
type MockReservationQuerier struct {
	mock.Mock
	inTx       bool
	txOps      []string
	bareWrites []string
}

func (m *MockReservationQuerier) ExecReservationTx(ctx context.Context, fn func(ReservationQuerier) error) error {
	m.inTx = true
	defer func() { m.inTx = false }()
	return fn(m)
}

func (m *MockReservationQuerier) track(op string) {
	if m.inTx {
		m.txOps = append(m.txOps, op)
	} else {
		m.bareWrites = append(m.bareWrites, op)
	}
}

func (m *MockReservationQuerier) CreateReservation(ctx context.Context, arg queries.CreateReservationParams) (queries.Reservation, error) {
	m.track("CreateReservation")
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Reservation), args.Error(1)
}

func (m *MockReservationQuerier) GetReservationByID(ctx context.Context, id int32) (queries.Reservation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Reservation), args.Error(1)
}

func (m *MockReservationQuerier) CountActiveReservationsByBook(ctx context.Context, bookID int32) (int64, error) {
	args := m.Called(ctx, bookID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReservationQuerier) GetActiveReservationForAccount(ctx context.Context, arg queries.GetActiveReservationForAccountParams) (queries.Reservation, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Reservation), args.Error(1)
}

func (m *MockReservationQuerier) SetReservationStatus(ctx context.Context, arg queries.SetReservationStatusParams) (queries.Reservation, error) {
	m.track("SetReservationStatus")
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Reservation), args.Error(1)
}

func (m *MockReservationQuerier) MarkReservationNotified(ctx context.Context, arg queries.MarkReservationNotifiedParams) (queries.Reservation, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Reservation), args.Error(1)
}

func (m *MockReservationQuerier) GetNextPendingReservation(ctx context.Context, bookID int32) (queries.Reservation, error) {
	args := m.Called(ctx, bookID)
	return args.Get(0).(queries.Reservation), args.Error(1)
}

func (m *MockReservationQuerier) ReorderBookReservations(ctx context.Context, bookID int32) error {
	m.track("ReorderBookReservations")
	args := m.Called(ctx, bookID)
	return args.Error(0)
}

func (m *MockReservationQuerier) ListReservationsByBook(ctx context.Context, bookID int32) ([]queries.Reservation, error) {
	args := m.Called(ctx, bookID)
	return args.Get(0).([]queries.Reservation), args.Error(1)
}

func (m *MockReservationQuerier) ListReservationsByAccount(ctx context.Context, arg queries.ListReservationsByAccountParams) ([]queries.Reservation, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]queries.Reservation), args.Error(1)
}

func (m *MockReservationQuerier) ExpireNotifiedReservations(ctx context.Context, now pgtype.Timestamptz) ([]queries.Reservation, error) {
	m.track("ExpireNotifiedReservations")
	args := m.Called(ctx, now)
	return args.Get(0).([]queries.Reservation), args.Error(1)
}

func (m *MockReservationQuerier) GetBookByID(ctx context.Context, id int32) (queries.Book, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Book), args.Error(1)
}

func (m *MockReservationQuerier) GetBookForUpdate(ctx context.Context, id int32) (queries.Book, error) {
	m.track("GetBookForUpdate")
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Book), args.Error(1)
}

func newReservationService(querier ReservationStore) *ReservationService {
	return NewReservationService(querier).WithNow(func() time.Time { return testNow })
}

func pendingReservation(id, accountID, bookID, priority int32) queries.Reservation {
	return queries.Reservation{
		ID:        id,
		AccountID: accountID,
		BookID:    bookID,
		Status:    string(models.ReservationStatusPending),
		Priority:  priority,
	}
}

func TestReservationService_Reserve(t *testing.T) {
	t.Run("joins the tail of the waitlist", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		mockQuerier.On("GetBookForUpdate", mock.Anything, int32(1)).
			Return(testBook(1, 3, 0, models.BookStatusExhausted), nil)
		mockQuerier.On("GetActiveReservationForAccount", mock.Anything, queries.GetActiveReservationForAccountParams{
			AccountID: patronActor.ID, BookID: 1,
		}).Return(queries.Reservation{}, pgx.ErrNoRows)
		mockQuerier.On("CountActiveReservationsByBook", mock.Anything, int32(1)).Return(int64(3), nil)
		mockQuerier.On("CreateReservation", mock.Anything, queries.CreateReservationParams{
			AccountID: patronActor.ID, BookID: 1, Priority: 4,
		}).Return(pendingReservation(40, patronActor.ID, 1, 4), nil)

		reservation, err := service.Reserve(context.Background(), patronActor, 1)

		assert.NoError(t, err)
		assert.Equal(t, int32(4), reservation.Priority)
		assert.Equal(t, models.ReservationStatusPending, reservation.Status)
		mockQuerier.AssertExpectations(t)
	})

	t.Run("lock, count and insert run inside one transaction", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		mockQuerier.On("GetBookForUpdate", mock.Anything, int32(1)).
			Return(testBook(1, 3, 0, models.BookStatusExhausted), nil)
		mockQuerier.On("GetActiveReservationForAccount", mock.Anything, mock.Anything).
			Return(queries.Reservation{}, pgx.ErrNoRows)
		mockQuerier.On("CountActiveReservationsByBook", mock.Anything, int32(1)).Return(int64(0), nil)
		mockQuerier.On("CreateReservation", mock.Anything, mock.Anything).
			Return(pendingReservation(40, patronActor.ID, 1, 1), nil)

		_, err := service.Reserve(context.Background(), patronActor, 1)

		assert.NoError(t, err)
		assert.Empty(t, mockQuerier.bareWrites)
		assert.Equal(t, []string{"GetBookForUpdate", "CreateReservation"}, mockQuerier.txOps)
	})

	t.Run("book with available copies cannot be reserved", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		mockQuerier.On("GetBookForUpdate", mock.Anything, int32(1)).
			Return(testBook(1, 3, 2, models.BookStatusAvailable), nil)

		_, err := service.Reserve(context.Background(), patronActor, 1)

		assert.True(t, apperrors.Is(err, apperrors.KindPreconditionFailed))
		mockQuerier.AssertNotCalled(t, "CreateReservation", mock.Anything, mock.Anything)
	})

	t.Run("book in maintenance cannot be reserved", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		mockQuerier.On("GetBookForUpdate", mock.Anything, int32(1)).
			Return(testBook(1, 3, 0, models.BookStatusMaintenance), nil)

		_, err := service.Reserve(context.Background(), patronActor, 1)

		assert.True(t, apperrors.Is(err, apperrors.KindPreconditionFailed))
	})

	t.Run("duplicate active reservation is a conflict", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		mockQuerier.On("GetBookForUpdate", mock.Anything, int32(1)).
			Return(testBook(1, 3, 0, models.BookStatusExhausted), nil)
		mockQuerier.On("GetActiveReservationForAccount", mock.Anything, mock.Anything).
			Return(pendingReservation(40, patronActor.ID, 1, 2), nil)

		_, err := service.Reserve(context.Background(), patronActor, 1)

		assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	})

	t.Run("account with fines cannot reserve", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		fined := models.Actor{ID: 7, Role: models.RolePatron, IsActive: true, FineBalance: decimal.NewFromInt(5)}
		_, err := service.Reserve(context.Background(), fined, 1)

		assert.True(t, apperrors.Is(err, apperrors.KindPreconditionFailed))
	})
}

func TestReservationService_Cancel(t *testing.T) {
	t.Run("cancelling re-ranks the remaining queue", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		reservation := pendingReservation(40, patronActor.ID, 1, 2)
		cancelled := reservation
		cancelled.Status = string(models.ReservationStatusCancelled)

		mockQuerier.On("GetReservationByID", mock.Anything, int32(40)).Return(reservation, nil)
		mockQuerier.On("GetBookForUpdate", mock.Anything, int32(1)).
			Return(testBook(1, 3, 0, models.BookStatusExhausted), nil)
		mockQuerier.On("SetReservationStatus", mock.Anything, queries.SetReservationStatusParams{
			ID: 40, Status: "cancelled",
		}).Return(cancelled, nil)
		mockQuerier.On("ReorderBookReservations", mock.Anything, int32(1)).Return(nil)

		resp, err := service.Cancel(context.Background(), patronActor, 40)

		assert.NoError(t, err)
		assert.Equal(t, models.ReservationStatusCancelled, resp.Status)
		mockQuerier.AssertExpectations(t)
	})

	t.Run("book is locked before the ranks are rewritten", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		reservation := pendingReservation(40, patronActor.ID, 1, 2)
		cancelled := reservation
		cancelled.Status = string(models.ReservationStatusCancelled)

		mockQuerier.On("GetReservationByID", mock.Anything, int32(40)).Return(reservation, nil)
		mockQuerier.On("GetBookForUpdate", mock.Anything, int32(1)).
			Return(testBook(1, 3, 0, models.BookStatusExhausted), nil)
		mockQuerier.On("SetReservationStatus", mock.Anything, mock.Anything).Return(cancelled, nil)
		mockQuerier.On("ReorderBookReservations", mock.Anything, int32(1)).Return(nil)

		_, err := service.Cancel(context.Background(), patronActor, 40)

		assert.NoError(t, err)
		assert.Empty(t, mockQuerier.bareWrites)
		assert.Equal(t,
			[]string{"GetBookForUpdate", "SetReservationStatus", "ReorderBookReservations"},
			mockQuerier.txOps)
	})

	t.Run("completed reservation cannot be cancelled", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		reservation := pendingReservation(40, patronActor.ID, 1, 2)
		reservation.Status = string(models.ReservationStatusCompleted)

		mockQuerier.On("GetReservationByID", mock.Anything, int32(40)).Return(reservation, nil)

		_, err := service.Cancel(context.Background(), patronActor, 40)

		assert.True(t, apperrors.Is(err, apperrors.KindInvalidState))
		mockQuerier.AssertNotCalled(t, "ReorderBookReservations", mock.Anything, mock.Anything)
	})

	t.Run("patron may not cancel another account's reservation", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		mockQuerier.On("GetReservationByID", mock.Anything, int32(40)).
			Return(pendingReservation(40, 99, 1, 2), nil)

		_, err := service.Cancel(context.Background(), patronActor, 40)

		assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
	})
}

func TestReservationService_NotifyAvailability(t *testing.T) {
	t.Run("head of queue gets a hold and keeps its priority", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		head := pendingReservation(40, 7, 1, 1)
		notified := head
		notified.Status = string(models.ReservationStatusNotified)
		notified.NotifiedAt = pgtype.Timestamptz{Time: testNow, Valid: true}
		notified.ExpiresAt = pgtype.Timestamptz{Time: testNow.AddDate(0, 0, 3), Valid: true}

		mockQuerier.On("GetBookByID", mock.Anything, int32(1)).
			Return(testBook(1, 3, 1, models.BookStatusAvailable), nil)
		mockQuerier.On("GetNextPendingReservation", mock.Anything, int32(1)).Return(head, nil)
		mockQuerier.On("MarkReservationNotified", mock.Anything, queries.MarkReservationNotifiedParams{
			ID:         40,
			NotifiedAt: pgtype.Timestamptz{Time: testNow, Valid: true},
			ExpiresAt:  pgtype.Timestamptz{Time: testNow.AddDate(0, 0, 3), Valid: true},
		}).Return(notified, nil)

		resp, err := service.NotifyAvailability(context.Background(), staffActor, 1)

		assert.NoError(t, err)
		assert.Equal(t, models.ReservationStatusNotified, resp.Status)
		assert.Equal(t, int32(1), resp.Priority)
		mockQuerier.AssertNotCalled(t, "ReorderBookReservations", mock.Anything, mock.Anything)
	})

	t.Run("no copies to offer", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		mockQuerier.On("GetBookByID", mock.Anything, int32(1)).
			Return(testBook(1, 3, 0, models.BookStatusExhausted), nil)

		_, err := service.NotifyAvailability(context.Background(), staffActor, 1)

		assert.True(t, apperrors.Is(err, apperrors.KindPreconditionFailed))
	})

	t.Run("empty queue", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		mockQuerier.On("GetBookByID", mock.Anything, int32(1)).
			Return(testBook(1, 3, 1, models.BookStatusAvailable), nil)
		mockQuerier.On("GetNextPendingReservation", mock.Anything, int32(1)).
			Return(queries.Reservation{}, pgx.ErrNoRows)

		_, err := service.NotifyAvailability(context.Background(), staffActor, 1)

		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	})

	t.Run("patron forbidden", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		_, err := service.NotifyAvailability(context.Background(), patronActor, 1)

		assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
	})
}

func TestReservationService_Complete(t *testing.T) {
	mockQuerier := new(MockReservationQuerier)
	service := newReservationService(mockQuerier)

	reservation := pendingReservation(40, 7, 1, 1)
	reservation.Status = string(models.ReservationStatusNotified)
	completed := reservation
	completed.Status = string(models.ReservationStatusCompleted)

	mockQuerier.On("GetReservationByID", mock.Anything, int32(40)).Return(reservation, nil)
	mockQuerier.On("GetBookForUpdate", mock.Anything, int32(1)).
		Return(testBook(1, 3, 0, models.BookStatusExhausted), nil)
	mockQuerier.On("SetReservationStatus", mock.Anything, queries.SetReservationStatusParams{
		ID: 40, Status: "completed",
	}).Return(completed, nil)
	mockQuerier.On("ReorderBookReservations", mock.Anything, int32(1)).Return(nil)

	resp, err := service.Complete(context.Background(), staffActor, 40)

	assert.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCompleted, resp.Status)
	mockQuerier.AssertExpectations(t)
}

func TestReservationService_CompleteRejectsClosedEntries(t *testing.T) {
	mockQuerier := new(MockReservationQuerier)
	service := newReservationService(mockQuerier)

	reservation := pendingReservation(40, 7, 1, 1)
	reservation.Status = string(models.ReservationStatusExpired)

	mockQuerier.On("GetReservationByID", mock.Anything, int32(40)).Return(reservation, nil)

	_, err := service.Complete(context.Background(), staffActor, 40)

	assert.True(t, apperrors.Is(err, apperrors.KindInvalidState))
	mockQuerier.AssertNotCalled(t, "SetReservationStatus", mock.Anything, mock.Anything)
}

func TestReservationService_ExpireStaleReservations(t *testing.T) {
	t.Run("expires and re-ranks each touched book once", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		expired := []queries.Reservation{
			{ID: 40, BookID: 1, Status: string(models.ReservationStatusExpired)},
			{ID: 41, BookID: 1, Status: string(models.ReservationStatusExpired)},
			{ID: 42, BookID: 2, Status: string(models.ReservationStatusExpired)},
		}

		mockQuerier.On("ExpireNotifiedReservations", mock.Anything, pgtype.Timestamptz{Time: testNow, Valid: true}).
			Return(expired, nil)
		mockQuerier.On("GetBookForUpdate", mock.Anything, int32(1)).
			Return(testBook(1, 3, 0, models.BookStatusExhausted), nil).Once()
		mockQuerier.On("GetBookForUpdate", mock.Anything, int32(2)).
			Return(testBook(2, 1, 0, models.BookStatusExhausted), nil).Once()
		mockQuerier.On("ReorderBookReservations", mock.Anything, int32(1)).Return(nil).Once()
		mockQuerier.On("ReorderBookReservations", mock.Anything, int32(2)).Return(nil).Once()

		count, err := service.ExpireStaleReservations(context.Background(), staffActor)

		assert.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Empty(t, mockQuerier.bareWrites)
		mockQuerier.AssertExpectations(t)
	})

	t.Run("nothing stale", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		mockQuerier.On("ExpireNotifiedReservations", mock.Anything, mock.Anything).
			Return([]queries.Reservation{}, nil)

		count, err := service.ExpireStaleReservations(context.Background(), staffActor)

		assert.NoError(t, err)
		assert.Zero(t, count)
		mockQuerier.AssertNotCalled(t, "ReorderBookReservations", mock.Anything, mock.Anything)
	})

	t.Run("patron forbidden", func(t *testing.T) {
		mockQuerier := new(MockReservationQuerier)
		service := newReservationService(mockQuerier)

		_, err := service.ExpireStaleReservations(context.Background(), patronActor)

		assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
	})
}

func TestReservationService_WithHoldDays(t *testing.T) {
	mockQuerier := new(MockReservationQuerier)
	service := newReservationService(mockQuerier).WithHoldDays(7)

	head := pendingReservation(40, 7, 1, 1)
	notified := head
	notified.Status = string(models.ReservationStatusNotified)

	mockQuerier.On("GetBookByID", mock.Anything, int32(1)).
		Return(testBook(1, 3, 1, models.BookStatusAvailable), nil)
	mockQuerier.On("GetNextPendingReservation", mock.Anything, int32(1)).Return(head, nil)
	mockQuerier.On("MarkReservationNotified", mock.Anything, mock.MatchedBy(func(arg queries.MarkReservationNotifiedParams) bool {
		return arg.ExpiresAt.Time.Equal(testNow.AddDate(0, 0, 7))
	})).Return(notified, nil)

	_, err := service.NotifyAvailability(context.Background(), staffActor, 1)
	assert.NoError(t, err)
}
