package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"printcost-backend/internal/model"
	"printcost-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func newTestPool(t *testing.T) (*WorkerPool, sqlmock.Sqlmock) {
	gormDB, mock := newTestDB(t)
	return NewWorkerPool(1, store.NewGormStore(gormDB), &webpush.Options{}, nil, zap.NewNop()), mock
}

func okResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp, _ := newTestPool(t)

	wp.Dispatch(JobFinished{JobID: "job-1", UserID: "u1"})

	select {
	case ev := <-wp.jobs:
		assert.Equal(t, "job-1", ev.JobID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DisabledDropsEvents(t *testing.T) {
	gormDB, _ := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(gormDB), nil, nil, zap.NewNop())
	assert.False(t, wp.Enabled())

	wp.Dispatch(JobFinished{JobID: "job-1"})
	assert.Len(t, wp.jobs, 0)
}

func TestWorkerPool_FullBufferDoesNotBlock(t *testing.T) {
	wp, _ := newTestPool(t)
	for i := 0; i < cap(wp.jobs)+5; i++ {
		wp.Dispatch(JobFinished{JobID: "job"})
	}
	assert.Len(t, wp.jobs, cap(wp.jobs))
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	wp, mock := newTestPool(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends job result to the user's subscriptions", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)

				var msg Message
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, "Print logged", msg.Title)
				assert.Equal(t, "bracket was logged with COGS 116.74", msg.Body)
				assert.Equal(t, "job-1", msg.Job.JobID)
				return okResponse(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/push", "u1", "test_p256dh", "test_auth", time.Now()))

		wp.Dispatch(JobFinished{JobID: "job-1", UserID: "u1", Status: model.JobCompleted, Filename: "bracket", UserCOGS: 116.74})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				var msg Message
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, "Print processing failed", msg.Title)
				return okResponse(http.StatusGone), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs("u2").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/expired", "u2", "k", "a", time.Now()))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE endpoint = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch(JobFinished{JobID: "job-2", UserID: "u2", Status: model.JobFailed, Filename: "gear", Error: "printer not found"})

		require.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("no subscriptions sends nothing", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("sender must not be called")
				return okResponse(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs("u3").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}))

		wp.Dispatch(JobFinished{JobID: "job-3", UserID: "u3", Status: model.JobCompleted})

		require.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, 2*time.Second, 10*time.Millisecond)
	})
}
