package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"printcost-backend/internal/metrics"
	"printcost-backend/internal/model"
	"printcost-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// JobFinished describes a processing job that reached a terminal state.
type JobFinished struct {
	JobID    string          `json:"job_id"`
	UserID   string          `json:"-"`
	Status   model.JobStatus `json:"status"`
	Filename string          `json:"filename"`
	UserCOGS float64         `json:"user_cogs"`
	Error    string          `json:"error,omitempty"`
}

// Message is the JSON body delivered to the service worker.
type Message struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Job   JobFinished `json:"job"`
}

func newMessage(ev JobFinished) Message {
	msg := Message{Job: ev}
	if ev.Status == model.JobCompleted {
		msg.Title = "Print logged"
		msg.Body = fmt.Sprintf("%s was logged with COGS %.2f", ev.Filename, ev.UserCOGS)
	} else {
		msg.Title = "Print processing failed"
		msg.Body = fmt.Sprintf("%s could not be logged: %s", ev.Filename, ev.Error)
	}
	return msg
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan JobFinished
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool. A nil webpushOptions disables delivery: Dispatch
// then drops every event.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, m *metrics.Metrics, log *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan JobFinished, size*16),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		metrics: m,
		log:     log.Named("push"),
	}
}

// Enabled reports whether pushes are delivered.
func (wp *WorkerPool) Enabled() bool {
	return wp.webpush != nil
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	if !wp.Enabled() {
		wp.log.Info("Push notifications disabled: no VAPID keys configured")
		return
	}
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("Worker started", zap.Int("worker_id", id))
	for {
		select {
		case ev := <-wp.jobs:
			wp.sendNotificationsForJob(ctx, ev)
		case <-ctx.Done():
			wp.log.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		}
	}
}

// Dispatch queues ev for delivery. It never blocks the pipeline: when the buffer is full the
// event is dropped and logged.
func (wp *WorkerPool) Dispatch(ev JobFinished) {
	if !wp.Enabled() {
		return
	}
	select {
	case wp.jobs <- ev:
	default:
		wp.log.Warn("Push buffer full, dropping notification", zap.String("job_id", ev.JobID))
		wp.count("dropped")
	}
}

// sendNotificationsForJob sends ev to every subscription of the submitting user.
func (wp *WorkerPool) sendNotificationsForJob(ctx context.Context, ev JobFinished) {
	subscriptions, err := wp.store.ListSubscriptions(ctx, ev.UserID)
	if err != nil {
		wp.log.Error("Error fetching subscriptions", zap.String("user_id", ev.UserID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(newMessage(ev))
	if err != nil {
		wp.log.Error("Failed to encode push payload", zap.String("job_id", ev.JobID), zap.Error(err))
		return
	}

	wp.log.Debug("Sending notifications", zap.Int("count", len(subscriptions)), zap.String("job_id", ev.JobID))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("Error sending notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		wp.count("error")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.log.Info("Subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		wp.count("gone")
		if err := wp.store.DeleteSubscriptionByEndpoint(ctx, sub.Endpoint); err != nil {
			wp.log.Error("Failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return
	}
	wp.count("sent")
}

func (wp *WorkerPool) count(result string) {
	if wp.metrics != nil {
		wp.metrics.PushesTotal.WithLabelValues(result).Inc()
	}
}
