// Package notify delivers booking side effects (calendar entries, emails,
// SMS) from the outbox table, retrying failed deliveries with backoff.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"radhiant_ops/internal/models"
)

type Kind string

const (
	KindCalendar Kind = "calendar"
	KindEmail    Kind = "email"
	KindSMS      Kind = "sms"
)

// Message is the payload stored with every outbox event. All kinds share it so
// a notifier can render whatever it needs.
type Message struct {
	BookingID       string `json:"booking_id"`
	Reference       string `json:"reference"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	IDNumber        string `json:"id_number,omitempty"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Province        string `json:"province,omitempty"`
	Town            string `json:"town"`
	ServiceType     string `json:"service_type"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes,omitempty"`
	VanName         string `json:"van_name"`
	VanLocation     string `json:"van_location"`
}

func (m Message) PatientName() string {
	if m.LastName == "" {
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}

// Notifier delivers one message. The returned id is the remote identifier of
// whatever was created, empty when the channel has none.
type Notifier interface {
	Deliver(ctx context.Context, msg Message) (externalID string, err error)
}

// Hook runs after a successful delivery. A hook error is logged and does not
// undo the delivery.
type Hook func(ctx context.Context, event models.OutboxEvent, externalID string) error

// Enqueue records a pending notification on tx, normally the transaction that
// wrote the aggregate.
func Enqueue(tx *gorm.DB, kind Kind, aggregateID string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	event := models.OutboxEvent{
		Kind:          string(kind),
		AggregateID:   aggregateID,
		Payload:       string(payload),
		NextAttemptAt: time.Now().UTC(),
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("enqueueing %s notification: %w", kind, err)
	}
	return nil
}

type DispatcherOptions struct {
	Notifiers   map[Kind]Notifier
	Hooks       map[Kind]Hook
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Logger      logrus.FieldLogger
	Now         func() time.Time
}

type Dispatcher struct {
	db          *gorm.DB
	notifiers   map[Kind]Notifier
	hooks       map[Kind]Hook
	batchSize   int
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	log         logrus.FieldLogger
	now         func() time.Time
}

// DispatchReport counts what one Run did.
type DispatchReport struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

var ErrNoNotifier = errors.New("no notifier configured")

func NewDispatcher(db *gorm.DB, opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		db:          db,
		notifiers:   opts.Notifiers,
		hooks:       opts.Hooks,
		batchSize:   opts.BatchSize,
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		log:         opts.Logger,
		now:         opts.Now,
	}
	if d.batchSize <= 0 {
		d.batchSize = 25
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = 8
	}
	if d.baseBackoff <= 0 {
		d.baseBackoff = 30 * time.Second
	}
	if d.maxBackoff <= 0 {
		d.maxBackoff = time.Hour
	}
	if d.log == nil {
		d.log = logrus.StandardLogger()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Run delivers one batch of due events. A failing event is rescheduled and
// never stops the rest of the batch.
func (d *Dispatcher) Run(ctx context.Context) (DispatchReport, error) {
	var report DispatchReport
	now := d.now().UTC()

	var due []models.OutboxEvent
	err := d.db.WithContext(ctx).
		Where("delivered_at IS NULL AND attempt_count < ? AND next_attempt_at <= ?", d.maxAttempts, now).
		Order("next_attempt_at asc").
		Limit(d.batchSize).
		Find(&due).Error
	if err != nil {
		return report, fmt.Errorf("loading due outbox events: %w", err)
	}

	for _, event := range due {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err := d.deliver(ctx, event); err != nil {
			report.Failed++
			d.log.WithError(err).
				WithField("event_id", event.ID).
				WithField("kind", event.Kind).
				WithField("attempt", event.AttemptCount+1).
				Warn("notification delivery failed")
			continue
		}
		report.Delivered++
	}
	return report, nil
}

func (d *Dispatcher) deliver(ctx context.Context, event models.OutboxEvent) error {
	kind := Kind(event.Kind)
	now := d.now().UTC()

	externalID, err := d.send(ctx, kind, event)
	if err != nil {
		attempts := event.AttemptCount + 1
		msg := err.Error()
		updErr := d.db.WithContext(ctx).Model(&models.OutboxEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]any{
				"attempt_count":   attempts,
				"last_error":      msg,
				"next_attempt_at": now.Add(d.backoff(attempts)),
			}).Error
		if updErr != nil {
			return errors.Join(err, fmt.Errorf("recording failure: %w", updErr))
		}
		return err
	}

	changes := map[string]any{
		"attempt_count": event.AttemptCount + 1,
		"delivered_at":  now,
		"last_error":    nil,
	}
	if externalID != "" {
		changes["external_id"] = externalID
	}
	if err := d.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", event.ID).Updates(changes).Error; err != nil {
		return fmt.Errorf("marking event delivered: %w", err)
	}

	if hook := d.hooks[kind]; hook != nil {
		if err := hook(ctx, event, externalID); err != nil {
			d.log.WithError(err).WithField("event_id", event.ID).Warn("delivery hook failed")
		}
	}
	d.log.WithField("event_id", event.ID).
		WithField("kind", kind).
		WithField("aggregate_id", event.AggregateID).
		Info("notification delivered")
	return nil
}

func (d *Dispatcher) send(ctx context.Context, kind Kind, event models.OutboxEvent) (string, error) {
	n := d.notifiers[kind]
	if n == nil {
		return "", fmt.Errorf("%w for %s", ErrNoNotifier, kind)
	}
	var msg Message
	if err := json.Unmarshal([]byte(event.Payload), &msg); err != nil {
		return "", fmt.Errorf("decoding payload: %w", err)
	}
	return n.Deliver(ctx, msg)
}

// backoff doubles the wait per attempt, capped at maxBackoff.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	wait := d.baseBackoff
	for i := 1; i < attempts; i++ {
		wait *= 2
		if wait >= d.maxBackoff {
			return d.maxBackoff
		}
	}
	return wait
}
