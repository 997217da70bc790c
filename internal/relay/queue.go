package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/ratelimit"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// Job is one durable relay unit; the payment snapshot is the full input.
type Job struct {
	ID        snowflake.ID   `json:"id" gorm:"primaryKey"`
	WebhookID string         `json:"webhook_id" gorm:"type:text;not null"`
	Payment   datatypes.JSON `json:"payment" gorm:"type:jsonb;not null"`
	Status    string         `json:"status" gorm:"type:text;not null"`
	Attempts  int            `json:"attempts" gorm:"not null;default:0"`
	Faults    int            `json:"faults" gorm:"not null;default:0"`
	LastError string         `json:"last_error" gorm:"type:text"`
	RunAfter  time.Time      `json:"run_after" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null"`
}

func (Job) TableName() string { return "relay_jobs" }

func (s *Service) enqueue(ctx context.Context, payment *domain.Payment, webhookID string) error {
	snapshot, err := json.Marshal(payment)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO relay_jobs (
			id, webhook_id, payment, status, attempts, faults, last_error,
			run_after, created_at, updated_at
		) VALUES (?, ?, ?, ?, 0, 0, '', ?, ?, ?)`,
		s.genID.Generate(),
		webhookID,
		datatypes.JSON(snapshot),
		JobStatusPending,
		now,
		now,
		now,
	).Error
}

const workerPollLockKey = "relay:worker:poll"

// Worker drains pending relay jobs on an interval.
type Worker struct {
	db     *gorm.DB
	log    *zap.Logger
	svc    *Service
	cfg    Config
	clock  clock.Clock
	locker *ratelimit.Locker
}

func NewWorker(p Params, svc *Service) *Worker {
	return &Worker{
		db:     p.DB,
		log:    p.Log.Named("relay.worker"),
		svc:    svc,
		cfg:    p.Cfg,
		clock:  p.Clock,
		locker: p.Locker,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("relay worker run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims and relays one batch of due jobs. When redis is
// configured a poll lock keeps replicas from scanning the same batch.
func (w *Worker) RunOnce(ctx context.Context) error {
	token, ok, err := w.locker.TryLock(ctx, workerPollLockKey, w.cfg.PollInterval)
	if err != nil {
		w.log.Warn("relay poll lock unavailable, polling anyway", zap.Error(err))
	} else if !ok {
		return nil
	}
	defer func() {
		if err := w.locker.Release(ctx, workerPollLockKey, token); err != nil {
			w.log.Warn("release relay poll lock failed", zap.Error(err))
		}
	}()

	var jobs []Job
	err = w.db.WithContext(ctx).Raw(
		`SELECT id, webhook_id, payment, status, attempts, faults, last_error,
			run_after, created_at, updated_at
		 FROM relay_jobs
		 WHERE status = ? AND run_after <= ?
		 ORDER BY run_after
		 LIMIT ?`,
		JobStatusPending,
		w.clock.Now(),
		w.cfg.BatchSize,
	).Scan(&jobs).Error
	if err != nil {
		return err
	}

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		w.process(ctx, job)
	}
	return nil
}

func (w *Worker) process(ctx context.Context, job Job) {
	claimed := w.db.WithContext(ctx).Exec(
		`UPDATE relay_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobStatusRunning,
		w.clock.Now(),
		job.ID,
		JobStatusPending,
	)
	if claimed.Error != nil {
		w.log.Warn("claim relay job failed", zap.String("job_id", job.ID.String()), zap.Error(claimed.Error))
		return
	}
	if claimed.RowsAffected == 0 {
		return
	}

	var payment domain.Payment
	if err := json.Unmarshal(job.Payment, &payment); err != nil {
		w.finish(ctx, job.ID, JobStatusFailed, Outcome{LastError: err.Error()})
		return
	}

	outcome := w.svc.Relay(ctx, &payment, job.WebhookID)
	status := JobStatusSucceeded
	if !outcome.Delivered {
		status = JobStatusFailed
	}
	w.finish(ctx, job.ID, status, outcome)
}

func (w *Worker) finish(ctx context.Context, id snowflake.ID, status string, outcome Outcome) {
	err := w.db.WithContext(ctx).Exec(
		`UPDATE relay_jobs
		 SET status = ?, attempts = ?, faults = ?, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		status,
		outcome.Attempts,
		outcome.Faults,
		outcome.LastError,
		w.clock.Now(),
		id,
	).Error
	if err != nil {
		w.log.Warn("finalize relay job failed", zap.String("job_id", id.String()), zap.Error(err))
	}
}
