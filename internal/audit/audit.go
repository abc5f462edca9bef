// Package audit records security-relevant actions. Writes are fire-and-forget:
// a failed append is reported to the operational log and never into the
// request path.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"authgate/internal/models"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is one auditable action with its outcome.
type Event struct {
	UserID       string
	UserEmail    string
	Action       string
	Resource     string
	ResourceID   string
	Status       string
	ErrorMessage string
	Details      map[string]any
}

type Recorder struct {
	db *gorm.DB
	lg *zap.SugaredLogger
}

func NewRecorder(db *gorm.DB, lg *zap.SugaredLogger) *Recorder {
	return &Recorder{db: db, lg: lg}
}

// Record appends an entry, swallowing any store error.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if ev.Status == "" {
		ev.Status = StatusSuccess
	}
	entry := models.AuditLog{
		UserEmail:    ev.UserEmail,
		Action:       ev.Action,
		Resource:     ev.Resource,
		ResourceID:   ev.ResourceID,
		Status:       ev.Status,
		ErrorMessage: ev.ErrorMessage,
		Details:      models.FromMap(ev.Details),
		CreatedAt:    time.Now(),
	}
	if ev.UserID != "" {
		entry.UserID = &ev.UserID
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		r.lg.Errorw("audit write failed", "action", ev.Action, "error", err)
	}
}

// Filters narrow queries over the log. Zero values mean "any".
type Filters struct {
	UserID   string
	Action   string
	Resource string
	Status   string
	From     time.Time
	To       time.Time
	Page     int
	Limit    int
}

func (r *Recorder) filtered(ctx context.Context, f Filters) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Resource != "" {
		q = q.Where("resource = ?", f.Resource)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at <= ?", f.To)
	}
	return q
}

// List returns matching entries, newest first, plus the total match count.
func (r *Recorder) List(ctx context.Context, f Filters) ([]models.AuditLog, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 200 {
		f.Limit = 50
	}
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []models.AuditLog
	err := r.filtered(ctx, f).
		Order("created_at desc").
		Offset((f.Page - 1) * f.Limit).Limit(f.Limit).
		Find(&logs).Error
	return logs, total, err
}

// Statistics summarizes matching entries.
type Statistics struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByAction   map[string]int64 `json:"by_action"`
	ByResource map[string]int64 `json:"by_resource"`
}

func (r *Recorder) GetStatistics(ctx context.Context, f Filters) (*Statistics, error) {
	stats := &Statistics{
		ByStatus:   map[string]int64{},
		ByAction:   map[string]int64{},
		ByResource: map[string]int64{},
	}
	if err := r.filtered(ctx, f).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	for col, dst := range map[string]map[string]int64{
		"status":   stats.ByStatus,
		"action":   stats.ByAction,
		"resource": stats.ByResource,
	} {
		var rows []struct {
			Key string
			N   int64
		}
		err := r.filtered(ctx, f).
			Select(col + " as key, count(*) as n").
			Group(col).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.Key != "" {
				dst[row.Key] = row.N
			}
		}
	}
	return stats, nil
}
