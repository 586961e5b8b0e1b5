package model

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus is the lifecycle state of a processing job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ProcessingJob is the durable step log of one image submission. LastStep is the last step
// that finished successfully; a retry resumes after it.
type ProcessingJob struct {
	ID               string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	CompanyID        string         `gorm:"type:varchar(36);index;not null" json:"-"`
	UserID           string         `gorm:"type:varchar(36);index" json:"user_id"`
	OriginalFilename string         `gorm:"size:256;not null" json:"original_filename"`
	ImagePath        string         `gorm:"size:512" json:"image_path,omitempty"`
	Payload          datatypes.JSON `json:"payload"`
	Status           JobStatus      `gorm:"size:16;index;not null" json:"status"`
	LastStep         string         `gorm:"size:32" json:"last_step"`
	FailedStep       string         `gorm:"size:32" json:"failed_step,omitempty"`
	Error            string         `gorm:"type:text" json:"error,omitempty"`
	ErrorKind        string         `gorm:"size:16" json:"error_kind,omitempty"`
	UserCOGS         float64        `gorm:"column:user_cogs" json:"user_cogs"`
	DefaultCOGS      float64        `gorm:"column:default_cogs" json:"default_cogs"`
	COGSDegraded     bool           `gorm:"column:cogs_degraded" json:"cogs_degraded"`
	Attempts         int            `gorm:"not null;default:0" json:"attempts"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	FinishedAt       *time.Time     `json:"finished_at,omitempty"`
}
