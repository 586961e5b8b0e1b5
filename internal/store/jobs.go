package store

import (
	"context"
	"fmt"

	"printcost-backend/internal/model"
)

func (s *gormStore) CreateJob(ctx context.Context, job *model.ProcessingJob) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", translate(err))
	}
	return nil
}

func (s *gormStore) GetJob(ctx context.Context, id string) (*model.ProcessingJob, error) {
	var job model.ProcessingJob
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, translate(err)
	}
	return &job, nil
}

// SaveJob writes the job's full state. Each pipeline step commits its progress through it.
func (s *gormStore) SaveJob(ctx context.Context, job *model.ProcessingJob) error {
	if err := s.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// ListUnfinishedJobs returns every queued or running job, oldest first.
func (s *gormStore) ListUnfinishedJobs(ctx context.Context) ([]model.ProcessingJob, error) {
	var jobs []model.ProcessingJob
	err := s.db.WithContext(ctx).
		Where("status IN ?", []model.JobStatus{model.JobQueued, model.JobRunning}).
		Order("created_at").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished jobs: %w", err)
	}
	return jobs, nil
}
