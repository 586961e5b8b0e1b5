// Package pipeline runs a submitted print log through its processing steps: save the image,
// look up the printer and filament, compute COGS, append the ledgers, draw down stock and mark
// the upload as processed. Each finished step is committed to the job row so a failed job can be
// retried from where it stopped.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"printcost-backend/internal/costing"
	"printcost-backend/internal/ledger"
	"printcost-backend/internal/metrics"
	"printcost-backend/internal/model"
	"printcost-backend/internal/notification"
	"printcost-backend/internal/parse"
	"printcost-backend/internal/store"
)

// Step names in execution order.
const (
	StepReceived         = "received"
	StepImageSaved       = "image_saved"
	StepDBLookup         = "db_lookup"
	StepCOGSComputed     = "cogs_computed"
	StepExcelWritten     = "excel_written"
	StepMasterLogUpdated = "master_log_updated"
	StepStockUpdated     = "stock_updated"
	StepAppLogWritten    = "app_log_written"
	StepMarkedComplete   = "marked_complete"
)

// Steps lists every step in order.
var Steps = []string{
	StepReceived, StepImageSaved, StepDBLookup, StepCOGSComputed, StepExcelWritten,
	StepMasterLogUpdated, StepStockUpdated, StepAppLogWritten, StepMarkedComplete,
}

// ImagesDir is the tenant directory that keeps processed images.
const ImagesDir = "local_log_images"

const pendingDir = "pending_uploads"

// Enqueuer accepts job ids for background processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Notifier is told about every job that reaches a terminal state.
type Notifier interface {
	Dispatch(ev notification.JobFinished)
}

// CacheInvalidator drops cached catalog responses of a company.
type CacheInvalidator interface {
	Invalidate(companyID string)
}

// Services are the collaborators of the orchestrator. Notifier, Cache and Now are optional.
type Services struct {
	Store    store.Store
	Ledger   *ledger.Writer
	Notifier Notifier
	Cache    CacheInvalidator
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	Now      func() time.Time
}

// Orchestrator submits and executes processing jobs.
type Orchestrator struct {
	svc   Services
	queue Enqueuer
	log   *zap.Logger
}

// New creates an orchestrator that hands jobs to q.
func New(svc Services, q Enqueuer) *Orchestrator {
	if svc.Now == nil {
		svc.Now = time.Now
	}
	return &Orchestrator{svc: svc, queue: q, log: svc.Log.Named("pipeline")}
}

// Submission is a validated upload waiting to be processed.
type Submission struct {
	CompanyID        string
	UserID           string
	OriginalFilename string
	Image            []byte
	Payload          Payload
}

// Submit records a queued job, stages the image and enqueues the job id.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (*model.ProcessingJob, error) {
	raw, err := json.Marshal(sub.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	job := &model.ProcessingJob{
		ID:               uuid.NewString(),
		CompanyID:        sub.CompanyID,
		UserID:           sub.UserID,
		OriginalFilename: sub.OriginalFilename,
		Payload:          datatypes.JSON(raw),
		Status:           model.JobQueued,
	}

	if err := writeFile(o.pendingPath(job), sub.Image); err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	if err := o.svc.Store.CreateJob(ctx, job); err != nil {
		os.Remove(o.pendingPath(job))
		return nil, err
	}
	if err := o.queue.Enqueue(ctx, job.ID); err != nil {
		o.fail(ctx, job, &StepError{Step: StepReceived, Kind: KindInternal, Err: err})
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	o.log.Info("Job queued", zap.String("job_id", job.ID), zap.String("company_id", job.CompanyID), zap.Stringer("payload", sub.Payload))
	return job, nil
}

// Retry re-queues a failed job of companyID. It resumes after the job's last completed step.
func (o *Orchestrator) Retry(ctx context.Context, companyID, jobID string) (*model.ProcessingJob, error) {
	job, err := o.svc.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	if job.Status != model.JobFailed {
		return nil, ErrNotRetryable
	}

	job.Status = model.JobQueued
	job.FailedStep, job.Error, job.ErrorKind = "", "", ""
	job.FinishedAt = nil
	if err := o.svc.Store.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	if err := o.queue.Enqueue(ctx, job.ID); err != nil {
		o.fail(ctx, job, &StepError{Step: job.LastStep, Kind: KindInternal, Err: err})
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	o.log.Info("Job re-queued", zap.String("job_id", job.ID), zap.String("after_step", job.LastStep))
	return job, nil
}

// Resume re-queues jobs left unfinished by a previous process and returns how many were handed to
// the queue. Jobs left running were already taken off the queue, so they are always re-queued.
// Queued jobs are re-queued only when includeQueued is set, which a durable queue that still holds
// their ids must not do.
func (o *Orchestrator) Resume(ctx context.Context, includeQueued bool) (int, error) {
	jobs, err := o.svc.Store.ListUnfinishedJobs(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range jobs {
		job := &jobs[i]
		if job.Status == model.JobQueued && !includeQueued {
			continue
		}
		if job.Status == model.JobRunning {
			job.Status = model.JobQueued
			if err := o.svc.Store.SaveJob(ctx, job); err != nil {
				return n, err
			}
		}
		if err := o.queue.Enqueue(ctx, job.ID); err != nil {
			return n, fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
		}
		n++
	}
	if n > 0 {
		o.log.Info("Resumed unfinished jobs", zap.Int("count", n))
	}
	return n, nil
}

// Process executes the job with id jobID. It is the queue handler.
func (o *Orchestrator) Process(ctx context.Context, jobID string) error {
	job, err := o.svc.Store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job.Status != model.JobQueued {
		o.log.Warn("Skipping job that is not queued", zap.String("job_id", jobID), zap.String("status", string(job.Status)))
		return nil
	}

	start := o.svc.Now()
	job.Status = model.JobRunning
	job.Attempts++
	if err := o.svc.Store.SaveJob(ctx, job); err != nil {
		return err
	}

	r := &run{o: o, job: job}
	if err := r.execute(ctx); err != nil {
		var se *StepError
		if !errors.As(err, &se) {
			se = &StepError{Step: job.LastStep, Kind: KindInternal, Err: err}
		}
		o.fail(ctx, job, se)
		o.svc.Metrics.ObserveJob(string(model.JobFailed), o.svc.Now().Sub(start))
		return se
	}

	o.svc.Metrics.ObserveJob(string(model.JobCompleted), o.svc.Now().Sub(start))
	o.log.Info("Job completed",
		zap.String("job_id", job.ID),
		zap.Float64("user_cogs", job.UserCOGS),
		zap.Float64("default_cogs", job.DefaultCOGS),
		zap.Bool("cogs_degraded", job.COGSDegraded))
	o.notify(job, r.payload.Filename)
	return nil
}

// fail records se on the job and notifies the submitter.
func (o *Orchestrator) fail(ctx context.Context, job *model.ProcessingJob, se *StepError) {
	now := o.svc.Now()
	job.Status = model.JobFailed
	job.FailedStep = se.Step
	job.ErrorKind = string(se.Kind)
	job.Error = se.Err.Error()
	job.FinishedAt = &now
	if err := o.svc.Store.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		o.log.Error("Failed to record job failure", zap.String("job_id", job.ID), zap.Error(err))
	}

	o.svc.Metrics.JobStepFailures.WithLabelValues(se.Step).Inc()
	o.log.Error("Job failed",
		zap.String("job_id", job.ID),
		zap.String("step", se.Step),
		zap.String("kind", string(se.Kind)),
		zap.Error(se.Err))

	var p Payload
	_ = json.Unmarshal(job.Payload, &p)
	o.notify(job, p.Filename)
}

func (o *Orchestrator) notify(job *model.ProcessingJob, filename string) {
	if o.svc.Notifier == nil {
		return
	}
	if filename == "" {
		filename = job.OriginalFilename
	}
	o.svc.Notifier.Dispatch(notification.JobFinished{
		JobID:    job.ID,
		UserID:   job.UserID,
		Status:   job.Status,
		Filename: filename,
		UserCOGS: job.UserCOGS,
		Error:    job.Error,
	})
}

func (o *Orchestrator) pendingPath(job *model.ProcessingJob) string {
	return o.svc.Ledger.TenantPath(job.CompanyID, pendingDir, job.ID+filepath.Ext(job.OriginalFilename))
}

// run carries the state built up by the steps of one execution.
type run struct {
	o        *Orchestrator
	job      *model.ProcessingJob
	payload  Payload
	printer  *model.Printer
	filament *model.Filament
	row      ledger.Row
	cogs     costing.Result
}

func (r *run) execute(ctx context.Context) error {
	if err := json.Unmarshal(r.job.Payload, &r.payload); err != nil {
		return &StepError{Step: StepReceived, Kind: KindInternal, Err: fmt.Errorf("corrupt payload: %w", err)}
	}

	resumeAt := 0
	for i, s := range Steps {
		if s == r.job.LastStep {
			resumeAt = i + 1
		}
	}
	if resumeAt > 0 {
		if err := r.restore(ctx, resumeAt); err != nil {
			return err
		}
	}

	for _, step := range Steps[resumeAt:] {
		if err := r.do(ctx, step); err != nil {
			return err
		}
		r.job.LastStep = step
		if step == StepMarkedComplete {
			now := r.o.svc.Now()
			r.job.Status = model.JobCompleted
			r.job.FinishedAt = &now
		}
		if err := r.o.svc.Store.SaveJob(ctx, r.job); err != nil {
			return &StepError{Step: step, Kind: KindInternal, Err: err}
		}
		r.o.log.Debug("Step done", zap.String("job_id", r.job.ID), zap.String("step", step))
	}
	return nil
}

// restore rebuilds the in-memory state a resumed run needs from the committed steps.
func (r *run) restore(ctx context.Context, resumeAt int) error {
	if resumeAt > indexOf(StepDBLookup) {
		if err := r.lookup(ctx); err != nil {
			return err
		}
	}
	if resumeAt > indexOf(StepCOGSComputed) {
		r.cogs = costing.Result{UserCOGS: r.job.UserCOGS, DefaultCOGS: r.job.DefaultCOGS}
		r.buildRow()
	}
	return nil
}

func (r *run) do(ctx context.Context, step string) error {
	switch step {
	case StepReceived:
		return nil
	case StepImageSaved:
		return r.saveImage()
	case StepDBLookup:
		return r.lookup(ctx)
	case StepCOGSComputed:
		r.computeCOGS()
		return nil
	case StepExcelWritten:
		return r.writeTenantLedger(ctx)
	case StepMasterLogUpdated:
		return r.writeMasterLog(ctx)
	case StepStockUpdated:
		r.updateStock(ctx)
		return nil
	case StepAppLogWritten:
		return r.writeAppLog()
	case StepMarkedComplete:
		r.markProcessed()
		return nil
	}
	return fmt.Errorf("unknown step %q", step)
}

func (r *run) saveImage() error {
	pending := r.o.pendingPath(r.job)
	data, err := os.ReadFile(pending)
	if err != nil {
		return stepErr(StepImageSaved, fmt.Errorf("staged upload missing: %w", err))
	}

	name := r.payload.StoredImageName(r.job.OriginalFilename)
	dst := r.o.svc.Ledger.TenantPath(r.job.CompanyID, ImagesDir, name)
	if err := writeFile(dst, data); err != nil {
		return stepErr(StepImageSaved, err)
	}
	r.job.ImagePath = filepath.ToSlash(filepath.Join(ImagesDir, name))

	if err := os.Remove(pending); err != nil {
		r.o.log.Warn("Failed to remove staged upload", zap.String("path", pending), zap.Error(err))
	}
	return nil
}

func (r *run) lookup(ctx context.Context) error {
	printer, err := r.o.svc.Store.GetPrinter(ctx, r.job.CompanyID, r.payload.PrinterID)
	if err != nil {
		return stepErr(StepDBLookup, fmt.Errorf("printer %q: %w", r.payload.PrinterID, err))
	}
	filament, err := r.o.svc.Store.GetFilament(ctx, r.job.CompanyID, r.payload.Material, r.payload.Brand)
	if err != nil {
		return stepErr(StepDBLookup, fmt.Errorf("filament %s/%s: %w", r.payload.Material, r.payload.Brand, err))
	}
	r.printer, r.filament = printer, filament
	return nil
}

func (r *run) computeCOGS() {
	res, err := costing.Compute(costing.Input{
		Grams:         r.payload.Grams,
		TimeString:    r.payload.TimeString,
		LabourMinutes: r.payload.LabourMinutes,
		LabourRate:    r.payload.LabourRate,
	}, r.printer, r.filament)
	if err != nil {
		r.o.log.Warn("COGS computation failed, logging zeros",
			zap.String("job_id", r.job.ID), zap.Error(err))
		r.o.svc.Metrics.DegradedCOGS.Inc()
		r.job.COGSDegraded = true
	} else if !res.Breakdown.RateAvailable {
		r.o.log.Warn("Printer hourly rate unavailable, machine cost is zero",
			zap.String("job_id", r.job.ID), zap.String("printer_id", r.printer.ID))
	}

	r.cogs = costing.Degrade(res, err)
	r.job.UserCOGS = r.cogs.UserCOGS
	r.job.DefaultCOGS = r.cogs.DefaultCOGS
	r.buildRow()
}

func (r *run) buildRow() {
	r.row = ledger.Row{
		Date:           r.payload.LogDate(r.job.CreatedAt),
		PartNumber:     r.payload.Filename,
		Filename:       r.payload.StoredImageName(r.job.OriginalFilename),
		Material:       r.payload.Material,
		FilamentCostKg: r.payload.FilamentCostKg,
		Grams:          r.payload.Grams,
		Hours:          parse.ParseHours(r.payload.TimeString),
		LabourMinutes:  r.payload.LabourMinutes,
		UserCOGS:       r.cogs.UserCOGS,
		DefaultCOGS:    r.cogs.DefaultCOGS,
		SourceLink:     r.job.ImagePath,
	}
}

// writeTenantLedger books the print in ledger_entries, then appends the tenant workbook.
func (r *run) writeTenantLedger(ctx context.Context) error {
	record, err := json.Marshal(r.payload)
	if err != nil {
		return stepErr(StepExcelWritten, err)
	}
	entry := &model.LedgerEntry{
		CompanyID:      r.job.CompanyID,
		JobID:          r.job.ID,
		Date:           r.row.Date,
		PartNumber:     r.row.PartNumber,
		Filename:       r.row.Filename,
		Material:       r.row.Material,
		FilamentCostKg: r.row.FilamentCostKg,
		Grams:          r.row.Grams,
		Hours:          r.row.Hours,
		LabourMinutes:  r.row.LabourMinutes,
		UserCOGS:       r.row.UserCOGS,
		DefaultCOGS:    r.row.DefaultCOGS,
		SourceLink:     r.row.SourceLink,
		Record:         datatypes.JSON(record),
	}
	if err := r.o.svc.Store.AppendLedgerEntry(ctx, entry); err != nil {
		return stepErr(StepExcelWritten, err)
	}

	if _, err := r.o.svc.Ledger.AppendTenantRow(r.job.CompanyID, r.row); err != nil {
		return stepErr(StepExcelWritten, err)
	}
	return nil
}

func (r *run) writeMasterLog(ctx context.Context) error {
	company, err := r.o.svc.Store.GetCompany(ctx, r.job.CompanyID)
	if err != nil {
		return stepErr(StepMasterLogUpdated, fmt.Errorf("company: %w", err))
	}
	if _, err := r.o.svc.Ledger.AppendMasterRow(company.Name, r.row); err != nil {
		return stepErr(StepMasterLogUpdated, err)
	}
	return nil
}

// updateStock never fails the job: a missing filament or a database error is logged.
func (r *run) updateStock(ctx context.Context) {
	updated, err := r.o.svc.Store.DecrementStock(ctx, r.job.CompanyID, r.payload.Material, r.payload.Brand, r.payload.Grams)
	switch {
	case err != nil:
		r.o.log.Error("Error updating stock", zap.String("job_id", r.job.ID), zap.Error(err))
	case !updated && r.payload.Grams > 0:
		r.o.svc.Metrics.StockMisses.Inc()
		r.o.log.Warn("Could not find filament to update stock",
			zap.String("company_id", r.job.CompanyID),
			zap.String("material", r.payload.Material),
			zap.String("brand", r.payload.Brand))
	case r.o.svc.Cache != nil:
		r.o.svc.Cache.Invalidate(r.job.CompanyID)
	}
}

func (r *run) writeAppLog() error {
	rec := ledger.AppLogRecord{
		Timestamp:        r.o.svc.Now().UTC(),
		JobID:            r.job.ID,
		Filename:         r.payload.Filename,
		OriginalFilename: r.job.OriginalFilename,
		Image:            r.row.Filename,
		Printer:          r.payload.Printer,
		Material:         r.payload.Material,
		Brand:            r.payload.Brand,
		Grams:            r.payload.Grams,
		Time:             r.payload.TimeString,
		LabourMinutes:    r.payload.LabourMinutes,
		UserCOGS:         r.cogs.UserCOGS,
		DefaultCOGS:      r.cogs.DefaultCOGS,
		Workbook:         r.o.svc.Ledger.TenantWorkbookPath(r.job.CompanyID),
	}
	if err := r.o.svc.Ledger.AppendAppLog(r.job.CompanyID, rec); err != nil {
		return stepErr(StepAppLogWritten, err)
	}
	return nil
}

// markProcessed is best-effort.
func (r *run) markProcessed() {
	if err := r.o.svc.Ledger.MarkProcessed(r.job.CompanyID, r.job.OriginalFilename); err != nil {
		r.o.log.Error("Failed to update processed log",
			zap.String("job_id", r.job.ID),
			zap.String("filename", r.job.OriginalFilename),
			zap.Error(err))
	}
}

func indexOf(step string) int {
	for i, s := range Steps {
		if s == step {
			return i
		}
	}
	return -1
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
