package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"printcost-backend/internal/model"
)

var (
	// ErrNotFound is returned when a tenant-scoped lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would violate a uniqueness rule.
	ErrConflict = errors.New("record already exists")
)

// Store defines the interface for all database operations. Every catalog, job and ledger method
// is scoped to a company id.
type Store interface {
	DB() *gorm.DB

	ListCompanies(ctx context.Context) ([]model.Company, error)
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	RegisterCompany(ctx context.Context, name string, admin *model.User) (*model.Company, error)
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	FindUserByLogin(ctx context.Context, identifier string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error

	CreateAuthToken(ctx context.Context, t *model.AuthToken) error
	FindAuthToken(ctx context.Context, tokenHash string) (*model.AuthToken, error)
	DeleteAuthToken(ctx context.Context, tokenHash string) error

	ListPrinters(ctx context.Context, companyID string) ([]model.Printer, error)
	GetPrinter(ctx context.Context, companyID, id string) (*model.Printer, error)
	ReplacePrinters(ctx context.Context, companyID string, printers []model.Printer) error
	ListFilaments(ctx context.Context, companyID string) ([]model.Filament, error)
	GetFilament(ctx context.Context, companyID, material, brand string) (*model.Filament, error)
	ReplaceFilaments(ctx context.Context, companyID string, filaments []model.Filament) error
	ListMaterials(ctx context.Context, companyID string) ([]string, error)
	DecrementStock(ctx context.Context, companyID, material, brand string, grams float64) (bool, error)

	CreateJob(ctx context.Context, job *model.ProcessingJob) error
	GetJob(ctx context.Context, id string) (*model.ProcessingJob, error)
	SaveJob(ctx context.Context, job *model.ProcessingJob) error
	ListUnfinishedJobs(ctx context.Context) ([]model.ProcessingJob, error)

	AppendLedgerEntry(ctx context.Context, e *model.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, q LedgerQuery) ([]model.LedgerEntry, error)

	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, userID, endpoint string) (*model.PushSubscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, userID, endpoint string) error
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
}

// LedgerQuery selects ledger entries. An empty CompanyID selects every tenant; zero times leave
// that side of the range open. To is exclusive.
type LedgerQuery struct {
	CompanyID string
	From      time.Time
	To        time.Time
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	}
	return err
}
