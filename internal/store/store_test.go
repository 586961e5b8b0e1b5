package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"printcost-backend/config"
	"printcost-backend/internal/db"
	"printcost-backend/internal/model"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteStore opens a migrated SQLite database in a temp dir.
func newSQLiteStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{DSN: filepath.Join(t.TempDir(), "store.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})
	return NewGormStore(gormDB), gormDB
}

func f(v float64) *float64 { return &v }

func seedCompany(t *testing.T, s Store, name, email string) (*model.Company, *model.User) {
	t.Helper()
	admin := &model.User{Username: "admin", Email: email, PasswordHash: "x"}
	company, err := s.RegisterCompany(context.Background(), name, admin)
	require.NoError(t, err)
	return company, admin
}

func TestGormStore_DecrementStock_SQL(t *testing.T) {
	testCases := []struct {
		name             string
		material, brand  string
		grams            float64
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedUpdated  bool
		expectedErr      bool
	}{
		{
			name: "single atomic update", material: "PLA", brand: "Generic", grams: 50,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "filaments" SET "stock_g"=stock_g - $1`)).
					WithArgs(50.0, Any{}, "c-1", "PLA", "Generic").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedUpdated: true,
		},
		{
			name: "no matching row", material: "ABS", brand: "Nobody", grams: 10,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "filaments" SET "stock_g"=stock_g - $1`)).
					WithArgs(10.0, Any{}, "c-1", "ABS", "Nobody").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectedUpdated: false,
		},
		{
			name: "database error", material: "PLA", brand: "Generic", grams: 5,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "filaments"`)).
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			expectedErr: true,
		},
		{name: "zero grams is a no-op", material: "PLA", brand: "Generic", grams: 0, mockExpectations: func(sqlmock.Sqlmock) {}},
		{name: "negative grams is a no-op", material: "PLA", brand: "Generic", grams: -3, mockExpectations: func(sqlmock.Sqlmock) {}},
		{name: "empty material is a no-op", material: "", brand: "Generic", grams: 5, mockExpectations: func(sqlmock.Sqlmock) {}},
		{name: "empty brand is a no-op", material: "PLA", brand: "", grams: 5, mockExpectations: func(sqlmock.Sqlmock) {}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newMockDB(t)
			s := NewGormStore(gormDB)
			tc.mockExpectations(mock)

			updated, err := s.DecrementStock(context.Background(), "c-1", tc.material, tc.brand, tc.grams)
			if tc.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedUpdated, updated)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_DecrementStock(t *testing.T) {
	s, gormDB := newSQLiteStore(t)
	ctx := context.Background()
	company, _ := seedCompany(t, s, "Acme", "a@acme.test")
	other, _ := seedCompany(t, s, "Other", "a@other.test")

	require.NoError(t, s.ReplaceFilaments(ctx, company.ID, []model.Filament{
		{Material: "PLA", Brand: "Generic", Price: f(1200), StockG: 1000, EfficiencyFactor: f(1)},
		{Material: "PETG", Brand: "Generic", Price: f(1400), StockG: 500, EfficiencyFactor: f(1)},
	}))
	require.NoError(t, s.ReplaceFilaments(ctx, other.ID, []model.Filament{
		{Material: "PLA", Brand: "Generic", Price: f(1000), StockG: 1000, EfficiencyFactor: f(1)},
	}))

	stock := func(companyID, material string) float64 {
		var fil model.Filament
		require.NoError(t, gormDB.Where("company_id = ? AND material = ?", companyID, material).First(&fil).Error)
		return fil.StockG
	}

	t.Run("subtracts grams", func(t *testing.T) {
		updated, err := s.DecrementStock(ctx, company.ID, "PLA", "Generic", 50)
		require.NoError(t, err)
		assert.True(t, updated)
		assert.Equal(t, 950.0, stock(company.ID, "PLA"))
		assert.Equal(t, 500.0, stock(company.ID, "PETG"))
		assert.Equal(t, 1000.0, stock(other.ID, "PLA"), "other tenant untouched")
	})

	t.Run("unknown pair leaves rows unchanged", func(t *testing.T) {
		updated, err := s.DecrementStock(ctx, company.ID, "ABS", "Generic", 50)
		require.NoError(t, err)
		assert.False(t, updated)
		assert.Equal(t, 950.0, stock(company.ID, "PLA"))
		assert.Equal(t, 500.0, stock(company.ID, "PETG"))
	})

	t.Run("goes negative", func(t *testing.T) {
		updated, err := s.DecrementStock(ctx, company.ID, "PETG", "Generic", 800)
		require.NoError(t, err)
		assert.True(t, updated)
		assert.Equal(t, -300.0, stock(company.ID, "PETG"))
	})

	t.Run("concurrent decrements are not lost", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.DecrementStock(ctx, other.ID, "PLA", "Generic", 10)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, 800.0, stock(other.ID, "PLA"))
	})
}

func TestGormStore_Accounts(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	company, admin := seedCompany(t, s, "Acme", "boss@acme.test")
	assert.NotEmpty(t, company.ID)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.Equal(t, company.ID, admin.CompanyIDValue())

	t.Run("duplicate company name ignores case", func(t *testing.T) {
		_, err := s.RegisterCompany(ctx, "ACME", &model.User{Username: "x", Email: "x@x.test", PasswordHash: "x"})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("duplicate email ignores case", func(t *testing.T) {
		_, err := s.RegisterCompany(ctx, "Fresh", &model.User{Username: "x", Email: "BOSS@acme.test", PasswordHash: "x"})
		assert.ErrorIs(t, err, ErrConflict)

		companies, err := s.ListCompanies(ctx)
		require.NoError(t, err)
		assert.Len(t, companies, 1, "failed registration must not leave a company behind")
	})

	t.Run("username unique per company", func(t *testing.T) {
		err := s.CreateUser(ctx, &model.User{Username: "Admin", Email: "other@acme.test", PasswordHash: "x", CompanyID: &company.ID, Role: model.RoleUser})
		assert.ErrorIs(t, err, ErrConflict)

		// Same username under another company is fine.
		second, _ := seedCompany(t, s, "Second", "boss@second.test")
		assert.NotEqual(t, company.ID, second.ID)
	})

	t.Run("login by email or username", func(t *testing.T) {
		u, err := s.FindUserByLogin(ctx, "BOSS@ACME.TEST")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, u.ID)

		_, err = s.FindUserByLogin(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update profile", func(t *testing.T) {
		u, err := s.GetUser(ctx, admin.ID)
		require.NoError(t, err)
		u.PhoneNumber = "555-0100"
		dob := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)
		u.DOB = &dob
		require.NoError(t, s.UpdateUser(ctx, u))

		again, err := s.GetUser(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, "555-0100", again.PhoneNumber)
		require.NotNil(t, again.DOB)
		assert.Equal(t, "1990-01-02", again.DOB.Format("2006-01-02"))
	})

	t.Run("remember tokens", func(t *testing.T) {
		tok := &model.AuthToken{UserID: admin.ID, TokenHash: "abc", ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, s.CreateAuthToken(ctx, tok))

		found, err := s.FindAuthToken(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, found.User.ID)

		require.NoError(t, s.DeleteAuthToken(ctx, "abc"))
		_, err = s.FindAuthToken(ctx, "abc")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGormStore_Catalog(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	company, _ := seedCompany(t, s, "Acme", "boss@acme.test")
	other, _ := seedCompany(t, s, "Other", "boss@other.test")

	require.NoError(t, s.ReplacePrinters(ctx, company.ID, []model.Printer{
		{ID: "p1", Brand: "Bambu Lab", Model: "P1S", SetupCost: f(70000)},
		{ID: "p2", Brand: "Prusa", Model: "MK4"},
	}))
	require.NoError(t, s.ReplacePrinters(ctx, other.ID, []model.Printer{{ID: "p1", Brand: "Creality", Model: "K1"}}))

	printers, err := s.ListPrinters(ctx, company.ID)
	require.NoError(t, err)
	assert.Len(t, printers, 2)

	p, err := s.GetPrinter(ctx, other.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Creality", p.Brand, "printer ids are scoped per company")

	_, err = s.GetPrinter(ctx, company.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.ReplacePrinters(ctx, company.ID, []model.Printer{{ID: "p3", Brand: "Voron", Model: "2.4"}}))
	printers, err = s.ListPrinters(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, printers, 1)
	assert.Equal(t, "p3", printers[0].ID)

	require.NoError(t, s.ReplaceFilaments(ctx, company.ID, []model.Filament{
		{Material: "PLA", Brand: "Generic", Price: f(1200)},
		{Material: "PLA", Brand: "Sunlu", Price: f(1100)},
		{Material: "PETG", Brand: "Generic", Price: f(1400)},
	}))
	materials, err := s.ListMaterials(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"PETG", "PLA"}, materials)

	fil, err := s.GetFilament(ctx, company.ID, "PLA", "Sunlu")
	require.NoError(t, err)
	assert.Equal(t, 1100.0, *fil.Price)

	_, err = s.GetFilament(ctx, other.ID, "PLA", "Sunlu")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.ReplaceFilaments(ctx, company.ID, []model.Filament{
		{Material: "PLA", Brand: "Generic"},
		{Material: "PLA", Brand: "Generic"},
	})
	assert.ErrorIs(t, err, ErrConflict)
	filaments, err := s.ListFilaments(ctx, company.ID)
	require.NoError(t, err)
	assert.Len(t, filaments, 3, "failed replace rolls back")
}

func TestGormStore_JobsAndLedger(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	company, admin := seedCompany(t, s, "Acme", "boss@acme.test")
	other, _ := seedCompany(t, s, "Other", "boss@other.test")

	job := &model.ProcessingJob{ID: "job-1", CompanyID: company.ID, UserID: admin.ID, OriginalFilename: "a.jpg", Status: model.JobQueued}
	require.NoError(t, s.CreateJob(ctx, job))

	job.Status = model.JobFailed
	job.LastStep = "db_lookup"
	require.NoError(t, s.SaveJob(ctx, job))

	loaded, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, loaded.Status)
	assert.Equal(t, "db_lookup", loaded.LastStep)

	_, err = s.GetJob(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.CreateJob(ctx, &model.ProcessingJob{ID: "job-2", CompanyID: company.ID, OriginalFilename: "b.jpg", Status: model.JobQueued}))
	require.NoError(t, s.CreateJob(ctx, &model.ProcessingJob{ID: "job-3", CompanyID: other.ID, OriginalFilename: "c.jpg", Status: model.JobRunning}))
	unfinished, err := s.ListUnfinishedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, unfinished, 2)
	assert.ElementsMatch(t, []string{"job-2", "job-3"}, []string{unfinished[0].ID, unfinished[1].ID})

	jan := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendLedgerEntry(ctx, &model.LedgerEntry{JobID: "j-a", CompanyID: company.ID, Date: jan, Filename: "a"}))
	require.NoError(t, s.AppendLedgerEntry(ctx, &model.LedgerEntry{JobID: "j-b", CompanyID: company.ID, Date: feb, Filename: "b"}))
	require.NoError(t, s.AppendLedgerEntry(ctx, &model.LedgerEntry{JobID: "j-c", CompanyID: other.ID, Date: jan, Filename: "c"}))

	// Same job again is ignored.
	require.NoError(t, s.AppendLedgerEntry(ctx, &model.LedgerEntry{JobID: "j-a", CompanyID: company.ID, Date: jan, Filename: "dup"}))

	all, err := s.ListLedgerEntries(ctx, LedgerQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := s.ListLedgerEntries(ctx, LedgerQuery{CompanyID: company.ID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "a", mine[0].Filename)

	january, err := s.ListLedgerEntries(ctx, LedgerQuery{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, january, 2)
}

func TestGormStore_Subscriptions(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	sub := &model.PushSubscription{Endpoint: "https://push.example/1", UserID: "u1", P256DH: "k", Auth: "a"}
	require.NoError(t, s.SaveSubscription(ctx, sub))

	rebound := &model.PushSubscription{Endpoint: "https://push.example/1", UserID: "u2", P256DH: "k2", Auth: "a2"}
	require.NoError(t, s.SaveSubscription(ctx, rebound))

	_, err := s.GetSubscription(ctx, "u1", sub.Endpoint)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetSubscription(ctx, "u2", sub.Endpoint)
	require.NoError(t, err)
	assert.Equal(t, "k2", got.P256DH)

	subs, err := s.ListSubscriptions(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	require.NoError(t, s.DeleteSubscriptionByEndpoint(ctx, sub.Endpoint))
	subs, err = s.ListSubscriptions(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
