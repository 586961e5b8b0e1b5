package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"printcost-backend/config"
	"printcost-backend/internal/auth"
	"printcost-backend/internal/model"
)

func TestDialectorFor(t *testing.T) {
	testCases := []struct {
		dsn        string
		wantSQLite bool
		wantName   string
	}{
		{dsn: "postgres://u:p@localhost:5432/printcost", wantSQLite: false, wantName: "postgres"},
		{dsn: "postgresql://localhost/printcost", wantSQLite: false, wantName: "postgres"},
		{dsn: "host=localhost user=u dbname=printcost sslmode=disable", wantSQLite: false, wantName: "postgres"},
		{dsn: "./printcost.db", wantSQLite: true, wantName: "sqlite"},
		{dsn: "sqlite://data/printcost.db", wantSQLite: true, wantName: "sqlite"},
	}
	for _, tc := range testCases {
		t.Run(tc.dsn, func(t *testing.T) {
			d, isSQLite := dialectorFor(tc.dsn)
			assert.Equal(t, tc.wantSQLite, isSQLite)
			assert.Equal(t, tc.wantName, d.Name())
		})
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.DatabaseConfig{DSN: filepath.Join(t.TempDir(), "test.db")}
	gormDB, err := Init(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})
	return gormDB
}

func TestInit_Migrates(t *testing.T) {
	gormDB := openTestDB(t)
	for _, m := range Models {
		assert.True(t, gormDB.Migrator().HasTable(m), "%T", m)
	}
}

func TestSeed_IsIdempotent(t *testing.T) {
	gormDB := openTestDB(t)
	cfg := &config.DatabaseConfig{
		SeedCompany:       "Default Workshop",
		SeedAdminUsername: "admin",
		SeedAdminEmail:    "admin@workshop.local",
		SeedAdminPassword: "changeme123",
	}

	for i := 0; i < 3; i++ {
		stats, err := Seed(context.Background(), gormDB, cfg, zap.NewNop())
		require.NoError(t, err, "iteration %d", i)
		if i == 0 {
			assert.Equal(t, 5, stats.Inserts)
		} else {
			assert.Equal(t, 0, stats.Inserts, "iteration %d", i)
		}
	}

	var company model.Company
	require.NoError(t, gormDB.Where("name = ?", "Default Workshop").First(&company).Error)

	var admin model.User
	require.NoError(t, gormDB.Where("email = ?", "admin@workshop.local").First(&admin).Error)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.Equal(t, company.ID, admin.CompanyIDValue())
	assert.True(t, auth.CheckPassword(admin.PasswordHash, "changeme123"))

	var printers []model.Printer
	require.NoError(t, gormDB.Where("company_id = ?", company.ID).Find(&printers).Error)
	require.Len(t, printers, 1)
	assert.Equal(t, "Bambu Lab", printers[0].Brand)
	assert.Equal(t, 70000.0, *printers[0].SetupCost)

	var filaments []model.Filament
	require.NoError(t, gormDB.Where("company_id = ?", company.ID).Order("material").Find(&filaments).Error)
	require.Len(t, filaments, 2)
	assert.Equal(t, "PETG", filaments[0].Material)
	assert.Equal(t, "PLA", filaments[1].Material)
	assert.Equal(t, 1000.0, filaments[1].StockG)
}

func TestSeed_SkipsAdminWithoutPassword(t *testing.T) {
	gormDB := openTestDB(t)
	cfg := &config.DatabaseConfig{SeedCompany: "Workshop", SeedAdminUsername: "admin", SeedAdminEmail: "a@b.c"}

	stats, err := Seed(context.Background(), gormDB, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Inserts)

	var n int64
	gormDB.Model(&model.User{}).Count(&n)
	assert.Equal(t, int64(0), n)
}
