// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/seed"
)

// NewDB returns a migrated, seeded in-memory SQLite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(0)", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(models.All()...))
	_, err = seed.EnsureCategories(gdb)
	require.NoError(t, err)
	return gdb
}

func Logger() *zap.Logger { return zap.NewNop() }

// CreateUser inserts a user with a pre-hashed dummy password.
func CreateUser(t *testing.T, gdb *gorm.DB, name, city string) *models.User {
	t.Helper()
	u := &models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Password: "x",
		Phone:    "0800000000",
		City:     city,
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// CreateWorker inserts an available worker in the named category with one
// matching skill.
func CreateWorker(t *testing.T, gdb *gorm.DB, name, city, category string) *models.Worker {
	t.Helper()
	var cat models.Category
	require.NoError(t, gdb.Where("name = ?", category).First(&cat).Error)
	w := &models.Worker{
		Name:            name,
		Email:           fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Password:        "x",
		Phone:           "0811111111",
		City:            city,
		SkillCategoryID: &cat.ID,
		Skills: []models.WorkerSkill{{
			ID:        uuid.NewString(),
			SkillName: cat.Name,
		}},
	}
	require.NoError(t, gdb.Create(w).Error)
	w.SkillCategory = &cat
	return w
}

// CreateRequest inserts a service request in the given status.
func CreateRequest(t *testing.T, gdb *gorm.DB, u *models.User, w *models.Worker, status models.RequestStatus) *models.ServiceRequest {
	t.Helper()
	r := &models.ServiceRequest{
		UserID:      u.ID,
		WorkerID:    w.ID,
		Title:       "Fix sink",
		Description: "Kitchen sink is leaking",
		Category:    "Plumber",
		Location:    u.City,
		Status:      status,
	}
	require.NoError(t, gdb.Create(r).Error)
	return r
}
