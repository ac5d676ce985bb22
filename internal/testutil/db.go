// Package testutil wires in-memory infrastructure for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront-system/internal/database"
	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
)

// NewDB opens a migrated in-memory SQLite database. A single connection keeps
// the whole database alive for the duration of the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, email string, role domain.Role) models.User {
	t.Helper()
	user := models.User{
		Username:  email,
		Email:     email,
		Password:  "not-a-hash",
		Firstname: "Test",
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func CreateCategory(t *testing.T, db *gorm.DB, slug string) models.Category {
	t.Helper()
	category := models.Category{Name: slug, Slug: slug}
	require.NoError(t, db.Create(&category).Error)
	return category
}

// CreateItem stores an active motopart with the given price, discount percent and stock.
func CreateItem(t *testing.T, db *gorm.DB, categoryID int64, slug, price, discount string, stock int32) models.CatalogItem {
	t.Helper()
	item := models.CatalogItem{
		Kind:       domain.KindMotopart,
		Name:       slug,
		Slug:       slug,
		Price:      decimal.RequireFromString(price),
		Discount:   decimal.RequireFromString(discount),
		Stock:      stock,
		Status:     domain.ItemActive,
		CategoryID: categoryID,
		Year:       2020,
	}
	require.NoError(t, db.Create(&item).Error)
	return item
}
