// Package testutil builds in-memory databases and fixtures for tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/pkg/db"
	"github.com/Skotchmaster/foodshop/pkg/hash"
)

const Password = "password1"

func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	ctx := context.Background()
	gdb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.Migrate(ctx, gdb); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

var (
	hashOnce     sync.Once
	passwordHash string
)

func hashed(t testing.TB) string {
	hashOnce.Do(func() {
		h, err := hash.HashPassword(Password)
		if err != nil {
			panic(err)
		}
		passwordHash = h
	})
	return passwordHash
}

// User inserts a user; suppliers and customers are approved unless
// approved is false.
func User(t testing.TB, gdb *gorm.DB, name string, role models.Role, approved bool) *models.User {
	t.Helper()

	u := &models.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: hashed(t),
		Role:         role,
		Approved:     approved,
	}
	if err := gdb.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func SuperAdmin(t testing.TB, gdb *gorm.DB, name string) *models.User {
	t.Helper()

	u := User(t, gdb, name, models.RoleAdmin, true)
	if err := gdb.Model(u).Update("super_admin", true).Error; err != nil {
		t.Fatalf("promote %s: %v", name, err)
	}
	u.SuperAdmin = true
	return u
}

func Product(t testing.TB, gdb *gorm.DB, supplier *models.User, name string, price int64) *models.Product {
	t.Helper()

	p := &models.Product{
		SupplierID:  supplier.ID,
		Name:        name,
		Description: name + " description",
		Price:       decimal.NewFromInt(price),
	}
	if err := gdb.Create(p).Error; err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}
