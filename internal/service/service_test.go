package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/foodshop/internal/cartstore"
	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/policy"
	"github.com/Skotchmaster/foodshop/internal/repo"
	"github.com/Skotchmaster/foodshop/internal/testutil"
	"gorm.io/gorm"
)

type recordedEvent struct {
	Topic string
	Key   string
	Event map[string]any
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) PublishEvent(_ context.Context, topic, key string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, _ := event.(map[string]any)
	r.events = append(r.events, recordedEvent{Topic: topic, Key: key, Event: m})
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, fmt.Sprint(e.Event["type"]))
	}
	return out
}

type fixture struct {
	db      *gorm.DB
	repo    *repo.GormRepo
	carts   *cartstore.MemoryStore
	events  *recorder
	auth    *AuthService
	catalog *CatalogService
	cart    *CartService
	orders  *OrderService
	admin   *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	r := repo.New(db)
	carts := cartstore.NewMemoryStore(time.Hour)
	events := &recorder{}
	catalog := &CatalogService{Repo: r, Events: events}
	cart := &CartService{Store: carts, Catalog: catalog}
	return &fixture{
		db:      db,
		repo:    r,
		carts:   carts,
		events:  events,
		catalog: catalog,
		cart:    cart,
		orders:  &OrderService{Repo: r, Cart: cart, Events: events},
		admin:   &AdminService{Repo: r, Events: events},
		auth: &AuthService{
			Repo:          r,
			Carts:         carts,
			Events:        events,
			JWTSecret:     []byte("access-secret"),
			RefreshSecret: []byte("refresh-secret"),
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    24 * time.Hour,
		},
	}
}

func sessionOf(u *models.User) *policy.Session {
	return &policy.Session{
		UserID:     u.ID,
		Role:       u.Role,
		Approved:   u.Approved,
		SuperAdmin: u.SuperAdmin,
		Token:      fmt.Sprintf("session-%d", u.ID),
	}
}

func (f *fixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
