package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/policy"
	"github.com/Skotchmaster/foodshop/internal/testutil"
)

func TestAddItemAccumulatesAndClamps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sup := testutil.User(t, f.db, "kitchen", models.RoleSupplier, true)
	soup := testutil.Product(t, f.db, sup, "soup", 5)
	sess := sessionOf(testutil.User(t, f.db, "ann", models.RoleCustomer, true))

	n, err := f.cart.AddItem(ctx, sess, soup.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.cart.AddItem(ctx, sess, soup.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = f.cart.AddItem(ctx, sess, soup.ID, -4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	view, err := f.cart.View(ctx, sess)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, sup.ID, view.SupplierID)
	assert.Equal(t, "kitchen", view.SupplierName)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(20)))
}

func TestAddItemPreconditions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sup := testutil.User(t, f.db, "kitchen", models.RoleSupplier, true)
	pending := testutil.User(t, f.db, "newbie", models.RoleSupplier, false)
	soup := testutil.Product(t, f.db, sup, "soup", 5)
	hidden := testutil.Product(t, f.db, pending, "hidden", 5)

	admin := sessionOf(testutil.User(t, f.db, "boss", models.RoleAdmin, true))
	cust := sessionOf(testutil.User(t, f.db, "ann", models.RoleCustomer, true))

	tests := []struct {
		name    string
		sess    *policy.Session
		product uint
		wantErr error
	}{
		{name: "anonymous", sess: nil, product: soup.ID, wantErr: policy.ErrNotAuthenticated},
		{name: "supplier", sess: sessionOf(sup), product: soup.ID, wantErr: policy.ErrRoleNotAllowed},
		{name: "missing product", sess: cust, product: 999, wantErr: ErrProductNotFound},
		{name: "unapproved supplier product", sess: cust, product: hidden.ID, wantErr: ErrProductNotFound},
		{name: "admin may shop", sess: admin, product: soup.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.cart.AddItem(ctx, tt.sess, tt.product, 1)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMixedSupplierLeavesCartUnchanged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	first := testutil.User(t, f.db, "first", models.RoleSupplier, true)
	second := testutil.User(t, f.db, "second", models.RoleSupplier, true)
	a := testutil.Product(t, f.db, first, "a", 3)
	b := testutil.Product(t, f.db, second, "b", 4)
	sess := sessionOf(testutil.User(t, f.db, "ann", models.RoleCustomer, true))

	_, err := f.cart.AddItem(ctx, sess, a.ID, 2)
	require.NoError(t, err)
	before, err := f.carts.Load(ctx, sess.Token)
	require.NoError(t, err)

	_, err = f.cart.AddItem(ctx, sess, b.ID, 1)
	require.ErrorIs(t, err, ErrMixedSupplierCart)
	var mixed *MixedSupplierError
	require.ErrorAs(t, err, &mixed)
	assert.Equal(t, first.ID, mixed.SupplierID)
	assert.Equal(t, "first", mixed.SupplierName)

	after, err := f.carts.Load(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Emptying the cart frees it for another supplier.
	_, err = f.cart.RemoveItem(ctx, sess, a.ID)
	require.NoError(t, err)
	n, err := f.cart.AddItem(ctx, sess, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateQuantity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sup := testutil.User(t, f.db, "kitchen", models.RoleSupplier, true)
	soup := testutil.Product(t, f.db, sup, "soup", 5)
	bread := testutil.Product(t, f.db, sup, "bread", 2)
	sess := sessionOf(testutil.User(t, f.db, "ann", models.RoleCustomer, true))

	_, err := f.cart.AddItem(ctx, sess, soup.ID, 1)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, sess, bread.ID, 1)
	require.NoError(t, err)

	total, err := f.cart.UpdateQuantity(ctx, sess, soup.ID, 3)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(17)), total.String())

	_, err = f.cart.UpdateQuantity(ctx, sess, soup.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = f.cart.UpdateQuantity(ctx, sess, 999, 2)
	assert.ErrorIs(t, err, ErrProductNotInCart)
	_, err = f.cart.UpdateQuantity(ctx, nil, soup.ID, 2)
	assert.ErrorIs(t, err, policy.ErrNotAuthenticated)

	n, err := f.cart.Count(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRemoveAndClearAreIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sup := testutil.User(t, f.db, "kitchen", models.RoleSupplier, true)
	soup := testutil.Product(t, f.db, sup, "soup", 5)
	sess := sessionOf(testutil.User(t, f.db, "ann", models.RoleCustomer, true))

	n, err := f.cart.RemoveItem(ctx, sess, soup.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, f.cart.Clear(ctx, sess))
	require.NoError(t, f.cart.Clear(ctx, nil))
	_, err = f.cart.RemoveItem(ctx, nil, soup.ID)
	assert.ErrorIs(t, err, policy.ErrNotAuthenticated)

	_, err = f.cart.AddItem(ctx, sess, soup.ID, 2)
	require.NoError(t, err)
	require.NoError(t, f.cart.Clear(ctx, sess))
	require.NoError(t, f.cart.Clear(ctx, sess))

	view, err := f.cart.View(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.Count)
	assert.Zero(t, view.SupplierID)
	assert.True(t, view.Total.IsZero())
}

func TestComputeItemsUsesLivePricesAndDropsMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sup := testutil.User(t, f.db, "kitchen", models.RoleSupplier, true)
	soup := testutil.Product(t, f.db, sup, "soup", 5)
	bread := testutil.Product(t, f.db, sup, "bread", 2)
	sess := sessionOf(testutil.User(t, f.db, "ann", models.RoleCustomer, true))

	_, err := f.cart.AddItem(ctx, sess, soup.ID, 2)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, sess, bread.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(soup).Update("price", decimal.NewFromInt(7)).Error)
	require.NoError(t, f.db.Delete(bread).Error)

	view, err := f.cart.View(ctx, sess)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, soup.ID, view.Items[0].ProductID)
	assert.True(t, view.Items[0].Subtotal.Equal(decimal.NewFromInt(14)))
	assert.True(t, view.Total.Equal(decimal.NewFromInt(14)))
	assert.Equal(t, 2, view.Count)
}

func TestAddItemReleasesCartWhoseProductsVanished(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		vanish func(t *testing.T, f *fixture, sup *models.User, p *models.Product)
	}{
		{
			name: "product deleted",
			vanish: func(t *testing.T, f *fixture, _ *models.User, p *models.Product) {
				require.NoError(t, f.db.Delete(p).Error)
			},
		},
		{
			name: "supplier rejected",
			vanish: func(t *testing.T, f *fixture, sup *models.User, _ *models.Product) {
				require.NoError(t, f.repo.SetSupplierApproval(context.Background(), sup.ID, false))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			ctx := context.Background()
			gone := testutil.User(t, f.db, "gone", models.RoleSupplier, true)
			other := testutil.User(t, f.db, "other", models.RoleSupplier, true)
			pizza := testutil.Product(t, f.db, gone, "pizza", 9)
			salad := testutil.Product(t, f.db, other, "salad", 4)
			sess := sessionOf(testutil.User(t, f.db, "ann", models.RoleCustomer, true))

			_, err := f.cart.AddItem(ctx, sess, pizza.ID, 2)
			require.NoError(t, err)
			tt.vanish(t, f, gone, pizza)

			view, err := f.cart.View(ctx, sess)
			require.NoError(t, err)
			assert.Empty(t, view.Items)
			assert.Empty(t, view.SupplierName)

			n, err := f.cart.AddItem(ctx, sess, salad.ID, 1)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			stored, err := f.carts.Load(ctx, sess.Token)
			require.NoError(t, err)
			assert.Equal(t, other.ID, stored.SupplierID)
			assert.Equal(t, "other", stored.SupplierName)
			assert.Equal(t, map[uint]int{salad.ID: 1}, stored.Items)
		})
	}
}

func TestAddItemKeepsCartWhileAnyProductIsLive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	first := testutil.User(t, f.db, "first", models.RoleSupplier, true)
	other := testutil.User(t, f.db, "other", models.RoleSupplier, true)
	soup := testutil.Product(t, f.db, first, "soup", 5)
	bread := testutil.Product(t, f.db, first, "bread", 2)
	salad := testutil.Product(t, f.db, other, "salad", 4)
	sess := sessionOf(testutil.User(t, f.db, "ann", models.RoleCustomer, true))

	_, err := f.cart.AddItem(ctx, sess, soup.ID, 1)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, sess, bread.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.db.Delete(soup).Error)

	_, err = f.cart.AddItem(ctx, sess, salad.ID, 1)
	var mixed *MixedSupplierError
	require.ErrorAs(t, err, &mixed)
	assert.Equal(t, "first", mixed.SupplierName)
}

func TestCartMutationsRequireBuyerRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sup := testutil.User(t, f.db, "kitchen", models.RoleSupplier, true)
	soup := testutil.Product(t, f.db, sup, "soup", 5)
	ann := testutil.User(t, f.db, "ann", models.RoleCustomer, true)
	sess := sessionOf(ann)

	_, err := f.cart.AddItem(ctx, sess, soup.ID, 2)
	require.NoError(t, err)

	// Same session after the account was demoted to supplier.
	demoted := *sess
	demoted.Role = models.RoleSupplier

	_, err = f.cart.UpdateQuantity(ctx, &demoted, soup.ID, 5)
	assert.ErrorIs(t, err, policy.ErrRoleNotAllowed)
	_, err = f.cart.RemoveItem(ctx, &demoted, soup.ID)
	assert.ErrorIs(t, err, policy.ErrRoleNotAllowed)
	assert.ErrorIs(t, f.cart.Clear(ctx, &demoted), policy.ErrRoleNotAllowed)

	n, err := f.cart.Count(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
