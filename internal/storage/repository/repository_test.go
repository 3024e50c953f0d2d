package repository_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/vpn-subscription/internal/migrations"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
	"github.com/magabrotheeeer/vpn-subscription/internal/paymentprovider"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/device"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/payment"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/subscription"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage/repository"
)

var now = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// nopCache кэш, который всегда промахивается.
type nopCache struct{}

func (nopCache) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (nopCache) Set(context.Context, string, any, time.Duration) error { return nil }
func (nopCache) Invalidate(context.Context, string) error              { return nil }

func setupStorage(t *testing.T) *repository.Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := repository.New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, migrations.Run(st.DB))
	return st
}

func createUser(t *testing.T, st *repository.Storage, name string) int64 {
	t.Helper()
	id, err := st.CreateUser(context.Background(), models.User{
		Username:      name,
		Email:         name + "@example.com",
		PasswordHash:  "hash",
		EmailVerified: true,
	})
	require.NoError(t, err)
	return id
}

func newSubscriptions(st *repository.Storage) *subscription.Service {
	return subscription.New(st, nopCache{}, clockwork.NewFakeClockAt(now), newNoopLogger(),
		subscription.Durations{TrialDays: 3, PaidDays: 30}, time.Minute)
}

func TestRenew_StacksAndKeepsOneActivePeriod(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	userID := createUser(t, st, "alice")
	subs := newSubscriptions(st)

	first, err := subs.ExtendPaid(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), first.EndDate)

	second, err := subs.ExtendPaid(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.EndDate.Add(30*24*time.Hour), second.EndDate)
	assert.Equal(t, now, second.StartDate)

	active, err := st.GetActivePeriods(ctx, userID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	ent, err := subs.Evaluate(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ent.CanUse)
	assert.True(t, ent.IsPaid)
	assert.False(t, ent.IsTrial)
}

func TestStartTrial_OncePerUser(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	userID := createUser(t, st, "bob")
	subs := newSubscriptions(st)

	_, err := subs.StartTrial(ctx, userID)
	require.NoError(t, err)

	_, err = subs.StartTrial(ctx, userID)
	assert.ErrorIs(t, err, subscription.ErrTrialAlreadyUsed)

	periods, err := st.ListPeriods(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

func TestInTx_RollbackOnError(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	userID := createUser(t, st, "carol")
	boom := errors.New("boom")

	err := st.InTx(ctx, func(ctx context.Context) error {
		if _, err := st.InsertPeriod(ctx, models.Period{
			UserID: userID, Kind: models.KindPaid, Status: models.StatusActive,
			StartDate: now, EndDate: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	periods, err := st.ListPeriods(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestRegisterDevice_ConcurrentRespectsLimit(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	userID := createUser(t, st, "dave")
	devices := device.New(st, clockwork.NewFakeClockAt(now), newNoopLogger(), device.Limits{Base: 3, Elevated: 6})

	const attempts = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		limited int
	)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := devices.RegisterDevice(ctx, userID, models.Device{Token: "tok-" + strconv.Itoa(i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, device.ErrDeviceLimitExceeded):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, attempts-3, limited)

	count, err := st.CountDevices(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRegisterDevice_TokenOfAnotherUser(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	first := createUser(t, st, "erin")
	second := createUser(t, st, "frank")
	devices := device.New(st, clockwork.NewFakeClockAt(now), newNoopLogger(), device.Limits{Base: 3, Elevated: 6})

	_, err := devices.RegisterDevice(ctx, first, models.Device{Token: "shared"})
	require.NoError(t, err)

	_, err = devices.RegisterDevice(ctx, second, models.Device{Token: "shared"})
	assert.ErrorIs(t, err, device.ErrDeviceTokenTaken)
}

type nopGateway struct{}

func (nopGateway) CreatePayment(context.Context, paymentprovider.CreatePaymentRequest) (*paymentprovider.CreatePaymentResponse, error) {
	return nil, errors.New("not used")
}

func TestHandleTerminal_ConcurrentDeliveriesRenewOnce(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	userID := createUser(t, st, "grace")
	subs := newSubscriptions(st)
	payments := payment.New(st, nopGateway{}, subs, clockwork.NewFakeClockAt(now), newNoopLogger(), payment.Options{})

	_, err := st.CreatePayment(ctx, models.Payment{
		UserID: userID, Amount: "200.00", Currency: "RUB", PaymentID: "pay-1",
		Status: models.PaymentPending, Method: "sbp", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	meta := map[string]string{"user_id": strconv.FormatInt(userID, 10)}

	const deliveries = 5
	outcomes := make(chan payment.Outcome, deliveries)
	var wg sync.WaitGroup
	for range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := payments.HandleTerminal(ctx, "pay-1", models.PaymentSucceeded, meta)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	applied := 0
	for o := range outcomes {
		if o == payment.OutcomeApplied {
			applied++
		}
	}
	assert.Equal(t, 1, applied)

	periods, err := st.ListPeriods(ctx, userID)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, models.KindPaid, periods[0].Kind)

	_, err = payments.HandleTerminal(ctx, "pay-1", models.PaymentCanceled, meta)
	assert.ErrorIs(t, err, payment.ErrStatusConflict)

	_, err = payments.HandleTerminal(ctx, "pay-unknown", models.PaymentSucceeded, meta)
	assert.ErrorIs(t, err, payment.ErrPaymentNotFound)
}

func TestHandleTerminal_ForeignUserIDLeavesPaymentPending(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	owner := createUser(t, st, "heidi")
	other := createUser(t, st, "ivan")
	subs := newSubscriptions(st)
	payments := payment.New(st, nopGateway{}, subs, clockwork.NewFakeClockAt(now), newNoopLogger(), payment.Options{})

	_, err := st.CreatePayment(ctx, models.Payment{
		UserID: owner, Amount: "200.00", Currency: "RUB", PaymentID: "pay-2",
		Status: models.PaymentPending, Method: "sbp", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	_, err = payments.HandleTerminal(ctx, "pay-2", models.PaymentSucceeded,
		map[string]string{"user_id": strconv.FormatInt(other, 10)})
	assert.ErrorIs(t, err, payment.ErrOwnerMismatch)

	p, err := st.GetPayment(ctx, "pay-2")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, p.Status)

	periods, err := st.ListPeriods(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, periods)

	outcome, err := payments.HandleTerminal(ctx, "pay-2", models.PaymentSucceeded,
		map[string]string{"user_id": strconv.FormatInt(owner, 10)})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeApplied, outcome)
}

func TestExpireStalePeriods(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	userID := createUser(t, st, "heidi")

	_, err := st.InsertPeriod(ctx, models.Period{
		UserID: userID, Kind: models.KindTrial, Status: models.StatusActive,
		StartDate: now.Add(-72 * time.Hour), EndDate: now.Add(-time.Hour), CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	ids, err := st.ExpireStalePeriods(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []int64{userID}, ids)

	active, err := st.GetActivePeriods(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestGetUserByID_NotFound(t *testing.T) {
	st := setupStorage(t)
	_, err := st.GetUserByID(context.Background(), 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
