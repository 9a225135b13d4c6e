package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/stockapi-core/internal/infrastructure/database"
	"github.com/nerrad567/stockapi-core/internal/user"
	"github.com/nerrad567/stockapi-core/migrations"
)

func testManager(t *testing.T) *database.Manager {
	t.Helper()

	m, err := database.New("sqlite:///:memory:")
	require.NoError(t, err)
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(m.Disconnect)
	require.NoError(t, m.Migrate(context.Background(), migrations.Schema(), false))
	return m
}

func createUser(t *testing.T, m *database.Manager, username string) *user.User {
	t.Helper()

	var u *user.User
	err := m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		var err error
		u, err = user.NewRepository(s).Create(ctx, username, "hash", false)
		return err
	})
	require.NoError(t, err)
	return u
}

func quote(symbol string) Details {
	return Details{
		Symbol:   symbol,
		Name:     "APPLE",
		Datetime: time.Date(2026, 10, 16, 22, 0, 0, 0, time.UTC),
		Open:     decimal.RequireFromString("189.51"),
		High:     decimal.RequireFromString("191.08"),
		Low:      decimal.RequireFromString("188.90"),
		Close:    decimal.RequireFromString("190.64123"),
		Volume:   52_164_500,
	}
}

func record(t *testing.T, m *database.Manager, userID int64, symbols ...string) {
	t.Helper()

	err := m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		repo := NewRepository(s)
		for _, sym := range symbols {
			if _, err := repo.Create(ctx, quote(sym), userID); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRepository_CreateAndHistory(t *testing.T) {
	m := testManager(t)
	alice := createUser(t, m, "alice")
	bob := createUser(t, m, "bob")

	record(t, m, alice.ID, "AAPL.US", "MSFT.US")
	record(t, m, bob.ID, "TSLA.US")

	var history []Stock
	err := m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		var err error
		history, err = NewRepository(s).History(ctx, alice.ID)
		return err
	})
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, "msft.us", history[0].Symbol, "newest first")
	assert.Equal(t, "aapl.us", history[1].Symbol)

	got := history[1]
	assert.Equal(t, alice.ID, got.UserID)
	assert.Equal(t, "APPLE", got.Name)
	assert.True(t, got.Close.Equal(decimal.RequireFromString("190.64123")), "Close = %s", got.Close)
	assert.True(t, got.Low.Equal(decimal.RequireFromString("188.9")), "Low = %s", got.Low)
	assert.Equal(t, int64(52_164_500), got.Volume)
	assert.True(t, got.StockDatetime.Equal(quote("x").Datetime), "StockDatetime = %v", got.StockDatetime)
	assert.NotEmpty(t, got.UUID)
}

func TestRepository_HistoryEmpty(t *testing.T) {
	m := testManager(t)
	alice := createUser(t, m, "alice")

	err := m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		history, err := NewRepository(s).History(ctx, alice.ID)
		if err != nil {
			return err
		}
		assert.NotNil(t, history)
		assert.Empty(t, history)
		return nil
	})
	require.NoError(t, err)
}

func TestRepository_HistoryWithOwner(t *testing.T) {
	m := testManager(t)
	alice := createUser(t, m, "alice")
	record(t, m, alice.ID, "AAPL.US")

	err := m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		owned, err := NewRepository(s).HistoryWithOwner(ctx, alice.ID)
		if err != nil {
			return err
		}
		require.Len(t, owned, 1)
		assert.Equal(t, "alice", owned[0].Username)
		assert.Equal(t, "aapl.us", owned[0].Symbol)
		return nil
	})
	require.NoError(t, err)
}

func TestRepository_MostRequested(t *testing.T) {
	m := testManager(t)
	alice := createUser(t, m, "alice")
	bob := createUser(t, m, "bob")

	record(t, m, alice.ID, "AAPL.US", "AAPL.US", "MSFT.US", "TSLA.US", "IBM.US", "AMZN.US", "GOOG.US")
	record(t, m, bob.ID, "aapl.us", "MSFT.US")

	var stats []Stat
	err := m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		var err error
		stats, err = NewRepository(s).MostRequested(ctx, 0)
		return err
	})
	require.NoError(t, err)

	require.Len(t, stats, DefaultMostRequested)
	assert.Equal(t, Stat{Stock: "aapl.us", TimesRequested: 3}, stats[0])
	assert.Equal(t, Stat{Stock: "msft.us", TimesRequested: 2}, stats[1])
	// Single lookups are ordered alphabetically.
	assert.Equal(t, "amzn.us", stats[2].Stock)
	assert.Equal(t, "goog.us", stats[3].Stock)
	assert.Equal(t, "ibm.us", stats[4].Stock)

	err = m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		var err error
		stats, err = NewRepository(s).MostRequested(ctx, 1)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []Stat{{Stock: "aapl.us", TimesRequested: 3}}, stats)
}

func TestRepository_CreateUnknownUser(t *testing.T) {
	m := testManager(t)

	err := m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		_, err := NewRepository(s).Create(ctx, quote("AAPL.US"), 999)
		return err
	})
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestRepository_DeleteUserCascades(t *testing.T) {
	m := testManager(t)
	alice := createUser(t, m, "alice")
	record(t, m, alice.ID, "AAPL.US", "MSFT.US")

	err := m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		return user.NewRepository(s).Delete(ctx, alice.ID)
	})
	require.NoError(t, err)

	err = m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		var n int
		if err := s.GetContext(ctx, &n, "SELECT COUNT(*) FROM stocks"); err != nil {
			return err
		}
		assert.Equal(t, 0, n, "stocks must be deleted with their owner")
		return nil
	})
	require.NoError(t, err)
}

func TestRepository_FailedUnitOfWorkLeavesNoStocks(t *testing.T) {
	m := testManager(t)
	alice := createUser(t, m, "alice")
	errUpstream := errors.New("quote service unavailable")

	err := m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		if _, err := NewRepository(s).Create(ctx, quote("AAPL.US"), alice.ID); err != nil {
			return err
		}
		return errUpstream
	})
	require.Equal(t, errUpstream, err)

	err = m.WithSession(context.Background(), func(ctx context.Context, s *database.Session) error {
		history, err := NewRepository(s).History(ctx, alice.ID)
		if err != nil {
			return err
		}
		assert.Empty(t, history)
		return nil
	})
	require.NoError(t, err)
}

func TestDetails_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Details)
		wantErr bool
	}{
		{"valid", func(*Details) {}, false},
		{"empty symbol", func(d *Details) { d.Symbol = "" }, true},
		{"long symbol", func(d *Details) { d.Symbol = "ABCDEFGHIJK" }, true},
		{"long name", func(d *Details) { d.Name = "A VERY LONG COMPANY NAME INCORPORATED" }, true},
		{"zero datetime", func(d *Details) { d.Datetime = time.Time{} }, true},
		{"negative price", func(d *Details) { d.Open = decimal.NewFromInt(-1) }, true},
		{"high below low", func(d *Details) { d.High = decimal.NewFromInt(1) }, true},
		{"negative volume", func(d *Details) { d.Volume = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := quote("AAPL.US")
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDetails)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
