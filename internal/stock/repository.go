package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/stockapi-core/internal/infrastructure/database"
)

const stockColumns = "s.id, s.uuid, s.symbol, s.name, s.stock_datetime, s.open, s.high, s.low, s.close, " +
	"s.volume, s.user_id, s.created_at, s.updated_at"

// Repository reads and writes stocks inside one session.
type Repository struct {
	s *database.Session
}

// NewRepository creates a stock repository bound to s.
func NewRepository(s *database.Session) *Repository {
	return &Repository{s: s}
}

// Create records a quote lookup for userID.
// Symbols are stored lower-cased so lookups of "AAPL.US" and "aapl.us" aggregate together.
func (r *Repository) Create(ctx context.Context, d Details, userID int64) (*Stock, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating stock uuid: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	st := &Stock{
		UUID:          id.String(),
		Symbol:        strings.ToLower(d.Symbol),
		Name:          d.Name,
		StockDatetime: d.Datetime.UTC().Truncate(time.Microsecond),
		Open:          d.Open,
		High:          d.High,
		Low:           d.Low,
		Close:         d.Close,
		Volume:        d.Volume,
		UserID:        userID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	st.ID, err = r.s.InsertID(ctx,
		`INSERT INTO stocks (uuid, symbol, name, stock_datetime, open, high, low, close, volume, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.UUID, st.Symbol, st.Name, st.StockDatetime, st.Open, st.High, st.Low, st.Close,
		st.Volume, st.UserID, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownUser, userID)
		}
		return nil, fmt.Errorf("creating stock: %w", err)
	}
	return st, nil
}

// History returns userID's lookups, newest first.
func (r *Repository) History(ctx context.Context, userID int64) ([]Stock, error) {
	stocks := []Stock{}
	err := r.s.SelectContext(ctx, &stocks, r.s.Rebind(
		"SELECT "+stockColumns+" FROM stocks s WHERE s.user_id = ? ORDER BY s.created_at DESC, s.id DESC"),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stock history: %w", err)
	}
	return stocks, nil
}

// HistoryWithOwner is History joined with the owning user's username.
func (r *Repository) HistoryWithOwner(ctx context.Context, userID int64) ([]OwnedStock, error) {
	stocks := []OwnedStock{}
	err := r.s.SelectContext(ctx, &stocks, r.s.Rebind(
		"SELECT "+stockColumns+", u.username FROM stocks s JOIN users u ON u.id = s.user_id"+
			" WHERE s.user_id = ? ORDER BY s.created_at DESC, s.id DESC"),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stock history with owner: %w", err)
	}
	return stocks, nil
}

// MostRequested returns the upTo most looked-up symbols across all users,
// most requested first. Ties are broken alphabetically. upTo <= 0 means
// DefaultMostRequested.
func (r *Repository) MostRequested(ctx context.Context, upTo int) ([]Stat, error) {
	if upTo <= 0 {
		upTo = DefaultMostRequested
	}

	stats := []Stat{}
	err := r.s.SelectContext(ctx, &stats, r.s.Rebind(
		"SELECT symbol AS stock, COUNT(*) AS times_requested FROM stocks"+
			" GROUP BY symbol ORDER BY times_requested DESC, symbol ASC LIMIT ?"),
		upTo,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating stock requests: %w", err)
	}
	return stats, nil
}
