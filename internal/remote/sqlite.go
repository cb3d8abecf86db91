package remote

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/jinyang756/Wealthgather-exchange/internal/errors"
	"github.com/jinyang756/Wealthgather-exchange/internal/models"
)

// SQLiteStore is the embedded implementation of Store for local and demo
// use. It reproduces the hosted backend's contract, including the order
// insert side effects (immediate fill, position and balance updates) and
// the change-notification feed, which it emits in-process.
type SQLiteStore struct {
	db *sql.DB

	mu        sync.RWMutex
	listeners []ChangeListener

	initialCash float64
}

// NewSQLiteStore creates a SQLite-backed store at the given path.
func NewSQLiteStore(dbPath string, initialCash float64) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:          db,
		initialCash: initialCash,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		stock_code TEXT NOT NULL,
		stock_name TEXT NOT NULL,
		side TEXT NOT NULL,
		price REAL NOT NULL,
		quantity INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS positions (
		user_id TEXT NOT NULL,
		stock_code TEXT NOT NULL,
		stock_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		average_cost REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, stock_code)
	);

	CREATE TABLE IF NOT EXISTS watchlists (
		user_id TEXT NOT NULL,
		stock_code TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, stock_code)
	);

	CREATE TABLE IF NOT EXISTS news (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		url TEXT,
		source TEXT,
		type TEXT DEFAULT 'news',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		name TEXT,
		cash_balance REAL NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SubscribeChanges registers an in-process change listener.
func (s *SQLiteStore) SubscribeChanges(l ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *SQLiteStore) emit(collection Collection, userID string) {
	s.mu.RLock()
	listeners := append([]ChangeListener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		l(ChangeEvent{Collection: collection, UserID: userID})
	}
}

// Ping probes the database.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewStoreError("", "ping", err)
	}
	return nil
}

// Orders returns the user's orders newest-first.
func (s *SQLiteStore) Orders(ctx context.Context, userID string) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stock_code, stock_name, side, price, quantity, status, created_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, apperrors.NewStoreError("orders", "query", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.InstrumentCode, &o.InstrumentName,
			&o.Side, &o.Price, &o.Quantity, &o.Status, &o.CreatedAt); err != nil {
			return nil, apperrors.NewStoreError("orders", "scan", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// InsertOrder inserts the order and applies the fill side effects the
// hosted backend performs in its insert trigger: position quantity and
// average cost move, and the cash balance takes the trade delta.
func (s *SQLiteStore) InsertOrder(ctx context.Context, userID string, order models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("orders", "begin", err)
	}
	defer tx.Rollback()

	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, stock_code, stock_name, side, price, quantity, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, userID, order.InstrumentCode, order.InstrumentName,
		order.Side, order.Price, order.Quantity, models.OrderStatusFilled, createdAt); err != nil {
		return apperrors.NewStoreError("orders", "insert", err)
	}

	if err := s.applyFill(ctx, tx, userID, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("orders", "commit", err)
	}

	s.emit(CollectionOrders, userID)
	s.emit(CollectionPositions, userID)
	s.emit(CollectionProfiles, userID)
	return nil
}

func (s *SQLiteStore) applyFill(ctx context.Context, tx *sql.Tx, userID string, order models.Order) error {
	var qty int64
	var avgCost float64
	err := tx.QueryRowContext(ctx, `
		SELECT quantity, average_cost FROM positions WHERE user_id = ? AND stock_code = ?`,
		userID, order.InstrumentCode).Scan(&qty, &avgCost)
	if err != nil && err != sql.ErrNoRows {
		return apperrors.NewStoreError("positions", "query", err)
	}

	tradeValue := order.Price * float64(order.Quantity)

	var newQty int64
	var newCost float64
	var cashDelta float64
	if order.Side == models.OrderSideBuy {
		newQty = qty + order.Quantity
		if newQty > 0 {
			newCost = (avgCost*float64(qty) + tradeValue) / float64(newQty)
		}
		cashDelta = -tradeValue
	} else {
		newQty = qty - order.Quantity
		newCost = avgCost
		cashDelta = tradeValue
	}
	if newQty < 0 {
		return apperrors.NewOrderError(order.InstrumentCode, string(order.Side),
			"quantity exceeds holding", apperrors.ErrOrderRejected)
	}

	if newQty == 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM positions WHERE user_id = ? AND stock_code = ?`,
			userID, order.InstrumentCode); err != nil {
			return apperrors.NewStoreError("positions", "delete", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO positions (user_id, stock_code, stock_name, quantity, average_cost, updated_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(user_id, stock_code) DO UPDATE SET
				quantity = excluded.quantity,
				average_cost = excluded.average_cost,
				updated_at = CURRENT_TIMESTAMP`,
			userID, order.InstrumentCode, order.InstrumentName, newQty, newCost); err != nil {
			return apperrors.NewStoreError("positions", "upsert", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, name, cash_balance) VALUES (?, '', ?)
		ON CONFLICT(user_id) DO UPDATE SET cash_balance = cash_balance + ?`,
		userID, s.initialCash+cashDelta, cashDelta); err != nil {
		return apperrors.NewStoreError("profiles", "update balance", err)
	}

	return nil
}

// Positions returns the user's holdings.
func (s *SQLiteStore) Positions(ctx context.Context, userID string) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stock_code, stock_name, quantity, average_cost
		FROM positions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, apperrors.NewStoreError("positions", "query", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.InstrumentCode, &p.InstrumentName, &p.Quantity, &p.AverageCost); err != nil {
			return nil, apperrors.NewStoreError("positions", "scan", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Watchlist returns the user's watched codes.
func (s *SQLiteStore) Watchlist(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stock_code FROM watchlists WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, apperrors.NewStoreError("watchlists", "query", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, apperrors.NewStoreError("watchlists", "scan", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// AddToWatchlist inserts a watchlist row.
func (s *SQLiteStore) AddToWatchlist(ctx context.Context, userID, code string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO watchlists (user_id, stock_code) VALUES (?, ?)`, userID, code)
	if err != nil {
		return apperrors.NewStoreError("watchlists", "insert", err)
	}
	s.emit(CollectionWatchlists, userID)
	return nil
}

// RemoveFromWatchlist deletes a watchlist row.
func (s *SQLiteStore) RemoveFromWatchlist(ctx context.Context, userID, code string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM watchlists WHERE user_id = ? AND stock_code = ?`, userID, code)
	if err != nil {
		return apperrors.NewStoreError("watchlists", "delete", err)
	}
	s.emit(CollectionWatchlists, userID)
	return nil
}

// News returns the newest items, newest-first.
func (s *SQLiteStore) News(ctx context.Context, limit int) ([]models.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(url, ''), COALESCE(source, ''), COALESCE(type, 'news'), created_at
		FROM news ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.NewStoreError("news", "query", err)
	}
	defer rows.Close()

	var items []models.NewsItem
	for rows.Next() {
		var item models.NewsItem
		if err := rows.Scan(&item.ID, &item.Title, &item.URL, &item.Source, &item.Type, &item.Time); err != nil {
			return nil, apperrors.NewStoreError("news", "scan", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Profile returns the user's profile row, creating it with the initial
// cash balance on first access.
func (s *SQLiteStore) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	p := &models.Profile{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(name, ''), cash_balance FROM profiles WHERE user_id = ?`,
		userID).Scan(&p.Name, &p.CashBalance)
	if err == sql.ErrNoRows {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO profiles (user_id, name, cash_balance) VALUES (?, '', ?)`,
			userID, s.initialCash); err != nil {
			return nil, apperrors.NewStoreError("profiles", "insert", err)
		}
		p.CashBalance = s.initialCash
		return p, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("profiles", "query", err)
	}
	return p, nil
}
