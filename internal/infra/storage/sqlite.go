package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trade_core/internal/domain"
)

// Storage is the durable store collaborator backed by SQLite (pure Go).
// It implements domain.Store.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the database at path and migrates the
// schema. Pass ":memory:" for an ephemeral database.
func NewStorage(path string) (*Storage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&domain.Order{},
		&domain.Trade{},
		&domain.EventRecord{},
		&domain.OrderBookSnapshot{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// ======================================================================================
// Order Operations
// ======================================================================================

// SaveOrder upserts an order by id.
func (s *Storage) SaveOrder(o *domain.Order) error {
	return s.db.Save(o).Error
}

// FindOrder retrieves an order by id. Not found is (nil, nil).
func (s *Storage) FindOrder(id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	err := s.db.First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// FindAllOrders returns every order.
func (s *Storage) FindAllOrders() ([]*domain.Order, error) {
	var orders []*domain.Order
	err := s.db.Order("created_at").Find(&orders).Error
	return orders, err
}

// FindOpenOrders returns every open or partially filled order.
func (s *Storage) FindOpenOrders() ([]*domain.Order, error) {
	var orders []*domain.Order
	err := s.db.
		Where("status IN ?", []domain.OrderStatus{domain.OrderStatusOpen, domain.OrderStatusPartiallyFilled}).
		Order("created_at").
		Find(&orders).Error
	return orders, err
}

// DeleteAllOrders drops every order row. Used only by full replay.
func (s *Storage) DeleteAllOrders() error {
	return s.db.Exec("DELETE FROM orders").Error
}

// ======================================================================================
// Trade Operations
// ======================================================================================

// SaveTrade upserts a trade by id.
func (s *Storage) SaveTrade(t *domain.Trade) error {
	return s.db.Save(t).Error
}

// FindAllTrades returns every trade in insertion order.
func (s *Storage) FindAllTrades() ([]*domain.Trade, error) {
	var trades []*domain.Trade
	err := s.db.Order("rowid").Find(&trades).Error
	return trades, err
}

// DeleteAllTrades drops every trade row. Used only by full replay.
func (s *Storage) DeleteAllTrades() error {
	return s.db.Exec("DELETE FROM trades").Error
}

// ======================================================================================
// Event Log Operations
// ======================================================================================

// AppendEvent writes a new event record. The auto-increment id becomes the
// authoritative log position.
func (s *Storage) AppendEvent(rec *domain.EventRecord) error {
	return s.db.Create(rec).Error
}

// FindAllEvents returns the whole log in log-position order.
func (s *Storage) FindAllEvents() ([]*domain.EventRecord, error) {
	var events []*domain.EventRecord
	err := s.db.Order("id").Find(&events).Error
	return events, err
}

// FindEventsAfter returns records with timestamp strictly greater than ts,
// in log-position order.
func (s *Storage) FindEventsAfter(ts time.Time) ([]*domain.EventRecord, error) {
	var events []*domain.EventRecord
	err := s.db.Where("timestamp > ?", ts).Order("id").Find(&events).Error
	return events, err
}

// ======================================================================================
// Snapshot Operations
// ======================================================================================

// SaveSnapshot persists a new order book snapshot.
func (s *Storage) SaveSnapshot(snap *domain.OrderBookSnapshot) error {
	return s.db.Create(snap).Error
}

// FindLatestSnapshot returns the most recent snapshot for an instrument.
// Not found is (nil, nil).
func (s *Storage) FindLatestSnapshot(instrument string) (*domain.OrderBookSnapshot, error) {
	var snap domain.OrderBookSnapshot
	err := s.db.
		Where("instrument = ?", instrument).
		Order("timestamp DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// FindSnapshotInstruments returns the distinct instruments that have at
// least one snapshot.
func (s *Storage) FindSnapshotInstruments() ([]string, error) {
	var instruments []string
	err := s.db.Model(&domain.OrderBookSnapshot{}).
		Distinct("instrument").
		Pluck("instrument", &instruments).Error
	return instruments, err
}
