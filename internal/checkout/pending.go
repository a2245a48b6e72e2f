package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofrs/uuid"
)

var ErrPendingNotFound = errors.New("pending checkout not found or expired")

// Pending is the snapshot taken when a checkout starts. It is the only source of truth for
// the amount a confirmation must match.
type Pending struct {
	OrderID     string        `json:"orderId"`
	ClientKey   string        `json:"clientKey"`
	UserID      uuid.NullUUID `json:"userId"`
	ProductID   uuid.UUID     `json:"productId"`
	ProductName string        `json:"productName"`
	Category    string        `json:"category"`
	Quantity    int           `json:"quantity"`
	TotalAmount int64         `json:"totalAmount"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type PendingStore interface {
	Put(ctx context.Context, p *Pending, ttl time.Duration) error
	Get(ctx context.Context, orderID string) (*Pending, error)
	Delete(ctx context.Context, orderID string) error
	Close() error
}

type badgerPendingStore struct {
	db *badger.DB
}

// OpenPendingStore opens an in-memory badger instance. Entries expire through badger's TTL.
func OpenPendingStore() (PendingStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithNumVersionsToKeep(1).
		WithMemTableSize(8 << 20).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open pending store: %w", err)
	}
	return &badgerPendingStore{db: db}, nil
}

func pendingKey(orderID string) []byte {
	return []byte("pending:" + orderID)
}

func (s *badgerPendingStore) Put(_ context.Context, p *Pending, ttl time.Duration) error {
	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("pending store: failed to marshal snapshot: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(pendingKey(p.OrderID), val).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("pending store: failed to put %s: %w", p.OrderID, err)
	}
	return nil
}

func (s *badgerPendingStore) Get(_ context.Context, orderID string) (*Pending, error) {
	var p Pending
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pendingKey(orderID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pending store: failed to get %s: %w", orderID, err)
	}
	return &p, nil
}

func (s *badgerPendingStore) Delete(_ context.Context, orderID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pendingKey(orderID))
	})
	if err != nil {
		return fmt.Errorf("pending store: failed to delete %s: %w", orderID, err)
	}
	return nil
}

func (s *badgerPendingStore) Close() error {
	return s.db.Close()
}
