package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
)

// ErrNoMessage is returned when no message is visible
var ErrNoMessage = models.ErrNoMessage

// storedMessage is the envelope stored in Badger
type storedMessage struct {
	ID           string              `json:"id"`
	Body         models.QueueMessage `json:"body"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
	VisibleAt    time.Time           `json:"visible_at"`
	ReceiveCount int                 `json:"receive_count"`
}

// BadgerManager implements a persistent queue using BadgerDB.
// Data lives at queue:{name}:msg:{id}; a visibility index queue:{name}:index:{visibleAt}:{id}
// keeps ready messages ordered by the time they become visible.
type BadgerManager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

var _ interfaces.QueueManager = (*BadgerManager)(nil)

// NewBadgerManager creates a new Badger-backed queue manager
func NewBadgerManager(db *badger.DB, config Config, logger arbor.ILogger) (*BadgerManager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if config.QueueName == "" {
		return nil, errors.New("queue name is required")
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = 5 * time.Minute
	}
	if config.MaxReceive <= 0 {
		config.MaxReceive = 5
	}

	return &BadgerManager{
		db:                db,
		queueName:         config.QueueName,
		visibilityTimeout: config.VisibilityTimeout,
		maxReceive:        config.MaxReceive,
		logger:            logger,
	}, nil
}

// Enqueue adds a message to the queue, visible immediately
func (m *BadgerManager) Enqueue(ctx context.Context, msg models.QueueMessage) error {
	return m.EnqueueWithDelay(ctx, msg, 0)
}

// EnqueueWithDelay adds a message that becomes visible after delay
func (m *BadgerManager) EnqueueWithDelay(ctx context.Context, msg models.QueueMessage, delay time.Duration) error {
	now := time.Now()
	stored := storedMessage{
		ID:         uuid.New().String(),
		Body:       msg,
		EnqueuedAt: now,
		VisibleAt:  now.Add(delay),
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(m.msgKey(stored.ID), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(stored.VisibleAt, stored.ID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue %s for job %d: %w", msg.Type, msg.JobID, err)
	}

	m.logger.Trace().
		Str("message_id", stored.ID).
		Str("task", msg.Type).
		Int64("job_id", msg.JobID).
		Dur("delay", delay).
		Msg("Task enqueued")
	return nil
}

// Receive claims the next visible message and hides it for the visibility timeout.
// Messages already delivered maxReceive times are dropped.
func (m *BadgerManager) Receive(ctx context.Context) (*interfaces.Delivery, func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var claimed storedMessage

	err := m.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := m.indexPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false
		var oldIndexKey []byte

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := m.parseIndexKey(key)
			if err != nil {
				continue
			}

			// Keys are sorted by timestamp, nothing later is ready either
			if ts.After(now) {
				break
			}

			msgKey := m.msgKey(id)
			item, err := txn.Get(msgKey)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			var stored storedMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}

			if stored.ReceiveCount >= m.maxReceive {
				m.logger.Warn().
					Str("message_id", id).
					Str("task", stored.Body.Type).
					Int64("job_id", stored.Body.JobID).
					Int("receive_count", stored.ReceiveCount).
					Msg("Dropping task after max deliveries")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(msgKey); err != nil {
					return err
				}
				continue
			}

			found = true
			claimed = stored
			oldIndexKey = key
			break
		}

		if !found {
			return ErrNoMessage
		}

		claimed.ReceiveCount++
		claimed.VisibleAt = time.Now().Add(m.visibilityTimeout)

		data, err := json.Marshal(claimed)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(claimed.ID), data); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(m.indexKey(claimed.VisibleAt, claimed.ID), []byte{})
	})
	if err != nil {
		return nil, nil, err
	}

	msgID := claimed.ID
	deleteFn := func() error {
		return m.db.Update(func(txn *badger.Txn) error {
			msgKey := m.msgKey(msgID)
			item, err := txn.Get(msgKey)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return nil
				}
				return err
			}

			var current storedMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return err
			}

			// Visibility may have been extended since Receive
			if err := txn.Delete(m.indexKey(current.VisibleAt, msgID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return txn.Delete(msgKey)
		})
	}

	return &interfaces.Delivery{
		ID:           claimed.ID,
		Message:      claimed.Body,
		ReceiveCount: claimed.ReceiveCount,
	}, deleteFn, nil
}

// Extend hides a claimed message for duration from now
func (m *BadgerManager) Extend(ctx context.Context, messageID string, duration time.Duration) error {
	return m.db.Update(func(txn *badger.Txn) error {
		msgKey := m.msgKey(messageID)
		item, err := txn.Get(msgKey)
		if err != nil {
			return err
		}

		var stored storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}

		oldVisibleAt := stored.VisibleAt
		stored.VisibleAt = time.Now().Add(duration)

		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey, data); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(oldVisibleAt, messageID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(m.indexKey(stored.VisibleAt, messageID), []byte{})
	})
}

// Len counts stored messages, visible or not
func (m *BadgerManager) Len(ctx context.Context) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:msg:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close is a no-op, the badger store is owned by the storage layer
func (m *BadgerManager) Close() error {
	return nil
}

func (m *BadgerManager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *BadgerManager) indexPrefix() []byte {
	return []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
}

func (m *BadgerManager) indexKey(visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so byte order matches numeric order
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, visibleAt.UnixNano(), id))
}

func (m *BadgerManager) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := m.indexPrefix()
	if !bytes.HasPrefix(key, prefix) {
		return time.Time{}, "", fmt.Errorf("invalid index key")
	}

	suffix := string(key[len(prefix):])
	if len(suffix) < 21 { // 20 digits + 1 colon
		return time.Time{}, "", fmt.Errorf("invalid suffix length")
	}

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), suffix[21:], nil
}
