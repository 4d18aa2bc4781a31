package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
)

// Repository manages persistence for transition events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.TransitionEvent) error
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.TransitionEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.TransitionEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.TransitionEvent, error) {
	var events []models.TransitionEvent
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("occurred_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

type memoryRepository struct {
	mu     sync.RWMutex
	events []models.TransitionEvent
}

// NewMemoryRepository keeps events in process; used with the memory store.
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) WithTx(*gorm.DB) Repository {
	return r
}

func (r *memoryRepository) Create(_ context.Context, event *models.TransitionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *memoryRepository) ListByTransaction(_ context.Context, transactionID uuid.UUID) ([]models.TransitionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.TransitionEvent
	for _, event := range r.events {
		if event.TransactionID == transactionID {
			out = append(out, event)
		}
	}
	return out, nil
}
