package transactions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
)

// MemoryStore keeps records in process. One mutex guards the arena and the
// open-plate index so uniqueness checks and writes happen together.
type MemoryStore struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]*models.TransactionRecord
	order       []uuid.UUID
	openByPlate map[string]uuid.UUID
	now         func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:        make(map[uuid.UUID]*models.TransactionRecord),
		openByPlate: make(map[string]uuid.UUID),
		now:         time.Now,
	}
}

// Create stores a new record. Hooks run under the store lock before the record
// becomes visible.
func (s *MemoryStore) Create(ctx context.Context, record *models.TransactionRecord, hooks ...AfterWrite) (*models.TransactionRecord, error) {
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction record is required")
	}
	rec := record.Clone()
	rec.Plate = NormalizePlate(rec.Plate)
	if rec.Plate == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plate is required")
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.openByPlate[rec.Plate]; ok && rec.IsOpen() {
		return nil, openCycleError(rec.Plate, existing)
	}
	if _, ok := s.byID[rec.ID]; ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "transaction id already exists")
	}

	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if err := runHooks(ctx, nil, nil, rec, hooks); err != nil {
		return nil, err
	}

	s.byID[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	if rec.IsOpen() {
		s.openByPlate[rec.Plate] = rec.ID
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, notFoundError(id)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) FindOpenByPlate(_ context.Context, plate string) (*models.TransactionRecord, error) {
	plate = NormalizePlate(plate)

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.openByPlate[plate]
	if !ok {
		return nil, noOpenCycleError(plate)
	}
	return s.byID[id].Clone(), nil
}

func (s *MemoryStore) FindByPlate(ctx context.Context, plate string) ([]models.TransactionRecord, error) {
	return s.List(ctx, Filter{Plate: plate})
}

func (s *MemoryStore) ListByStatus(ctx context.Context, statuses ...enums.TransactionStatus) ([]models.TransactionRecord, error) {
	return s.List(ctx, Filter{Statuses: statuses})
}

func (s *MemoryStore) ListByLocation(ctx context.Context, location string) ([]models.TransactionRecord, error) {
	return s.List(ctx, Filter{Location: location})
}

// List returns matching records in creation order.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.TransactionRecord, 0, len(s.order))
	for _, id := range s.order {
		rec := s.byID[id]
		if matches(rec, filter) {
			out = append(out, *rec.Clone())
		}
	}
	return out, nil
}

// Update runs fn on a copy of the record while holding the store lock and
// commits the copy only when fn and every hook succeed.
func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc, hooks ...AfterWrite) (*models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		return nil, notFoundError(id)
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := checkImmutable(current, next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now().UTC()
	if err := runHooks(ctx, nil, current, next, hooks); err != nil {
		return nil, err
	}

	s.byID[id] = next
	if !next.IsOpen() && s.openByPlate[next.Plate] == id {
		delete(s.openByPlate, next.Plate)
	}
	return next.Clone(), nil
}
