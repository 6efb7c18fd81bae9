package repositories

import (
	"context"
	"sync"

	"github.com/Felista-Njeri/inva.ai/internal/models"
)

// MemoryStore is an in-process InvoiceStore. Records are copied on the way
// in and out so callers can never alias stored state.
type MemoryStore struct {
	mu         sync.RWMutex
	nextID     uint64
	invoices   map[uint64]*models.Invoice
	byProvider map[string][]uint64
	byClient   map[string][]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:     1,
		invoices:   make(map[uint64]*models.Invoice),
		byProvider: make(map[string][]uint64),
		byClient:   make(map[string][]uint64),
	}
}

func (s *MemoryStore) Create(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv.ID = s.nextID
	s.nextID++

	cp := *inv
	s.invoices[cp.ID] = &cp
	s.byProvider[cp.Provider] = append(s.byProvider[cp.Provider], cp.ID)
	s.byClient[cp.Client] = append(s.byClient[cp.Client], cp.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uint64) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *inv
	if inv.PaidAt != nil {
		paidAt := *inv.PaidAt
		cp.PaidAt = &paidAt
	}
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[inv.ID]; !ok {
		return models.ErrNotFound
	}
	cp := *inv
	if inv.PaidAt != nil {
		paidAt := *inv.PaidAt
		cp.PaidAt = &paidAt
	}
	s.invoices[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) ListByProvider(_ context.Context, provider string) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uint64(nil), s.byProvider[provider]...), nil
}

func (s *MemoryStore) ListByClient(_ context.Context, client string) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uint64(nil), s.byClient[client]...), nil
}

func (s *MemoryStore) EscrowTotal(_ context.Context, token string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, inv := range s.invoices {
		if inv.Token == token {
			total += inv.EscrowBalance
		}
	}
	return total, nil
}
