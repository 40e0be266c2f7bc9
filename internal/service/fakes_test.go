package service_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"caixapdv/internal/apperrors"
	"caixapdv/internal/dto"
	"caixapdv/internal/infra"
	"caixapdv/internal/ledger"
	"caixapdv/internal/model"
	"caixapdv/internal/repository"

	"github.com/google/uuid"
)

// ── In-memory RegisterRepository ─────────────────────────────────────────────
// Same preconditions as the PostgreSQL repository; the mutex stands in for
// the advisory and row locks.

type memRegisterRepo struct {
	mu   sync.Mutex
	regs map[uuid.UUID]*model.Register
	// beforeClose runs at the start of Close, before the lock is taken.
	beforeClose func()
}

func newMemRegisterRepo() *memRegisterRepo {
	return &memRegisterRepo{regs: make(map[uuid.UUID]*model.Register)}
}

func cloneRegister(r *model.Register) *model.Register {
	c := *r
	c.Transactions = append([]model.RegisterTransaction(nil), r.Transactions...)
	c.ClosingValues = append([]byte(nil), r.ClosingValues...)
	return &c
}

func (r *memRegisterRepo) openInStore(storeID string, except uuid.UUID) bool {
	for _, reg := range r.regs {
		if reg.StoreID == storeID && reg.IsOpen() && reg.ID != except {
			return true
		}
	}
	return false
}

func (r *memRegisterRepo) Open(_ context.Context, reg *model.Register) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openInStore(reg.StoreID, uuid.Nil) {
		return apperrors.ErrConflict
	}
	r.regs[reg.ID] = cloneRegister(reg)
	return nil
}

func (r *memRegisterRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Register, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		return nil, fmt.Errorf("caixa %s: %w", id, apperrors.ErrNotFound)
	}
	return cloneRegister(reg), nil
}

func (r *memRegisterRepo) FindOpenByStore(_ context.Context, storeID string) (*model.Register, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.regs {
		if reg.StoreID == storeID && reg.IsOpen() {
			return cloneRegister(reg), nil
		}
	}
	return nil, nil
}

func (r *memRegisterRepo) AppendTransaction(_ context.Context, id uuid.UUID, t *model.RegisterTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if !reg.IsOpen() {
		return apperrors.ErrInvalidState
	}
	t.RegisterID = id
	t.Position = len(reg.Transactions) + 1
	reg.Transactions = append(reg.Transactions, *t)
	return nil
}

func (r *memRegisterRepo) Close(_ context.Context, id uuid.UUID, build repository.ClosingBuilder) error {
	if r.beforeClose != nil {
		r.beforeClose()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if !reg.IsOpen() {
		return apperrors.ErrInvalidState
	}
	closedAt, cv, err := build(cloneRegister(reg))
	if err != nil {
		return err
	}
	if err := reg.SetClosing(cv); err != nil {
		return err
	}
	reg.Status = model.RegisterClosed
	reg.ClosedAt = &closedAt
	return nil
}

func (r *memRegisterRepo) Reopen(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if reg.IsOpen() {
		return apperrors.ErrInvalidState
	}
	if r.openInStore(reg.StoreID, id) {
		return apperrors.ErrConflict
	}
	reg.Status = model.RegisterOpen
	reg.ClosedAt = nil
	reg.ClosingValues = nil
	return nil
}

func (r *memRegisterRepo) ListClosed(_ context.Context, storeID string, page, limit int) ([]model.Register, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Register
	for _, reg := range r.regs {
		if reg.StoreID == storeID && !reg.IsOpen() {
			out = append(out, *cloneRegister(reg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.After(*out[j].ClosedAt) })
	total := int64(len(out))
	start := (page - 1) * limit
	if start >= len(out) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *memRegisterRepo) openCount(storeID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, reg := range r.regs {
		if reg.StoreID == storeID && reg.IsOpen() {
			n++
		}
	}
	return n
}

// ── In-memory OrderRepository ────────────────────────────────────────────────

type memOrderRepo struct {
	mu     sync.Mutex
	seq    int
	orders []*model.Order
}

func newMemOrderRepo() *memOrderRepo { return &memOrderRepo{} }

func (r *memOrderRepo) Create(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	o.Number = r.seq
	for i := range o.Payments {
		o.Payments[i].Position = i + 1
	}
	c := *o
	c.Payments = append([]model.OrderPayment(nil), o.Payments...)
	r.orders = append(r.orders, &c)
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			c := *o
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			o.Status = status
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r *memOrderRepo) ListByStore(_ context.Context, storeID string) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if o.StoreID == storeID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) List(_ context.Context, storeID string, f dto.OrderFilter) ([]model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if o.StoreID != storeID {
			continue
		}
		if f.Status != "" && !strings.Contains(strings.ToLower(o.Status), strings.ToLower(f.Status)) {
			continue
		}
		if f.Type != "" && (o.Type == nil || *o.Type != f.Type) {
			continue
		}
		if f.Finalized && !ledger.IsClosedServiceOrderLoose(o.Status) {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

// ── Side-effect recorders ────────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []infra.StoreEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev infra.StoreEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (q *recordingQueue) EnqueueClosingReport(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, infra.ErrCacheMiss
	}
	c.hits++
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

