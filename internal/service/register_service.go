package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"caixapdv/internal/apperrors"
	"caixapdv/internal/dto"
	"caixapdv/internal/infra"
	"caixapdv/internal/ledger"
	"caixapdv/internal/metrics"
	"caixapdv/internal/model"
	"caixapdv/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type RegisterService interface {
	Open(ctx context.Context, storeID string, actor dto.Actor, req dto.OpenRegisterRequest) (*dto.SummaryResponse, error)
	AppendTransaction(ctx context.Context, registerID uuid.UUID, actor dto.Actor, req dto.ManualTransactionRequest) (*dto.ManualTransactionResponse, error)
	Close(ctx context.Context, registerID uuid.UUID, actor dto.Actor, req dto.CloseRegisterRequest) (*dto.SummaryResponse, error)
	Reopen(ctx context.Context, registerID uuid.UUID) (*dto.SummaryResponse, error)
	// Active returns the store's open register summary; Register is nil and
	// the financials are zero when no register is open.
	Active(ctx context.Context, storeID string) (*dto.SummaryResponse, error)
	Report(ctx context.Context, registerID uuid.UUID) (*dto.SummaryResponse, error)
	History(ctx context.Context, storeID string, page, limit int) (*dto.RegisterHistoryResponse, error)
	// StoreOf returns the store a register belongs to.
	StoreOf(ctx context.Context, registerID uuid.UUID) (string, error)
	// InvalidateReports drops every cached report of the store. Order changes
	// call it since closed windows still count order payments.
	InvalidateReports(ctx context.Context, storeID string)
}

// EventPublisher fans store events out to live subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, ev infra.StoreEvent) error
}

// ClosingReportQueue schedules the PDF/e-mail closing report.
type ClosingReportQueue interface {
	EnqueueClosingReport(ctx context.Context, registerID uuid.UUID) error
}

// ReportCache stores serialized reports of closed registers.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type registerService struct {
	repo     repository.RegisterRepository
	orders   repository.OrderRepository
	events   EventPublisher
	reports  ClosingReportQueue
	cache    ReportCache
	cacheTTL time.Duration
	metrics  *metrics.LedgerMetrics
}

// NewRegisterService wires the register workflow. events, reports, cache and
// m may be nil; the matching side effect is then skipped.
func NewRegisterService(
	repo repository.RegisterRepository,
	orders repository.OrderRepository,
	events EventPublisher,
	reports ClosingReportQueue,
	cache ReportCache,
	cacheTTL time.Duration,
	m *metrics.LedgerMetrics,
) RegisterService {
	return &registerService{
		repo:     repo,
		orders:   orders,
		events:   events,
		reports:  reports,
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (s *registerService) Open(ctx context.Context, storeID string, actor dto.Actor, req dto.OpenRegisterRequest) (*dto.SummaryResponse, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, fmt.Errorf("loja obrigatória: %w", apperrors.ErrValidation)
	}
	if req.InitialValue.IsNegative() {
		return nil, fmt.Errorf("valor inicial não pode ser negativo: %w", apperrors.ErrValidation)
	}

	reg := &model.Register{
		ID:           uuid.New(),
		StoreID:      storeID,
		Status:       model.RegisterOpen,
		InitialValue: req.InitialValue.Round(2),
		OpenedByID:   actor.ID,
		OpenedByName: actor.Name,
		OpenedAt:     time.Now().UTC(),
	}
	if err := s.repo.Open(ctx, reg); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			s.metrics.ObserveConflict()
		}
		return nil, fmt.Errorf("abrir caixa: %w", err)
	}

	s.metrics.ObserveOpen()
	s.publish(ctx, infra.EventRegisterOpened, reg.StoreID, reg.ID)
	log.Info().Str("store_id", storeID).Str("register_id", reg.ID.String()).
		Str("initial_value", reg.InitialValue.StringFixed(2)).Msg("register opened")

	return s.summarize(ctx, reg)
}

// ── AppendTransaction ─────────────────────────────────────────────────────────
// Manual movements are immutable. The repository re-checks the open state
// under a row lock; the read below only gives an early, friendlier error.

func (s *registerService) AppendTransaction(ctx context.Context, registerID uuid.UUID, actor dto.Actor, req dto.ManualTransactionRequest) (*dto.ManualTransactionResponse, error) {
	typ, ok := ledger.ParseTransactionType(req.Type)
	if !ok {
		return nil, fmt.Errorf("tipo de movimento inválido %q: %w", req.Type, apperrors.ErrValidation)
	}
	value := typ.Signed(req.Value).Round(2)
	if value.IsZero() {
		return nil, fmt.Errorf("valor do movimento não pode ser zero: %w", apperrors.ErrValidation)
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return nil, fmt.Errorf("descrição obrigatória: %w", apperrors.ErrValidation)
	}

	reg, err := s.repo.FindByID(ctx, registerID)
	if err != nil {
		return nil, err
	}
	if !reg.IsOpen() {
		return nil, fmt.Errorf("caixa %s está fechado: %w", registerID, apperrors.ErrInvalidState)
	}

	label, code := req.MethodLabel, req.MethodCode
	if strings.TrimSpace(label) == "" {
		label = ledger.CashLabel
	}
	if code == "" {
		code = string(ledger.MethodCash)
	}

	t := &model.RegisterTransaction{
		ID:          uuid.New(),
		Description: desc,
		Notes:       strings.TrimSpace(req.Notes),
		Value:       value,
		Type:        string(typ),
		MethodLabel: label,
		MethodCode:  code,
		Date:        time.Now().UTC(),
		UserID:      actor.ID,
		UserName:    actor.Name,
	}
	if err := s.repo.AppendTransaction(ctx, registerID, t); err != nil {
		return nil, fmt.Errorf("registrar movimento: %w", err)
	}

	s.metrics.ObserveTransaction(string(typ))
	s.publish(ctx, infra.EventRegisterTransaction, reg.StoreID, reg.ID)

	resp := transactionToResponse(*t)
	return &resp, nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// The financial snapshot is computed while the repository holds the register
// lock, with the window already bounded at closedAt, and stored next to the
// informed amounts. Differences are recorded, never rejected.

func (s *registerService) Close(ctx context.Context, registerID uuid.UUID, actor dto.Actor, req dto.CloseRegisterRequest) (*dto.SummaryResponse, error) {
	for label, amount := range req.Informed {
		if amount.IsNegative() {
			return nil, fmt.Errorf("valor informado para %s não pode ser negativo: %w", label, apperrors.ErrValidation)
		}
	}

	var (
		storeID string
		cv      model.ClosingValues
	)
	err := s.repo.Close(ctx, registerID, func(reg *model.Register) (time.Time, *model.ClosingValues, error) {
		orders, err := s.orders.ListByStore(ctx, reg.StoreID)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("carregar pedidos: %w", err)
		}

		closedAt := time.Now().UTC()
		bounded := *reg
		bounded.Status = model.RegisterClosed
		bounded.ClosedAt = &closedAt
		summary := ledger.BuildSummary(&bounded, orders)

		cv = ledger.BuildClosing(summary.Financials, req.Informed, strings.TrimSpace(req.Observations))
		cv.ClosedByID = actor.ID.String()
		cv.ClosedByName = actor.Name
		storeID = reg.StoreID
		return closedAt, &cv, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fechar caixa: %w", err)
	}

	s.InvalidateReports(ctx, storeID)
	s.metrics.ObserveClose(cv.Classification)
	s.publish(ctx, infra.EventRegisterClosed, storeID, registerID)
	if s.reports != nil {
		// The close is already committed; a failed enqueue only loses the report
		if err := s.reports.EnqueueClosingReport(ctx, registerID); err != nil {
			log.Error().Err(err).Str("register_id", registerID.String()).Msg("failed to enqueue closing report")
		}
	}
	log.Info().Str("store_id", storeID).Str("register_id", registerID.String()).
		Str("deviation", cv.Deviation.StringFixed(2)).Str("classification", cv.Classification).
		Msg("register closed")

	return s.Report(ctx, registerID)
}

// ── Reopen ────────────────────────────────────────────────────────────────────

func (s *registerService) Reopen(ctx context.Context, registerID uuid.UUID) (*dto.SummaryResponse, error) {
	if err := s.repo.Reopen(ctx, registerID); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			s.metrics.ObserveConflict()
		}
		return nil, fmt.Errorf("reabrir caixa: %w", err)
	}

	reg, err := s.repo.FindByID(ctx, registerID)
	if err != nil {
		return nil, err
	}
	s.InvalidateReports(ctx, reg.StoreID)

	s.metrics.ObserveReopen()
	s.publish(ctx, infra.EventRegisterReopened, reg.StoreID, reg.ID)
	log.Info().Str("store_id", reg.StoreID).Str("register_id", registerID.String()).Msg("register reopened")

	return s.summarize(ctx, reg)
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *registerService) Active(ctx context.Context, storeID string) (*dto.SummaryResponse, error) {
	reg, err := s.repo.FindOpenByStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("buscar caixa aberto: %w", err)
	}
	if reg == nil {
		empty := ledger.BuildSummary(nil, nil)
		return &dto.SummaryResponse{Feed: empty.Feed, Financials: empty.Financials}, nil
	}
	return s.summarize(ctx, reg)
}

// Report caches closed registers only. The key carries the store's report
// generation, so InvalidateReports retires old entries without knowing them.
func (s *registerService) Report(ctx context.Context, registerID uuid.UUID) (*dto.SummaryResponse, error) {
	reg, err := s.repo.FindByID(ctx, registerID)
	if err != nil {
		return nil, err
	}
	if reg.IsOpen() || s.cache == nil {
		return s.summarize(ctx, reg)
	}

	key, cacheable := s.reportCacheKey(ctx, reg)
	if cacheable {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached dto.SummaryResponse
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	resp, err := s.summarize(ctx, reg)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if raw, err := json.Marshal(resp); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
				log.Warn().Err(err).Str("register_id", registerID.String()).Msg("report cache set failed")
			}
		}
	}
	return resp, nil
}

func (s *registerService) History(ctx context.Context, storeID string, page, limit int) (*dto.RegisterHistoryResponse, error) {
	regs, total, err := s.repo.ListClosed(ctx, storeID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("listar caixas: %w", err)
	}
	data := make([]dto.RegisterResponse, 0, len(regs))
	for i := range regs {
		data = append(data, *registerToResponse(&regs[i]))
	}
	return &dto.RegisterHistoryResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

func (s *registerService) StoreOf(ctx context.Context, registerID uuid.UUID) (string, error) {
	reg, err := s.repo.FindByID(ctx, registerID)
	if err != nil {
		return "", err
	}
	return reg.StoreID, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *registerService) summarize(ctx context.Context, reg *model.Register) (*dto.SummaryResponse, error) {
	orders, err := s.orders.ListByStore(ctx, reg.StoreID)
	if err != nil {
		return nil, fmt.Errorf("carregar pedidos: %w", err)
	}
	sum := ledger.BuildSummary(reg, orders)
	return &dto.SummaryResponse{
		Register:   registerToResponse(reg),
		Feed:       sum.Feed,
		Financials: sum.Financials,
	}, nil
}

func (s *registerService) publish(ctx context.Context, typ, storeID string, registerID uuid.UUID) {
	if s.events == nil {
		return
	}
	ev := infra.StoreEvent{Type: typ, StoreID: storeID, RegisterID: registerID.String(), At: time.Now().UTC()}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("store_id", storeID).Str("event", typ).Msg("publish store event failed")
	}
}

func (s *registerService) InvalidateReports(ctx context.Context, storeID string) {
	if s.cache == nil {
		return
	}
	if _, err := s.bumpReportGeneration(ctx, storeID); err != nil {
		log.Warn().Err(err).Str("store_id", storeID).Msg("report cache invalidation failed")
	}
}

func (s *registerService) bumpReportGeneration(ctx context.Context, storeID string) (string, error) {
	gen := uuid.NewString()
	return gen, s.cache.Set(ctx, reportGenerationKey(storeID), []byte(gen), 0)
}

// reportCacheKey reports false when the generation cannot be read, in which
// case the report is neither read from nor written to the cache.
func (s *registerService) reportCacheKey(ctx context.Context, reg *model.Register) (string, bool) {
	raw, err := s.cache.Get(ctx, reportGenerationKey(reg.StoreID))
	gen := string(raw)
	if errors.Is(err, infra.ErrCacheMiss) {
		gen, err = s.bumpReportGeneration(ctx, reg.StoreID)
	}
	if err != nil {
		log.Warn().Err(err).Str("store_id", reg.StoreID).Msg("report generation unavailable")
		return "", false
	}
	return "register:report:" + reg.ID.String() + ":" + gen, true
}

func reportGenerationKey(storeID string) string { return "register:report:gen:" + storeID }

const timeLayout = "2006-01-02T15:04:05Z07:00"

func registerToResponse(reg *model.Register) *dto.RegisterResponse {
	resp := &dto.RegisterResponse{
		ID:           reg.ID.String(),
		StoreID:      reg.StoreID,
		Status:       reg.Status,
		InitialValue: reg.InitialValue,
		OpenedByID:   reg.OpenedByID.String(),
		OpenedByName: reg.OpenedByName,
		OpenedAt:     reg.OpenedAt.Format(timeLayout),
		Transactions: make([]dto.ManualTransactionResponse, 0, len(reg.Transactions)),
	}
	if reg.ClosedAt != nil {
		t := reg.ClosedAt.Format(timeLayout)
		resp.ClosedAt = &t
	}
	for _, t := range reg.Transactions {
		resp.Transactions = append(resp.Transactions, transactionToResponse(t))
	}
	if cv, err := reg.Closing(); err == nil {
		resp.ClosingValues = cv
	} else {
		log.Warn().Err(err).Str("register_id", reg.ID.String()).Msg("unreadable closing values")
	}
	return resp
}

func transactionToResponse(t model.RegisterTransaction) dto.ManualTransactionResponse {
	return dto.ManualTransactionResponse{
		ID:          t.ID.String(),
		Description: t.Description,
		Notes:       t.Notes,
		Value:       t.Value,
		Type:        t.Type,
		MethodLabel: t.MethodLabel,
		MethodCode:  t.MethodCode,
		Date:        t.Date.Format(timeLayout),
		UserID:      t.UserID.String(),
		UserName:    t.UserName,
	}
}
