package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"caixapdv/internal/apperrors"
	"caixapdv/internal/dto"
	"caixapdv/internal/infra"
	"caixapdv/internal/ledger"
	"caixapdv/internal/model"
	"caixapdv/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OrderService ingests the sales and service orders the register reconciles
// against. Every change is broadcast so open register screens recompute.
type OrderService interface {
	Create(ctx context.Context, storeID string, req dto.CreateOrderRequest) (*dto.OrderResponse, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, req dto.UpdateOrderStatusRequest) (*dto.OrderResponse, error)
	List(ctx context.Context, storeID string, filter dto.OrderFilter) (*dto.OrderListResponse, error)
	StoreOf(ctx context.Context, id uuid.UUID) (string, error)
}

// ReportInvalidator drops cached register reports of a store.
type ReportInvalidator interface {
	InvalidateReports(ctx context.Context, storeID string)
}

type orderService struct {
	repo    repository.OrderRepository
	events  EventPublisher
	reports ReportInvalidator
}

// NewOrderService wires order ingestion. events and reports may be nil.
func NewOrderService(repo repository.OrderRepository, events EventPublisher, reports ReportInvalidator) OrderService {
	return &orderService{repo: repo, events: events, reports: reports}
}

func (s *orderService) Create(ctx context.Context, storeID string, req dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, fmt.Errorf("loja obrigatória: %w", apperrors.ErrValidation)
	}
	typ := ledger.ParseOrderType(req.Type)
	if typ == ledger.OrderUnknown {
		return nil, fmt.Errorf("tipo de pedido inválido %q: %w", req.Type, apperrors.ErrValidation)
	}

	now := time.Now().UTC()
	typeStr := string(typ)
	o := &model.Order{
		ID:        uuid.New(),
		StoreID:   storeID,
		Type:      &typeStr,
		Status:    strings.TrimSpace(req.Status),
		Total:     req.Total.Round(2),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, p := range req.Payments {
		if !p.Amount.IsPositive() {
			return nil, fmt.Errorf("pagamento %d deve ter valor positivo: %w", i+1, apperrors.ErrValidation)
		}
		code := ledger.ParseMethodCode(p.MethodCode)
		o.Payments = append(o.Payments, model.OrderPayment{
			ID:         uuid.New(),
			OrderID:    o.ID,
			Amount:     p.Amount.Round(2),
			Method:     ledger.ResolveMethodLabel(p.Method, string(code)),
			MethodCode: string(code),
			Date:       p.Date,
		})
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("criar pedido: %w", err)
	}

	s.changed(ctx, o)
	log.Info().Str("store_id", storeID).Str("order_id", o.ID.String()).
		Int("number", o.Number).Str("type", typeStr).Msg("order created")

	resp := orderToResponse(o)
	return &resp, nil
}

// UpdateStatus is how an order gets cancelled or a service order finalized;
// both change what the register ledger counts.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, req dto.UpdateOrderStatusRequest) (*dto.OrderResponse, error) {
	status := strings.TrimSpace(req.Status)
	if status == "" {
		return nil, fmt.Errorf("status obrigatório: %w", apperrors.ErrValidation)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, o)

	resp := orderToResponse(o)
	return &resp, nil
}

func (s *orderService) List(ctx context.Context, storeID string, filter dto.OrderFilter) (*dto.OrderListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	orders, total, err := s.repo.List(ctx, storeID, filter)
	if err != nil {
		return nil, fmt.Errorf("listar pedidos: %w", err)
	}
	data := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		data = append(data, orderToResponse(&orders[i]))
	}
	return &dto.OrderListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *orderService) StoreOf(ctx context.Context, id uuid.UUID) (string, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return o.StoreID, nil
}

// changed runs after every committed order write.
func (s *orderService) changed(ctx context.Context, o *model.Order) {
	if s.reports != nil {
		s.reports.InvalidateReports(ctx, o.StoreID)
	}
	s.publish(ctx, o)
}

func (s *orderService) publish(ctx context.Context, o *model.Order) {
	if s.events == nil {
		return
	}
	ev := infra.StoreEvent{Type: infra.EventOrderChanged, StoreID: o.StoreID, OrderID: o.ID.String(), At: time.Now().UTC()}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("store_id", o.StoreID).Msg("publish order event failed")
	}
}

func orderToResponse(o *model.Order) dto.OrderResponse {
	resp := dto.OrderResponse{
		ID:        o.ID.String(),
		StoreID:   o.StoreID,
		Number:    o.Number,
		Label:     ledger.FormatOrderNumber(o),
		Type:      string(ledger.KindOf(o)),
		Status:    o.Status,
		Finalized: ledger.IsClosedServiceOrderLoose(o.Status),
		Total:     o.Total,
		Payments:  make([]dto.PaymentResponse, 0, len(o.Payments)),
		CreatedAt: o.CreatedAt.Format(timeLayout),
	}
	for _, p := range o.Payments {
		pr := dto.PaymentResponse{Amount: p.Amount, Method: p.Method, MethodCode: p.MethodCode}
		if p.Date != nil {
			d := p.Date.Format(timeLayout)
			pr.Date = &d
		}
		resp.Payments = append(resp.Payments, pr)
	}
	return resp
}
