package handler

import (
	"net/http"

	"caixapdv/internal/dto"
	"caixapdv/internal/middleware"
	"caixapdv/internal/service"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct{ svc service.OrderService }

func NewOrderHandler(svc service.OrderService) *OrderHandler { return &OrderHandler{svc: svc} }

// Create godoc
// @Summary Registra uma venda ou ordem de serviço
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param storeID path string true "Loja"
// @Param body body dto.CreateOrderRequest true "Pedido"
// @Success 201 {object} dto.OrderResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/stores/{storeID}/orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), c.Param("storeID"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary Lista pedidos da loja
// @Tags pedidos
// @Produce json
// @Security BearerAuth
// @Param storeID path string true "Loja"
// @Param status query string false "Trecho do status"
// @Param type query string false "sale | service_order"
// @Param finalized query bool false "Somente pedidos finalizados ou faturados"
// @Success 200 {object} dto.OrderListResponse
// @Router /v1/stores/{storeID}/orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	var filter dto.OrderFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), c.Param("storeID"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateStatus godoc
// @Summary Altera o status de um pedido (cancelamento, faturamento)
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pedido"
// @Param body body dto.UpdateOrderStatusRequest true "Novo status"
// @Success 200 {object} dto.OrderResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	storeID, err := h.svc.StoreOf(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !middleware.CanAccessStore(c, storeID) {
		forbidStore(c)
		return
	}
	var req dto.UpdateOrderStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
