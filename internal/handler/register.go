package handler

import (
	"net/http"

	"caixapdv/internal/dto"
	"caixapdv/internal/middleware"
	"caixapdv/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RegisterHandler struct{ svc service.RegisterService }

func NewRegisterHandler(svc service.RegisterService) *RegisterHandler {
	return &RegisterHandler{svc: svc}
}

// registerParam parses :id and checks the caller may act on its store.
func (h *RegisterHandler) registerParam(c *gin.Context) (uuid.UUID, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return uuid.Nil, false
	}
	storeID, err := h.svc.StoreOf(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return uuid.Nil, false
	}
	if !middleware.CanAccessStore(c, storeID) {
		forbidStore(c)
		return uuid.Nil, false
	}
	return id, true
}

// Open godoc
// @Summary Abre o caixa da loja
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param storeID path string true "Loja"
// @Param body body dto.OpenRegisterRequest true "Valor inicial"
// @Success 201 {object} dto.SummaryResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/stores/{storeID}/register/open [post]
func (h *RegisterHandler) Open(c *gin.Context) {
	var req dto.OpenRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Open(c.Request.Context(), c.Param("storeID"), middleware.Actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Active godoc
// @Summary Resumo do caixa aberto da loja
// @Tags caixa
// @Produce json
// @Security BearerAuth
// @Param storeID path string true "Loja"
// @Success 200 {object} dto.SummaryResponse
// @Router /v1/stores/{storeID}/register/active [get]
func (h *RegisterHandler) Active(c *gin.Context) {
	resp, err := h.svc.Active(c.Request.Context(), c.Param("storeID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary Caixas fechados da loja
// @Tags caixa
// @Produce json
// @Security BearerAuth
// @Param storeID path string true "Loja"
// @Param page query int false "Página"
// @Param limit query int false "Itens por página"
// @Success 200 {object} dto.RegisterHistoryResponse
// @Router /v1/stores/{storeID}/register/history [get]
func (h *RegisterHandler) History(c *gin.Context) {
	page, limit := pageParams(c)
	resp, err := h.svc.History(c.Request.Context(), c.Param("storeID"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AppendTransaction godoc
// @Summary Registra reforço, sangria ou despesa
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Caixa"
// @Param body body dto.ManualTransactionRequest true "Movimento"
// @Success 201 {object} dto.ManualTransactionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/registers/{id}/transactions [post]
func (h *RegisterHandler) AppendTransaction(c *gin.Context) {
	id, ok := h.registerParam(c)
	if !ok {
		return
	}
	var req dto.ManualTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AppendTransaction(c.Request.Context(), id, middleware.Actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary Fecha o caixa com os valores conferidos
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Caixa"
// @Param body body dto.CloseRegisterRequest true "Valores informados"
// @Success 200 {object} dto.SummaryResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/registers/{id}/close [post]
func (h *RegisterHandler) Close(c *gin.Context) {
	id, ok := h.registerParam(c)
	if !ok {
		return
	}
	var req dto.CloseRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), id, middleware.Actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reopen godoc
// @Summary Reabre um caixa fechado
// @Tags caixa
// @Produce json
// @Security BearerAuth
// @Param id path string true "Caixa"
// @Success 200 {object} dto.SummaryResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/registers/{id}/reopen [post]
func (h *RegisterHandler) Reopen(c *gin.Context) {
	id, ok := h.registerParam(c)
	if !ok {
		return
	}
	resp, err := h.svc.Reopen(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Report godoc
// @Summary Relatório de um caixa
// @Tags caixa
// @Produce json
// @Security BearerAuth
// @Param id path string true "Caixa"
// @Success 200 {object} dto.SummaryResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/registers/{id}/report [get]
func (h *RegisterHandler) Report(c *gin.Context) {
	id, ok := h.registerParam(c)
	if !ok {
		return
	}
	resp, err := h.svc.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
