package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gitbridge/internal/api/middleware"
	"gitbridge/internal/dto"
	"gitbridge/internal/service"
	"gitbridge/pkg/responses"
	"gitbridge/pkg/utils"
)

type IntegrationHandler struct {
	svc service.SecretsService
}

func NewIntegrationHandler(svc service.SecretsService) *IntegrationHandler {
	return &IntegrationHandler{svc: svc}
}

// List 集成列表
// @Summary 集成列表（只含has_token，不回传Token）
// @Tags Integration
// @Produce json
// @Success 200 {object} responses.Response{data=dto.IntegrationListResponse}
// @Router /api/integrations [get]
func (h *IntegrationHandler) List(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	resp, err := h.svc.ListIntegrations(c.Request.Context(), userID)
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, resp)
}

// Create 新增集成
// @Summary 新增集成
// @Tags Integration
// @Accept json
// @Produce json
// @Param request body dto.IntegrationRequest true "集成信息"
// @Success 201 {object} responses.Response{data=dto.CreateIntegrationResponse}
// @Failure 400 {object} responses.Response "ID重复"
// @Failure 401 {object} responses.Response "Token无效"
// @Router /api/integrations [post]
func (h *IntegrationHandler) Create(c *gin.Context) {
	var req dto.IntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	userID := middleware.CurrentUserID(c)
	id, err := h.svc.AddIntegration(c.Request.Context(), userID, &req)
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Created(c, "集成已创建", &dto.CreateIntegrationResponse{ID: id})
}

// Update 更新集成
// @Summary 更新集成（token省略保留原值）
// @Tags Integration
// @Accept json
// @Produce json
// @Param id path string true "集成ID"
// @Param request body dto.IntegrationRequest true "集成信息"
// @Success 200 {object} responses.Response
// @Failure 400 {object} responses.Response "改ID与既有集成冲突"
// @Failure 404 {object} responses.Response "集成不存在"
// @Router /api/integrations/{id} [put]
func (h *IntegrationHandler) Update(c *gin.Context) {
	var req dto.IntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	userID := middleware.CurrentUserID(c)
	if err := h.svc.UpdateIntegration(c.Request.Context(), userID, c.Param("id"), &req); err != nil {
		responses.Error(c, err)
		return
	}
	responses.SuccessWithMessage(c, "集成已更新", nil)
}

// Delete 删除集成
// @Summary 删除集成
// @Tags Integration
// @Produce json
// @Param id path string true "集成ID"
// @Success 200 {object} responses.Response
// @Failure 404 {object} responses.Response "集成不存在"
// @Router /api/integrations/{id} [delete]
func (h *IntegrationHandler) Delete(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if err := h.svc.DeleteIntegration(c.Request.Context(), userID, c.Param("id")); err != nil {
		responses.Error(c, err)
		return
	}
	responses.SuccessWithMessage(c, "集成已删除", nil)
}
