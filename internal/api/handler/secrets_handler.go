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

type SecretsHandler struct {
	svc service.SecretsService
}

func NewSecretsHandler(svc service.SecretsService) *SecretsHandler {
	return &SecretsHandler{svc: svc}
}

// AddGitProviders 合并旧版平台Token
// @Summary 合并旧版平台Token
// @Tags Secrets
// @Accept json
// @Produce json
// @Param request body dto.AddGitProvidersRequest true "平台Token映射"
// @Success 200 {object} responses.Response
// @Router /api/add-git-providers [post]
func (h *SecretsHandler) AddGitProviders(c *gin.Context) {
	var req dto.AddGitProvidersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	userID := middleware.CurrentUserID(c)
	if err := h.svc.StoreProviderTokens(c.Request.Context(), userID, &req); err != nil {
		responses.Error(c, err)
		return
	}
	responses.SuccessWithMessage(c, "平台Token已保存", nil)
}

// UnsetProviderTokens 清空旧版平台Token
// @Summary 清空旧版平台Token
// @Tags Secrets
// @Produce json
// @Success 200 {object} responses.Response
// @Router /api/unset-provider-tokens [post]
func (h *SecretsHandler) UnsetProviderTokens(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if err := h.svc.UnsetProviderTokens(c.Request.Context(), userID); err != nil {
		responses.Error(c, err)
		return
	}
	responses.SuccessWithMessage(c, "平台Token已清空", nil)
}

// ListCustomSecrets 自定义密钥列表
// @Summary 自定义密钥列表（不含密钥值）
// @Tags Secrets
// @Produce json
// @Success 200 {object} responses.Response{data=dto.CustomSecretListResponse}
// @Router /api/secrets [get]
func (h *SecretsHandler) ListCustomSecrets(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	resp, err := h.svc.ListCustomSecrets(c.Request.Context(), userID)
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Success(c, resp)
}

// CreateCustomSecret 创建自定义密钥
// @Summary 创建自定义密钥
// @Tags Secrets
// @Accept json
// @Produce json
// @Param request body dto.CreateCustomSecretRequest true "创建请求"
// @Success 201 {object} responses.Response
// @Router /api/secrets [post]
func (h *SecretsHandler) CreateCustomSecret(c *gin.Context) {
	var req dto.CreateCustomSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	userID := middleware.CurrentUserID(c)
	if err := h.svc.AddCustomSecret(c.Request.Context(), userID, &req); err != nil {
		responses.Error(c, err)
		return
	}
	responses.Created(c, "密钥已创建", nil)
}

// UpdateCustomSecret 更新自定义密钥
// @Summary 更新自定义密钥（名称与描述，密钥值不变）
// @Tags Secrets
// @Accept json
// @Produce json
// @Param id path string true "密钥名称"
// @Param request body dto.UpdateCustomSecretRequest true "更新请求"
// @Success 200 {object} responses.Response
// @Router /api/secrets/{id} [put]
func (h *SecretsHandler) UpdateCustomSecret(c *gin.Context) {
	var req dto.UpdateCustomSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	userID := middleware.CurrentUserID(c)
	if err := h.svc.UpdateCustomSecret(c.Request.Context(), userID, c.Param("id"), &req); err != nil {
		responses.Error(c, err)
		return
	}
	responses.SuccessWithMessage(c, "密钥已更新", nil)
}

// DeleteCustomSecret 删除自定义密钥
// @Summary 删除自定义密钥
// @Tags Secrets
// @Produce json
// @Param id path string true "密钥名称"
// @Success 200 {object} responses.Response
// @Router /api/secrets/{id} [delete]
func (h *SecretsHandler) DeleteCustomSecret(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if err := h.svc.DeleteCustomSecret(c.Request.Context(), userID, c.Param("id")); err != nil {
		responses.Error(c, err)
		return
	}
	responses.SuccessWithMessage(c, "密钥已删除", nil)
}
