package public

import (
	"github.com/ledgerpay-next/internal/http/response"
	"github.com/ledgerpay-next/internal/models"
	"github.com/ledgerpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateIntentRequest 创建支付意图请求
type CreateIntentRequest struct {
	PaylinkID uint          `json:"paylink_id" binding:"required"`
	Amount    *models.Money `json:"amount"` // 可选：为空时使用商品标价
}

// CreateIntent 创建支付意图
func (h *Handler) CreateIntent(c *gin.Context) {
	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	input := service.CreateIntentInput{PaylinkID: req.PaylinkID}
	if req.Amount != nil {
		input.Amount = *req.Amount
	}
	intent, err := h.IntentService.CreateIntent(input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, intent)
}

// GetIntentStatus 查询意图状态（前端轮询入口）
func (h *Handler) GetIntentStatus(c *gin.Context) {
	projection, err := h.IntentService.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, projection)
}

// SweepIntent 对单个意图触发一次清算并返回清算后状态
func (h *Handler) SweepIntent(c *gin.Context) {
	intent, err := h.IntentService.GetIntent(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	outcome, err := h.SweepService.SweepOne(c.Request.Context(), intent)
	if err != nil {
		respondError(c, response.CodeInternal, "error.sweep_failed", err)
		return
	}
	projection, err := h.IntentService.GetStatus(c.Request.Context(), intent.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"outcome": outcome,
		"intent":  projection,
	})
}

// CancelIntent 买家取消待结算意图
func (h *Handler) CancelIntent(c *gin.Context) {
	if err := h.IntentService.CancelIntent(c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithMsg(c, "canceled", nil)
}
