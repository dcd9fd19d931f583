package public

import (
	"errors"

	"github.com/ledgerpay-next/internal/http/response"
	"github.com/ledgerpay-next/internal/logger"
	"github.com/ledgerpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// respondError 输出错误响应并记录原始错误
func respondError(c *gin.Context, statusCode int, msg string, err error) {
	if err != nil {
		logger.Warnw("public_api_error",
			"path", c.FullPath(),
			"status_code", statusCode,
			"error", err,
		)
	}
	response.Error(c, statusCode, msg)
}

// respondServiceError 将服务层错误映射为统一响应
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMerchantNotFound):
		respondError(c, response.CodeNotFound, "error.merchant_not_found", nil)
	case errors.Is(err, service.ErrPaylinkNotFound):
		respondError(c, response.CodeNotFound, "error.paylink_not_found", nil)
	case errors.Is(err, service.ErrProductNotFound):
		respondError(c, response.CodeNotFound, "error.product_not_found", nil)
	case errors.Is(err, service.ErrIntentNotFound):
		respondError(c, response.CodeNotFound, "error.intent_not_found", nil)
	case errors.Is(err, service.ErrIntentAlreadySettled):
		respondError(c, response.CodeConflict, "error.intent_already_settled", nil)
	case errors.Is(err, service.ErrCodeExhausted):
		respondError(c, response.CodeConflict, "error.correlation_code_exhausted", err)
	case errors.Is(err, service.ErrIntentInvalid):
		respondError(c, response.CodeBadRequest, "error.intent_invalid", nil)
	default:
		respondError(c, response.CodeInternal, "error.internal", err)
	}
}
