package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flicky/grocer/internal/dto"
	"github.com/flicky/grocer/internal/service"
)

var kindStatus = map[string]int{
	service.KindInsufficientStock:      http.StatusConflict,
	service.KindInvalidRating:          http.StatusBadRequest,
	service.KindValidation:             http.StatusBadRequest,
	service.KindPurchaseRequired:       http.StatusForbidden,
	service.KindDuplicateReview:        http.StatusConflict,
	service.KindAuthenticationRequired: http.StatusUnauthorized,
	service.KindNotFound:               http.StatusNotFound,
	service.KindForbidden:              http.StatusForbidden,
	service.KindConflict:               http.StatusConflict,
	service.KindTransactionFailed:      http.StatusServiceUnavailable,
}

// respondError writes err as an ErrorResponse. Storage details never reach
// the client; they are logged instead.
func respondError(c *gin.Context, err error) {
	kind := service.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := dto.ErrorResponse{Error: kind, Message: err.Error()}
	var stockErr *service.StockError
	if errors.As(err, &stockErr) {
		resp.ProductID = stockErr.ProductID
	}
	switch kind {
	case service.KindTransactionFailed:
		resp.Message = "order could not be completed, please try again"
	case service.KindInternal:
		resp.Message = "internal server error"
	}
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "kind", kind, "error", err)
	}
	c.AbortWithStatusJSON(status, resp)
}

func respondBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: service.KindValidation, Message: err.Error()})
}

// pathID parses a positive integer path parameter, answering 400 itself when it is not one.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: service.KindValidation, Message: "invalid " + name})
		return 0, false
	}
	return id, true
}
