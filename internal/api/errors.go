package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/selivandex/marketmood/pkg/apperr"
)

const noAnalysisMessage = "No market analysis available. Please try again later."

type errorResponse struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindSourceUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindSummarizerTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindSummarizer, apperr.KindScoring:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {kind, message}. Wrapped causes stay in logs.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	message := apperr.MessageOf(err)
	if kind == apperr.KindInternal {
		message = "internal server error"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(statusForKind(kind), errorResponse{Kind: kind, Message: message})
}
