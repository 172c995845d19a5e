package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatdesk/cmd/gateway/dto"
	"chatdesk/coordinator"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{coordinator.ErrEmptyMessage, "empty_message"},
	{coordinator.ErrEmptyInput, "empty_input"},
	{coordinator.ErrEmptyDocument, "empty_document"},
	{coordinator.ErrDocumentTooLarge, "document_too_large"},
	{coordinator.ErrUnsupportedDocument, "unsupported_document"},
	{coordinator.ErrNoDocumentSession, "no_document_session"},
	{coordinator.ErrSessionNotFound, "session_not_found"},
	{coordinator.ErrModelNotFound, "model_not_found"},
}

// normalizeError는 코디네이터 에러를 HTTP 상태 코드와 에러 코드로 변환한다.
func normalizeError(err error) (status int, code string) {
	switch coordinator.KindOf(err) {
	case coordinator.KindValidation:
		status = http.StatusBadRequest
	case coordinator.KindPrecondition:
		status = http.StatusConflict
	case coordinator.KindTransport:
		return http.StatusBadGateway, "backend_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return status, ec.code
		}
	}
	return status, "invalid_request"
}

func respondError(c *gin.Context, err error) {
	status, code := normalizeError(err)
	_ = c.Error(err)
	c.JSON(status, dto.ErrorResponseDTO{Error: code})
}
