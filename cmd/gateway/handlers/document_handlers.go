package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatdesk/cmd/gateway/dto"
	"chatdesk/coordinator"
)

// UploadDocumentHandler godoc
// @Summary      문서 업로드
// @Description  PDF 문서를 현재 세션에 업로드합니다. 현재 세션이 없으면 문서 세션을 먼저 만듭니다.
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "PDF 파일"
// @Success      200   {object}  dto.UploadResponseDTO
// @Failure      400   {object}  dto.ErrorResponseDTO
// @Failure      502   {object}  dto.ErrorResponseDTO
// @Router       /documents [post]
func UploadDocumentHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "file_required"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "file_required"})
			return
		}
		defer f.Close()

		resp, err := coord.UploadDocument(c.Request.Context(), fh.Filename, f)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.UploadResponseDTO{
			Message:   resp.Message,
			SessionID: coord.Store().CurrentSessionID(),
			Filename:  resp.Document.Filename,
			Pages:     resp.Document.Pages,
		})
	}
}

// GenerateQAHandler godoc
// @Summary      Q&A 생성
// @Description  현재 문서 세션에 대해 질문/답변 쌍을 생성합니다.
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        body  body      dto.GenerateQARequest  false  "options"
// @Success      200   {object}  models.Message
// @Failure      409   {object}  dto.ErrorResponseDTO  "문서 세션이 아님"
// @Failure      502   {object}  dto.ErrorResponseDTO
// @Router       /qa [post]
func GenerateQAHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.GenerateQARequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
				return
			}
		}
		msg, err := coord.GenerateQA(c.Request.Context(), req.NumQuestions)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}

// ResearchHandler godoc
// @Summary      문서 리서치
// @Description  현재 문서 세션에 대해 리서치 질의를 실행합니다.
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        body  body      dto.ResearchRequest  true  "query"
// @Success      200   {object}  models.Message
// @Failure      400   {object}  dto.ErrorResponseDTO
// @Failure      409   {object}  dto.ErrorResponseDTO
// @Failure      502   {object}  dto.ErrorResponseDTO
// @Router       /research [post]
func ResearchHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.ResearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
			return
		}
		msg, err := coord.Research(c.Request.Context(), req.Query)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}

// TranslateHandler godoc
// @Summary      문서 번역
// @Description  현재 문서 세션의 문서를 지정한 언어로 번역합니다.
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        body  body      dto.TranslateRequest  true  "target language"
// @Success      200   {object}  models.Message
// @Failure      400   {object}  dto.ErrorResponseDTO
// @Failure      409   {object}  dto.ErrorResponseDTO
// @Failure      502   {object}  dto.ErrorResponseDTO
// @Router       /translate [post]
func TranslateHandler(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.TranslateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
			return
		}
		msg, err := coord.Translate(c.Request.Context(), req.TargetLanguage)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}
