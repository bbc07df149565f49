package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stratagem-ai/internal/app"
	"stratagem-ai/internal/attachment"
	"stratagem-ai/internal/render"
	"stratagem-ai/internal/transport/http/middleware"
	"stratagem-ai/internal/transport/http/response"
)

type ChatHandler struct {
	chatService     *app.ChatService
	analysisService *app.AnalysisService
	encoder         *attachment.Encoder
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"max=20000"`
}

func NewChatHandler(chatService *app.ChatService, analysisService *app.AnalysisService, encoder *attachment.Encoder) *ChatHandler {
	return &ChatHandler{chatService: chatService, analysisService: analysisService, encoder: encoder}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session middleware missing")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), app.SendMessageInput{
		SessionID: sess.ID(),
		Content:   req.Content,
	})
	if err != nil {
		writeServiceError(c, err, "send message failed")
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) AddAttachments(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session middleware missing")
		return
	}

	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no files uploaded")
		return
	}

	added, err := h.chatService.AddAttachments(c.Request.Context(), sess.ID(), filesOf(form.File["files"]))
	if err != nil {
		writeServiceError(c, err, "add attachments failed")
		return
	}

	response.OK(c, gin.H{
		"added":    added,
		"rejected": len(form.File["files"]) - added,
		"pending":  render.Chips(sess.Snapshot().Pending),
	})
}

func (h *ChatHandler) RemoveAttachment(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session middleware missing")
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid attachment index")
		return
	}
	if err := h.chatService.RemoveAttachment(sess.ID(), index); err != nil {
		writeServiceError(c, err, "remove attachment failed")
		return
	}

	response.OK(c, gin.H{"pending": render.Chips(sess.Snapshot().Pending)})
}

// Analyze runs a panel-only analysis of one uploaded document and waits for
// the result.
func (h *ChatHandler) Analyze(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session middleware missing")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	encoded := h.encoder.EncodeAll(c.Request.Context(), []attachment.File{attachment.FromMultipart(fh)})
	if len(encoded) == 0 {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, "file could not be read or is too large")
		return
	}

	result, err := h.analysisService.AnalyzeAttachment(c.Request.Context(), sess, encoded[0])
	if err != nil {
		writeServiceError(c, err, "analyze document failed")
		return
	}

	response.OK(c, result)
}

func writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeMessageEmpty, err.Error())
	case errors.Is(err, app.ErrNotDocument):
		response.Error(c, http.StatusUnsupportedMediaType, response.CodeNotDocument, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrChatFailed), errors.Is(err, app.ErrAnalysisFailed):
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailed, fallback)
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func filesOf(headers []*multipart.FileHeader) []attachment.File {
	files := make([]attachment.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, attachment.FromMultipart(fh))
	}
	return files
}
