package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stratagem-ai/internal/render"
	"stratagem-ai/internal/transport/http/middleware"
	"stratagem-ai/internal/transport/http/response"
	"stratagem-ai/internal/workspace"
)

// WorkspaceHandler serves the page, the state snapshot and the HTML fragments
// the page swaps in on every change.
type WorkspaceHandler struct {
	sessions     *workspace.Registry
	renderer     *render.Renderer
	secureCookie bool
}

func NewWorkspaceHandler(sessions *workspace.Registry, renderer *render.Renderer, secureCookie bool) *WorkspaceHandler {
	return &WorkspaceHandler{sessions: sessions, renderer: renderer, secureCookie: secureCookie}
}

func (h *WorkspaceHandler) Page(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	h.html(c, func() error {
		return h.renderer.Page(c.Writer, sess.ID(), sess.Snapshot())
	})
}

// NewSession abandons the caller's conversation and starts a fresh one.
func (h *WorkspaceHandler) NewSession(c *gin.Context) {
	sess := h.sessions.Create()
	middleware.SetSessionCookie(c, sess.ID(), h.secureCookie)
	c.Header(middleware.SessionHeader, sess.ID())
	response.OK(c, h.renderer.View(sess.ID(), sess.Snapshot()))
}

func (h *WorkspaceHandler) State(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session middleware missing")
		return
	}
	response.OK(c, render.BuildView(sess.ID(), sess.Snapshot()))
}

func (h *WorkspaceHandler) TranscriptFragment(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	h.html(c, func() error {
		return h.renderer.Transcript(c.Writer, sess.ID(), sess.Snapshot())
	})
}

func (h *WorkspaceHandler) AnalysisFragment(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	h.html(c, func() error {
		return h.renderer.Analysis(c.Writer, sess.Snapshot())
	})
}

func (h *WorkspaceHandler) html(c *gin.Context, write func() error) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if err := write(); err != nil {
		_ = c.Error(err)
	}
}
