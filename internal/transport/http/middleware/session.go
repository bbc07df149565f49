package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stratagem-ai/internal/workspace"
)

const (
	SessionCookie     = "stratagem_session"
	SessionHeader     = "X-Session-ID"
	ContextSessionKey = "session"
)

// Session attaches the caller's workspace session to the request, creating
// one when the presented id is missing or unknown. The id in effect is always
// echoed back in the X-Session-ID header.
func Session(sessions *workspace.Registry, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(SessionHeader)
		if presented == "" {
			presented, _ = c.Cookie(SessionCookie)
		}

		sess := sessions.Resolve(presented)
		if sess.ID() != presented {
			SetSessionCookie(c, sess.ID(), secureCookie)
		}
		c.Header(SessionHeader, sess.ID())
		c.Set(ContextSessionKey, sess)
		c.Next()
	}
}

func SetSessionCookie(c *gin.Context, id string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, 0, "/", "", secure, true)
}

func SessionFrom(c *gin.Context) (*workspace.Session, bool) {
	v, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil, false
	}
	sess, ok := v.(*workspace.Session)
	return sess, ok
}
