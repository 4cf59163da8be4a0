package middleware

import (
	"net/http"

	"storefront-backend/logger"
	"storefront-backend/session"

	"github.com/gin-gonic/gin"
)

const contextSession = "session"

// sessionWriter commits the session right before the response headers are
// sent, so a new session cookie can still be attached.
type sessionWriter struct {
	gin.ResponseWriter
	commit func()
	done   bool
}

func (w *sessionWriter) flushSession() {
	if w.done {
		return
	}
	w.done = true
	w.commit()
}

func (w *sessionWriter) WriteHeaderNow() {
	w.flushSession()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.flushSession()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) WriteString(s string) (int, error) {
	w.flushSession()
	return w.ResponseWriter.WriteString(s)
}

func (w *sessionWriter) Flush() {
	w.flushSession()
	w.ResponseWriter.Flush()
}

// Sessions loads the visitor's session from its cookie and persists changes
// made by the handler.
func Sessions(mgr *session.Manager, logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		cookieID, _ := c.Cookie(mgr.CookieName())
		sess, err := mgr.Start(ctx, cookieID)
		if err != nil {
			logg.Error(ctx, "session.load_failed", err)
			// A fresh session never touches the store.
			sess, err = mgr.Start(ctx, "")
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Session unavailable"})
				return
			}
		}
		c.Request = c.Request.WithContext(logg.WithSessionID(ctx, sess.ID()))

		w := &sessionWriter{ResponseWriter: c.Writer}
		w.commit = func() {
			persisted := sess.Dirty()
			if err := mgr.Commit(c.Request.Context(), sess); err != nil {
				logg.Error(c.Request.Context(), "session.commit_failed", err)
				return
			}
			if persisted && sess.IsNew() {
				http.SetCookie(w.ResponseWriter, &http.Cookie{
					Name:     mgr.CookieName(),
					Value:    sess.ID(),
					Path:     "/",
					HttpOnly: true,
					Secure:   mgr.Secure(),
					SameSite: http.SameSiteLaxMode,
				})
			}
		}
		c.Writer = w
		c.Set(contextSession, sess)

		c.Next()

		w.flushSession()
	}
}

// GetSession returns the request's session, or nil when the Sessions
// middleware is not installed.
func GetSession(c *gin.Context) *session.Session {
	v, ok := c.Get(contextSession)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}
