package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey struct{}

// FromContext returns the session loaded by the middleware, or nil
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(contextKey{}).(*Session)
	return sess
}

// WithSession stores sess in ctx
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// Middleware loads the client's session (creating one when missing or
// expired) and persists it before the response headers are sent.
func Middleware(config Config, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, fresh := load(r, config, logger)

			http.SetCookie(w, &http.Cookie{
				Name:     config.CookieName,
				Value:    sess.ID,
				Path:     config.CookiePath,
				Domain:   config.CookieDomain,
				MaxAge:   int(config.TTL / time.Second),
				HttpOnly: config.HTTPOnly,
				Secure:   config.Secure,
				SameSite: sameSite(config.SameSite),
			})

			sw := &sessionWriter{
				ResponseWriter: w,
				ctx:            r.Context(),
				session:        sess,
				fresh:          fresh,
				config:         config,
				logger:         logger,
			}
			next.ServeHTTP(sw, r.WithContext(WithSession(r.Context(), sess)))
			sw.persist()
		})
	}
}

func load(r *http.Request, config Config, logger *zap.Logger) (*Session, bool) {
	if cookie, err := r.Cookie(config.CookieName); err == nil && cookie.Value != "" {
		sess, err := config.Store.Get(r.Context(), cookie.Value)
		if err == nil {
			return sess, false
		}
		if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExpired) {
			logger.Warn("failed to load session", zap.Error(err))
		}
	}
	return New(uuid.NewString(), config.TTL), true
}

// sessionWriter saves the session once, right before the first header write
type sessionWriter struct {
	http.ResponseWriter
	ctx     context.Context
	session *Session
	fresh   bool
	config  Config
	logger  *zap.Logger
	once    sync.Once
}

func (sw *sessionWriter) WriteHeader(statusCode int) {
	sw.persist()
	sw.ResponseWriter.WriteHeader(statusCode)
}

func (sw *sessionWriter) Write(b []byte) (int, error) {
	sw.persist()
	return sw.ResponseWriter.Write(b)
}

func (sw *sessionWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

func (sw *sessionWriter) persist() {
	sw.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(sw.ctx), 5*time.Second)
		defer cancel()

		dirty, destroyed := sw.session.state()
		switch {
		case destroyed:
			if err := sw.config.Store.Delete(ctx, sw.session.ID); err != nil {
				sw.logger.Warn("failed to delete session", zap.String("session_id", sw.session.ID), zap.Error(err))
			}
		case dirty || sw.fresh:
			if err := sw.config.Store.Set(ctx, sw.session, sw.config.TTL); err != nil {
				sw.logger.Warn("failed to save session", zap.String("session_id", sw.session.ID), zap.Error(err))
			}
		}
	})
}

func sameSite(s string) http.SameSite {
	switch s {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
