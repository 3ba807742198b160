package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gomarket-app/backend/internal/auth"
	"github.com/gomarket-app/backend/internal/auth/jwt"
	"github.com/gomarket-app/backend/internal/config"
	"github.com/gomarket-app/backend/internal/dto"
	"github.com/gomarket-app/backend/internal/hdl"
	"github.com/gomarket-app/backend/internal/hdl/http/utils"
	metrics "github.com/gomarket-app/backend/internal/observability/metrics/prometheus"
	"github.com/gomarket-app/backend/internal/throttle"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

// Rotator is the single rotation attempt the session middleware may
// perform for a request carrying an expired access token.
type Rotator interface {
	Rotate(ctx context.Context, d *dto.DeviceRequest, refresh string) (*dto.TokenPair, error)
}

// Device captures the client fingerprint (IP + User-Agent) into the
// request context. Must run after chi's RealIP.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			ip := r.Header.Get("X-Real-IP")
			if ip == "" {
				ip = r.RemoteAddr
			}

			ctx := context.WithValue(r.Context(), config.IpKey, ip)
			ctx = context.WithValue(ctx, config.UaKey, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		},
	)
}

// isAuthFailure separates rotation errors that invalidate the session
// from transient ones. Only the former may clear the client's cookies.
func isAuthFailure(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired) ||
		errors.Is(err, jwt.ErrTokenMalformed) ||
		errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrTokenRevoked) ||
		errors.Is(err, auth.ErrReuseDetected)
}

// Auth decides whether a request is authenticated. A valid access token
// passes through; an expired one is transparently upgraded with exactly
// one rotation of the refresh cookie, bounding store round-trips per
// request. A malformed access token is rejected without ever consulting
// the refresh chain.
func Auth(au jwt.Port, rotator Rotator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				header := r.Header.Get("Authorization")
				if header == "" {
					utils.ErrResponse(w, http.StatusUnauthorized, hdl.ErrNotAuthorized)
					return
				}

				token, ok := strings.CutPrefix(header, "Bearer ")
				if !ok {
					utils.ErrResponse(w, http.StatusUnauthorized, hdl.ErrNotAuthorized)
					return
				}

				claims, err := au.ParseAccess(r.Context(), token)
				switch {
				case err == nil:
					ctx := context.WithValue(r.Context(), config.UidKey, claims.UID)
					ctx = context.WithValue(ctx, config.EmailKey, claims.Email)

					// Correlate the session with its rotation chain so
					// logout can revoke the right record.
					if cookie, cErr := r.Cookie(config.RefreshCookieName); cErr == nil {
						if jti, jErr := au.ExtractJTI(ctx, cookie.Value); jErr == nil {
							ctx = context.WithValue(ctx, config.JtiKey, jti)
						}
					}

					next.ServeHTTP(w, r.WithContext(ctx))

				case errors.Is(err, jwt.ErrTokenExpired):
					cookie, cErr := r.Cookie(config.RefreshCookieName)
					if cErr != nil {
						utils.ErrResponse(w, http.StatusUnauthorized, hdl.ErrNotAuthorized)
						return
					}

					d, ok := utils.ParseDeviceByRequest(r.Context())
					if !ok {
						utils.ErrResponse(w, http.StatusUnauthorized, hdl.ErrNotAuthorized)
						return
					}

					pair, rErr := rotator.Rotate(r.Context(), &d, cookie.Value)
					if rErr != nil {
						if isAuthFailure(rErr) {
							utils.ClearAuthCookies(w)
							utils.ErrResponse(w, http.StatusUnauthorized, hdl.ErrNotAuthorized)
							return
						}

						// A store outage is not an authentication verdict;
						// the refresh cookie stays valid for a retry.
						utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
						return
					}

					fresh, pErr := au.ParseAccess(r.Context(), pair.Access)
					if pErr != nil {
						utils.ErrResponse(w, http.StatusInternalServerError, hdl.ErrInternal)
						return
					}

					utils.SetRefreshCookie(w, pair.Refresh)
					w.Header().Set(config.AccessTokenHeader, pair.Access)

					ctx := context.WithValue(r.Context(), config.UidKey, fresh.UID)
					ctx = context.WithValue(ctx, config.EmailKey, fresh.Email)
					if jti, jErr := au.ExtractJTI(ctx, pair.Refresh); jErr == nil {
						ctx = context.WithValue(ctx, config.JtiKey, jti)
					}

					next.ServeHTTP(w, r.WithContext(ctx))

				default:
					utils.ErrResponse(w, http.StatusUnauthorized, hdl.ErrNotAuthorized)
				}
			},
		)
	}
}

// CSRF verifies the double-submit token on state-changing methods: the
// non-HttpOnly cookie must be echoed back in the header.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
				cookie, err := r.Cookie(config.CSRFCookieName)
				if err != nil {
					utils.ErrResponse(w, http.StatusForbidden, hdl.ErrNotAuthorized)
					return
				}

				header := r.Header.Get(config.CSRFHeaderName)
				if header == "" || !auth.CompareCSRF(cookie.Value, header) {
					utils.ErrResponse(w, http.StatusForbidden, hdl.ErrNotAuthorized)
					return
				}
			}

			next.ServeHTTP(w, r)
		},
	)
}

type throttleBody struct {
	Email string `json:"email"`
}

// Throttle applies a gate in front of a sensitive endpoint. The key is
// the normalized email from the body when one is present, so one account
// hammered from many IPs is still throttled, falling back to the caller
// IP otherwise.
func Throttle(gate *throttle.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				key := parseThrottleKey(r)

				delay, err := gate.Check(r.Context(), key)
				if err != nil {
					if errors.Is(err, throttle.ErrRateLimited) {
						utils.ErrResponse(w, http.StatusTooManyRequests, throttle.ErrRateLimited)
						return
					}

					// A broken counter store must not lock everyone out;
					// rate limiting degrades to best-effort.
					zap.L().Warn("throttle counter unavailable", zap.Error(err))
					next.ServeHTTP(w, r)
					return
				}

				if delay > 0 {
					t := time.NewTimer(delay)
					select {
					case <-r.Context().Done():
						t.Stop()
						return
					case <-t.C:
					}
				}

				next.ServeHTTP(w, r)
			},
		)
	}
}

func parseThrottleKey(r *http.Request) string {
	ip := r.Header.Get("X-Real-IP")
	if ip == "" {
		ip = r.RemoteAddr
	}

	if r.Body == nil {
		return ip
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, config.MaxMemory))
	if err != nil {
		return ip
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	parsed := throttleBody{}
	if err = json.Unmarshal(body, &parsed); err != nil || parsed.Email == "" {
		return ip
	}

	return strings.ToLower(strings.TrimSpace(parsed.Email))
}

type LoggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func NewLoggingResponseWriter(w http.ResponseWriter) *LoggingResponseWriter {
	return &LoggingResponseWriter{w, http.StatusOK}
}

func (lrw *LoggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			s := time.Now()
			op := fmt.Sprintf("%s %s", r.Method, r.URL.Path)

			lrw := NewLoggingResponseWriter(w)
			next.ServeHTTP(lrw, r)
			metrics.ObserveRequest(time.Since(s), lrw.statusCode, op)
		},
	)
}

func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				lrw := NewLoggingResponseWriter(w)
				logger.Debug(
					"-->",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote", r.RemoteAddr),
				)

				next.ServeHTTP(lrw, r)

				logger.Info(
					"<--",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", lrw.statusCode),
					zap.Duration("duration", time.Since(start)),
					zap.String("remote", r.RemoteAddr),
				)
			},
		)
	}
}

func OT(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			span, ctx := opentracing.StartSpanFromContext(r.Context(), fmt.Sprintf("%s %s", r.Method, r.RequestURI))
			defer span.Finish()

			next.ServeHTTP(w, r.WithContext(ctx))
		},
	)
}
