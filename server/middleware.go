package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"lbx/config"
	"lbx/infrastructure/observability"
	"lbx/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Context keys and transport names
const (
	viewerKey    = "viewer"
	adminUserKey = "adminUser"

	ViewerCookie     = "viewer"
	ViewerHeader     = "X-Viewer-Name"
	AdminCookie      = "admin_token"
	HookSecretHeader = "X-L3Z-Secret"
)

// RequestLogger logs every request with logrus and records its HTTP metrics
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		observability.GetMetrics().RecordHTTPRequest(c.Request.Method, route, status, latency)

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   status,
			"latency":  latency.String(),
			"clientIP": c.ClientIP(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("HTTP request")
		case status >= http.StatusBadRequest:
			entry.Warn("HTTP request")
		default:
			entry.Debug("HTTP request")
		}
	}
}

// AdminClaims are the claims of an admin session token
type AdminClaims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// IssueAdminToken signs an HS256 admin token for username
func IssueAdminToken(cfg *config.Config, username string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(cfg.AdminTokenTTL)
	claims := AdminClaims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.AdminSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAdminToken validates an admin token and returns its claims
func ParseAdminToken(cfg *config.Config, tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.AdminSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || !claims.Admin {
		return nil, errors.New("token is not an admin token")
	}
	return claims, nil
}

// RequireAdmin accepts a Bearer token or the admin cookie.
// With DisableAdminAuth every request passes as the configured admin user.
func RequireAdmin(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.DisableAdminAuth {
			c.Set(adminUserKey, adminName(cfg))
			c.Next()
			return
		}

		tokenString := ""
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenString = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		} else if cookie, err := c.Cookie(AdminCookie); err == nil {
			tokenString = cookie
		}
		if tokenString == "" {
			fail(c, http.StatusUnauthorized, CodeUnauthorized)
			return
		}

		claims, err := ParseAdminToken(cfg, tokenString)
		if err != nil {
			log.WithFields(log.Fields{
				"path":  c.FullPath(),
				"error": err,
			}).Warn("Rejected admin token")
			fail(c, http.StatusUnauthorized, CodeUnauthorized)
			return
		}

		c.Set(adminUserKey, claims.Subject)
		c.Next()
	}
}

func adminName(cfg *config.Config) string {
	if cfg.AdminUser != "" {
		return strings.ToLower(cfg.AdminUser)
	}
	return "admin"
}

func adminUser(c *gin.Context) string {
	return c.GetString(adminUserKey)
}

type viewerBody struct {
	Viewer   string `json:"viewer"`
	Username string `json:"username"`
}

// RequireViewer resolves the viewer from the cookie, header, query or body, in that order.
// The body is cached so handlers bind it again with ShouldBindBodyWith.
func RequireViewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := ""
		if cookie, err := c.Cookie(ViewerCookie); err == nil {
			name = cookie
		}
		if strings.TrimSpace(name) == "" {
			name = c.GetHeader(ViewerHeader)
		}
		if strings.TrimSpace(name) == "" {
			name = c.Query("viewer")
		}
		if strings.TrimSpace(name) == "" {
			var body viewerBody
			if err := bindOptionalJSON(c, &body); err == nil {
				name = firstNonEmpty(body.Viewer, body.Username)
			}
		}

		name = models.NormalizeUsername(name)
		if name == "" {
			fail(c, http.StatusUnauthorized, CodeLoginRequired)
			return
		}
		c.Set(viewerKey, name)
		c.Next()
	}
}

func viewer(c *gin.Context) string {
	return c.GetString(viewerKey)
}

// RequireHookSecret checks the shared hook secret. An empty secret accepts every caller.
func RequireHookSecret(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.HookSecret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(HookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.HookSecret)) != 1 {
			fail(c, http.StatusUnauthorized, CodeUnauthorized)
			return
		}
		c.Next()
	}
}

// IPRateLimiter hands out one token bucket per client IP
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter allows perMinute requests per IP with the given burst
func NewIPRateLimiter(perMinute, burst int) *IPRateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow consumes a token for ip
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Middleware rejects requests beyond the limit with 429
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			fail(c, http.StatusTooManyRequests, CodeTooFast)
			return
		}
		c.Next()
	}
}

// bindOptionalJSON binds a cached JSON body, treating an empty body as no fields
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.ContentLength == 0 {
		if _, cached := c.Get(gin.BodyBytesKey); !cached {
			return nil
		}
	}
	err := c.ShouldBindBodyWith(obj, binding.JSON)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
