package devserver

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const (
	bearerPrefix   = "Bearer "
	authHeader     = "Authorization"
	userContextKey = "user"
)

var (
	gzipExcludedPaths = []string{
		"/healthz",
		"/file/download",
		"/public",
	}
	gzipExcludedExtensions = []string{
		".png", ".gif", ".jpeg", ".jpg", ".webp", ".ico",
		".zip", ".tar", ".gz", ".bz2", ".rar", ".7z",
	}
)

func Logger() gin.HandlerFunc {
	httpLogger := slog.Default().WithGroup("http")

	return slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	})
}

func GZIP() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.BestSpeed,
		gzip.WithExcludedPaths(gzipExcludedPaths),
		gzip.WithExcludedExtensions(gzipExcludedExtensions),
	)
}

func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-CloudStore-Version", "X-CloudStore-Device-Id"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	})
}

// Secure sets the browser hardening headers. HSTS and the https redirect
// only apply when the server terminates TLS itself.
func Secure(tls bool) gin.HandlerFunc {
	var stsSeconds int64
	if tls {
		stsSeconds = 315360000
	}
	return secure.New(secure.Config{
		SSLRedirect:          tls,
		STSSeconds:           stsSeconds,
		STSIncludeSubdomains: tls,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		IENoOpen:             true,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
	})
}

// RateLimiter returns a per-IP limiter for formattedRate, or a no-op when
// the rate is empty.
func RateLimiter(formattedRate string) (gin.HandlerFunc, error) {
	if formattedRate == "" {
		return func(c *gin.Context) { c.Next() }, nil
	}

	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		return nil, err
	}

	lim := limiter.New(memory.NewStore(), rate)
	return mgin.NewMiddleware(
		lim,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.PureJSON(http.StatusTooManyRequests, &APIError{
				Code:    CodeRateLimited,
				Message: "rate limit exceeded",
			})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			c.PureJSON(http.StatusInternalServerError, &APIError{
				Code:    CodeInternalError,
				Message: err.Error(),
			})
		}),
	), nil
}

// JWTAuth validates the bearer access token and stores its subject in the
// context.
func JWTAuth(tokens *tokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		value := c.GetHeader(authHeader)
		if value == "" {
			abortWithError(c, http.StatusUnauthorized, CodeInvalidCredentials, "Authorization header is missing")
			return
		}

		if !strings.HasPrefix(value, bearerPrefix) {
			abortWithError(c, http.StatusUnauthorized, CodeInvalidCredentials, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := tokens.validateAccess(strings.TrimPrefix(value, bearerPrefix))
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, CodeInvalidCredentials, err.Error())
			return
		}

		c.Set(userContextKey, claims.Subject)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userContextKey)
}
