// Package devserver is an in-memory stand-in for the CloudStore backend.
// It speaks the same HTTP surface as production, keeps everything in
// memory and is meant for local runs and tests, not for real data.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cloudstore/cloudstore/internal/version"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config  *Config
	store   *Store
	tokens  *tokenIssuer
	codes   *expirable.LRU[string, string]
	handler http.Handler
	server  *http.Server
}

func New(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config: config,
		store:  NewStore(),
		tokens: newTokenIssuer(config),
		codes:  expirable.NewLRU[string, string](0, nil, config.CodeExpiry), // 0 = no size bound
	}

	if config.SeedFile != "" {
		seed, err := LoadSeed(config.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("devserver seed: %w", err)
		}
		if err := s.ApplySeed(seed); err != nil {
			return nil, fmt.Errorf("devserver seed: %w", err)
		}
		slog.Info("devserver seeded", "file", config.SeedFile, "users", len(seed.Users), "files", len(seed.Files))
	}

	handler, err := s.routes()
	if err != nil {
		return nil, fmt.Errorf("devserver routes: %w", err)
	}
	s.handler = handler
	s.server = &http.Server{
		Addr:    config.Addr,
		Handler: handler,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Store() *Store {
	return s.store
}

// SetClock replaces the clock used for file timestamps, link expiry and
// activity. Token expiry keeps the wall clock.
func (s *Server) SetClock(now func() time.Time) {
	s.store.mu.Lock()
	s.store.now = now
	s.store.mu.Unlock()
}

// RevokeAccessTokens invalidates every access token issued so far. Refresh
// tokens keep working, which is how a client's refresh path gets exercised.
func (s *Server) RevokeAccessTokens() int {
	return s.tokens.revokeAccess()
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("devserver start", "addr", s.config.Addr, "version", version.Short())
	defer slog.Info("devserver stop")

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.TLS() {
			slog.Info("devserver tls", "cert", s.config.CertFile, "key", s.config.KeyFile)
			err = s.server.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) routes() (http.Handler, error) {
	rateLimit, err := RateLimiter(s.config.RateLimit)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20 // 8 MiB
	// storage keys carry "/" and arrive as %2F in /file/:s3Key/permanent
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(Logger())
	r.Use(gin.Recovery())
	r.Use(Secure(s.config.TLS()))
	r.Use(GZIP())
	r.Use(CORS())
	r.Use(rateLimit)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, version.DetailedWithApp())
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.PureJSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/public/:token", s.handlePublic)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/verify", s.handleVerify)
		authGroup.POST("/refresh", s.handleRefresh)
		authGroup.POST("/reset", s.handleReset)
	}

	files := r.Group("/file", JWTAuth(s.tokens))
	{
		files.GET("/list", s.handleList)
		files.GET("/trash", s.handleTrash)
		files.POST("/upload", s.handleUpload)
		files.GET("/download", s.handleDownload)
		files.DELETE("/delete", s.handleDelete)
		files.DELETE("/delete-folder", s.handleDeleteFolder)
		files.PATCH("/rename", s.handleRename)
		files.PATCH("/rename-folder", s.handleRenameFolder)
		files.POST("/restore", s.handleRestore)
		files.DELETE("/:s3Key/permanent", s.handlePermanentDelete)
	}

	shares := r.Group("/share", JWTAuth(s.tokens))
	{
		shares.POST("/user", s.handleShare)
		shares.GET("/with-me", s.handleSharedWithMe)
		shares.POST("/link", s.handleCreateLink)
		shares.DELETE("/:shareId", s.handleRevoke)
	}

	activity := r.Group("/activity", JWTAuth(s.tokens))
	{
		activity.GET("", s.handleActivity)
		activity.GET("/all", s.handleActivityAll)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, &APIError{Code: CodeNotFound, Message: "not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, &APIError{Code: CodeInvalidRequest, Message: "method not allowed"})
	})

	return r.Handler(), nil
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
