package devserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cloudstore/cloudstore/internal/utils"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type verifyRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Email        string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	email := utils.NormalizeEmail(req.Email)
	if err := utils.ValidateEmail(email); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	if err := s.store.AddUser(email, strings.TrimSpace(req.Name), req.Password, s.config.SkipVerification); err != nil {
		storeError(c, err)
		return
	}
	s.store.Record(email, "register", email)

	if s.config.SkipVerification {
		c.JSON(http.StatusCreated, &messageResponse{Message: "account created"})
		return
	}

	code, err := utils.RandBase34(s.config.CodeLength)
	if err != nil {
		storeError(c, fmt.Errorf("generate code: %w", err))
		return
	}
	s.codes.Add(email, code)
	// no mail in the dev server; the code goes to the log
	slog.Info("devserver verification code", "email", email, "code", code)

	c.JSON(http.StatusCreated, &messageResponse{Message: "verification code sent to " + email})
}

func (s *Server) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	email := utils.NormalizeEmail(req.Email)
	code := strings.ToUpper(strings.TrimSpace(req.Code))

	stored, ok := s.codes.Get(email)
	if !ok || stored != code {
		abortWithError(c, http.StatusBadRequest, CodeVerificationFailed, "invalid or expired verification code")
		return
	}
	s.codes.Remove(email)

	if err := s.store.MarkVerified(email); err != nil {
		storeError(c, err)
		return
	}
	s.store.Record(email, "verify", email)
	s.issueTokens(c, email, http.StatusOK)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	email := utils.NormalizeEmail(req.Email)
	if err := s.store.Authenticate(email, req.Password); err != nil {
		storeError(c, err)
		return
	}
	s.store.Record(email, "login", email)
	s.issueTokens(c, email, http.StatusOK)
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	claims, err := s.tokens.validateRefresh(req.RefreshToken)
	if err != nil {
		_ = c.Error(fmt.Errorf("failed to refresh token: %w", err))
		abortWithError(c, http.StatusUnauthorized, CodeRefreshFailed, err.Error())
		return
	}
	s.issueTokens(c, claims.Subject, http.StatusOK)
}

// handleReset never reveals whether the account exists.
func (s *Server) handleReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	email := utils.NormalizeEmail(req.Email)
	if s.store.HasUser(email) {
		slog.Info("devserver password reset requested", "email", email)
		s.store.Record(email, "reset", email)
	}
	c.JSON(http.StatusOK, &messageResponse{Message: "if the account exists, a reset link was sent"})
}

func (s *Server) issueTokens(c *gin.Context, email string, status int) {
	access, refresh, err := s.tokens.issue(email)
	if err != nil {
		_ = c.Error(fmt.Errorf("failed to generate tokens: %w", err))
		abortWithError(c, http.StatusInternalServerError, CodeInternalError, "failed to generate tokens")
		return
	}
	c.JSON(status, &tokenResponse{Token: access, RefreshToken: refresh, Email: email})
}

// PendingCode returns the verification code waiting for email, if any.
func (s *Server) PendingCode(email string) (string, error) {
	code, ok := s.codes.Peek(utils.NormalizeEmail(email))
	if !ok {
		return "", errors.New("no pending code")
	}
	return code, nil
}
