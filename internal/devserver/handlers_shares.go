package devserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cloudstore/cloudstore/internal/utils"
)

type shareRequest struct {
	S3Key       string `json:"s3Key" binding:"required"`
	TargetEmail string `json:"targetEmail" binding:"required"`
	Permission  string `json:"permission"`
}

type linkRequest struct {
	S3Key     string `json:"s3Key" binding:"required"`
	ExpiresIn int64  `json:"expiresIn"`
}

type shareResponse struct {
	ID          string `json:"id"`
	S3Key       string `json:"s3Key"`
	FileName    string `json:"fileName"`
	Owner       string `json:"owner"`
	TargetEmail string `json:"targetEmail"`
	Permission  string `json:"permission"`
	CreatedAt   int64  `json:"createdAt"`
}

type linkResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}

type eventResponse struct {
	ID        string `json:"id"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Target    string `json:"target"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleShare(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	sh, f, err := s.store.Share(currentUser(c), req.S3Key, utils.NormalizeEmail(req.TargetEmail), req.Permission)
	if err != nil {
		storeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, &shareResponse{
		ID:          sh.ID,
		S3Key:       sh.FileKey,
		FileName:    f.DisplayName,
		Owner:       sh.Owner,
		TargetEmail: sh.Target,
		Permission:  sh.Permission,
		CreatedAt:   sh.Created.UnixMilli(),
	})
}

// handleSharedWithMe answers an empty array, not a 404, when nothing is shared.
func (s *Server) handleSharedWithMe(c *gin.Context) {
	c.JSON(http.StatusOK, toRecords(s.store.SharedWith(currentUser(c)), func(f *file) string { return f.Owner }))
}

func (s *Server) handleRevoke(c *gin.Context) {
	if err := s.store.Unshare(currentUser(c), c.Param("shareId")); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, &messageResponse{Message: "share revoked"})
}

func (s *Server) handleCreateLink(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	expiry := s.config.LinkExpiry
	if req.ExpiresIn > 0 {
		expiry = time.Duration(req.ExpiresIn) * time.Second
	}

	l, err := s.store.CreateLink(currentUser(c), req.S3Key, expiry)
	if err != nil {
		storeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, &linkResponse{
		ID:        l.Token,
		URL:       s.publicURL(c) + "/public/" + l.Token,
		ExpiresAt: l.Expires.UnixMilli(),
	})
}

func (s *Server) handlePublic(c *gin.Context) {
	f, err := s.store.Resolve(c.Param("token"))
	if err != nil {
		storeError(c, err)
		return
	}
	serveFile(c, f)
}

func (s *Server) publicURL(c *gin.Context) string {
	if s.config.PublicURL != "" {
		return s.config.PublicURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func (s *Server) handleActivity(c *gin.Context) {
	c.JSON(http.StatusOK, toEvents(s.store.Events(currentUser(c))))
}

func (s *Server) handleActivityAll(c *gin.Context) {
	if !s.config.isAdmin(currentUser(c)) {
		abortWithError(c, http.StatusForbidden, CodeAccessDenied, "admin only")
		return
	}
	c.JSON(http.StatusOK, toEvents(s.store.Events("")))
}

func toEvents(events []event) []*eventResponse {
	out := make([]*eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, &eventResponse{
			ID:        e.ID,
			Actor:     e.Actor,
			Action:    e.Action,
			Target:    e.Target,
			Timestamp: e.At.UnixMilli(),
		})
	}
	return out
}
