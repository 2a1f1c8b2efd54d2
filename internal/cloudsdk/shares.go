package cloudsdk

import (
	"context"
	"errors"

	"github.com/cloudstore/cloudstore/internal/utils"
	"github.com/imroc/req/v3"
)

const (
	shareUser   = "/share/user"
	shareWithMe = "/share/with-me"
	shareByID   = "/share/{shareId}"
	shareLink   = "/share/link"
)

var ErrMissingShareID = errors.New("sdk: share id missing")

type SharesAPI struct {
	c *Client
}

// ShareWithUser grants targetEmail access to the object under s3Key.
func (s *SharesAPI) ShareWithUser(ctx context.Context, share *ShareRequest) (*Share, error) {
	if share.S3Key == "" {
		return nil, ErrMissingS3Key
	}
	share.TargetEmail = utils.NormalizeEmail(share.TargetEmail)
	if err := utils.ValidateEmail(share.TargetEmail); err != nil {
		return nil, err
	}

	var result Share
	resp, err := s.c.Do(ctx, func(r *req.Request) (*req.Response, error) {
		return r.SetBody(share).SetSuccessResult(&result).Post(shareUser)
	})
	if err := handleAPIError(resp, err, "share"); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *SharesAPI) SharedWithMe(ctx context.Context) ([]RawRecord, error) {
	resp, err := s.c.Do(ctx, func(r *req.Request) (*req.Response, error) {
		return r.Get(shareWithMe)
	})
	if err := handleAPIError(resp, err, "list shares"); err != nil {
		return nil, err
	}
	return decodeRecords(resp.Bytes())
}

func (s *SharesAPI) Revoke(ctx context.Context, shareID string) error {
	if shareID == "" {
		return ErrMissingShareID
	}
	resp, err := s.c.Do(ctx, func(r *req.Request) (*req.Response, error) {
		return r.SetPathParam("shareId", shareID).Delete(shareByID)
	})
	return handleAPIError(resp, err, "revoke share")
}

func (s *SharesAPI) CreatePublicLink(ctx context.Context, link *PublicLinkRequest) (*PublicLink, error) {
	if link.S3Key == "" {
		return nil, ErrMissingS3Key
	}

	var result PublicLink
	resp, err := s.c.Do(ctx, func(r *req.Request) (*req.Response, error) {
		return r.SetBody(link).SetSuccessResult(&result).Post(shareLink)
	})
	if err := handleAPIError(resp, err, "create link"); err != nil {
		return nil, err
	}
	return &result, nil
}
