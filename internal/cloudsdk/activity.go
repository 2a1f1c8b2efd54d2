package cloudsdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	activityMine = "/activity"
	activityAll  = "/activity/all"
)

type ActivityAPI struct {
	c *Client
}

// Mine lists the caller's own events, newest first.
func (a *ActivityAPI) Mine(ctx context.Context) ([]ActivityEvent, error) {
	return a.list(ctx, activityMine)
}

// All lists events across users. Admin only on most deployments.
func (a *ActivityAPI) All(ctx context.Context) ([]ActivityEvent, error) {
	return a.list(ctx, activityAll)
}

func (a *ActivityAPI) list(ctx context.Context, path string) ([]ActivityEvent, error) {
	var events []ActivityEvent
	resp, err := a.c.Do(ctx, func(r *req.Request) (*req.Response, error) {
		return r.SetSuccessResult(&events).Get(path)
	})
	if err := handleAPIError(resp, err, "list activity"); err != nil {
		return nil, err
	}
	return events, nil
}
