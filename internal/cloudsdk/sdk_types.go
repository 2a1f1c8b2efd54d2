package cloudsdk

import (
	"time"

	"github.com/cloudstore/cloudstore/internal/utils"
	"github.com/cloudstore/cloudstore/internal/version"
	"github.com/imroc/req/v3"
)

const (
	HeaderVersion  = "X-CloudStore-Version"
	HeaderDeviceID = "X-CloudStore-Device-Id"
)

// newHTTPClient builds the shared req client. Retries stay off: the only
// retry the client does is the single one after a token refresh.
func newHTTPClient(baseURL string, timeout time.Duration) *req.Client {
	return req.C().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader(HeaderVersion, version.Version).
		SetCommonHeader(HeaderDeviceID, utils.HWID).
		SetCommonRetryCount(0).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)
}
