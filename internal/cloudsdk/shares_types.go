package cloudsdk

type ShareRequest struct {
	S3Key       string `json:"s3Key"`
	TargetEmail string `json:"targetEmail"`
	Permission  string `json:"permission,omitempty"`
}

type PublicLinkRequest struct {
	S3Key     string `json:"s3Key"`
	ExpiresIn int64  `json:"expiresIn,omitempty"` // seconds, 0 = server default
}

type Share struct {
	ID          string `json:"id"`
	S3Key       string `json:"s3Key"`
	FileName    string `json:"fileName,omitempty"`
	Owner       string `json:"owner,omitempty"`
	TargetEmail string `json:"targetEmail,omitempty"`
	Permission  string `json:"permission,omitempty"`
	CreatedAt   any    `json:"createdAt,omitempty"`
}

type PublicLink struct {
	ID        string `json:"id,omitempty"`
	URL       string `json:"url"`
	ExpiresAt any    `json:"expiresAt,omitempty"`
}

type ActivityEvent struct {
	ID        string `json:"id,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	Timestamp any    `json:"timestamp,omitempty"`
}
