package cloudsdk

// RawRecord is one element of the list or trash response. The backend is
// loose about types: ids and sizes arrive as numbers or strings and the
// timestamp as epoch millis or a date string, so those stay untyped until
// the file view normalizes them.
type RawRecord struct {
	ID           any    `json:"id,omitempty"`
	FileID       any    `json:"fileId,omitempty"`
	FileName     string `json:"fileName,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	S3Key        string `json:"s3Key,omitempty"`
	Size         any    `json:"size,omitempty"`
	LastModified any    `json:"lastModified,omitempty"`
	SharedBy     string `json:"sharedBy,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
}

// Name is the path-prefixed display name of the record.
func (r *RawRecord) Name() string {
	switch {
	case r.DisplayName != "":
		return r.DisplayName
	case r.FileName != "":
		return r.FileName
	default:
		return r.S3Key
	}
}

type UploadResponse struct {
	Message string     `json:"message,omitempty"`
	File    *RawRecord `json:"file,omitempty"`
}
