package domain

// StoredImage represents an image that was downloaded, normalized, and
// persisted under the images directory. Never mutated after creation; notes
// reference it by Filename only.
type StoredImage struct {
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	ByteSize  int64  `json:"byte_size"`
	SourceURL string `json:"source_url"`
}
