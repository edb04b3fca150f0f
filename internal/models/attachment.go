package models

// FileAttachment is attachment metadata. The content lives in the blob
// store under Digest; URL points at it.
type FileAttachment struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	URL          string `json:"url"`
	LastModified int64  `json:"lastModified"`
	Digest       string `json:"digest,omitempty"`
}

func cloneFiles(in []FileAttachment) []FileAttachment {
	if in == nil {
		return nil
	}
	return append([]FileAttachment(nil), in...)
}

// Digests returns the content digests referenced by files, skipping blanks.
func Digests(files []FileAttachment) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if f.Digest != "" {
			out = append(out, f.Digest)
		}
	}
	return out
}
