package model

// Document is an uploaded file of a case. Content is nil when no text could be
// extracted from the file.
type Document struct {
	ID       string  `json:"id"`
	CaseID   string  `json:"case_id"`
	FileName string  `json:"file_name"`
	FileURL  string  `json:"file_url"`
	Content  *string `json:"content"`
	Ctime    int64   `json:"ctime"`
}

func (d *Document) Text() string {
	if d == nil || d.Content == nil {
		return ""
	}
	return *d.Content
}
