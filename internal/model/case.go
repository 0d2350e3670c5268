package model

type Case struct {
	ID     string   `json:"id"`
	UserID string   `json:"user_id"`
	Title  string   `json:"title"`
	Tags   []string `json:"tags"`
	Ctime  int64    `json:"ctime"`
	Mtime  int64    `json:"mtime"`
}
