package model

type Chat struct {
	ID     string `json:"id"`
	CaseID string `json:"case_id"`
	Title  string `json:"title"`
	Ctime  int64  `json:"ctime"`
}
