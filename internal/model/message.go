package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	ID      string `json:"id"`
	ChatID  string `json:"chat_id"`
	Role    string `json:"role"`
	Content string `json:"content"`
	Ctime   int64  `json:"ctime"`
}

func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
