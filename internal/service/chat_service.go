package service

import (
	"context"
	"strings"

	"github.com/xxxsen/lexdesk/internal/model"
	"github.com/xxxsen/lexdesk/internal/pkg/timeutil"
	"github.com/xxxsen/lexdesk/internal/repo"
)

const defaultChatTitle = "New chat"

type ChatService struct {
	cases *repo.CaseRepo
	chats *repo.ChatRepo
}

func NewChatService(cases *repo.CaseRepo, chats *repo.ChatRepo) *ChatService {
	return &ChatService{cases: cases, chats: chats}
}

func (s *ChatService) List(ctx context.Context, caseID string) ([]model.Chat, error) {
	return s.chats.ListByCase(ctx, caseID)
}

func (s *ChatService) Create(ctx context.Context, caseID, title string) (*model.Chat, error) {
	if _, err := s.cases.GetByID(ctx, caseID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultChatTitle
	}
	chat := &model.Chat{
		ID:     newID(),
		CaseID: caseID,
		Title:  title,
		Ctime:  timeutil.NowUnix(),
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) Get(ctx context.Context, chatID string) (*model.Chat, error) {
	return s.chats.GetByID(ctx, chatID)
}

// Delete removes the chat only when it belongs to caseID.
func (s *ChatService) Delete(ctx context.Context, caseID, chatID string) error {
	return s.chats.Delete(ctx, caseID, chatID)
}
