package service

import (
	"context"
	"iter"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/lexdesk/internal/ai"
	"github.com/xxxsen/lexdesk/internal/model"
	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
	"github.com/xxxsen/lexdesk/internal/pkg/timeutil"
	"github.com/xxxsen/lexdesk/internal/repo"
)

type MessageService struct {
	chats        *repo.ChatRepo
	messages     *repo.MessageRepo
	retriever    *Retriever
	orchestrator *Orchestrator
}

func NewMessageService(chats *repo.ChatRepo, messages *repo.MessageRepo, retriever *Retriever, orchestrator *Orchestrator) *MessageService {
	return &MessageService{chats: chats, messages: messages, retriever: retriever, orchestrator: orchestrator}
}

// ReplyStream is one assistant turn in flight. Fragments must be ranged over
// once; MessageID is set after the reply was stored.
type ReplyStream struct {
	UserMessage *model.Message
	Fragments   iter.Seq2[string, error]
	reply       *model.Message
}

func (r *ReplyStream) MessageID() string {
	if r.reply == nil {
		return ""
	}
	return r.reply.ID
}

func (s *MessageService) List(ctx context.Context, chatID string) ([]model.Message, error) {
	if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		return nil, err
	}
	return s.messages.ListByChat(ctx, chatID)
}

func (s *MessageService) Create(ctx context.Context, chatID, role, content string) (*model.Message, error) {
	if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		return nil, err
	}
	return s.create(ctx, chatID, role, content)
}

func (s *MessageService) create(ctx context.Context, chatID, role, content string) (*model.Message, error) {
	if role == "" {
		role = model.RoleUser
	}
	if !model.IsValidRole(role) || strings.TrimSpace(content) == "" {
		return nil, appErr.ErrInvalid
	}
	msg := &model.Message{
		ID:      newID(),
		ChatID:  chatID,
		Role:    role,
		Content: content,
		Ctime:   timeutil.NowUnix(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Stream stores the new message and starts the assistant reply. The prompt
// is built from the history before the new message plus the new message, and
// the case's context chunks. The assembled reply is stored once the model
// finished without error and produced non-blank text.
func (s *MessageService) Stream(ctx context.Context, chatID, role, content string) (*ReplyStream, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = model.RoleUser
	}
	if !model.IsValidRole(role) || strings.TrimSpace(content) == "" {
		return nil, appErr.ErrInvalid
	}
	prior, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	chunks, err := s.retriever.GetContextChunks(ctx, chat.CaseID)
	if err != nil {
		return nil, err
	}
	userMsg, err := s.create(ctx, chatID, role, content)
	if err != nil {
		return nil, err
	}
	history := append(historyMessages(prior), ai.ChatMessage{Role: userMsg.Role, Content: userMsg.Content})

	rs := &ReplyStream{UserMessage: userMsg}
	upstream := s.orchestrator.StreamAssistantReply(ctx, history, chunkTexts(chunks))
	rs.Fragments = func(yield func(string, error) bool) {
		var sb strings.Builder
		for delta, err := range upstream {
			if err != nil {
				yield("", err)
				return
			}
			sb.WriteString(delta)
			if !yield(delta, nil) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield("", err)
			return
		}
		reply := sb.String()
		if strings.TrimSpace(reply) == "" {
			return
		}
		msg, err := s.create(ctx, chatID, model.RoleAssistant, reply)
		if err != nil {
			logutil.GetLogger(ctx).Error("save assistant reply failed", zap.String("chat_id", chatID), zap.Error(err))
			yield("", err)
			return
		}
		rs.reply = msg
	}
	return rs, nil
}
