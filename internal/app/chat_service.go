package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"stratagem-ai/internal/attachment"
	"stratagem-ai/internal/model"
	"stratagem-ai/internal/workspace"
)

type ChatModel interface {
	Chat(ctx context.Context, transcript []model.Message) (string, error)
}

// AnalysisDispatcher starts a document analysis without waiting for it.
type AnalysisDispatcher interface {
	Dispatch(ctx context.Context, sess *workspace.Session, doc model.Attachment)
}

type ChatService struct {
	sessions   *workspace.Registry
	chat       ChatModel
	dispatcher AnalysisDispatcher
	encoder    *attachment.Encoder
}

type SendMessageInput struct {
	SessionID string
	Content   string
	// Attachments are sent in addition to whatever is pending on the session.
	Attachments []model.Attachment
}

type SendMessageResult struct {
	Messages        []model.Message `json:"messages"`
	AnalysisStarted bool            `json:"analysis_started"`
}

func NewChatService(
	sessions *workspace.Registry,
	chat ChatModel,
	dispatcher AnalysisDispatcher,
	encoder *attachment.Encoder,
) *ChatService {
	if encoder == nil {
		encoder = attachment.NewEncoder(0)
	}
	return &ChatService{
		sessions:   sessions,
		chat:       chat,
		dispatcher: dispatcher,
		encoder:    encoder,
	}
}

// SendMessage appends the user turn, fires document analysis if a document is
// attached, and waits for the chat reply. The user turn is visible before any
// network call; the typing flag is cleared on every path.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	if input.SessionID == "" {
		return nil, ErrInvalidInput
	}
	sess, ok := s.sessions.Get(input.SessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	content := strings.TrimSpace(input.Content)
	var userMessage model.Message
	state := sess.Apply(workspace.Submit(func(pending []model.Attachment) model.Message {
		atts := make([]model.Attachment, 0, len(pending)+len(input.Attachments))
		atts = append(atts, pending...)
		atts = append(atts, input.Attachments...)
		userMessage = model.NewMessage(model.RoleUser, content, atts)
		return userMessage
	}))
	// Submit dropped it under the session lock.
	if userMessage.Empty() {
		return nil, ErrMessageEmpty
	}
	defer sess.Apply(workspace.ReplySettled())

	result := &SendMessageResult{Messages: []model.Message{userMessage}}
	if doc, found := attachment.FindDocument(userMessage.Attachments); found && s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, sess, doc)
		result.AnalysisStarted = true
	}

	reply, err := s.chat.Chat(ctx, state.Transcript.Messages())
	if err != nil {
		log.Printf("chat request for session %s failed: %v", sess.ID(), err)
		return nil, fmt.Errorf("%w: %v", ErrChatFailed, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = model.EmptyReply().JSON()
	}

	assistantMessage := model.NewMessage(model.RoleAssistant, reply, nil)
	sess.Apply(workspace.AppendMessage(assistantMessage))
	result.Messages = append(result.Messages, assistantMessage)
	return result, nil
}

// AddAttachments encodes files into the session's pending set, each as soon
// as it is read. It returns once every file has settled.
func (s *ChatService) AddAttachments(ctx context.Context, sessionID string, files []attachment.File) (int, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return 0, ErrSessionNotFound
	}
	var added atomic.Int32
	<-s.encoder.Encode(ctx, files, func(att model.Attachment) {
		sess.Apply(workspace.AddPending(att))
		added.Add(1)
	})
	return int(added.Load()), nil
}

func (s *ChatService) RemoveAttachment(sessionID string, index int) error {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if index < 0 || index >= len(sess.Snapshot().Pending) {
		return ErrInvalidInput
	}
	sess.Apply(workspace.RemovePending(index))
	return nil
}
