package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"localchat/internal/ai"
	"localchat/internal/lock"
	"localchat/internal/metrics"
	"localchat/internal/model"
	"localchat/internal/pkg/logger"
	"localchat/internal/repository"
)

// TitleMaxRunes bounds a derived session title, counted in code points.
const TitleMaxRunes = 60

// MaxMessagePage caps one ListMessages page.
const MaxMessagePage = 200

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
	ErrRateLimited     = errors.New("too many requests")
	ErrSessionBusy     = errors.New("session is busy")
	ErrUpstreamFailure = errors.New("inference backend request failed")
)

type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	ListByUserID(ctx context.Context, userID uint) ([]model.Session, error)
	GetByIDAndUserID(ctx context.Context, sessionID, userID uint) (*model.Session, error)
	ExistsByIDAndUserID(ctx context.Context, sessionID, userID uint) (bool, error)
	DeleteByIDAndUserID(ctx context.Context, sessionID, userID uint) error
	Save(ctx context.Context, session *model.Session) error
}

// MessageReader pages through the messages of one owned session.
type MessageReader interface {
	ListBySessionID(ctx context.Context, sessionID, userID, afterID uint, limit int) ([]model.Message, error)
	CountBySessionID(ctx context.Context, sessionID, userID uint) (int64, error)
}

type SessionCache interface {
	GetSession(ctx context.Context, userID, sessionID uint) (*model.Session, bool, error)
	SetSession(ctx context.Context, session *model.Session) error
	DeleteSession(ctx context.Context, userID, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

type RateGate interface {
	Admit() bool
}

type UsagePublisher interface {
	Publish(ctx context.Context, record model.UsageRecord) error
}

type ChatService struct {
	sessions     SessionStore
	generator    ai.Generator
	gate         RateGate
	locker       lock.SessionLocker
	history      MessageReader
	cache        SessionCache
	usage        UsagePublisher
	metrics      *metrics.Metrics
	log          *slog.Logger
	defaultModel string
}

// ChatDeps carries the optional collaborators of ChatService; nil fields are skipped.
type ChatDeps struct {
	History MessageReader
	Cache   SessionCache
	Usage   UsagePublisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type CreateSessionInput struct {
	UserID uint
	Title  string
	Model  string
}

type SendMessageInput struct {
	UserID    uint
	SessionID uint
	Content   string
	Model     string
}

type ListMessagesInput struct {
	UserID    uint
	SessionID uint
	AfterID   uint
	Limit     int
}

type MessagePage struct {
	SessionID uint            `json:"session_id"`
	Total     int64           `json:"total"`
	Messages  []model.Message `json:"messages"`
}

type SendMessageResult struct {
	SessionID uint            `json:"session_id"`
	Reply     string          `json:"reply"`
	Messages  []model.Message `json:"messages"`
}

func NewChatService(
	sessions SessionStore,
	generator ai.Generator,
	gate RateGate,
	locker lock.SessionLocker,
	defaultModel string,
	deps ChatDeps,
) *ChatService {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	return &ChatService{
		sessions:     sessions,
		generator:    generator,
		gate:         gate,
		locker:       locker,
		history:      deps.History,
		cache:        deps.Cache,
		usage:        deps.Usage,
		metrics:      deps.Metrics,
		log:          deps.Logger,
		defaultModel: defaultModel,
	}
}

func (s *ChatService) CreateSession(ctx context.Context, input CreateSessionInput) (*model.Session, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	modelName := strings.TrimSpace(input.Model)
	if modelName == "" {
		modelName = s.defaultModel
	}

	session := &model.Session{
		UserID:   input.UserID,
		Title:    strings.TrimSpace(input.Title),
		Model:    modelName,
		Messages: []model.Message{},
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.IncSessionsCreated()
	s.log.Info("session created", "user_id", input.UserID, "session_id", session.ID, "model", modelName)
	return session, nil
}

func (s *ChatService) ListSessions(ctx context.Context, userID uint) ([]model.Session, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessions.ListByUserID(ctx, userID)
}

func (s *ChatService) GetSession(ctx context.Context, userID, sessionID uint) (*model.Session, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}

	if s.cache != nil {
		dirty, err := s.cache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetSession(ctx, userID, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	session, err := s.sessions.GetByIDAndUserID(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.cache != nil {
		if dirty, dirtyErr := s.cache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.cache.SetSession(ctx, session)
		}
	}
	return session, nil
}

func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if userID == 0 || sessionID == 0 {
		return ErrInvalidInput
	}

	s.markDirty(ctx, sessionID)
	if err := s.sessions.DeleteByIDAndUserID(ctx, sessionID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID, sessionID)
	return nil
}

// ListMessages returns the messages after input.AfterID, oldest first.
// Without a MessageReader the page is cut from the loaded session.
func (s *ChatService) ListMessages(ctx context.Context, input ListMessagesInput) (*MessagePage, error) {
	if input.UserID == 0 || input.SessionID == 0 || input.Limit < 0 {
		return nil, ErrInvalidInput
	}
	limit := input.Limit
	if limit == 0 || limit > MaxMessagePage {
		limit = MaxMessagePage
	}

	if s.history == nil {
		session, err := s.GetSession(ctx, input.UserID, input.SessionID)
		if err != nil {
			return nil, err
		}
		page := []model.Message{}
		for _, m := range session.Messages {
			if m.ID > input.AfterID && len(page) < limit {
				page = append(page, m)
			}
		}
		return &MessagePage{SessionID: session.ID, Total: int64(len(session.Messages)), Messages: page}, nil
	}

	exists, err := s.sessions.ExistsByIDAndUserID(ctx, input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSessionNotFound
	}
	total, err := s.history.CountBySessionID(ctx, input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	messages, err := s.history.ListBySessionID(ctx, input.SessionID, input.UserID, input.AfterID, limit)
	if err != nil {
		return nil, err
	}
	return &MessagePage{SessionID: input.SessionID, Total: total, Messages: messages}, nil
}

// SendMessage appends the user's message, asks the backend for a reply and
// appends it. If the backend fails the user message stays persisted and
// ErrUpstreamFailure is returned.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	if input.UserID == 0 || input.SessionID == 0 {
		return nil, ErrInvalidInput
	}
	// content is stored and sent exactly as given
	content := input.Content
	if strings.TrimSpace(content) == "" {
		return nil, ErrMessageEmpty
	}

	existing, err := s.sessions.GetByIDAndUserID(ctx, input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrSessionNotFound
	}

	if s.gate != nil && !s.gate.Admit() {
		s.metrics.IncRateLimited()
		return nil, ErrRateLimited
	}

	// past the gate the exchange runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	unlock, err := s.locker.Lock(ctx, sessionLockKey(input.SessionID))
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return nil, ErrSessionBusy
		}
		return nil, fmt.Errorf("lock session failed: %w", err)
	}
	defer unlock()

	session, err := s.sessions.GetByIDAndUserID(ctx, input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	userMessage := model.Message{
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	session.Messages = append(session.Messages, userMessage)
	if override := strings.TrimSpace(input.Model); override != "" {
		session.Model = override
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.IncMessage(string(model.RoleUser))

	started := time.Now()
	reply, genErr := s.generator.Generate(ctx, session.Model, content)
	latency := time.Since(started)
	if genErr != nil {
		s.metrics.ObserveUpstream(session.Model, model.UsageOutcomeUpstreamFailure, latency)
		s.publishUsage(ctx, session, model.UsageOutcomeUpstreamFailure, content, "", latency)
		s.log.Warn("inference backend failed",
			"user_id", input.UserID,
			"session_id", session.ID,
			"model", session.Model,
			"latency_ms", latency.Milliseconds(),
			"error", genErr,
		)
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, genErr)
	}
	s.metrics.ObserveUpstream(session.Model, model.UsageOutcomeOK, latency)

	session.Messages = append(session.Messages, model.Message{
		Role:      model.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now(),
	})
	if session.Title == "" {
		session.Title = DeriveTitle(content)
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.IncMessage(string(model.RoleAssistant))
	s.publishUsage(ctx, session, model.UsageOutcomeOK, content, reply, latency)

	n := len(session.Messages)
	return &SendMessageResult{
		SessionID: session.ID,
		Reply:     reply,
		Messages:  []model.Message{session.Messages[n-2], session.Messages[n-1]},
	}, nil
}

// DeriveTitle keeps the first TitleMaxRunes code points of content.
func DeriveTitle(content string) string {
	if utf8.RuneCountInString(content) <= TitleMaxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:TitleMaxRunes])
}

func (s *ChatService) save(ctx context.Context, session *model.Session) error {
	s.markDirty(ctx, session.ID)
	err := s.sessions.Save(ctx, session)
	s.invalidate(ctx, session.UserID, session.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrVersionConflict) {
		return err
	}
	// a conflict also covers a session deleted since it was loaded
	exists, existsErr := s.sessions.ExistsByIDAndUserID(ctx, session.ID, session.UserID)
	if existsErr == nil && !exists {
		return ErrSessionNotFound
	}
	return ErrSessionBusy
}

func (s *ChatService) markDirty(ctx context.Context, sessionID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.MarkDirty(ctx, sessionID); err != nil {
		s.log.Warn("mark session dirty failed", "session_id", sessionID, "error", err)
	}
}

func (s *ChatService) invalidate(ctx context.Context, userID, sessionID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteSession(ctx, userID, sessionID); err != nil {
		s.log.Warn("invalidate session cache failed", "session_id", sessionID, "error", err)
	}
}

func (s *ChatService) publishUsage(ctx context.Context, session *model.Session, outcome, prompt, completion string, latency time.Duration) {
	if s.usage == nil {
		return
	}
	record := model.UsageRecord{
		UserID:          session.UserID,
		SessionID:       session.ID,
		Model:           session.Model,
		Outcome:         outcome,
		PromptChars:     utf8.RuneCountInString(prompt),
		CompletionChars: utf8.RuneCountInString(completion),
		LatencyMS:       latency.Milliseconds(),
		CreatedAt:       time.Now(),
	}
	if err := s.usage.Publish(ctx, record); err != nil {
		s.metrics.IncUsagePublishFailure()
		s.log.Warn("publish usage record failed", "session_id", session.ID, "error", err)
	}
}

func sessionLockKey(sessionID uint) string {
	return "session:" + strconv.FormatUint(uint64(sessionID), 10)
}
