package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBusy is returned by Begin when another request cycle already holds the
// session.
var ErrBusy = errors.New("session already has a running request")

// StopNotifier tells the upstream backend to stop generating a message.
// Implementations must not block; the notification is fire-and-forget.
type StopNotifier interface {
	NotifyStop(messageID string)
}

// State is a snapshot of the continuity identifiers of a session.
// Empty strings stand for "no value yet".
type State struct {
	ConversationID   string
	ParentMessageID  string
	CurrentMessageID string
	Running          bool
}

// Session holds the conversation-continuity identifiers and the running flag
// for one logical conversation.
//
// Identifier fields are only written through the Run that currently holds the
// session, and only while that Run is running. The mutex exists because a
// Reset can arrive on a different connection than the stream it interrupts.
type Session struct {
	key      string
	notifier StopNotifier

	mu               sync.Mutex
	conversationID   string
	parentMessageID  string
	currentMessageID string
	active           *Run
	lastUsed         time.Time
}

// New creates an idle session with all identifiers unset.
func New(key string, notifier StopNotifier) *Session {
	return &Session{
		key:      key,
		notifier: notifier,
		lastUsed: time.Now(),
	}
}

// Key returns the identifier the session is registered under.
func (s *Session) Key() string {
	return s.key
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Running reports whether a request cycle is currently streaming.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// LastUsed returns when the session last started, finished or reset a cycle.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Begin marks the session as running and returns the lease that the request
// cycle uses to refresh identifiers.
func (s *Session) Begin() (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, ErrBusy
	}

	r := &Run{session: s}
	s.active = r
	s.lastUsed = time.Now()
	return r, nil
}

// Reset cancels a running cycle, if any, and then clears every identifier.
//
// The stop notification is sent before the identifiers are cleared, while the
// lock is held; StopNotifier implementations must not call back into the
// session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if messageID, cancelled := s.cancelLocked(s.active); cancelled {
		slog.Info("session reset cancelled running request",
			"session", s.key,
			"message_id", messageID,
		)
		s.notify(messageID)
	}

	s.conversationID = ""
	s.parentMessageID = ""
	s.currentMessageID = ""
	s.lastUsed = time.Now()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) stateLocked() State {
	return State{
		ConversationID:   s.conversationID,
		ParentMessageID:  s.parentMessageID,
		CurrentMessageID: s.currentMessageID,
		Running:          s.active != nil,
	}
}

// cancelLocked clears the running flag if r is the active run and returns
// the message id to stop. Caller holds s.mu.
func (s *Session) cancelLocked(r *Run) (string, bool) {
	if r == nil || s.active != r {
		return "", false
	}
	s.active = nil
	return s.currentMessageID, true
}

func (s *Session) notify(messageID string) {
	if messageID == "" || s.notifier == nil {
		return
	}
	s.notifier.NotifyStop(messageID)
}

// Run is one request cycle's hold on a Session.
type Run struct {
	session *Session
}

// Session returns the session this run belongs to.
func (r *Run) Session() *Session {
	return r.session
}

// Running reports whether this run still holds the session. It turns false
// after Cancel, Finish, or a Reset of the session.
func (r *Run) Running() bool {
	s := r.session
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == r
}

// State returns a snapshot of the owning session.
func (r *Run) State() State {
	return r.session.State()
}

// SetConversationID records the conversation id from a workflow_started event.
func (r *Run) SetConversationID(id string) bool {
	return r.update(func(s *Session) {
		s.conversationID = id
	})
}

// SetParentMessageID records the message id from a message_end event.
func (r *Run) SetParentMessageID(id string) bool {
	return r.update(func(s *Session) {
		s.parentMessageID = id
	})
}

// ObserveMessage records the identifiers carried by a message event. The
// message id becomes both the cancellation target and the parent of the next
// turn.
func (r *Run) ObserveMessage(conversationID, messageID string) bool {
	return r.update(func(s *Session) {
		s.currentMessageID = messageID
		s.parentMessageID = messageID
		s.conversationID = conversationID
	})
}

// Cancel clears the running flag and, if a message is in flight, asks the
// upstream to stop it. Only the first call has any effect.
func (r *Run) Cancel() {
	s := r.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if messageID, cancelled := s.cancelLocked(r); cancelled {
		s.notify(messageID)
	}
}

// Finish releases the session after the upstream stream ended on its own.
func (r *Run) Finish() {
	s := r.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == r {
		s.active = nil
	}
	s.lastUsed = time.Now()
}

func (r *Run) update(fn func(s *Session)) bool {
	s := r.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != r {
		return false
	}
	fn(s)
	return true
}
