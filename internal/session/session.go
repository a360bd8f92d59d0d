// ABOUTME: Client-side conversation session mirroring the messages page.
// ABOUTME: Optimistic sends, broadcast merging, and token-based dedup.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/subletify/subletify/internal/conversation"
	"github.com/subletify/subletify/internal/dedupe"
	"github.com/subletify/subletify/internal/store"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session: closed")

// ErrNoSuchEntry is returned when a retry names a token the session
// does not hold a failed entry for.
var ErrNoSuchEntry = errors.New("session: no such entry")

// EntryStatus tracks where a local message copy stands relative to the store.
type EntryStatus int

const (
	// StatusPending marks an optimistic local copy awaiting store confirmation.
	StatusPending EntryStatus = iota
	// StatusConfirmed marks an entry backed by a persisted message.
	StatusConfirmed
	// StatusFailed marks a send the store rejected; it can be retried.
	StatusFailed
)

func (s EntryStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is one message as this session currently renders it.
type Entry struct {
	Message *store.Message
	Status  EntryStatus
}

// ThreadState is the lifecycle of one per-partner thread.
type ThreadState int

const (
	ThreadUninitialized ThreadState = iota
	ThreadLoading
	ThreadReady
)

type thread struct {
	partnerID   int64
	partnerName string
	state       ThreadState
	entries     []*Entry
}

// Backend is the slice of the conversation service a session talks to.
// *conversation.Service satisfies it.
type Backend interface {
	History(ctx context.Context, selfID, partnerID int64) (*conversation.History, error)
	SendMessage(ctx context.Context, req *conversation.SendRequest) (*store.Message, error)
}

// Session is the in-process counterpart of one signed-in user's messages
// view. It keeps a thread per conversation partner and merges three input
// streams: history loads, its own optimistic sends, and broadcast events.
type Session struct {
	mu      sync.Mutex
	selfID  int64
	backend Backend
	seen    *dedupe.TokenCache
	threads map[int64]*thread
	logger  *slog.Logger
	closed  bool
}

// New creates a session for the given user.
func New(selfID int64, backend Backend, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		selfID:  selfID,
		backend: backend,
		seen:    dedupe.NewTokenCache(10*time.Minute, 1024),
		threads: make(map[int64]*thread),
		logger:  logger.With("component", "session", "user_id", selfID),
	}
}

// Open loads the stored history with partnerID and makes the thread Ready.
// An empty conversation still yields a Ready thread carrying the partner's
// display name, so the view can render an empty state addressed to them.
func (s *Session) Open(ctx context.Context, partnerID int64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	th := s.threadLocked(partnerID)
	th.state = ThreadLoading
	s.mu.Unlock()

	hist, err := s.backend.History(ctx, s.selfID, partnerID)
	if err != nil {
		s.mu.Lock()
		th.state = ThreadUninitialized
		s.mu.Unlock()
		return fmt.Errorf("loading history with %d: %w", partnerID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	th.partnerName = hist.PartnerName
	// Merge rather than overwrite: sends or broadcasts may have landed
	// while the load was in flight.
	for _, msg := range hist.Messages {
		s.mergeLocked(th, msg, StatusConfirmed)
	}
	th.state = ThreadReady
	return nil
}

// Send appends an optimistic entry for text addressed to partnerID and
// confirms it against the store in the background. It returns the entry's
// client token immediately; the local view never waits on the store.
func (s *Session) Send(ctx context.Context, partnerID int64, text string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}

	token := uuid.New().String()
	th := s.threadLocked(partnerID)
	th.entries = append(th.entries, &Entry{
		Message: &store.Message{
			SenderID:    s.selfID,
			RecipientID: partnerID,
			Text:        text,
			Timestamp:   time.Now(),
			ClientToken: token,
		},
		Status: StatusPending,
	})
	// Remember our token up front: the broadcast echo can arrive over the
	// realtime channel before the store call here returns.
	s.seen.Remember(token)
	s.mu.Unlock()

	go s.confirm(ctx, partnerID, token, text)
	return token, nil
}

// Retry re-submits a failed entry identified by its client token. The
// retry keeps the original token, so a late success from the first
// attempt and the retry collapse into one stored message downstream.
func (s *Session) Retry(ctx context.Context, partnerID int64, token string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	th, ok := s.threads[partnerID]
	if !ok {
		s.mu.Unlock()
		return ErrNoSuchEntry
	}
	entry := findByToken(th.entries, token)
	if entry == nil || entry.Status != StatusFailed {
		s.mu.Unlock()
		return ErrNoSuchEntry
	}
	entry.Status = StatusPending
	text := entry.Message.Text
	s.mu.Unlock()

	go s.confirm(ctx, partnerID, token, text)
	return nil
}

// confirm runs the store send for one optimistic entry and resolves it.
func (s *Session) confirm(ctx context.Context, partnerID int64, token, text string) {
	msg, err := s.backend.SendMessage(ctx, &conversation.SendRequest{
		SenderID:    s.selfID,
		RecipientID: partnerID,
		Text:        text,
		ClientToken: token,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	// Resolutions arriving after Close are dropped on the floor.
	if s.closed {
		return
	}
	th, ok := s.threads[partnerID]
	if !ok {
		return
	}
	entry := findByToken(th.entries, token)
	if entry == nil {
		return
	}

	if err != nil {
		s.logger.Warn("send failed", "partner_id", partnerID, "error", err)
		entry.Status = StatusFailed
		return
	}

	// Replace the optimistic copy with the stored one. Server timestamp
	// may differ from the client's, so re-sort the thread.
	entry.Message = msg
	entry.Status = StatusConfirmed
	sortEntries(th.entries)
}

// HandleBroadcast merges one realtime event into the matching thread.
// Events for partners the user has not opened still create a thread, so
// a first contact from a stranger is never dropped. Echoes of this
// session's own sends are folded into the existing optimistic entry.
func (s *Session) HandleBroadcast(msg *store.Message) {
	partnerID, ok := s.counterpart(msg)
	if !ok {
		s.logger.Warn("dropping broadcast for other users",
			"sender_id", msg.SenderID, "recipient_id", msg.RecipientID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	th := s.threadLocked(partnerID)
	if th.partnerName == "" {
		if msg.SenderID == partnerID {
			th.partnerName = msg.SenderName
		} else {
			th.partnerName = msg.RecipientName
		}
	}
	s.mergeLocked(th, msg, StatusConfirmed)
	if th.state == ThreadUninitialized {
		th.state = ThreadReady
	}
}

// Messages returns a snapshot of the thread with partnerID in display order.
func (s *Session) Messages(partnerID int64) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	th, ok := s.threads[partnerID]
	if !ok {
		return nil
	}
	out := make([]Entry, len(th.entries))
	for i, e := range th.entries {
		out[i] = *e
	}
	return out
}

// PartnerName returns the display name the session holds for partnerID.
func (s *Session) PartnerName(partnerID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if th, ok := s.threads[partnerID]; ok {
		return th.partnerName
	}
	return ""
}

// State returns the thread lifecycle state for partnerID.
func (s *Session) State(partnerID int64) ThreadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if th, ok := s.threads[partnerID]; ok {
		return th.state
	}
	return ThreadUninitialized
}

// Close stops the session. In-flight send resolutions and broadcasts that
// arrive afterwards are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.seen.Close()
}

// threadLocked returns the thread for partnerID, creating it if needed.
func (s *Session) threadLocked(partnerID int64) *thread {
	th, ok := s.threads[partnerID]
	if !ok {
		th = &thread{partnerID: partnerID}
		s.threads[partnerID] = th
	}
	return th
}

// mergeLocked folds msg into th without double-entry. A message whose
// token matches an existing entry replaces it in place; a token this
// session already processed is dropped; anything else appends.
func (s *Session) mergeLocked(th *thread, msg *store.Message, status EntryStatus) {
	if msg.ClientToken != "" {
		if entry := findByToken(th.entries, msg.ClientToken); entry != nil {
			entry.Message = msg
			entry.Status = status
			sortEntries(th.entries)
			return
		}
		if s.seen.SeenOrRemember(msg.ClientToken) {
			return
		}
	} else if msg.ID != "" && findByID(th.entries, msg.ID) != nil {
		return
	}

	th.entries = append(th.entries, &Entry{Message: msg, Status: status})
	sortEntries(th.entries)
}

// counterpart returns the other participant of msg relative to this
// session's user, and whether the user participates at all.
func (s *Session) counterpart(msg *store.Message) (int64, bool) {
	switch s.selfID {
	case msg.SenderID:
		return msg.RecipientID, true
	case msg.RecipientID:
		return msg.SenderID, true
	default:
		return 0, false
	}
}

func findByToken(entries []*Entry, token string) *Entry {
	for _, e := range entries {
		if e.Message.ClientToken == token {
			return e
		}
	}
	return nil
}

func findByID(entries []*Entry, id string) *Entry {
	for _, e := range entries {
		if e.Message.ID == id {
			return e
		}
	}
	return nil
}

// sortEntries keeps a thread in timestamp order. The sort is stable so
// same-timestamp messages keep their arrival order.
func sortEntries(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Message.Timestamp.Before(entries[j].Message.Timestamp)
	})
}
