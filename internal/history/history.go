// Package history persists past conversations as JSON under the app
// directory. Writes are best-effort; a corrupt file degrades to an empty
// history rather than an error.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/llmchat-dev/llmchat/internal/llm"
)

const titleLimit = 48

// Conversation is one saved chat: the backend it ran against and the full
// ordered message sequence.
type Conversation struct {
	ID        string        `json:"id"`
	Provider  string        `json:"provider"`
	Title     string        `json:"title"`
	Messages  []llm.Message `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store reads and writes the history file, keeping at most max
// conversations (newest first). max <= 0 means unlimited.
type Store struct {
	path string
	max  int
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, max int) *Store {
	return &Store{path: filepath.Join(dir, "history.json"), max: max}
}

// Load returns all saved conversations, newest first.
func (s *Store) Load() ([]Conversation, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []Conversation{}, nil
	}
	if err != nil {
		return nil, err
	}
	var convs []Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return []Conversation{}, nil
	}
	return convs, nil
}

// Save writes the conversations back, trimming to the configured maximum.
func (s *Store) Save(convs []Conversation) error {
	if s.max > 0 && len(convs) > s.max {
		convs = convs[:s.max]
	}
	data, err := json.MarshalIndent(convs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Add prepends a new conversation built from msgs and persists it.
func (s *Store) Add(provider string, msgs []llm.Message) (Conversation, error) {
	now := time.Now()
	conv := Conversation{
		ID:        uuid.NewString(),
		Provider:  provider,
		Title:     titleFor(msgs),
		Messages:  msgs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	convs, err := s.Load()
	if err != nil {
		return Conversation{}, err
	}
	convs = append([]Conversation{conv}, convs...)
	return conv, s.Save(convs)
}

// Update replaces the conversation with the same ID and persists it. A
// conversation that is no longer on disk is re-added.
func (s *Store) Update(conv Conversation) error {
	conv.UpdatedAt = time.Now()
	convs, err := s.Load()
	if err != nil {
		return err
	}
	for i := range convs {
		if convs[i].ID == conv.ID {
			convs[i] = conv
			return s.Save(convs)
		}
	}
	convs = append([]Conversation{conv}, convs...)
	return s.Save(convs)
}

// Delete removes the conversation with the given ID, if present.
func (s *Store) Delete(id string) error {
	convs, err := s.Load()
	if err != nil {
		return err
	}
	kept := convs[:0]
	for _, c := range convs {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	return s.Save(kept)
}

// titleFor derives a short title from the first user message.
func titleFor(msgs []llm.Message) string {
	for _, m := range msgs {
		if m.Role != llm.RoleUser {
			continue
		}
		title := strings.TrimSpace(m.Content)
		if line, _, found := strings.Cut(title, "\n"); found {
			title = line
		}
		if len(title) > titleLimit {
			title = title[:titleLimit] + "…"
		}
		if title != "" {
			return title
		}
	}
	return "Untitled conversation"
}
