package store

import (
	"context"
	"fmt"
	"log"
	"time"
)

// KnowledgeEntry is one question/answer snippet the agent can serve.
type KnowledgeEntry struct {
	ID        int64     `json:"id"`
	Category  string    `json:"category"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListKnowledge returns every knowledge entry, newest first.
func (s *Store) ListKnowledge(ctx context.Context) ([]KnowledgeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, question, answer, is_active, created_at, updated_at
		FROM knowledge_base ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query knowledge base: %w", err)
	}
	defer rows.Close()

	entries := make([]KnowledgeEntry, 0, 32)
	for rows.Next() {
		var (
			e                    KnowledgeEntry
			isActive             int
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.Question, &e.Answer, &isActive, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge entry: %w", err)
		}
		e.IsActive = isActive != 0
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge base: %w", err)
	}
	return entries, nil
}

// ActiveKnowledge returns the active snippets for the conversational engine.
// Errors are logged and yield an empty set; the agent must keep talking even
// when the knowledge base is unreadable.
func (s *Store) ActiveKnowledge() []KnowledgeEntry {
	entries, err := s.ListKnowledge(context.Background())
	if err != nil {
		log.Printf("[store] failed to load knowledge base: %v", err)
		return nil
	}

	active := entries[:0]
	for _, e := range entries {
		if e.IsActive {
			active = append(active, e)
		}
	}
	return active
}

// AddKnowledge inserts a new active snippet in the General category.
func (s *Store) AddKnowledge(ctx context.Context, question, answer string) (*KnowledgeEntry, error) {
	now := time.Now().UTC().Unix()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_base (category, question, answer, is_active, created_at, updated_at)
		VALUES ('General', ?, ?, 1, ?, ?)
	`, question, answer, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert knowledge entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("knowledge insert id: %w", err)
	}

	return &KnowledgeEntry{
		ID:        id,
		Category:  "General",
		Question:  question,
		Answer:    answer,
		IsActive:  true,
		CreatedAt: time.Unix(now, 0).UTC(),
		UpdatedAt: time.Unix(now, 0).UTC(),
	}, nil
}

// DeleteKnowledge removes a snippet.
func (s *Store) DeleteKnowledge(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_base WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete knowledge entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete knowledge entry: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
