// Package model defines the core study-coach data types.
package model

import "time"

// LifecycleState tracks what the quality-control loop has done to an item.
type LifecycleState string

const (
	StateActive  LifecycleState = "active"
	StateRevised LifecycleState = "revised"
	StateRetired LifecycleState = "retired"
)

// ItemKind is the content category of a generated item.
type ItemKind string

const (
	KindQuestion  ItemKind = "question"
	KindFlashcard ItemKind = "flashcard"
	KindSummary   ItemKind = "summary"
)

// StudyMaterial is uploaded study content. The content is treated as an
// opaque extracted-text string.
type StudyMaterial struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Topics    []string  `json:"topics,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GeneratedItem is a model-generated study artifact (question, flashcard,
// or summary). Payload holds the kind-specific JSON document.
type GeneratedItem struct {
	ID              string         `json:"id"`
	MaterialID      string         `json:"material_id"`
	Kind            ItemKind       `json:"kind"`
	Payload         string         `json:"payload"`
	Topic           string         `json:"topic,omitempty"`
	Difficulty      string         `json:"difficulty,omitempty"`
	Adversarial     bool           `json:"adversarial,omitempty"`
	AdversarialType string         `json:"adversarial_type,omitempty"`
	State           LifecycleState `json:"state"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
}

// FeedbackRecord is one user's feedback on a generated item.
// Immutable once written.
type FeedbackRecord struct {
	ID               string    `json:"id"`
	ItemID           string    `json:"item_id"`
	UserID           string    `json:"user_id"`
	Correct          bool      `json:"correct"`
	Helpful          bool      `json:"helpful"`
	DifficultyRating int       `json:"difficulty_rating,omitempty"`
	Comment          string    `json:"comment,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ChangeAction is the kind of mutation recorded in the change log.
type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionRemoved ChangeAction = "removed"
)

// ChangeLogEntry is one append-only audit record. Every mutation to a
// GeneratedItem writes exactly one entry, in the same transaction.
type ChangeLogEntry struct {
	ID        string       `json:"id"`
	ItemID    string       `json:"item_id"`
	Action    ChangeAction `json:"action"`
	Rationale string       `json:"rationale"`
	Before    string       `json:"before,omitempty"`
	After     string       `json:"after,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Turn is one conversation turn kept in the bounded context window.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidKinds are the allowed generated-item kinds.
var ValidKinds = map[ItemKind]bool{
	KindQuestion:  true,
	KindFlashcard: true,
	KindSummary:   true,
}

// ValidDifficulties are the allowed difficulty levels.
var ValidDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

// MinDifficultyRating and MaxDifficultyRating bound user difficulty ratings.
const (
	MinDifficultyRating = 1
	MaxDifficultyRating = 5
)
