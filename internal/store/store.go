// Package store provides the document store interface and SQLite
// implementation for materials, generated items, feedback, the change log,
// and conversation turns.
package store

import (
	"context"
	"time"

	"github.com/rcliao/study-coach/internal/model"
)

// ItemFilter selects generated items in queries. Zero values match all.
type ItemFilter struct {
	MaterialID  string
	State       model.LifecycleState
	Adversarial *bool
	Limit       int
}

// Store defines the persistent document store. Every mutation to a
// generated item appends exactly one change log entry in the same
// transaction as the mutation.
type Store interface {
	// PutMaterial stores uploaded study material.
	PutMaterial(ctx context.Context, m *model.StudyMaterial) error

	// GetMaterial retrieves a material by id.
	GetMaterial(ctx context.Context, id string) (*model.StudyMaterial, error)

	// ListMaterials lists all materials, newest first.
	ListMaterials(ctx context.Context) ([]model.StudyMaterial, error)

	// InsertItem stores a new generated item with a "created" log entry.
	InsertItem(ctx context.Context, item *model.GeneratedItem, rationale string) error

	// GetItem retrieves an item by id.
	GetItem(ctx context.Context, id string) (*model.GeneratedItem, error)

	// QueryItems lists items matching the filter, oldest first.
	QueryItems(ctx context.Context, f ItemFilter) ([]model.GeneratedItem, error)

	// ReplaceItem replaces an item's document (whole-document update) with
	// an "updated" log entry carrying before/after snapshots.
	ReplaceItem(ctx context.Context, item *model.GeneratedItem, rationale string) error

	// RetireItem moves an item to RETIRED with a "removed" log entry.
	RetireItem(ctx context.Context, id, rationale string) error

	// AddFeedback appends an immutable feedback record.
	AddFeedback(ctx context.Context, f *model.FeedbackRecord) error

	// ListFeedback lists feedback for an item, oldest first.
	ListFeedback(ctx context.Context, itemID string) ([]model.FeedbackRecord, error)

	// ListChanges lists change log entries for an item, oldest first.
	ListChanges(ctx context.Context, itemID string) ([]model.ChangeLogEntry, error)

	// LastChangeAt returns the time of the item's most recent log entry,
	// or the zero time when none exists.
	LastChangeAt(ctx context.Context, itemID string) (time.Time, error)

	// AppendTurn appends a conversation turn, evicting the oldest turns
	// beyond the window.
	AppendTurn(ctx context.Context, conversationID string, t model.Turn, window int) error

	// RecentTurns returns up to n most recent turns, oldest first.
	RecentTurns(ctx context.Context, conversationID string, n int) ([]model.Turn, error)

	// Close closes the store.
	Close() error
}
