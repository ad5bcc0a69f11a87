package models

import (
	"slices"
	"strings"
	"time"

	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
)

// Status is the lifecycle state of a checkpoint. Closed is terminal.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

var (
	ErrAlreadyClosed  = dErrors.New(dErrors.CodeLifecycle, "checkpoint is already closed")
	ErrResourceClosed = dErrors.New(dErrors.CodeLifecycle, "checkpoint is closed and no longer accepts records")
	ErrNotFound       = dErrors.New(dErrors.CodeNotFound, "checkpoint not found")
)

// Checkpoint is a field operation with a participant set fixed at creation.
type Checkpoint struct {
	ID           string
	Location     string
	ScheduledAt  time.Time
	Participants []string
	Status       Status
	CreatedBy    string
	CreatedAt    time.Time
	ClosedAt     *time.Time
	ClosedBy     string
}

func (c *Checkpoint) ResourceID() string {
	return "checkpoint:" + c.ID
}

func (c *Checkpoint) HasParticipant(principalID string) bool {
	return slices.Contains(c.Participants, principalID)
}

func (c *Checkpoint) IsClosed() bool {
	return c.Status == StatusClosed
}

type CreateInput struct {
	Location     string    `json:"location"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Participants []string  `json:"participants"`
}

type View struct {
	ID           string     `json:"id"`
	Location     string     `json:"location"`
	ScheduledAt  time.Time  `json:"scheduled_at"`
	Participants []string   `json:"participants"`
	Status       Status     `json:"status"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	ClosedBy     string     `json:"closed_by,omitempty"`
}

func (c *Checkpoint) View() View {
	return View{
		ID:           c.ID,
		Location:     c.Location,
		ScheduledAt:  c.ScheduledAt,
		Participants: slices.Clone(c.Participants),
		Status:       c.Status,
		CreatedBy:    c.CreatedBy,
		CreatedAt:    c.CreatedAt,
		ClosedAt:     c.ClosedAt,
		ClosedBy:     c.ClosedBy,
	}
}

// UnknownParticipants builds the validation error for ids that do not name an
// enabled principal.
func UnknownParticipants(ids []string) error {
	return dErrors.New(dErrors.CodeValidation, "unknown or disabled participants: "+strings.Join(ids, ", "))
}
