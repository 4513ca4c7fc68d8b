package sheets

import (
	"context"

	"categoria/internal/core"
)

// LabeledRecord is a historic record with the owning user attached, as read
// from an external source during bootstrap.
type LabeledRecord struct {
	UserID   string
	RecordID string
	Record   core.Record
}

// Ports for outbound adapters.
type (
	// RecordSource lists historic labeled records used to seed a model.
	RecordSource interface {
		ListLabeled(ctx context.Context) ([]LabeledRecord, error)
	}
)
