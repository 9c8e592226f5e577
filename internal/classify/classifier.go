// Package classify labels rows or groups of a cleaned table. Three
// variants are provided: rule-based incident severity, statistical log
// anomaly detection, and RFM customer segmentation. Each classifier
// returns a new annotated table and leaves its input untouched.
package classify

import (
	"context"

	"reportcli/internal/table"
)

// Classifier labels a table. Implementations must be deterministic for
// a fixed configuration and input.
type Classifier interface {
	// Name identifies the classifier in logs and run state.
	Name() string

	// Classify returns a new table carrying the classification output.
	// Row-level classifiers return the input rows plus a label column;
	// group-level classifiers return one row per group.
	Classify(ctx context.Context, t *table.Table) (*table.Table, error)
}
