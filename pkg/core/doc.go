// Package core defines the shared language of the eqviz client.
//
// This package contains:
//   - Domain entities (EquipmentRow, DatasetSummary, DatasetDetail)
//   - The ordered TypeDistribution mapping reported by the analytics service
//   - The tagged error taxonomy (Error, ErrorKind) shared by every layer
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
