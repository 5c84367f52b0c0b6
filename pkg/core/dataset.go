package core

import "fmt"

// =============================================================================
// Equipment
// =============================================================================

// EquipmentRow is one physical unit reported inside a dataset.
// Rows are immutable once received.
type EquipmentRow struct {
	ID          int64   `json:"id"`
	Name        string  `json:"equipment_name"`
	Type        string  `json:"equipment_type"`
	Flowrate    float64 `json:"flowrate"`
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
}

// =============================================================================
// Datasets
// =============================================================================

// DatasetSummary is the lightweight record shown in history listings.
type DatasetSummary struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"`
	UploadedAt     Timestamp `json:"uploaded_at"`
	TotalCount     int       `json:"total_count"`
	AvgFlowrate    float64   `json:"avg_flowrate"`
	AvgPressure    float64   `json:"avg_pressure"`
	AvgTemperature float64   `json:"avg_temperature"`
}

// Validate checks the fields a summary must carry to be addressable.
func (s DatasetSummary) Validate() error {
	if s.ID <= 0 {
		return fmt.Errorf("dataset id must be positive, got %d", s.ID)
	}
	if s.TotalCount < 0 {
		return fmt.Errorf("dataset %d: total_count must not be negative, got %d", s.ID, s.TotalCount)
	}
	return nil
}

// DatasetDetail is a DatasetSummary plus its type distribution and rows.
type DatasetDetail struct {
	DatasetSummary
	TypeDistribution TypeDistribution `json:"type_distribution"`
	Equipment        []EquipmentRow   `json:"equipment"`
}

// Validate checks the invariants the analytics service guarantees:
// each distribution count equals the number of rows of that type, and
// total_count equals both the distribution sum and the row count.
// Violations are reported, never repaired.
func (d *DatasetDetail) Validate() error {
	if d == nil {
		return fmt.Errorf("dataset detail is nil")
	}
	if err := d.DatasetSummary.Validate(); err != nil {
		return err
	}

	rowsByType := make(map[string]int, d.TypeDistribution.Len())
	for _, row := range d.Equipment {
		rowsByType[row.Type]++
	}

	sum := 0
	for _, e := range d.TypeDistribution.Entries() {
		if e.Count < 0 {
			return fmt.Errorf("dataset %d: type %q has negative count %d", d.ID, e.Type, e.Count)
		}
		if got := rowsByType[e.Type]; got != e.Count {
			return fmt.Errorf("dataset %d: type %q reports %d rows but %d are present", d.ID, e.Type, e.Count, got)
		}
		sum += e.Count
	}
	for typ := range rowsByType {
		if !d.TypeDistribution.Has(typ) {
			return fmt.Errorf("dataset %d: equipment type %q missing from type_distribution", d.ID, typ)
		}
	}

	if sum != d.TotalCount {
		return fmt.Errorf("dataset %d: total_count %d does not match type_distribution sum %d", d.ID, d.TotalCount, sum)
	}
	if len(d.Equipment) != d.TotalCount {
		return fmt.Errorf("dataset %d: total_count %d does not match %d equipment rows", d.ID, d.TotalCount, len(d.Equipment))
	}
	return nil
}

// Summary returns the summary part of the detail.
func (d *DatasetDetail) Summary() DatasetSummary {
	return d.DatasetSummary
}

// Clone returns a deep copy of the detail.
func (d *DatasetDetail) Clone() *DatasetDetail {
	if d == nil {
		return nil
	}
	out := &DatasetDetail{
		DatasetSummary:   d.DatasetSummary,
		TypeDistribution: d.TypeDistribution.Clone(),
	}
	if d.Equipment != nil {
		out.Equipment = make([]EquipmentRow, len(d.Equipment))
		copy(out.Equipment, d.Equipment)
	}
	return out
}

// ReportFilename returns the deterministic artifact name for a dataset report.
func ReportFilename(id int64) string {
	return fmt.Sprintf("equipment_report_%d.pdf", id)
}
