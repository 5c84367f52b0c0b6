// Package viewmodel derives chart-ready structures from a dataset. Every
// function is pure: nil input yields nil output and equal input yields equal
// output.
package viewmodel

import (
	"github.com/leapstack-labs/eqviz/pkg/core"
)

// Parameter labels, in display order.
const (
	LabelFlowrate    = "Flowrate"
	LabelPressure    = "Pressure"
	LabelTemperature = "Temperature"
)

// CategorySeries is a labeled categorical series.
type CategorySeries struct {
	Title  string    `json:"title" yaml:"title"`
	Labels []string  `json:"labels" yaml:"labels"`
	Values []float64 `json:"values" yaml:"values"`
}

// Len returns the number of categories.
func (s *CategorySeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Labels)
}

// Sum returns the sum of all values.
func (s *CategorySeries) Sum() float64 {
	if s == nil {
		return 0
	}
	var total float64
	for _, v := range s.Values {
		total += v
	}
	return total
}

// Max returns the largest value, or 0 for an empty series.
func (s *CategorySeries) Max() float64 {
	if s == nil {
		return 0
	}
	var m float64
	for i, v := range s.Values {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

// TypeDistributionChart maps the type distribution to a series whose labels
// follow the server's key order.
func TypeDistributionChart(d *core.DatasetDetail) *CategorySeries {
	if d == nil {
		return nil
	}
	entries := d.TypeDistribution.Entries()
	s := &CategorySeries{
		Title:  "Equipment Type Distribution",
		Labels: make([]string, 0, len(entries)),
		Values: make([]float64, 0, len(entries)),
	}
	for _, e := range entries {
		s.Labels = append(s.Labels, e.Type)
		s.Values = append(s.Values, float64(e.Count))
	}
	return s
}

// ParameterAverageChart returns the three averages as
// [Flowrate, Pressure, Temperature].
func ParameterAverageChart(d *core.DatasetDetail) *CategorySeries {
	if d == nil {
		return nil
	}
	return &CategorySeries{
		Title:  "Average Parameters",
		Labels: []string{LabelFlowrate, LabelPressure, LabelTemperature},
		Values: []float64{d.AvgFlowrate, d.AvgPressure, d.AvgTemperature},
	}
}

// Card is one summary tile.
type Card struct {
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
	// Integer marks counts that should be shown without decimals.
	Integer bool `json:"integer,omitempty" yaml:"integer,omitempty"`
}

// SummaryCards returns the total count followed by the three averages.
func SummaryCards(d *core.DatasetDetail) []Card {
	if d == nil {
		return nil
	}
	return []Card{
		{Label: "Total Equipment", Value: float64(d.TotalCount), Integer: true},
		{Label: "Avg " + LabelFlowrate, Value: d.AvgFlowrate},
		{Label: "Avg " + LabelPressure, Value: d.AvgPressure},
		{Label: "Avg " + LabelTemperature, Value: d.AvgTemperature},
	}
}

// EquipmentColumns are the headers of EquipmentRows.
var EquipmentColumns = []string{"Name", "Type", LabelFlowrate, LabelPressure, LabelTemperature}

// EquipmentRow is one line of the equipment table.
type EquipmentRow struct {
	Name        string  `json:"name" yaml:"name"`
	Type        string  `json:"type" yaml:"type"`
	Flowrate    float64 `json:"flowrate" yaml:"flowrate"`
	Pressure    float64 `json:"pressure" yaml:"pressure"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// EquipmentRows returns the dataset's rows in server order.
func EquipmentRows(d *core.DatasetDetail) []EquipmentRow {
	if d == nil {
		return nil
	}
	rows := make([]EquipmentRow, 0, len(d.Equipment))
	for _, e := range d.Equipment {
		rows = append(rows, EquipmentRow{
			Name:        e.Name,
			Type:        e.Type,
			Flowrate:    e.Flowrate,
			Pressure:    e.Pressure,
			Temperature: e.Temperature,
		})
	}
	return rows
}

// Dashboard bundles every view-model of one dataset.
type Dashboard struct {
	DatasetID  int64           `json:"dataset_id" yaml:"dataset_id"`
	Filename   string          `json:"filename" yaml:"filename"`
	UploadedAt core.Timestamp  `json:"uploaded_at" yaml:"uploaded_at"`
	Cards      []Card          `json:"cards" yaml:"cards"`
	Types      *CategorySeries `json:"types" yaml:"types"`
	Parameters *CategorySeries `json:"parameters" yaml:"parameters"`
	Equipment  []EquipmentRow  `json:"equipment,omitempty" yaml:"equipment,omitempty"`
}

// Build returns the dashboard of d, or nil.
func Build(d *core.DatasetDetail, withEquipment bool) *Dashboard {
	if d == nil {
		return nil
	}
	db := &Dashboard{
		DatasetID:  d.ID,
		Filename:   d.Filename,
		UploadedAt: d.UploadedAt,
		Cards:      SummaryCards(d),
		Types:      TypeDistributionChart(d),
		Parameters: ParameterAverageChart(d),
	}
	if withEquipment {
		db.Equipment = EquipmentRows(d)
	}
	return db
}
