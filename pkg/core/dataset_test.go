package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailJSON = `{
	"id": 7,
	"filename": "plant.csv",
	"uploaded_at": "2024-03-01T10:15:30.123456Z",
	"total_count": 3,
	"avg_flowrate": 12.345,
	"avg_pressure": 3.0,
	"avg_temperature": 100,
	"type_distribution": {"Pump": 2, "Valve": 1},
	"equipment": [
		{"id": 1, "equipment_name": "P-101", "equipment_type": "Pump", "flowrate": 10, "pressure": 2, "temperature": 90},
		{"id": 2, "equipment_name": "V-201", "equipment_type": "Valve", "flowrate": 12, "pressure": 3, "temperature": 100},
		{"id": 3, "equipment_name": "P-102", "equipment_type": "Pump", "flowrate": 15.035, "pressure": 4, "temperature": 110}
	]
}`

func decodeDetail(t *testing.T, raw string) *DatasetDetail {
	t.Helper()
	var d DatasetDetail
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	return &d
}

func TestDatasetDetail_Decode(t *testing.T) {
	d := decodeDetail(t, detailJSON)

	assert.Equal(t, int64(7), d.ID)
	assert.Equal(t, "plant.csv", d.Filename)
	assert.Equal(t, 2024, d.UploadedAt.Year())
	assert.Equal(t, 3, d.TotalCount)
	assert.InDelta(t, 12.345, d.AvgFlowrate, 1e-9)
	assert.Equal(t, []string{"Pump", "Valve"}, d.TypeDistribution.Types())
	require.Len(t, d.Equipment, 3)
	assert.Equal(t, "P-101", d.Equipment[0].Name)
	assert.Equal(t, "Valve", d.Equipment[1].Type)
	assert.NoError(t, d.Validate())
}

func TestDatasetDetail_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(d *DatasetDetail)
		errSubstr string
	}{
		{
			name:   "valid",
			mutate: func(_ *DatasetDetail) {},
		},
		{
			name:      "missing id",
			mutate:    func(d *DatasetDetail) { d.ID = 0 },
			errSubstr: "id must be positive",
		},
		{
			name:      "total count disagrees with distribution",
			mutate:    func(d *DatasetDetail) { d.TotalCount = 4 },
			errSubstr: "does not match type_distribution sum",
		},
		{
			name: "distribution count disagrees with rows",
			mutate: func(d *DatasetDetail) {
				d.TypeDistribution = MustTypeDistribution(TypeCount{"Pump", 1}, TypeCount{"Valve", 2})
			},
			errSubstr: `type "Pump" reports 1 rows but 2 are present`,
		},
		{
			name: "row type missing from distribution",
			mutate: func(d *DatasetDetail) {
				d.Equipment[1].Type = "Reactor"
				d.TypeDistribution = MustTypeDistribution(TypeCount{"Pump", 2})
			},
			errSubstr: `equipment type "Reactor" missing from type_distribution`,
		},
		{
			name: "negative count",
			mutate: func(d *DatasetDetail) {
				d.TypeDistribution = MustTypeDistribution(TypeCount{"Pump", 2}, TypeCount{"Valve", 1}, TypeCount{"Ghost", -1})
			},
			errSubstr: "negative count",
		},
		{
			name: "row count disagrees with total",
			mutate: func(d *DatasetDetail) {
				d.Equipment = d.Equipment[:2]
			},
			errSubstr: `type "Pump" reports 2 rows but 1 are present`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decodeDetail(t, detailJSON)
			tt.mutate(d)
			err := d.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestDatasetDetail_Clone(t *testing.T) {
	d := decodeDetail(t, detailJSON)
	c := d.Clone()

	c.Equipment[0].Name = "changed"
	c.Filename = "other.csv"

	assert.Equal(t, "P-101", d.Equipment[0].Name)
	assert.Equal(t, "plant.csv", d.Filename)
	assert.Equal(t, d.TypeDistribution.Types(), c.TypeDistribution.Types())

	var nilDetail *DatasetDetail
	assert.Nil(t, nilDetail.Clone())
}

func TestDatasetSummary_DecodeWithoutDetailFields(t *testing.T) {
	raw := `[{"id": 3, "filename": "a.csv", "uploaded_at": "2024-03-01T10:15:30", "total_count": 5,
		"avg_flowrate": 1, "avg_pressure": 2, "avg_temperature": 3, "type_distribution": {"Pump": 5}}]`

	var list []DatasetSummary
	require.NoError(t, json.Unmarshal([]byte(raw), &list))
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].ID)
	assert.Equal(t, "2024-03-01 10:15:30", list[0].UploadedAt.Short())
	assert.NoError(t, list[0].Validate())
}

func TestReportFilename(t *testing.T) {
	assert.Equal(t, "equipment_report_42.pdf", ReportFilename(42))
}
