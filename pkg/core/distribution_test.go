package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeDistribution_PreservesKeyOrder(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "reverse alphabetical", raw: `{"Valve": 1, "Pump": 4, "Compressor": 2}`, want: []string{"Valve", "Pump", "Compressor"}},
		{name: "single", raw: `{"Reactor": 9}`, want: []string{"Reactor"}},
		{name: "empty", raw: `{}`, want: []string{}},
		{name: "null", raw: `null`, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d TypeDistribution
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &d))
			assert.Equal(t, tt.want, d.Types())
		})
	}
}

func TestTypeDistribution_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "array", raw: `[1, 2]`},
		{name: "non integer count", raw: `{"Pump": "two"}`},
		{name: "duplicate key", raw: `{"Pump": 1, "Pump": 2}`},
		{name: "truncated", raw: `{"Pump": 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d TypeDistribution
			assert.Error(t, json.Unmarshal([]byte(tt.raw), &d))
		})
	}
}

func TestTypeDistribution_MarshalKeepsOrder(t *testing.T) {
	d := MustTypeDistribution(TypeCount{"Valve", 1}, TypeCount{"Heat \"X\"", 3}, TypeCount{"Pump", 2})

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{"Valve":1,"Heat \"X\"":3,"Pump":2}`, string(out))

	var back TypeDistribution
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, d.Entries(), back.Entries())
}

func TestTypeDistribution_Accessors(t *testing.T) {
	d := MustTypeDistribution(TypeCount{"Pump", 2}, TypeCount{"Valve", 5})

	assert.Equal(t, 2, d.Len())
	assert.Equal(t, 7, d.Total())
	assert.Equal(t, 5, d.Count("Valve"))
	assert.Equal(t, 0, d.Count("Reactor"))
	assert.True(t, d.Has("Pump"))
	assert.False(t, d.Has("Reactor"))

	_, err := NewTypeDistribution(TypeCount{"Pump", 1}, TypeCount{"Pump", 1})
	assert.Error(t, err)
}
