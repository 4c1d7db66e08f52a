package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDRemapFirstBindingWins(t *testing.T) {
	r := NewIDRemap()

	assert.True(t, r.Put(RemapStage, "s1", "t1"))
	assert.False(t, r.Put(RemapStage, "s1", "t2"))

	got, ok := r.Get(RemapStage, "s1")
	assert.True(t, ok)
	assert.Equal(t, "t1", got)

	_, ok = r.Get(RemapEntity, "s1")
	assert.False(t, ok, "kinds are partitioned")
}

func TestIDRemapEntriesSorted(t *testing.T) {
	r := NewIDRemap()
	r.Put(RemapStage, "b", "2")
	r.Put(RemapEntity, "z", "9")
	r.Put(RemapStage, "a", "1")

	assert.Equal(t, []RemapEntry{
		{Kind: RemapEntity, SourceID: "z", TargetID: "9"},
		{Kind: RemapStage, SourceID: "a", TargetID: "1"},
		{Kind: RemapStage, SourceID: "b", TargetID: "2"},
	}, r.Entries())
	assert.Equal(t, 2, r.Len(RemapStage))
}

func TestRunReportFailed(t *testing.T) {
	r := &RunReport{Tables: []TableSummary{{Table: "a", Created: 3}}}
	assert.False(t, r.Failed())

	r.Tables = append(r.Tables, TableSummary{Table: "b", RelationsFailed: 1})
	assert.True(t, r.Failed())

	r = &RunReport{Config: &ConfigSummary{Stages: ConfigCounts{Failed: 1}}}
	assert.True(t, r.Failed())
	assert.Equal(t, 0, r.Totals().Records)
}
