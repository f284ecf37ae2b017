package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("doc_1", 2, 3)
	b := PointID("doc_1", 2, 3)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, PointID("doc_1", 2, 4))
	assert.NotEqual(t, a, PointID("doc_2", 2, 3))
	assert.Less(t, a, uint64(1)<<63)
}

func TestChunk_Payload(t *testing.T) {
	c := Chunk{DocumentID: "doc_1", PageNumber: 1, Index: 0, Text: "hello"}
	p := c.Payload()
	assert.Equal(t, "doc_1_page1_chunk0", p.ChunkID)
	assert.Equal(t, "doc_1", p.DocumentID)
	assert.Equal(t, c.PointID(), PointID("doc_1", 1, 0))
}

func TestPointFilter_Validate(t *testing.T) {
	assert.Error(t, PointFilter{}.Validate())
	assert.NoError(t, PointFilter{DocumentID: "doc_1"}.Validate())
}

func TestDeriveSessionTitle(t *testing.T) {
	assert.Equal(t, "What is this about?", DeriveSessionTitle("What is this about?"))

	exact := strings.Repeat("a", 50)
	assert.Equal(t, exact, DeriveSessionTitle(exact))

	long := strings.Repeat("b", 60)
	assert.Equal(t, strings.Repeat("b", 50)+"...", DeriveSessionTitle(long))

	unicode := strings.Repeat("é", 55)
	assert.Equal(t, strings.Repeat("é", 50)+"...", DeriveSessionTitle(unicode))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("tool").Valid())
}
