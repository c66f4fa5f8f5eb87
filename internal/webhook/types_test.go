package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/media-chunker/internal/audio"
)

func TestBuildChunkMeta_UsesRealizedOffsets(t *testing.T) {
	segments := []audio.Segment{
		{Index: 1, Start: 0, End: 16.2},
		{Index: 2, Start: 16.2, End: 33.6},
		{Index: 3, Start: 33.6, End: 42.4},
	}
	addresses := []string{"s3://b/1", "s3://b/2", "s3://b/3"}

	meta := BuildChunkMeta(segments, addresses)

	require.Len(t, meta, 3)
	assert.Equal(t, 1, meta[0].Index)
	assert.Equal(t, 0, meta[0].StartSec)
	assert.Equal(t, 16, meta[0].EndSec)
	assert.Equal(t, 16, meta[0].DurationSec)
	assert.Equal(t, 34, meta[1].EndSec)
	assert.Equal(t, 17, meta[1].DurationSec)
	assert.Equal(t, 42, meta[2].EndSec)
	require.NotNil(t, meta[2].GCSURI)
	assert.Equal(t, "s3://b/3", *meta[2].GCSURI)
}

func TestBuildChunkMeta_MissingAddresses(t *testing.T) {
	meta := BuildChunkMeta([]audio.Segment{{Index: 1, Start: 0, End: 20}}, nil)

	require.Len(t, meta, 1)
	assert.Nil(t, meta[0].GCSURI)
}

func TestPayload_JSONFieldNames(t *testing.T) {
	total := 95.25
	p := CompletedPayload("job-1", "src-1", "https://example.com/v",
		[]string{"s3://b/1"}, &total, 20,
		BuildChunkMeta([]audio.Segment{{Index: 1, Start: 0, End: 20}}, []string{"s3://b/1"}))

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))

	for _, key := range []string{
		"job_id", "source_id", "status", "chunks", "error", "meta",
		"totalDurationSeconds", "chunkSeconds", "originalUri", "chunksMeta",
	} {
		assert.Contains(t, m, key)
	}
	assert.Nil(t, m["error"])
	assert.Equal(t, float64(95), m["totalDurationSeconds"])
	assert.Equal(t, "https://example.com/v", m["originalUri"])

	meta := m["meta"].(map[string]any)
	assert.Equal(t, 95.25, meta["total_duration_sec"])
	assert.Equal(t, float64(20), meta["chunk_seconds"])

	chunk := m["chunksMeta"].([]any)[0].(map[string]any)
	assert.Equal(t, "s3://b/1", chunk["gcsUri"])
	assert.NotContains(t, chunk, "localPath")
}

func TestFailedPayload(t *testing.T) {
	p := FailedPayload("job-1", "src-1", "", "download failed")

	assert.Equal(t, StatusFailed, p.Status)
	require.NotNil(t, p.Error)
	assert.Equal(t, "download failed", *p.Error)
	assert.Nil(t, p.Chunks)
	assert.Nil(t, p.OriginalURI)
	assert.Nil(t, p.TotalDurationSeconds)
}

func TestCompletedPayload_UnknownDuration(t *testing.T) {
	p := CompletedPayload("job-1", "src-1", "", nil, nil, 20, nil)

	assert.Nil(t, p.TotalDurationSeconds)
	assert.Nil(t, p.Meta.TotalDurationSec)
	require.NotNil(t, p.ChunkSeconds)
	assert.Equal(t, 20, *p.ChunkSeconds)
}
