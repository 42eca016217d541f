package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorekeep/internal/model"
)

func TestMetadataCodec_RoundTrip(t *testing.T) {
	tmpl := model.NewTask("water plants")
	tmpl.IsTemplate = true
	tmpl.Description = "the ones on the balcony"
	tmpl.StreakCurrent = 5
	tmpl.StreakLongest = 9
	tmpl.OccurrenceIndex = 2

	encoded := EncodeMetadata(tmpl)
	assert.Contains(t, encoded, "\n---\n[chorekeep:")

	desc, meta := DecodeMetadata(encoded)
	assert.Equal(t, "the ones on the balcony", desc)
	require.NotNil(t, meta.StreakCurrent)
	require.NotNil(t, meta.StreakLongest)
	require.NotNil(t, meta.OccurrenceIndex)
	assert.Equal(t, 5, *meta.StreakCurrent)
	assert.Equal(t, 9, *meta.StreakLongest)
	assert.Equal(t, 2, *meta.OccurrenceIndex)
}

func TestMetadataCodec_EmptyDescriptionHasNoDelimiter(t *testing.T) {
	tmpl := model.NewTask("water plants")
	tmpl.IsTemplate = true
	tmpl.StreakCurrent = 3

	encoded := EncodeMetadata(tmpl)
	assert.False(t, len(encoded) == 0)
	assert.NotContains(t, encoded, "---")

	desc, meta := DecodeMetadata(encoded)
	assert.Empty(t, desc)
	require.NotNil(t, meta.StreakCurrent)
	assert.Equal(t, 3, *meta.StreakCurrent)
}

func TestMetadataCodec_NonTemplatePassesThrough(t *testing.T) {
	task := model.NewTask("one-off")
	task.Description = "no marker here"
	assert.Equal(t, "no marker here", EncodeMetadata(task))
}

func TestMetadataCodec_NoMarkerReturnsOriginal(t *testing.T) {
	desc, meta := DecodeMetadata("plain text\nwith lines")
	assert.Equal(t, "plain text\nwith lines", desc)
	assert.True(t, meta.Empty())
}

func TestMetadataCodec_MalformedPairsDropped(t *testing.T) {
	desc, meta := DecodeMetadata("hi\n---\n[chorekeep:streak_current=abc;nonsense;occurrence_index=4]")
	assert.Equal(t, "hi", desc)
	assert.Nil(t, meta.StreakCurrent)
	require.NotNil(t, meta.OccurrenceIndex)
	assert.Equal(t, 4, *meta.OccurrenceIndex)
}

func TestMetadataCodec_EmptyContent(t *testing.T) {
	desc, meta := DecodeMetadata("")
	assert.Empty(t, desc)
	assert.True(t, meta.Empty())
}
