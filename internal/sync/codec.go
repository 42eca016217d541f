// Package sync reconciles local lists with a remote task service. The remote
// side has no notion of templates, streaks, or occurrence indices, so those
// ride along inside the task description behind a marker this package owns.
package sync

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"chorekeep/internal/model"
)

// Marker format: [chorekeep:key1=value1;key2=value2]
var metadataPattern = regexp.MustCompile(`\[chorekeep:(.*?)\]`)

// Metadata is the template state smuggled through the remote description
// field. Nil fields were absent from the marker.
type Metadata struct {
	StreakCurrent   *int
	StreakLongest   *int
	OccurrenceIndex *int
}

func (m Metadata) Empty() bool {
	return m.StreakCurrent == nil && m.StreakLongest == nil && m.OccurrenceIndex == nil
}

// EncodeMetadata renders the remote content field: the user description,
// and for templates a metadata marker appended after a "---" delimiter.
func EncodeMetadata(task model.Task) string {
	userDescription := task.Description
	if !task.IsTemplate {
		return userDescription
	}

	parts := []string{
		fmt.Sprintf("streak_current=%d", task.StreakCurrent),
		fmt.Sprintf("streak_longest=%d", task.StreakLongest),
		fmt.Sprintf("occurrence_index=%d", task.OccurrenceIndex),
	}

	marker := "[chorekeep:" + strings.Join(parts, ";") + "]"
	if userDescription == "" {
		return marker
	}
	return userDescription + "\n---\n" + marker
}

// DecodeMetadata splits remote content back into the user description and
// structured metadata. Content without a marker comes back unchanged with
// empty metadata; a malformed marker body never fails, unparseable pairs are
// simply dropped.
func DecodeMetadata(content string) (string, Metadata) {
	if content == "" {
		return "", Metadata{}
	}

	loc := metadataPattern.FindStringSubmatchIndex(content)
	if loc == nil {
		return content, Metadata{}
	}

	var meta Metadata
	body := content[loc[2]:loc[3]]
	for _, pair := range strings.Split(body, ";") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "streak_current":
			v := n
			meta.StreakCurrent = &v
		case "streak_longest":
			v := n
			meta.StreakLongest = &v
		case "occurrence_index":
			v := n
			meta.OccurrenceIndex = &v
		}
	}

	userDescription := strings.TrimRight(content[:loc[0]], "\n-")
	return userDescription, meta
}
