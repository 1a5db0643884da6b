package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	body := []byte(`{
		"type": "INSERT",
		"table": "submissions",
		"schema": "public",
		"record": {"id": "sub-1", "user_id": "user-1", "image_url": "https://cdn.example.com/a.jpg"}
	}`)

	evt, err := Parse(body)
	require.NoError(t, err)
	assert.Equal(t, Insert, evt.Type)
	assert.Equal(t, SubmissionsTable, evt.Table)
	assert.True(t, evt.IsSubmissionInsert())
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing type", `{"table": "submissions"}`},
		{"missing table", `{"type": "INSERT"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestIsSubmissionInsert(t *testing.T) {
	cases := []struct {
		name string
		evt  ChangeEvent
		want bool
	}{
		{"insert on submissions", ChangeEvent{Type: Insert, Table: SubmissionsTable}, true},
		{"update on submissions", ChangeEvent{Type: Update, Table: SubmissionsTable}, false},
		{"delete on submissions", ChangeEvent{Type: Delete, Table: SubmissionsTable}, false},
		{"insert elsewhere", ChangeEvent{Type: Insert, Table: "profiles"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.evt.IsSubmissionInsert())
		})
	}
}

func TestSubmissionRecord(t *testing.T) {
	evt := ChangeEvent{
		Type:  Insert,
		Table: SubmissionsTable,
		Record: json.RawMessage(`{
			"id": "sub-1",
			"user_id": "user-1",
			"exercise_id": "ex-9",
			"image_url": "https://cdn.example.com/a.jpg",
			"status": "pending",
			"submitted_at": "2026-03-15T12:00:00Z"
		}`),
	}

	rec, err := evt.SubmissionRecord()
	require.NoError(t, err)
	assert.Equal(t, "sub-1", rec.ID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, "ex-9", rec.ExerciseID)
	assert.Equal(t, "https://cdn.example.com/a.jpg", rec.ImageURL)
	assert.Equal(t, 2026, rec.SubmittedAt.Year())
}

func TestSubmissionRecordRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		record string
	}{
		{"empty record", ``},
		{"missing id", `{"user_id": "u", "image_url": "https://x/a.jpg"}`},
		{"missing user_id", `{"id": "s", "image_url": "https://x/a.jpg"}`},
		{"missing image_url", `{"id": "s", "user_id": "u"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			evt := ChangeEvent{Type: Insert, Table: SubmissionsTable, Record: json.RawMessage(tc.record)}
			_, err := evt.SubmissionRecord()
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
