package db

import (
	"testing"
	"time"

	"link_checker/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRecords(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	outcomes := models.OutcomeSet{
		3: {
			{URL: "https://yandex.ru", StatusCode: 200, Matches: []string{}},
			{URL: "https://habr.com", StatusCode: 404, Matches: []string{}},
		},
		1: {
			{URL: "http://google.com", StatusCode: 200, Matches: []string{"parked"}},
		},
	}

	records := BuildRecords("in/links.xlsx", "Sheet1", outcomes, now)
	require.Len(t, records, 3)

	assert.Equal(t, 1, records[0].Line)
	assert.Equal(t, "http://google.com", records[0].URL)
	assert.Equal(t, "doubtful", records[0].Status)
	assert.Equal(t, []string{"parked"}, records[0].Matches)

	assert.Equal(t, 3, records[1].Line)
	assert.Equal(t, "good", records[1].Status)
	assert.Equal(t, "bad", records[2].Status)
	assert.Equal(t, 404, records[2].StatusCode)

	for _, rec := range records {
		assert.Equal(t, "in/links.xlsx", rec.Unit)
		assert.Equal(t, "Sheet1", rec.Sheet)
		assert.Equal(t, now.Unix(), rec.Timestamp)
		_, err := uuid.Parse(rec.ID)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, records[0].ID, records[1].ID)
}

func TestBuildRecordsEmpty(t *testing.T) {
	assert.Empty(t, BuildRecords("u", "s", models.OutcomeSet{}, time.Now()))
	assert.Empty(t, BuildRecords("u", "s", models.OutcomeSet{0: {}}, time.Now()))

	records := BuildRecords("u", "s", models.OutcomeSet{0: {{URL: "http://a.ru", StatusCode: 500}}}, time.Now())
	require.Len(t, records, 1)
	assert.NotNil(t, records[0].Matches)
}
