package report

import (
	"testing"

	"link_checker/internal/config"
	"link_checker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormatter() *Formatter {
	return NewFormatter(config.DefaultConfig().Report)
}

func TestFormat(t *testing.T) {
	f := testFormatter()

	tests := []struct {
		name    string
		outcome models.Outcome
		want    string
	}{
		{"good", models.Outcome{URL: "http://a.ru", StatusCode: 200, Matches: []string{}}, "ОК"},
		{"good without matches slice", models.Outcome{URL: "http://a.ru", StatusCode: 200}, "ОК"},
		{"bad", models.Outcome{URL: "http://a.ru", StatusCode: 404, Matches: []string{}}, "Ошибка. Код состояния: 404"},
		{"redirect left over", models.Outcome{URL: "http://a.ru", StatusCode: 302}, "Ошибка. Код состояния: 302"},
		{
			"doubtful",
			models.Outcome{URL: "http://a.ru", StatusCode: 200, Matches: []string{"error", "not found"}},
			"Найдены совпадения по фразам: error, not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Format(&tt.outcome)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatCustomPrefixes(t *testing.T) {
	f := &Formatter{Good: "OK", Doubtful: "Suspicious: ", Bad: "HTTP "}

	got, err := f.Format(&models.Outcome{URL: "http://a.com", StatusCode: 500})
	require.NoError(t, err)
	assert.Equal(t, "HTTP 500", got)
}

func TestFormatInvalid(t *testing.T) {
	f := testFormatter()

	_, err := f.Format(nil)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.Format(&models.Outcome{StatusCode: 200})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.FormatAll(nil)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.FormatAll([]models.Outcome{{URL: "http://a.ru", StatusCode: 200}, {StatusCode: 200}})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestFormatAll(t *testing.T) {
	f := testFormatter()

	got, err := f.FormatAll([]models.Outcome{
		{URL: "http://a.ru", StatusCode: 200, Matches: []string{}},
		{URL: "http://b.com", StatusCode: 404, Matches: []string{}},
		{URL: "http://c.net", StatusCode: 200, Matches: []string{"parked"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ОК\nОшибка. Код состояния: 404\nНайдены совпадения по фразам: parked", got)

	got, err = f.FormatAll([]models.Outcome{})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
