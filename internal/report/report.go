package report

import (
	"net/http"
	"strconv"
	"strings"

	"link_checker/internal/config"
	"link_checker/internal/models"
)

// Formatter turns verification outcomes into the text written back to a sheet.
type Formatter struct {
	Good     string
	Doubtful string
	Bad      string
}

func NewFormatter(cfg config.ReportConfig) *Formatter {
	return &Formatter{
		Good:     cfg.Good,
		Doubtful: cfg.Doubtful,
		Bad:      cfg.Bad,
	}
}

func (f *Formatter) Format(o *models.Outcome) (string, error) {
	if o == nil || o.URL == "" {
		return "", models.ErrInvalidArgument
	}

	if o.StatusCode != http.StatusOK {
		return f.Bad + strconv.Itoa(o.StatusCode), nil
	}
	if len(o.Matches) == 0 {
		return f.Good, nil
	}
	return f.Doubtful + strings.Join(o.Matches, ", "), nil
}

// FormatAll reports every outcome of one line, one per text line.
func (f *Formatter) FormatAll(outcomes []models.Outcome) (string, error) {
	if outcomes == nil {
		return "", models.ErrInvalidArgument
	}

	parts := make([]string, 0, len(outcomes))
	for i := range outcomes {
		s, err := f.Format(&outcomes[i])
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n"), nil
}
