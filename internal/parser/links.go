package parser

import (
	"regexp"
	"strings"

	"link_checker/internal/models"
)

var (
	reLink = regexp.MustCompile(`((http|https):\/\/|)[A-z0-9,.\\\/:;?<>!@#$%^&*()\-+=_]{0,}(\.ru|\.com|\.net)[A-z0-9,.\\\/:;?<>!@#$%^&*()\-+=_]{0,}`)
)

const linkTrimSet = "()[]{},.!?<>;:"

// FindLinks returns every .ru, .com or .net URL embedded in text, trimmed of
// surrounding punctuation and prefixed with http:// when no scheme was written.
// It returns nil when the text holds no link.
func FindLinks(text string) []string {
	found := reLink.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}

	links := make([]string, 0, len(found))
	for _, raw := range found {
		link := strings.Trim(raw, linkTrimSet)
		if link == "" {
			continue
		}
		if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
			link = "http://" + link
		}
		links = append(links, link)
	}
	if len(links) == 0 {
		return nil
	}
	return links
}

// ExtractLinks builds the link set of a block of lines. Lines without links are
// left out, so a line index is present only when it has at least one URL.
func ExtractLinks(lines []string) (models.LinkSet, error) {
	if lines == nil {
		return nil, models.ErrInvalidArgument
	}

	set := make(models.LinkSet)
	for i, line := range lines {
		if links := FindLinks(line); links != nil {
			set[i] = links
		}
	}
	return set, nil
}
