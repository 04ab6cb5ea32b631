package checker

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"link_checker/internal/config"
	"link_checker/internal/fetch"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reBlockOpen  = regexp.MustCompile(`<(div|p|br|li|td|tr|h[1-6])(\s[^>]*)?/?>`)
	reBlockClose = regexp.MustCompile(`</(div|p|li|td|tr|h[1-6])>`)
)

// bodyText turns a page body into the text phrases are matched against.
// Modes other than raw fall back to the raw body when the HTML cannot be used.
func (c *Checker) bodyText(page *fetch.Page, log logrus.FieldLogger) string {
	raw := string(page.Body)

	switch c.bodyMode {
	case config.BodyModeText:
		text, err := visibleText(raw)
		if err != nil {
			log.Debugf("can't parse HTML, scanning raw body: %v", err)
			return raw
		}
		return text

	case config.BodyModeArticle:
		text, err := articleText(raw, page.URL)
		if err != nil {
			log.Debugf("can't extract article, scanning raw body: %v", err)
			return raw
		}
		return text
	}

	return raw
}

func visibleText(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(addSpacesBeforeParsing(rawHTML)))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	return normalizeText(doc.Text()), nil
}

func articleText(rawHTML, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(bytes.NewReader([]byte(rawHTML)), parsedURL)
	if err != nil {
		return "", err
	}

	text, err := visibleText(article.Content)
	if err != nil {
		return "", err
	}
	if article.Title != "" {
		text = article.Title + " " + text
	}
	return text, nil
}

func normalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// addSpacesBeforeParsing keeps words of adjacent block elements apart in Text().
func addSpacesBeforeParsing(html string) string {
	html = reBlockOpen.ReplaceAllStringFunc(html, func(tag string) string { return " " + tag })
	return reBlockClose.ReplaceAllStringFunc(html, func(tag string) string { return tag + " " })
}
