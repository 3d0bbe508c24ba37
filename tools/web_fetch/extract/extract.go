package extract

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/researcher/internal/helpers"
	"github.com/mohammad-safakhou/researcher/tools/web_fetch/models"
)

// ErrNoContent is returned when readability finds no article text.
var ErrNoContent = errors.New("no readable content")

// Article runs readability over html and returns the article text cut to maxChars.
func Article(html, pageURL string, maxChars int) (models.Result, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return models.Result{}, fmt.Errorf("parse url: %w", err)
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return models.Result{}, fmt.Errorf("readability: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return models.Result{}, ErrNoContent
	}
	sum := sha1.Sum([]byte(html))
	return models.Result{
		URL:      pageURL,
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		SiteName: strings.TrimSpace(article.SiteName),
		Text:     helpers.Truncate(text, maxChars),
		HTMLHash: hex.EncodeToString(sum[:]),
	}, nil
}
