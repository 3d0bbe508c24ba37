package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researcher/tools/web_fetch/extract"
	"github.com/mohammad-safakhou/researcher/tools/web_fetch/models"
)

// maxBodyBytes bounds how much HTML is read from a single page.
const maxBodyBytes = 5 << 20

// Fetch downloads the raw HTML with a plain GET; no script execution.
type Fetch struct {
	Client    *nethttp.Client
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
}

func (f Fetch) Exec(ctx context.Context, url string) (models.Result, error) {
	if strings.TrimSpace(url) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nil)
	if err != nil {
		return models.Result{}, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := f.Client
	if client == nil {
		client = nethttp.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.Result{}, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Result{}, fmt.Errorf("get %s: http %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return models.Result{}, fmt.Errorf("get %s: unsupported content type %q", url, ct)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.Result{}, fmt.Errorf("read %s: %w", url, err)
	}

	res, err := extract.Article(string(body), url, f.MaxChars)
	if err != nil {
		return models.Result{}, fmt.Errorf("extract %s: %w", url, err)
	}
	res.Status = resp.StatusCode
	res.RenderMS = int(time.Since(t0) / time.Millisecond)
	return res, nil
}
