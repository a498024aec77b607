package flightclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flightdeals/pkg/logger"
)

const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
	maxPageBytes = 16 << 20
)

var (
	dataBlockRe = regexp.MustCompile(`\bdata\s*:\s*\{`)
	objFieldRe  = regexp.MustCompile(`(?s)([A-Za-z_$][\w$-]*|'[^']*'|"[^"]*")\s*:\s*('(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"|[^,}]+)`)
)

// portal is the HTTP plumbing shared by every source hosted on the portal.
type portal struct {
	source     string
	httpClient *http.Client
	baseURL    string
	logger     logger.Client
	now        func() time.Time
}

func newPortal(source string, httpClient *http.Client, baseURL string, logger logger.Client) portal {
	return portal{
		source:     source,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		now:        time.Now,
	}
}

func (p *portal) Source() string {
	return p.source
}

// session is the state carried from the initial page to the follow-up requests. Cookies live in the
// client's jar, so every response's cookies are merged into the next request.
type session struct {
	client  *http.Client
	referer string
	data    map[string]string
}

// open loads the search page and reads the session token from its inline data object.
func (p *portal) open(ctx context.Context, path string, query url.Values) (*session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create cookie jar: %w", p.source, err)
	}
	client := &http.Client{
		Transport: p.httpClient.Transport,
		Timeout:   p.httpClient.Timeout,
		Jar:       jar,
	}

	pageURL := p.baseURL + path + "?" + query.Encode()
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", p.source, err)
	}
	r.Header.Set("User-Agent", userAgent)
	r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	r.Header.Set("Accept-Language", "en-US,en;q=0.5")

	status, body, err := p.do(client, r)
	if err != nil {
		return nil, err
	}
	if !ok2xx(status) {
		return nil, &StatusError{Source: p.source, Code: status}
	}

	data := parseDataObject(body, p.now())
	if data["_token"] == "" {
		return nil, fmt.Errorf("%s: %w", p.source, ErrMissingToken)
	}

	p.logger.Debug("portal session opened",
		logger.Field{Key: "source", Value: p.source},
		logger.Field{Key: "fields", Value: len(data)},
	)
	return &session{client: client, referer: pageURL, data: data}, nil
}

// post sends form to path within the session and returns the status and body.
func (p *portal) post(ctx context.Context, s *session, path string, form url.Values, headers map[string]string) (int, string, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", fmt.Errorf("%s: failed to build request: %w", p.source, err)
	}
	r.Header.Set("User-Agent", userAgent)
	r.Header.Set("Accept", "*/*")
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	r.Header.Set("Referer", s.referer)
	r.Header.Set("X-Requested-With", "XMLHttpRequest")
	for k, v := range headers {
		r.Header.Set(k, v)
	}

	return p.do(s.client, r)
}

func (p *portal) do(client *http.Client, r *http.Request) (int, string, error) {
	resp, err := client.Do(r)
	if err != nil {
		return 0, "", fmt.Errorf("%s: external api call failed: %w", p.source, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("%s: failed to read response: %w", p.source, err)
	}
	return resp.StatusCode, string(b), nil
}

// parseDataObject reads the flat JS object literal assigned to `data:` in the page. `$.now()` becomes the
// current epoch milliseconds. Nested objects are ignored.
func parseDataObject(body string, now time.Time) map[string]string {
	loc := dataBlockRe.FindStringIndex(body)
	if loc == nil {
		return nil
	}

	start := loc[1] - 1
	end := matchingBrace(body, start)
	if end < 0 {
		return nil
	}

	literal := body[start+1 : end]
	out := make(map[string]string)
	for _, m := range objFieldRe.FindAllStringSubmatch(literal, -1) {
		key := unquote(m[1])
		raw := strings.TrimSpace(m[2])
		if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
			continue
		}
		switch {
		case strings.Contains(raw, "$.now()"):
			out[key] = strconv.FormatInt(now.UnixMilli(), 10)
		default:
			out[key] = unquote(raw)
		}
	}
	return out
}

// matchingBrace returns the index of the brace closing the one at open, skipping quoted strings.
func matchingBrace(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
		return strings.NewReplacer(`\'`, `'`, `\"`, `"`, `\/`, `/`, `\\`, `\`).Replace(s)
	}
	return s
}

func ok2xx(code int) bool {
	return code >= 200 && code < 300
}
