package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Client validates interactions against the Instagram web API using an
// operator-provided session cookie. Like and follow checks use the JSON
// endpoints; comment checks scrape the post page.
type Client struct {
	httpClient *http.Client
	baseURL    string
	sessionID  string
}

var _ Adapter = (*Client)(nil)

func NewClient(baseURL, sessionID string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		sessionID:  sessionID,
	}
}

func (c *Client) ValidateLike(ctx context.Context, handle, postURL string) (Result, error) {
	shortcode, err := shortcodeFromURL(postURL)
	if err != nil {
		return Result{Terminal: true, Reason: ReasonPostDeleted}, nil
	}

	body, res, err := c.get(ctx, fmt.Sprintf("%s/api/v1/media/%s/likers/", c.baseURL, shortcode))
	if err != nil || res != nil {
		return deref(res), err
	}

	var likers struct {
		Users []struct {
			Username string `json:"username"`
		} `json:"users"`
	}
	if err := json.Unmarshal(body, &likers); err != nil {
		return Result{}, fmt.Errorf("parse likers: %w", err)
	}
	for _, u := range likers.Users {
		if strings.EqualFold(u.Username, handle) {
			return Result{OK: true}, nil
		}
	}
	return Result{Terminal: true, Reason: ReasonNotLiked}, nil
}

func (c *Client) ValidateFollow(ctx context.Context, handle, profileURL string) (Result, error) {
	target, err := usernameFromURL(profileURL)
	if err != nil {
		return Result{Terminal: true, Reason: ReasonPostDeleted}, nil
	}

	body, res, err := c.get(ctx, fmt.Sprintf("%s/api/v1/friendships/show/%s/%s/", c.baseURL, handle, target))
	if err != nil || res != nil {
		return deref(res), err
	}

	var friendship struct {
		Following bool `json:"following"`
	}
	if err := json.Unmarshal(body, &friendship); err != nil {
		return Result{}, fmt.Errorf("parse friendship: %w", err)
	}
	if friendship.Following {
		return Result{OK: true}, nil
	}
	return Result{Terminal: true, Reason: ReasonNotFollowed}, nil
}

func (c *Client) ValidateComment(ctx context.Context, handle, postURL, requiredText string) (Result, error) {
	body, res, err := c.get(ctx, postURL)
	if err != nil || res != nil {
		return deref(res), err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return Result{}, fmt.Errorf("parse post page: %w", err)
	}

	found := false
	doc.Find("ul.comments li, li.comment").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		author := strings.TrimSpace(s.Find("a").First().Text())
		author = strings.TrimPrefix(author, "@")
		if !strings.EqualFold(author, handle) {
			return true
		}
		text := strings.TrimSpace(s.Find("span").Last().Text())
		if strings.Contains(strings.ToLower(text), strings.ToLower(requiredText)) {
			found = true
			return false
		}
		return true
	})
	if found {
		return Result{OK: true}, nil
	}
	return Result{Terminal: true, Reason: ReasonCommentMissing}, nil
}

// get fetches the URL and classifies the HTTP status. It returns exactly one
// of: the response body (status 200), a classified Result, or an error for
// unclassified conditions.
func (c *Client) get(ctx context.Context, url string) ([]byte, *Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("X-IG-App-ID", "936619743392459")
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.sessionID})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &Result{Terminal: true, Reason: ReasonPostDeleted}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Result{Reason: ReasonRateLimited}, nil
	case resp.StatusCode >= 500:
		return nil, &Result{Reason: ReasonUnavailable}, nil
	default:
		// 401/403 mean the operator session is unusable; surface it.
		return nil, nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil, nil
}

func deref(r *Result) Result {
	if r == nil {
		return Result{}
	}
	return *r
}

func shortcodeFromURL(raw string) (string, error) {
	return fromURLPath(raw, shortcodeFromPath)
}

func usernameFromURL(raw string) (string, error) {
	return fromURLPath(raw, usernameFromPath)
}
