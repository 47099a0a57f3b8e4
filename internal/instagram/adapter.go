// Package instagram is the capability boundary to Instagram. The engine
// treats the Adapter as an oracle: classified failures come back as Result
// values, never as errors. Only unexpected conditions (network faults,
// unusable sessions) propagate as errors.
package instagram

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/likebank/likebank/internal/domain"
)

// Canonical Result reasons.
const (
	ReasonNotLiked       = "not_liked"
	ReasonNotFollowed    = "not_followed"
	ReasonCommentMissing = "comment_missing"
	ReasonPostDeleted    = "post_deleted"
	ReasonRateLimited    = "rate_limited"
	ReasonUnavailable    = "instagram_unavailable"
)

// Result classifies a validation outcome. Terminal means "do not retry";
// a non-OK non-terminal result may succeed on a later attempt.
type Result struct {
	OK       bool
	Terminal bool
	Reason   string
}

// WorkerFault reports whether a terminal failure is attributable to the
// worker (they did not perform the action) rather than to the target
// disappearing.
func (r Result) WorkerFault() bool {
	return !r.OK && r.Terminal && r.Reason != ReasonPostDeleted
}

type Adapter interface {
	ValidateLike(ctx context.Context, handle, postURL string) (Result, error)
	ValidateFollow(ctx context.Context, handle, profileURL string) (Result, error)
	ValidateComment(ctx context.Context, handle, postURL, requiredText string) (Result, error)
}

// ValidateTargetURL checks that raw is a syntactically plausible Instagram
// target for the given order kind.
func ValidateTargetURL(kind domain.OrderKind, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidTarget, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidTarget, u.Scheme)
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host != "instagram.com" {
		return fmt.Errorf("%w: host %q is not instagram", domain.ErrInvalidTarget, u.Hostname())
	}

	switch kind {
	case domain.KindLike, domain.KindComment:
		if _, err := shortcodeFromPath(u.Path); err != nil {
			return err
		}
	case domain.KindFollow:
		if _, err := usernameFromPath(u.Path); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidTarget, kind)
	}
	return nil
}

// shortcodeFromPath extracts the media shortcode from /p/{code}/ or
// /reel/{code}/ paths.
func shortcodeFromPath(path string) (string, error) {
	parts := splitPath(path)
	if len(parts) >= 2 && (parts[0] == "p" || parts[0] == "reel") && parts[1] != "" {
		return parts[1], nil
	}
	return "", fmt.Errorf("%w: %q is not a post url", domain.ErrInvalidTarget, path)
}

// usernameFromPath extracts the profile name from /{username}/ paths.
func usernameFromPath(path string) (string, error) {
	parts := splitPath(path)
	if len(parts) == 1 && parts[0] != "" && parts[0] != "p" && parts[0] != "reel" {
		return parts[0], nil
	}
	return "", fmt.Errorf("%w: %q is not a profile url", domain.ErrInvalidTarget, path)
}

func fromURLPath(raw string, extract func(string) (string, error)) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidTarget, err)
	}
	return extract(u.Path)
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
