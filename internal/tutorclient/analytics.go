package tutorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coursekit/tutorstream/internal/knowledge"
)

// Analytics calls never fail hard: a transport or decode problem degrades to
// ok=false so a dashboard can render "unavailable" instead of breaking.

// Memory fetches the full knowledge state for one user. A 404 is a valid
// answer (no memory yet) and returns (nil, true).
func (c *Client) Memory(ctx context.Context, userID string) (*knowledge.UserMemory, bool) {
	var mem knowledge.UserMemory
	ok, found := c.getJSON(ctx, "/v1/tutor/users/"+url.PathEscape(userID)+"/memory", &mem)
	if !ok {
		return nil, false
	}
	if !found {
		return nil, true
	}
	return &mem, true
}

// Mastery fetches one concept's mastery view. A 404 means the concept has not
// been reviewed yet.
func (c *Client) Mastery(ctx context.Context, userID, concept string) (*knowledge.MasteryView, bool) {
	var view knowledge.MasteryView
	path := "/v1/tutor/users/" + url.PathEscape(userID) + "/mastery/" + url.PathEscape(concept)
	ok, found := c.getJSON(ctx, path, &view)
	if !ok {
		return nil, false
	}
	if !found {
		return nil, true
	}
	return &view, true
}

// Interactions fetches past exchanges touching any of the given concepts.
func (c *Client) Interactions(ctx context.Context, userID string, concepts []string, limit int) ([]knowledge.Interaction, bool) {
	q := url.Values{}
	if len(concepts) > 0 {
		q.Set("concepts", strings.Join(concepts, ","))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/tutor/users/" + url.PathEscape(userID) + "/interactions"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var interactions []knowledge.Interaction
	ok, found := c.getJSON(ctx, path, &interactions)
	if !ok {
		return nil, false
	}
	if !found {
		return []knowledge.Interaction{}, true
	}
	return interactions, true
}

// SendFeedback reports whether the effectiveness rating was accepted.
func (c *Client) SendFeedback(ctx context.Context, fb knowledge.Feedback) bool {
	return c.sendJSON(ctx, http.MethodPost, "/v1/tutor/feedback", fb)
}

// UpdateLearningStyle replaces the user's teaching preference record.
func (c *Client) UpdateLearningStyle(ctx context.Context, userID string, style knowledge.LearningStyle) bool {
	path := "/v1/tutor/users/" + url.PathEscape(userID) + "/learning-style"
	return c.sendJSON(ctx, http.MethodPut, path, style)
}

// getJSON returns (ok, found): ok=false for transport or decode failures,
// found=false for a clean 404.
func (c *Client) getJSON(ctx context.Context, path string, out any) (ok, found bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("analytics request failed", "path", path, "err", err)
		return false, false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.logger.Warn("analytics decode failed", "path", path, "err", err)
			return false, false
		}
		return true, true
	case http.StatusNotFound:
		return true, false
	default:
		c.logger.Warn("analytics request rejected", "path", path, "status", resp.StatusCode)
		return false, false
	}
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("analytics request failed", "path", path, "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("analytics request rejected", "path", path, "status", resp.StatusCode)
		return false
	}
	return true
}
