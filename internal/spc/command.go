package spc

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Command submission replays the request the web UI's action buttons issue.
// The category page embeds per-entity action URLs (hrefs and form actions on
// secure.htm); the client re-fetches the page, locates the URL matching the
// entity and verb, and issues it. When a firmware doesn't expose the link in
// a recognizable form, the canonical secure.htm URL is constructed instead
// and the panel's status code decides the outcome.

// Command executes a panel action for one entity. verb is the canonical
// action token (sectors: mhs/mes/parta/partb; doors: normal/lock/unlock/
// pulse; outputs: on/off; zones: inhibit/uninhibit/isolate/unisolate/
// testjdb/restore).
//
// Errors: ErrNoSession when no session is available, *HTTPError for panel
// status >= 400, any other error is a network failure.
func (c *Client) Command(ctx context.Context, cat Category, id, verb string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sid, err := c.getOrLogin(ctx)
	if err != nil {
		return err
	}
	if sid == "" {
		return ErrNoSession
	}

	body, _, err := c.get(ctx, c.pageURL(sid, cat.page()))
	if err != nil {
		return err
	}

	target := findActionURL(body, id, verb)
	if target == "" {
		target = c.pageURL(sid, cat.page()) + "&action=" + url.QueryEscape(verb) + "&id=" + url.QueryEscape(id)
	} else {
		target = c.resolve(target)
	}

	_, _, err = c.get(ctx, target)
	return err
}

// resolve turns a page-relative action URL into an absolute one.
func (c *Client) resolve(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return c.host + "/" + strings.TrimLeft(raw, "/")
}

// findActionURL scans hrefs and form actions for a secure.htm URL whose
// query names the wanted action and references the entity id.
func findActionURL(raw, id, verb string) string {
	doc := parseDoc(raw)
	if doc == nil {
		return ""
	}
	var found string
	walk(doc, func(n *html.Node) bool {
		var candidate string
		switch n.Data {
		case "a":
			candidate = attrVal(n, "href")
		case "form":
			candidate = attrVal(n, "action")
		default:
			return true
		}
		if candidate == "" || !strings.Contains(candidate, "?") {
			return true
		}
		if matchActionURL(candidate, id, verb) {
			found = candidate
			return false
		}
		return true
	})
	return found
}

func matchActionURL(candidate, id, verb string) bool {
	query := candidate[strings.IndexByte(candidate, '?')+1:]
	vals, err := url.ParseQuery(query)
	if err != nil {
		return false
	}
	if !strings.EqualFold(vals.Get("action"), verb) {
		return false
	}
	// The id parameter name varies by firmware (id, zone, area, door,
	// output); accept any parameter carrying the entity id.
	for key, vs := range vals {
		if key == "action" || key == "session" || key == "page" {
			continue
		}
		for _, v := range vs {
			if v == id {
				return true
			}
		}
	}
	return false
}
