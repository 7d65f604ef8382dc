// Package marketinout is the MarketInOut screener client: classic ASP
// cookie auth and HTML responses that have to be scraped for results.
package marketinout

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/xkilldash9x/tradewire/api/schemas"
	"github.com/xkilldash9x/tradewire/internal/httpclient"
	"github.com/xkilldash9x/tradewire/internal/session"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// wlidPattern matches the watch list id in redirect targets like
// "watch_list.php?wlid=123".
var wlidPattern = regexp.MustCompile(`watch_list\.php\?wlid=(\d+)`)

// loginMarkers identify the login page MarketInOut serves in place of any
// requested page once the session cookie has expired.
var loginMarkers = []string{
	`action="login.php"`,
	`name="login_form"`,
	"Please log in to continue",
}

// Client talks to MarketInOut on behalf of one captured session. It holds
// no per-request state beyond the injected cookie, so concurrent use is safe.
type Client struct {
	http    *httpclient.Client
	baseURL string
	log     *zap.Logger
}

// New builds a client around the extracted session cookie.
func New(baseURL string, cookie session.Cookie, cfg httpclient.Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	buildHeaders := func(h http.Header) {
		h.Set("Cookie", cookie.Key+"="+cookie.Value)
	}
	return &Client{
		http:    httpclient.New(cfg, buildHeaders, logger),
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger.Named("marketinout"),
	}
}

// Get issues an authenticated GET for a site-relative path.
func (c *Client) Get(ctx context.Context, path string) (*schemas.Response, error) {
	return c.http.Get(ctx, c.baseURL+path, httpclient.Options{})
}

// PostForm issues an authenticated form POST for a site-relative path.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*schemas.Response, error) {
	return c.http.Post(ctx, c.baseURL+path, httpclient.Options{Body: form})
}

// AddToWatchlist adds a symbol to the named watch list. The site answers
// with HTML (or a redirect back to the list) rather than a status code, so
// the envelope's body still needs IsLoginPage/ExtractMessage inspection.
func (c *Client) AddToWatchlist(ctx context.Context, listID, symbol string) (*schemas.Response, error) {
	form := url.Values{
		"wlid":   {listID},
		"symbol": {symbol},
		"mode":   {"add"},
	}
	return c.PostForm(ctx, "/home/watch_list.php", form)
}

// RemoveFromWatchlist removes a symbol from the named watch list.
func (c *Client) RemoveFromWatchlist(ctx context.Context, listID, symbol string) (*schemas.Response, error) {
	form := url.Values{
		"wlid":   {listID},
		"symbol": {symbol},
		"mode":   {"delete"},
	}
	return c.PostForm(ctx, "/home/watch_list.php", form)
}

// Watchlist is one named watch list.
type Watchlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Watchlists fetches the watch list overview page. The named lists live in
// the page's list selector; feed the body to ParseWatchlists.
func (c *Client) Watchlists(ctx context.Context) (*schemas.Response, error) {
	return c.Get(ctx, "/home/watch_list.php")
}

// ParseWatchlists pulls the named lists out of the overview page's
// <select name="wlid"> options.
func ParseWatchlists(body string) []Watchlist {
	doc, err := parseDoc(body)
	if err != nil {
		return nil
	}
	var lists []Watchlist
	for _, node := range htmlquery.Find(doc, `//select[@name="wlid"]/option`) {
		id := htmlquery.SelectAttr(node, "value")
		name := strings.TrimSpace(htmlquery.InnerText(node))
		if id == "" || name == "" {
			continue
		}
		lists = append(lists, Watchlist{ID: id, Name: name})
	}
	return lists
}

// parseDoc parses an HTML body into a node tree for XPath queries.
func parseDoc(body string) (*html.Node, error) {
	return htmlquery.Parse(strings.NewReader(body))
}

// nodeText evaluates an XPath expression and returns the trimmed inner text
// of the first match, or "" when nothing matches.
func nodeText(doc *html.Node, expr string) string {
	if node := htmlquery.FindOne(doc, expr); node != nil {
		return strings.TrimSpace(htmlquery.InnerText(node))
	}
	return ""
}

// IsLoginPage reports whether an HTML body is the login page, which is how
// MarketInOut signals an expired session (always with status 200).
func IsLoginPage(body string) bool {
	for _, marker := range loginMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// ExtractListID pulls a newly created watch list id out of an HTML body,
// looking for a redirect target of the form watch_list.php?wlid=N either in
// markup attributes or inline script.
func ExtractListID(body string) (string, bool) {
	if m := wlidPattern.FindStringSubmatch(body); m != nil {
		return m[1], true
	}
	return "", false
}

// ExtractMessage returns the human-readable status message from an HTML
// fragment: the first <div class="alert"> or, failing that, the document
// title. Empty when neither exists.
func ExtractMessage(body string) string {
	doc, err := parseDoc(body)
	if err != nil {
		return ""
	}
	if msg := nodeText(doc, `//div[contains(@class,"alert")]`); msg != "" {
		return msg
	}
	return nodeText(doc, `//title`)
}
