// Package couchdb implements api.Store over the CouchDB HTTP API.
package couchdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/xdbsoft/potato/api"
)

const designPrefix = "_design/"

// Error is a non successful answer of the server.
type Error struct {
	StatusCode int
	Kind       string
	Reason     string
}

func (err *Error) Error() string {
	if err.Reason == "" {
		return fmt.Sprintf("couchdb: %s (status %d)", err.Kind, err.StatusCode)
	}
	return fmt.Sprintf("couchdb: %s: %s (status %d)", err.Kind, err.Reason, err.StatusCode)
}

func (err *Error) IsNotFound() bool {
	return err.StatusCode == http.StatusNotFound
}

func (err *Error) IsConflict() bool {
	return err.StatusCode == http.StatusConflict
}

// Client talks to one database.
type Client struct {
	dbURL  *url.URL
	name   string
	client *http.Client
}

var _ api.Store = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithTimeout bounds every request. It applies to the client in use, so it
// should come after WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		c := *cl.client
		c.Timeout = d
		cl.client = &c
	}
}

// New returns a client for the database at rawURL, the last path segment
// being the database name.
func New(rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid database url %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("invalid database url %q: unsupported scheme", rawURL)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return nil, errors.Errorf("invalid database url %q: missing database name", rawURL)
	}

	c := &Client{dbURL: u, name: name, client: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name is the database name.
func (c *Client) Name() string {
	return c.name
}

func (c *Client) Info(ctx context.Context) (api.DatabaseInfo, error) {
	b, err := c.do(ctx, http.MethodGet, "", nil, nil)
	if err != nil {
		return api.DatabaseInfo{}, err
	}
	var info api.DatabaseInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return api.DatabaseInfo{}, errors.Wrap(err, "unable to decode database info")
	}
	info.UpdateSeq = gjson.GetBytes(b, "update_seq").String()
	return info, nil
}

func (c *Client) Get(ctx context.Context, id string) (map[string]interface{}, error) {
	b, err := c.do(ctx, http.MethodGet, docPath(id), nil, nil)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]interface{})
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrapf(err, "unable to decode document %s", id)
	}
	return doc, nil
}

func (c *Client) SaveDocument(ctx context.Context, doc map[string]interface{}) (api.SaveResult, error) {
	id, _ := doc[api.IDField].(string)
	if id == "" {
		id = api.NextID()
		withID := make(map[string]interface{}, len(doc)+1)
		for k, v := range doc {
			withID[k] = v
		}
		withID[api.IDField] = id
		doc = withID
	}

	b, err := c.do(ctx, http.MethodPut, docPath(id), nil, doc)
	if err != nil {
		return api.SaveResult{}, err
	}
	res := gjson.GetManyBytes(b, "id", "rev")
	return api.SaveResult{ID: res[0].String(), Rev: res[1].String()}, nil
}

func (c *Client) DeleteDocument(ctx context.Context, doc map[string]interface{}) error {
	id, _ := doc[api.IDField].(string)
	rev, _ := doc[api.RevField].(string)
	if id == "" {
		return errors.New("unable to delete a document without id")
	}
	_, err := c.do(ctx, http.MethodDelete, docPath(id), url.Values{"rev": {rev}}, nil)
	return err
}

func (c *Client) QueryView(ctx context.Context, q api.ViewQuery) (api.ViewResult, error) {
	if err := c.ensureDesign(ctx, q); err != nil {
		return api.ViewResult{}, err
	}

	p := designPrefix + q.Design + "/_view/" + q.View
	if q.List != "" {
		p = designPrefix + q.Design + "/_list/" + q.List + "/" + q.View
	}

	values, keys, err := encodeParams(q.Params)
	if err != nil {
		return api.ViewResult{}, err
	}

	var b []byte
	if keys != nil {
		b, err = c.do(ctx, http.MethodPost, p, values, map[string]interface{}{"keys": keys})
	} else {
		b, err = c.do(ctx, http.MethodGet, p, values, nil)
	}
	if err != nil {
		return api.ViewResult{}, err
	}

	var body struct {
		Rows []api.Row `json:"rows"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return api.ViewResult{}, errors.Wrapf(err, "unable to decode %s/%s rows", q.Design, q.View)
	}
	res := api.ViewResult{Rows: body.Rows}
	if total := gjson.GetBytes(b, "total_rows"); total.Exists() {
		n := int(total.Int())
		res.TotalRows = &n
	}
	return res, nil
}

// ensureDesign stores the view and list sources of q in their design document
// unless it already holds them.
func (c *Client) ensureDesign(ctx context.Context, q api.ViewQuery) error {
	id := designPrefix + q.Design

	design, err := c.Get(ctx, id)
	if err != nil {
		var cErr *Error
		if !errors.As(err, &cErr) || !cErr.IsNotFound() {
			return errors.Wrapf(err, "unable to read design document %s", q.Design)
		}
		design = map[string]interface{}{api.IDField: id, "language": "javascript"}
	}

	changed := false
	views, _ := design["views"].(map[string]interface{})
	if views == nil {
		views = make(map[string]interface{})
	}
	for name, def := range q.Views {
		want := map[string]interface{}{"map": def.Map}
		if def.Reduce != "" {
			want["reduce"] = def.Reduce
		}
		if !sameDefinition(views[name], want) {
			views[name] = want
			changed = true
		}
	}
	design["views"] = views

	if len(q.Lists) > 0 {
		lists, _ := design["lists"].(map[string]interface{})
		if lists == nil {
			lists = make(map[string]interface{})
		}
		for name, src := range q.Lists {
			if lists[name] != src {
				lists[name] = src
				changed = true
			}
		}
		design["lists"] = lists
	}

	if !changed {
		return nil
	}
	if _, err := c.do(ctx, http.MethodPut, id, nil, design); err != nil {
		return errors.Wrapf(err, "unable to store design document %s", q.Design)
	}
	return nil
}

func sameDefinition(current interface{}, want map[string]interface{}) bool {
	m, ok := current.(map[string]interface{})
	if !ok || len(m) != len(want) {
		return false
	}
	for k, v := range want {
		if m[k] != v {
			return false
		}
	}
	return true
}

var jsonParams = map[string]bool{
	"key":      true,
	"keys":     true,
	"startkey": true,
	"endkey":   true,
}

// encodeParams turns view parameters into a query string. keys is returned
// apart since it travels in a POST body.
func encodeParams(params map[string]interface{}) (url.Values, interface{}, error) {
	values := url.Values{}
	var keys interface{}
	for k, v := range params {
		if k == "keys" {
			keys = v
			continue
		}
		if s, ok := v.(string); ok && !jsonParams[k] {
			values.Set(k, s)
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "unable to encode view parameter %s", k)
		}
		values.Set(k, string(b))
	}
	return values, keys, nil
}

func docPath(id string) string {
	if strings.HasPrefix(id, designPrefix) {
		return designPrefix + url.PathEscape(strings.TrimPrefix(id, designPrefix))
	}
	return url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, p string, query url.Values, body interface{}) ([]byte, error) {
	target := c.dbURL.String()
	if p != "" {
		target += "/" + p
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "unable to encode request body")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to build %s request", method)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s failed", method, p)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s %s response", method, p)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		res := gjson.GetManyBytes(b, "error", "reason")
		kind := res[0].String()
		if kind == "" {
			kind = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{StatusCode: resp.StatusCode, Kind: kind, Reason: res[1].String()}
	}
	return b, nil
}
