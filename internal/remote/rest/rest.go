// Package rest talks to collections exposed through a PostgREST-compatible
// HTTP API.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/remote"
	"github.com/go-resty/resty/v2"
)

const basePath = "/rest/v1/"

// Undefined-table codes reported by Postgres and PostgREST.
var schemaAbsentCodes = map[string]bool{
	"42P01":    true,
	"PGRST205": true,
	"PGRST200": true,
}

// apiError is the error body PostgREST returns.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e apiError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Backend is a remote.Backend over HTTP.
type Backend struct {
	client *resty.Client
}

// New creates a backend for baseURL authenticated with apiKey. token, when
// set, is sent as the bearer token instead of the key.
func New(baseURL, apiKey, token string, timeout time.Duration) *Backend {
	if timeout <= 0 {
		timeout = remote.DefaultTimeout
	}
	bearer := token
	if bearer == "" {
		bearer = apiKey
	}

	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		c.SetHeader("apikey", apiKey)
	}
	if bearer != "" {
		c.SetAuthToken(bearer)
	}

	return &Backend{client: c}
}

func (b *Backend) Collection(schema entity.Schema) remote.CollectionClient {
	return &Collection{client: b.client, schema: schema}
}

type Collection struct {
	client *resty.Client
	schema entity.Schema
}

func (c *Collection) path() string { return basePath + c.schema.Table }

func (c *Collection) eq(v string) string { return "eq." + v }

func (c *Collection) List(ctx context.Context) ([]entity.Record, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("order", c.schema.IDField+".asc").
		Get(c.path())
	return c.records("list", resp, err)
}

func (c *Collection) GetByID(ctx context.Context, id string) (entity.Record, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam(c.schema.IDField, c.eq(id)).
		Get(c.path())
	return c.single("get", id, resp, err)
}

func (c *Collection) GetByForeignKey(ctx context.Context, key string) (entity.Record, error) {
	if c.schema.ForeignKey == "" {
		return nil, common.NewRemoteError("get_by_key", c.schema.Name, common.KindNotFound, fmt.Errorf("no foreign key"))
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam(c.schema.ForeignKey, c.eq(key)).
		SetQueryParam("order", c.schema.IDField+".asc").
		SetQueryParam("limit", "1").
		Get(c.path())
	return c.single("get_by_key", key, resp, err)
}

func (c *Collection) Create(ctx context.Context, rec entity.Record) (entity.Record, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(remote.Payload(c.schema, rec)).
		Post(c.path())
	return c.single("create", "", resp, err)
}

func (c *Collection) Update(ctx context.Context, id string, rec entity.Record) (entity.Record, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam(c.schema.IDField, c.eq(id)).
		SetBody(remote.Payload(c.schema, rec)).
		Patch(c.path())
	return c.single("update", id, resp, err)
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam(c.schema.IDField, c.eq(id)).
		Delete(c.path())
	_, err = c.single("delete", id, resp, err)
	return err
}

func (c *Collection) records(op string, resp *resty.Response, err error) ([]entity.Record, error) {
	if err != nil {
		return nil, common.NewRemoteError(op, c.schema.Name, common.KindRemoteUnavailable, err)
	}
	if resp.IsError() {
		return nil, c.statusError(op, resp)
	}

	var out []entity.Record
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, common.NewRemoteError(op, c.schema.Name, common.KindRemoteUnavailable, fmt.Errorf("decode response: %w", err))
	}
	if out == nil {
		out = []entity.Record{}
	}
	return out, nil
}

// single expects exactly one row back; none means the target was missing.
func (c *Collection) single(op, id string, resp *resty.Response, err error) (entity.Record, error) {
	recs, err := c.records(op, resp, err)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.NewRemoteError(op, c.schema.Name, common.KindNotFound, fmt.Errorf("id %s", id))
	}
	return recs[0], nil
}

func (c *Collection) statusError(op string, resp *resty.Response) error {
	var body apiError
	if err := json.Unmarshal(resp.Body(), &body); err != nil || (body.Code == "" && body.Message == "") {
		body = apiError{Message: http.StatusText(resp.StatusCode())}
	}
	err := fmt.Errorf("status %d: %w", resp.StatusCode(), body)
	return common.NewRemoteError(op, c.schema.Name, Classify(resp.StatusCode(), body.Code), err)
}

// Classify maps an HTTP status and PostgREST error code to an error kind.
func Classify(statusCode int, code string) common.Kind {
	switch {
	case schemaAbsentCodes[code]:
		return common.KindSchemaAbsent
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return common.KindUnauthorized
	case statusCode == http.StatusNotFound:
		return common.KindNotFound
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests, statusCode >= 500:
		return common.KindRemoteUnavailable
	case statusCode >= 400:
		return common.KindConflict
	}
	return common.KindUnknown
}
