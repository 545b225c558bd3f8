package piperun

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
)

// Resource paths relative to the API root.
const (
	PathDeals     = "/deals"
	PathPipelines = "/pipelines"
	PathStages    = "/stages"
	PathItems     = "/items"
	PathPersons   = "/persons"
	PathCompanies = "/companies"
	PathUsers     = "/users"
)

// Query describes one page of a list request. Zero Page or Show leaves the
// parameter to the API default.
type Query struct {
	Page    int64
	Show    int64
	Filters url.Values
}

// Values returns the query as URL parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	for k, vs := range q.Filters {
		v[k] = append([]string(nil), vs...)
	}
	if q.Page > 0 {
		v.Set("page", strconv.FormatInt(q.Page, 10))
	}
	if q.Show > 0 {
		v.Set("show", strconv.FormatInt(q.Show, 10))
	}
	return v
}

// List is one page of records.
type List struct {
	Items json.RawMessage `json:"items"`
	Count int64           `json:"count"`
	Total int64           `json:"total"`
	Page  int64           `json:"page"`
	Show  int64           `json:"show"`
}

// totalPaths are the places Piperun reports the full result size.
var totalPaths = []string{"meta.total", "meta.pagination.total"}

// List fetches one page of the collection at path.
func (c *Client) List(ctx context.Context, path string, q Query) (*List, error) {
	body, err := c.Get(ctx, path, q.Values())
	if err != nil {
		return nil, err
	}
	list, err := parseList(body, q)
	if err != nil {
		return nil, &APIError{Op: "GET " + path, Err: err}
	}
	return list, nil
}

// Record fetches a single record at path/id and returns its data object.
func (c *Client) Record(ctx context.Context, path string, id int64) (json.RawMessage, error) {
	recordPath := path + "/" + strconv.FormatInt(id, 10)
	body, err := c.Get(ctx, recordPath, nil)
	if err != nil {
		return nil, err
	}
	data, err := parseRecord(body)
	if err != nil {
		return nil, &APIError{Op: "GET " + recordPath, Err: err}
	}
	return data, nil
}

func parseList(body []byte, q Query) (*List, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("response has no data array")
	}

	list := &List{
		Items: json.RawMessage(data.Raw),
		Count: gjson.GetBytes(body, "data.#").Int(),
		Page:  q.Page,
		Show:  q.Show,
	}
	list.Total = list.Count
	for _, path := range totalPaths {
		if r := gjson.GetBytes(body, path); r.Exists() {
			list.Total = r.Int()
			break
		}
	}
	if list.Page == 0 {
		list.Page = gjson.GetBytes(body, "meta.pagination.current_page").Int()
	}
	if list.Show == 0 {
		list.Show = gjson.GetBytes(body, "meta.pagination.per_page").Int()
	}
	return list, nil
}

func parseRecord(body []byte) (json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsObject() {
		return nil, fmt.Errorf("response has no data object")
	}
	return json.RawMessage(data.Raw), nil
}

// ListDeals lists deals.
func (c *Client) ListDeals(ctx context.Context, q Query) (*List, error) {
	return c.List(ctx, PathDeals, q)
}

// GetDeal fetches one deal.
func (c *Client) GetDeal(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.Record(ctx, PathDeals, id)
}

// UpdateDeal applies fields to a deal and returns the updated record.
func (c *Client) UpdateDeal(ctx context.Context, id int64, fields map[string]any) (json.RawMessage, error) {
	path := PathDeals + "/" + strconv.FormatInt(id, 10)
	body, err := c.Put(ctx, path, fields)
	if err != nil {
		return nil, err
	}
	data, err := parseRecord(body)
	if err != nil {
		return nil, &APIError{Op: "PUT " + path, Err: err}
	}
	return data, nil
}

// ListPipelines lists sales pipelines.
func (c *Client) ListPipelines(ctx context.Context, q Query) (*List, error) {
	return c.List(ctx, PathPipelines, q)
}

// GetPipeline fetches one pipeline.
func (c *Client) GetPipeline(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.Record(ctx, PathPipelines, id)
}

// ListStages lists pipeline stages. Filter by pipeline with the
// pipeline_id filter.
func (c *Client) ListStages(ctx context.Context, q Query) (*List, error) {
	return c.List(ctx, PathStages, q)
}

// ListProducts lists products, which the API calls items.
func (c *Client) ListProducts(ctx context.Context, q Query) (*List, error) {
	return c.List(ctx, PathItems, q)
}

// ListPersons lists contact persons.
func (c *Client) ListPersons(ctx context.Context, q Query) (*List, error) {
	return c.List(ctx, PathPersons, q)
}

// GetPerson fetches one person.
func (c *Client) GetPerson(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.Record(ctx, PathPersons, id)
}

// ListCompanies lists companies.
func (c *Client) ListCompanies(ctx context.Context, q Query) (*List, error) {
	return c.List(ctx, PathCompanies, q)
}

// GetCompany fetches one company.
func (c *Client) GetCompany(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.Record(ctx, PathCompanies, id)
}

// ListUsers lists account users.
func (c *Client) ListUsers(ctx context.Context, q Query) (*List, error) {
	return c.List(ctx, PathUsers, q)
}

// Ping verifies connectivity and credentials with the smallest possible
// request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Get(ctx, PathUsers, url.Values{"show": {"1"}})
	return err
}
