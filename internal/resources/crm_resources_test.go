package resources

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/teemow/crmgate/internal/logging"
	"github.com/teemow/crmgate/internal/piperun"
	"github.com/teemow/crmgate/internal/server"
	"github.com/teemow/crmgate/internal/telemetry"
)

func newMCPServer(t *testing.T, crmURL string) (*mcpserver.MCPServer, *server.ServerContext) {
	t.Helper()
	client, err := piperun.NewClient(piperun.Config{BaseURL: crmURL, Token: "tok"})
	require.NoError(t, err)

	sc, err := server.NewServerContext(context.Background(), client,
		telemetry.NewRecorder(telemetry.WithLogger(logging.Discard())))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithResourceCapabilities(false, false))
	require.NoError(t, RegisterCRMResources(s, sc))
	return s, sc
}

func read(t *testing.T, s *mcpserver.MCPServer, uri string) gjson.Result {
	t.Helper()
	msg := `{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"` + uri + `"}}`
	raw, err := json.Marshal(s.HandleMessage(context.Background(), json.RawMessage(msg)))
	require.NoError(t, err)
	return gjson.ParseBytes(raw)
}

func TestRecordID(t *testing.T) {
	tests := []struct {
		uri     string
		prefix  string
		want    int64
		wantErr bool
	}{
		{"piperun://deals/42", DealURIPrefix, 42, false},
		{"piperun://persons/7", PersonURIPrefix, 7, false},
		{"piperun://deals/", DealURIPrefix, 0, true},
		{"piperun://deals/abc", DealURIPrefix, 0, true},
		{"piperun://deals/0", DealURIPrefix, 0, true},
		{"piperun://persons/42", DealURIPrefix, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := recordID(tt.uri, tt.prefix)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadRecordResources(t *testing.T) {
	tests := []struct {
		uri  string
		path string
	}{
		{"piperun://deals/42", "/deals/42"},
		{"piperun://pipelines/3", "/pipelines/3"},
		{"piperun://persons/8", "/persons/8"},
		{"piperun://companies/9", "/companies/9"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			crm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				_, _ = io.WriteString(w, `{"data":{"id":1,"name":"Expansion"}}`)
			}))
			defer crm.Close()

			s, _ := newMCPServer(t, crm.URL)
			reply := read(t, s, tt.uri)

			require.False(t, reply.Get("error").Exists(), reply.Raw)
			assert.Equal(t, tt.uri, reply.Get("result.contents.0.uri").String())
			assert.JSONEq(t, `{"id":1,"name":"Expansion"}`, reply.Get("result.contents.0.text").String())
		})
	}
}

func TestReadListResources(t *testing.T) {
	tests := []struct {
		uri  string
		path string
	}{
		{PipelinesURI, "/pipelines"},
		{StagesURI, "/stages"},
		{PersonsURI, "/persons"},
		{CompaniesURI, "/companies"},
		{ProductsURI, "/items"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			crm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Equal(t, "1", r.URL.Query().Get("page"))
				assert.Equal(t, "10", r.URL.Query().Get("show"))
				_, _ = io.WriteString(w, `{"data":[{"id":1},{"id":2}],"meta":{"total":12}}`)
			}))
			defer crm.Close()

			s, _ := newMCPServer(t, crm.URL)
			reply := read(t, s, tt.uri)

			require.False(t, reply.Get("error").Exists(), reply.Raw)
			list := gjson.Parse(reply.Get("result.contents.0.text").String())
			assert.Equal(t, int64(2), list.Get("count").Int())
			assert.Equal(t, int64(12), list.Get("total").Int())
			assert.Equal(t, int64(2), list.Get("items.1.id").Int())
		})
	}
}

func TestReadPipelineStagesResource(t *testing.T) {
	crm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stages", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("pipeline_id"))
		_, _ = io.WriteString(w, `{"data":[{"id":11,"pipeline_id":5}]}`)
	}))
	defer crm.Close()

	s, _ := newMCPServer(t, crm.URL)
	reply := read(t, s, "piperun://pipelines/5/stages")

	require.False(t, reply.Get("error").Exists(), reply.Raw)
	list := gjson.Parse(reply.Get("result.contents.0.text").String())
	assert.Equal(t, int64(11), list.Get("items.0.id").Int())
}

func TestReadRecordResource_CRMError(t *testing.T) {
	crm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer crm.Close()

	s, _ := newMCPServer(t, crm.URL)
	reply := read(t, s, "piperun://persons/404")

	require.True(t, reply.Get("error").Exists(), reply.Raw)
	assert.Contains(t, reply.Get("error.message").String(), "piperun://persons/404")
}

func TestReadStatsResource(t *testing.T) {
	s, sc := newMCPServer(t, "https://crm.example.test")
	id := sc.Recorder().StartOperation("list-deals", nil)
	sc.Recorder().EndOperation(id, nil)

	reply := read(t, s, StatsURI)

	require.False(t, reply.Get("error").Exists(), reply.Raw)
	stats := gjson.Parse(reply.Get("result.contents.0.text").String())
	assert.Equal(t, int64(1), stats.Get("lifetime.totalOperations").Int())
	assert.Equal(t, int64(1), stats.Get("window.operationStats.list-deals.count").Int())
}
