package httpapi_test

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sr-dashboard-go/internal/dashboard"
	"sr-dashboard-go/internal/httpapi"
	"sr-dashboard-go/internal/layout"
	"sr-dashboard-go/internal/types"
)

func fixture() types.Table {
	return types.Table{Records: []types.ServiceRequestRecord{
		{CaseID: "1", Department: "INFO", DaysOpen: 10, Status: "ONTIME", Queue: "INFO_General", X: 1, Y: 1},
		{CaseID: "2", Department: "PARK", DaysOpen: 50, Status: "ONTIME", Queue: "PARK_Forestry", X: 2, Y: 2},
		{CaseID: "3", Department: "PARK", DaysOpen: 150, Status: "OVERDUE", Queue: "PARK_Forestry", X: 3, Y: 3},
		{CaseID: "4", Department: "PARKING", DaysOpen: 200, Status: "OVERDUE", Queue: "BTDT_Parking", X: 4, Y: 4},
	}}
}

type snapshot struct {
	Version uint64          `json:"version"`
	Data    types.PlotFrame `json:"data"`
}

func newDepartments(t *testing.T) (*httptest.Server, *dashboard.Dashboard) {
	t.Helper()
	d, err := dashboard.New(fixture(), layout.Departments(), dashboard.Options{})
	require.NoError(t, err)
	srv := httpapi.NewServer(httpapi.Config{AllowedOrigins: []string{"http://localhost:5006"}}, d)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		d.Close()
		ts.Close()
	})
	return ts, d
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	ts, _ := newDepartments(t)
	resp := do(t, http.MethodGet, ts.URL+"/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "departments", body["source"])
}

func TestDocument(t *testing.T) {
	ts, _ := newDepartments(t)
	resp := do(t, http.MethodGet, ts.URL+"/api/document", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc layout.Document
	decode(t, resp, &doc)
	assert.Equal(t, "departments", doc.Source)
	require.Len(t, doc.Widgets, 2)
	assert.Equal(t, "department", doc.Widgets[0].Name)
	assert.Equal(t, "INFO", doc.Widgets[0].Value)
	assert.Len(t, doc.Hover, 4)
}

func TestSourceAndWidgets(t *testing.T) {
	ts, _ := newDepartments(t)

	var snap snapshot
	resp := do(t, http.MethodGet, ts.URL+"/api/source", "")
	decode(t, resp, &snap)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, []string{"1"}, snap.Data.ID)

	resp = do(t, http.MethodPut, ts.URL+"/api/widgets/department", `{"value": "PARK"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &snap)
	assert.Equal(t, uint64(2), snap.Version)
	assert.Equal(t, []string{"2", "3", "4"}, snap.Data.ID)

	resp = do(t, http.MethodPut, ts.URL+"/api/widgets/days_open", `{"value": 100}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &snap)
	assert.Equal(t, []string{"3", "4"}, snap.Data.ID)
	assert.Equal(t, []string{"PARK", "PARKING"}, snap.Data.Dept)

	var c types.FilterCriteria
	decode(t, do(t, http.MethodGet, ts.URL+"/api/criteria", ""), &c)
	assert.Equal(t, types.FilterCriteria{Department: "PARK", MinDaysOpen: 100}, c)
}

func TestWidgetRejections(t *testing.T) {
	ts, _ := newDepartments(t)

	cases := []struct {
		path, body string
	}{
		{"/api/widgets/department", `{"value": "PARKING"}`},
		{"/api/widgets/department", `{}`},
		{"/api/widgets/department", `not json`},
		{"/api/widgets/days_open", `{"value": 5000}`},
		{"/api/widgets/days_open", `{"value": 10.5}`},
		{"/api/widgets/days_open", `{"value": "100"}`},
	}
	for _, c := range cases {
		resp := do(t, http.MethodPut, ts.URL+c.path, c.body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %s", c.path, c.body)
	}

	var snap snapshot
	decode(t, do(t, http.MethodGet, ts.URL+"/api/source", ""), &snap)
	assert.Equal(t, uint64(1), snap.Version)
}

func TestFramePreview(t *testing.T) {
	ts, _ := newDepartments(t)

	var f types.PlotFrame
	resp := do(t, http.MethodGet, ts.URL+"/api/frame?department=PARK&min_days_open=100", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &f)
	assert.Equal(t, []string{"3", "4"}, f.ID)

	resp = do(t, http.MethodGet, ts.URL+"/api/frame?department=ANML", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var raw map[string]json.RawMessage
	decode(t, resp, &raw)
	for _, field := range types.PlotFrameFields {
		assert.JSONEq(t, "[]", string(raw[field]), field)
	}

	resp = do(t, http.MethodGet, ts.URL+"/api/frame?min_days_open=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = do(t, http.MethodGet, ts.URL+"/api/frame?department=XYZ", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSummary(t *testing.T) {
	ts, d := newDepartments(t)
	require.NoError(t, d.SetDepartment("PARK"))

	var body struct {
		Dataset struct {
			TotalRequests int `json:"total_requests"`
			SliderEnd     int `json:"slider_end"`
		} `json:"dataset"`
		Frame struct {
			Count        int            `json:"count"`
			StatusCounts map[string]int `json:"status_counts"`
		} `json:"frame"`
	}
	decode(t, do(t, http.MethodGet, ts.URL+"/api/summary", ""), &body)
	assert.Equal(t, 4, body.Dataset.TotalRequests)
	assert.Equal(t, 200, body.Dataset.SliderEnd)
	assert.Equal(t, 3, body.Frame.Count)
	assert.Equal(t, map[string]int{"ONTIME": 1, "OVERDUE": 2}, body.Frame.StatusCounts)
}

func TestCORS(t *testing.T) {
	ts, _ := newDepartments(t)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/source", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5006")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:5006", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStaticMapRoutes(t *testing.T) {
	m, err := dashboard.NewStaticMap(fixture(), layout.Requests())
	require.NoError(t, err)
	ts := httptest.NewServer(httpapi.NewServer(httpapi.Config{}, m).Handler)
	defer ts.Close()
	defer m.Close()

	var snap struct {
		Version uint64                `json:"version"`
		Data    types.CoordinateFrame `json:"data"`
	}
	decode(t, do(t, http.MethodGet, ts.URL+"/api/source", ""), &snap)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, []float64{1, 2, 3, 4}, snap.Data.X)

	// no widgets on the static map
	resp := do(t, http.MethodPut, ts.URL+"/api/widgets/department", `{"value": "PARK"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(t, http.MethodGet, ts.URL+"/api/frame", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamPushesReplacements(t *testing.T) {
	ts, d := newDepartments(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg struct {
		Source  string          `json:"source"`
		Version uint64          `json:"version"`
		Data    types.PlotFrame `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "departments", msg.Source)
	assert.Equal(t, uint64(1), msg.Version)
	assert.Equal(t, []string{"1"}, msg.Data.ID)

	require.NoError(t, d.SetDepartment("PARK"))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, uint64(2), msg.Version)
	assert.Equal(t, []string{"2", "3", "4"}, msg.Data.ID)
}

func TestStreamEndsWhenSourceCloses(t *testing.T) {
	ts, d := newDepartments(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	d.Close()
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestStreamRejectsForeignOrigin(t *testing.T) {
	ts, _ := newDepartments(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func newUnencodableMap(t *testing.T) *httptest.Server {
	t.Helper()
	table := types.Table{Records: []types.ServiceRequestRecord{
		{CaseID: "1", X: 1, Y: 1},
		{CaseID: "2", X: math.NaN(), Y: 2},
	}}
	m, err := dashboard.NewStaticMap(table, layout.Requests())
	require.NoError(t, err)
	ts := httptest.NewServer(httpapi.NewServer(httpapi.Config{}, m).Handler)
	t.Cleanup(func() {
		m.Close()
		ts.Close()
	})
	return ts
}

func TestUnencodableSourceIsServerError(t *testing.T) {
	ts := newUnencodableMap(t)

	resp := do(t, http.MethodGet, ts.URL+"/api/source", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "internal error", body["error"])

	resp = do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStreamClosesOnUnencodableSnapshot(t *testing.T) {
	ts := newUnencodableMap(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), "got %v", err)
}
