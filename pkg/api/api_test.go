package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/ruler/pkg/catalog"
	"mercator-hq/ruler/pkg/config"
	"mercator-hq/ruler/pkg/rules"
	"mercator-hq/ruler/pkg/rules/ast"
	"mercator-hq/ruler/pkg/store"
	"mercator-hq/ruler/pkg/telemetry/health"
	"mercator-hq/ruler/pkg/telemetry/logging"
	"mercator-hq/ruler/pkg/telemetry/metrics"
)

type testServer struct {
	handler http.Handler
	store   *store.MemoryStore
}

func newTestServer(t *testing.T, configure func(a *API)) *testServer {
	t.Helper()
	st := store.NewMemoryStore()
	a := New(rules.NewEngine(logging.Discard()), st, logging.Discard())
	if configure != nil {
		configure(a)
	}
	return &testServer{handler: a.Handler(), store: st}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: response is not JSON: %v (%q)", method, path, err, w.Body.String())
	}
	return w.Code, out
}

func writeCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - name: senior_sales
    expression: "age > 30 AND department = 'Sales'"
  - name: high_earner
    expression: "salary >= 100000"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	c := catalog.New(path, nil, logging.Discard())
	if err := c.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	return c
}

func TestCreateRule(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodPost, "/create_rule",
		`{"rule_string": "age > 30 AND department = 'Sales'", "name": "senior_sales"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["status"] != "success" {
		t.Errorf("status field = %v", body["status"])
	}

	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("response has no id")
	}
	tree, _ := body["ast"].(map[string]interface{})
	if tree["node_type"] != "operator" || tree["value"] != "AND" {
		t.Errorf("ast = %v", body["ast"])
	}

	stored, err := s.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("rule not persisted: %v", err)
	}
	if stored.Name != "senior_sales" || stored.RuleString != "age > 30 AND department = 'Sales'" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestCreateRule_Errors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantMessage string
		wantType    string
	}{
		{
			name:        "not JSON content type",
			contentType: "text/plain",
			body:        `{"rule_string": "a = 1"}`,
			wantMessage: "Request must be JSON",
		},
		{
			name:        "malformed JSON",
			contentType: "application/json",
			body:        `{"rule_string": `,
			wantMessage: "Request must be JSON",
		},
		{
			name:        "missing field",
			contentType: "application/json",
			body:        `{"rule": "a = 1"}`,
			wantMessage: "Missing required fields: rule_string",
		},
		{
			name:        "wrong field type",
			contentType: "application/json",
			body:        `{"rule_string": 42}`,
			wantMessage: "rule_string must be a string",
		},
		{
			name:        "parse error",
			contentType: "application/json",
			body:        `{"rule_string": "age > "}`,
			wantType:    "parse",
		},
		{
			name:        "lex error",
			contentType: "application/json",
			body:        `{"rule_string": "name = 'abc"}`,
			wantType:    "lex",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			req := httptest.NewRequest(http.MethodPost, "/create_rule", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			s.handler.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != "error" {
				t.Errorf("status field = %q", resp.Status)
			}
			if tt.wantMessage != "" && resp.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMessage)
			}
			if resp.ErrorType != tt.wantType {
				t.Errorf("error_type = %q, want %q", resp.ErrorType, tt.wantType)
			}

			if n, _ := s.store.Count(context.Background()); n != 0 {
				t.Errorf("%d rules persisted after failed request", n)
			}
		})
	}
}

func TestCombineRules(t *testing.T) {
	s := newTestServer(t, nil)

	ruleStrings := []string{"age > 30", "department = 'Sales' OR department = 'Marketing'", "salary >= 50000"}
	reqBody, _ := json.Marshal(map[string]interface{}{"rule_strings": ruleStrings})

	status, body := s.do(t, http.MethodPost, "/combine_rules", string(reqBody))
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}

	want, err := rules.CombineRules(ruleStrings)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(body["combined_ast"])
	got, err := ast.DecodeJSON(raw)
	if err != nil {
		t.Fatalf("combined_ast does not decode: %v", err)
	}
	if !ast.Equal(got, want) {
		t.Errorf("combined_ast = %v, want %v", got, want)
	}

	id, _ := body["id"].(string)
	stored, err := s.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("combined rule not persisted: %v", err)
	}
	if stored.Name != CombinedRuleName {
		t.Errorf("Name = %q, want %q", stored.Name, CombinedRuleName)
	}
	reparsed, err := rules.CreateRule(stored.RuleString)
	if err != nil || !ast.Equal(reparsed, want) {
		t.Errorf("stored rule string %q does not reproduce the combined tree (err %v)", stored.RuleString, err)
	}
}

func TestJoinRules(t *testing.T) {
	nested := strings.Repeat("(", 200) + "a = 1" + strings.Repeat(")", 200)

	tests := []struct {
		name  string
		rules []string
		want  string
	}{
		{
			name:  "single rule",
			rules: []string{"a = 1 OR b = 2"},
			want:  "a = 1 OR b = 2",
		},
		{
			name:  "top-level or is wrapped",
			rules: []string{"a = 1", "b = 2 OR c = 3"},
			want:  "a = 1 AND (b = 2 OR c = 3)",
		},
		{
			name:  "leading and stays bare",
			rules: []string{"a = 1 AND b = 2", "c = 3 AND d = 4"},
			want:  "a = 1 AND b = 2 AND (c = 3 AND d = 4)",
		},
		{
			name:  "parenthesized or stays bare",
			rules: []string{"(a = 1 OR b = 2)", "c = 3"},
			want:  "(a = 1 OR b = 2) AND c = 3",
		},
		{
			name:  "rule at nesting limit",
			rules: []string{nested, "b = 2"},
			want:  nested + " AND b = 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := joinRules(tt.rules)
			if got != tt.want {
				t.Errorf("joinRules() = %q, want %q", got, tt.want)
			}
			want, err := rules.CombineRules(tt.rules)
			if err != nil {
				t.Fatal(err)
			}
			reparsed, err := rules.CreateRule(got)
			if err != nil {
				t.Fatalf("CreateRule(%q) error = %v", got, err)
			}
			if !ast.Equal(reparsed, want) {
				t.Errorf("joined rule parses to %v, want %v", reparsed, want)
			}
		})
	}
}

func TestCombineRules_Empty(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodPost, "/combine_rules", `{"rule_strings": []}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if v, ok := body["combined_ast"]; !ok || v != nil {
		t.Errorf("combined_ast = %v (present %v), want null", v, ok)
	}
	if _, ok := body["id"]; ok {
		t.Error("empty combine returned an id")
	}
	if n, _ := s.store.Count(context.Background()); n != 0 {
		t.Errorf("%d rules persisted for empty combine", n)
	}
}

func TestCombineRules_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantType    string
	}{
		{name: "not a list", body: `{"rule_strings": "a = 1"}`, wantMessage: "rule_strings must be a list"},
		{name: "non-string entry", body: `{"rule_strings": ["a = 1", 2]}`, wantMessage: "rule_strings[1] must be a string"},
		{name: "too many", body: `{"rule_strings": ["a = 1", "b = 2", "c = 3"]}`, wantMessage: "rule_strings has 3 entries, at most 2 can be combined"},
		{name: "invalid rule", body: `{"rule_strings": ["a = 1", "b ="]}`, wantType: "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, func(a *API) {
				a.WithLimits(config.EngineConfig{MaxCombine: 2}, config.StorageConfig{})
			})

			status, body := s.do(t, http.MethodPost, "/combine_rules", tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %v", status, body)
			}
			if tt.wantMessage != "" && body["message"] != tt.wantMessage {
				t.Errorf("message = %v, want %q", body["message"], tt.wantMessage)
			}
			if tt.wantType != "" {
				if body["error_type"] != tt.wantType {
					t.Errorf("error_type = %v, want %q", body["error_type"], tt.wantType)
				}
				if msg, _ := body["message"].(string); !strings.HasPrefix(msg, "rule 1:") {
					t.Errorf("message = %q, want failing rule index", msg)
				}
			}
		})
	}
}

func TestEvaluateRule(t *testing.T) {
	s := newTestServer(t, nil)

	_, created := s.do(t, http.MethodPost, "/create_rule",
		`{"rule_string": "(age > 30 AND department = 'Sales') OR (age < 25 AND department = 'Marketing')"}`)
	tree, _ := json.Marshal(created["ast"])
	encoded, _ := json.Marshal(string(tree))

	tests := []struct {
		name       string
		ast        string
		data       string
		wantStatus int
		wantResult interface{}
		wantType   string
	}{
		{name: "match", ast: string(tree), data: `{"age": 35, "department": "Sales"}`, wantStatus: 200, wantResult: true},
		{name: "no match", ast: string(tree), data: `{"age": 28, "department": "Sales"}`, wantStatus: 200, wantResult: false},
		{name: "tree sent as string", ast: string(encoded), data: `{"age": 22, "department": "Marketing"}`, wantStatus: 200, wantResult: true},
		{name: "missing attribute", ast: string(tree), data: `{"age": 35}`, wantStatus: 400, wantType: "evaluation"},
		{name: "type mismatch", ast: string(tree), data: `{"age": "old", "department": "Sales"}`, wantStatus: 400, wantType: "type_mismatch"},
		{name: "malformed tree", ast: `{"node_type": "operator", "value": "XOR"}`, data: `{}`, wantStatus: 400, wantType: "malformed_ast"},
		{name: "null tree", ast: `null`, data: `{}`, wantStatus: 400, wantType: "malformed_ast"},
		{name: "data not an object", ast: string(tree), data: `[1, 2]`, wantStatus: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"ast": ` + tt.ast + `, "data": ` + tt.data + `}`
			status, resp := s.do(t, http.MethodPost, "/evaluate_rule", body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", status, tt.wantStatus, resp)
			}
			if tt.wantStatus == http.StatusOK && resp["result"] != tt.wantResult {
				t.Errorf("result = %v, want %v", resp["result"], tt.wantResult)
			}
			if tt.wantType != "" && resp["error_type"] != tt.wantType {
				t.Errorf("error_type = %v, want %q (%v)", resp["error_type"], tt.wantType, resp["message"])
			}
		})
	}
}

func TestStoredRules(t *testing.T) {
	s := newTestServer(t, func(a *API) {
		a.WithLimits(config.EngineConfig{}, config.StorageConfig{ListDefaultLimit: 2, ListMaxLimit: 3})
	})

	var ids []string
	for _, rule := range []string{"a = 1", "b = 2", "c = 3", "d = 4"} {
		_, body := s.do(t, http.MethodPost, "/create_rule", `{"rule_string": "`+rule+`"}`)
		ids = append(ids, body["id"].(string))
		time.Sleep(time.Millisecond)
	}

	_, list := s.do(t, http.MethodGet, "/rules", "")
	if list["count"] != float64(2) || list["total"] != float64(4) {
		t.Errorf("default page: count = %v, total = %v", list["count"], list["total"])
	}
	first := list["rules"].([]interface{})[0].(map[string]interface{})
	if first["id"] != ids[3] {
		t.Errorf("first listed = %v, want newest %s", first["id"], ids[3])
	}

	_, list = s.do(t, http.MethodGet, "/rules?limit=50&offset=1", "")
	if list["limit"] != float64(3) || list["count"] != float64(3) {
		t.Errorf("clamped page: limit = %v, count = %v", list["limit"], list["count"])
	}

	if status, _ := s.do(t, http.MethodGet, "/rules?limit=-1", ""); status != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", status)
	}

	status, got := s.do(t, http.MethodGet, "/rules/"+ids[0], "")
	if status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if rule := got["rule"].(map[string]interface{}); rule["rule_string"] != "a = 1" {
		t.Errorf("rule = %v", rule)
	}

	if status, _ := s.do(t, http.MethodDelete, "/rules/"+ids[0], ""); status != http.StatusOK {
		t.Errorf("delete status = %d", status)
	}
	if status, body := s.do(t, http.MethodGet, "/rules/"+ids[0], ""); status != http.StatusNotFound || body["status"] != "error" {
		t.Errorf("get deleted = %d %v, want 404", status, body)
	}
	if status, _ := s.do(t, http.MethodDelete, "/rules/"+ids[0], ""); status != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", status)
	}
}

func TestCatalogRoutes(t *testing.T) {
	c := writeCatalog(t)
	s := newTestServer(t, func(a *API) { a.WithCatalog(c) })

	status, body := s.do(t, http.MethodPost, "/catalog/senior_sales/evaluate", `{"data": {"age": 40, "department": "Sales"}}`)
	if status != http.StatusOK || body["result"] != true || body["rule"] != "senior_sales" {
		t.Errorf("evaluate = %d %v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/catalog/unknown/evaluate", `{"data": {}}`)
	if status != http.StatusNotFound {
		t.Errorf("unknown rule status = %d, body = %v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/catalog/evaluate", `{"data": {"age": 40, "department": "Sales"}}`)
	if status != http.StatusOK {
		t.Fatalf("evaluate all status = %d", status)
	}
	results := body["results"].([]interface{})
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}
	highEarner := results[0].(map[string]interface{})
	if highEarner["name"] != "high_earner" || highEarner["error_type"] != "evaluation" {
		t.Errorf("high_earner = %v, want evaluation error", highEarner)
	}
	if results[1].(map[string]interface{})["matched"] != true {
		t.Errorf("senior_sales = %v", results[1])
	}

	_, body = s.do(t, http.MethodGet, "/catalog", "")
	listed := body["rules"].([]interface{})
	if len(listed) != 2 {
		t.Fatalf("catalog listing = %v", listed)
	}
	attrs := listed[1].(map[string]interface{})["attributes"].([]interface{})
	if len(attrs) != 2 || attrs[0] != "age" || attrs[1] != "department" {
		t.Errorf("senior_sales attributes = %v, want [age department]", attrs)
	}
}

func TestCatalogRoutes_AbsentWithoutCatalog(t *testing.T) {
	s := newTestServer(t, nil)
	if status, _ := s.do(t, http.MethodPost, "/catalog/senior_sales/evaluate", `{"data": {}}`); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestFallback(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/create_rule", nil)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /create_rule status = %d, want 405", w.Code)
	}
	if allow := w.Header().Get("Allow"); allow != "POST" {
		t.Errorf("Allow = %q, want POST", allow)
	}

	status, body := s.do(t, http.MethodGet, "/does/not/exist", "")
	if status != http.StatusNotFound || body["message"] != "Resource not found" {
		t.Errorf("unknown path = %d %v", status, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	checker := health.New(time.Second)
	s := newTestServer(t, func(a *API) {
		a.WithMetrics(collector, "/metrics").WithHealth(checker)
	})

	status, body := s.do(t, http.MethodGet, "/health", "")
	if status != http.StatusOK || body["status"] != health.StatusOK {
		t.Errorf("health = %d %v", status, body)
	}

	s.do(t, http.MethodPost, "/create_rule", `{"rule_string": "a = 1"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	out := w.Body.String()
	for _, want := range []string{
		`ruler_http_requests_total{method="POST",route="/create_rule",status="200"} 1`,
		`ruler_rule_parses_total`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
