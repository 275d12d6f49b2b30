package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"mercator-hq/ruler/pkg/rules/ast"
	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
)

const msgNotJSON = "Request must be JSON"

// decodeBody reads a JSON object body and checks that every required field
// is present. A field explicitly set to null counts as present.
func decodeBody(r *http.Request, required ...string) (map[string]json.RawMessage, error) {
	if !isJSON(r.Header.Get("Content-Type")) {
		return nil, badRequest(msgNotJSON)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, badRequest(msgNotJSON)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, badRequest(msgNotJSON)
	}

	var missing []string
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, badRequest("Missing required fields: %s", strings.Join(missing, ", "))
	}
	return fields, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw := bytes.TrimSpace(fields[name])
	var s string
	if len(raw) == 0 || raw[0] != '"' || json.Unmarshal(raw, &s) != nil {
		return "", badRequest("%s must be a string", name)
	}
	return s, nil
}

// optionalString returns "" when the field is absent or null.
func optionalString(fields map[string]json.RawMessage, name string) (string, error) {
	raw := bytes.TrimSpace(fields[name])
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	return stringField(fields, name)
}

func stringListField(fields map[string]json.RawMessage, name string) ([]string, error) {
	raw := bytes.TrimSpace(fields[name])
	var items []json.RawMessage
	if len(raw) == 0 || raw[0] != '[' || json.Unmarshal(raw, &items) != nil {
		return nil, badRequest("%s must be a list", name)
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		var s string
		if len(item) == 0 || item[0] != '"' || json.Unmarshal(item, &s) != nil {
			return nil, badRequest("%s[%d] must be a string", name, i)
		}
		out = append(out, s)
	}
	return out, nil
}

// dataField decodes a record to evaluate. Numbers are kept as json.Number
// so integers keep their exact value until the evaluator normalizes them.
func dataField(fields map[string]json.RawMessage, name string) (map[string]interface{}, error) {
	raw := bytes.TrimSpace(fields[name])
	if len(raw) == 0 || raw[0] != '{' {
		return nil, badRequest("%s must be a JSON object", name)
	}

	var data map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, badRequest("%s must be a JSON object", name)
	}
	return data, nil
}

// recordField decodes a canonical tree record. The record may also be sent
// as a JSON string holding the record, as older clients stored it that way.
func recordField(fields map[string]json.RawMessage, name string) (*ast.Record, error) {
	raw := bytes.TrimSpace(fields[name])
	if len(raw) > 0 && raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, badRequest("%s must be an object", name)
		}
		raw = []byte(encoded)
	}

	var rec *ast.Record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, &ruleErrors.MalformedAstError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return rec, nil
}

// pageParams reads limit and offset query parameters. A missing limit uses
// def and a limit above max is clamped to max.
func pageParams(r *http.Request, def, max int) (limit, offset int, err error) {
	q := r.URL.Query()

	limit = def
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			return 0, 0, badRequest("limit must be a non-negative integer")
		}
	}
	if max > 0 && (limit == 0 || limit > max) {
		limit = max
	}

	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, badRequest("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
