// Package testutil provides helpers shared by LeadPipe's HTTP handler tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/session"
)

// AssertHTTPStatus fails the test when the recorder holds another status code.
func AssertHTTPStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int, context string) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("%s: expected status %d, got %d: %s", context, expected, rr.Code, rr.Body.String())
	}
}

// DecodeJSON decodes the recorded body into a generic map.
func DecodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	return body
}

// AssertJSONResponse decodes an API envelope, checks its status field and returns its result.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus models.APIStatus) map[string]interface{} {
	t.Helper()
	body := DecodeJSON(t, rr)
	if status, ok := body["status"].(string); !ok || status != string(expectedStatus) {
		t.Errorf("expected status %q, got %v", expectedStatus, body["status"])
	}
	result, _ := body["result"].(map[string]interface{})
	return result
}

// JSONRequest builds a request whose body is v marshalled to JSON. A nil v sends no body.
func JSONRequest(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if v != nil {
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if v != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// PutSession stores a bare session for a user reaching a deployment address.
func PutSession(t *testing.T, st session.Store, id string, ch models.Channel, address string) *session.Session {
	t.Helper()
	s := session.New(id, ch, "biz-1", nil, "")
	s.Address = address
	if err := st.Put(context.Background(), s); err != nil {
		t.Fatalf("Put: %v", err)
	}
	return s
}

// RecordingInvalidator records every app id it is asked to invalidate.
type RecordingInvalidator struct {
	Apps []string
}

// InvalidateApp records appID.
func (r *RecordingInvalidator) InvalidateApp(appID string) {
	r.Apps = append(r.Apps, appID)
}
