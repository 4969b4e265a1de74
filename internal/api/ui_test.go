package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReplyCardEscapesText(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/ui?text="+
		"%3Cscript%3Ealert(1)%3C/script%3E", nil)
	w := httptest.NewRecorder()
	ReplyCard(w, req)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Expected script tag to be escaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Expected escaped form in output")
	}
}

func TestReplyCardFallbacks(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/ui?q=desde+q", nil)
	w := httptest.NewRecorder()
	ReplyCard(w, req)
	if !strings.Contains(w.Body.String(), "desde q") {
		t.Error("Expected q parameter to be used")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/ui", nil)
	w = httptest.NewRecorder()
	ReplyCard(w, req)
	if !strings.Contains(w.Body.String(), "...") {
		t.Error("Expected placeholder text")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Unexpected content type %q", ct)
	}
}
