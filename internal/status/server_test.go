package status

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func get(t *testing.T, s *Server, method, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := s.App().Test(httptest.NewRequest(method, path, nil))
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestServer_Transcript(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tr := NewTranscript(0)
	tr.now = func() time.Time { return fixed }
	_ = tr.Write([]rune("CQ DE TEST"))

	s := NewServer(tr, 20)
	s.now = func() time.Time { return fixed.Add(3 * time.Minute) }

	resp, body := get(t, s, http.MethodGet, "/transcript")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got transcriptResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("invalid body %q: %v", body, err)
	}

	if got.Text != "CQ DE TEST" || got.Words != 3 || got.Total != 10 || got.WPM != 20 {
		t.Errorf("transcript = %+v", got)
	}
	if got.Updated == nil || !got.Updated.Equal(fixed) {
		t.Errorf("updated = %v, want %v", got.Updated, fixed)
	}
	if got.Ago != "3 minutes ago" {
		t.Errorf("ago = %q, want %q", got.Ago, "3 minutes ago")
	}
}

func TestServer_TranscriptEmpty(t *testing.T) {
	s := NewServer(NewTranscript(0), 20)

	_, body := get(t, s, http.MethodGet, "/transcript")

	var got map[string]interface{}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("invalid body %q: %v", body, err)
	}
	for _, key := range []string{"updated", "ago"} {
		if _, ok := got[key]; ok {
			t.Errorf("empty transcript reports %q: %s", key, body)
		}
	}
	if got["total"] != float64(0) {
		t.Errorf("total = %v, want 0", got["total"])
	}
}

func TestServer_TranscriptReset(t *testing.T) {
	tr := NewTranscript(0)
	_ = tr.Write([]rune("SK"))
	s := NewServer(tr, 20)

	resp, _ := get(t, s, http.MethodDelete, "/transcript")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if tr.Text() != "" {
		t.Errorf("Text() = %q after reset", tr.Text())
	}
}

func TestServer_Version(t *testing.T) {
	s := NewServer(NewTranscript(0), 20)

	_, body := get(t, s, http.MethodGet, "/version")

	var got map[string]string
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("invalid body %q: %v", body, err)
	}
	if got["version"] != VERSION || got["description"] != MODULE {
		t.Errorf("version = %v", got)
	}
	if got["about"] != "cwblocks V0.3.0" {
		t.Errorf("about = %q, want %q", got["about"], "cwblocks V0.3.0")
	}
}

func TestServer_Health(t *testing.T) {
	tr := NewTranscript(0)
	_ = tr.Write(make([]rune, 1200))
	s := NewServer(tr, 20)

	resp, body := get(t, s, http.MethodGet, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("invalid body %q: %v", body, err)
	}
	if got["decoded"] != "1,200" {
		t.Errorf("decoded = %v, want 1,200", got["decoded"])
	}
	if got["version"] != VERSION {
		t.Errorf("version = %v, want %v", got["version"], VERSION)
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	s := NewServer(NewTranscript(0), 20)

	resp, _ := get(t, s, http.MethodGet, "/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
