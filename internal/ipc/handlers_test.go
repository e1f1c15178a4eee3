package ipc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/layerpaper/layerpaper/internal/config"
	"github.com/layerpaper/layerpaper/internal/registry"
)

type fakeManager struct {
	outputs   []registry.OutputStatus
	reloadErr error
	stopped   bool

	setOutput string
	setPath   string
	paused    []string
	resumed   []string
}

func (m *fakeManager) Status() StatusPayload {
	return StatusPayload{Version: "test", PID: 1234, Outputs: m.outputs}
}

func (m *fakeManager) GetWallpaper(output string) ([]registry.OutputStatus, error) {
	if output == "" {
		return m.outputs, nil
	}
	for _, out := range m.outputs {
		if out.Name == output {
			return []registry.OutputStatus{out}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", registry.ErrNoSuchOutput, output)
}

func (m *fakeManager) SetWallpaper(output, path string) error {
	if output == "gone" {
		return fmt.Errorf("%w: %s", registry.ErrNoSuchOutput, output)
	}
	m.setOutput, m.setPath = output, path
	return nil
}

func (m *fakeManager) Pause(output string) error {
	m.paused = append(m.paused, output)
	return nil
}

func (m *fakeManager) Resume(output string) error {
	m.resumed = append(m.resumed, output)
	return nil
}

func (m *fakeManager) ReloadConfig() error { return m.reloadErr }
func (m *fakeManager) Stop()               { m.stopped = true }

func serve(t *testing.T, m Manager, method, target, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	e := echo.New()
	RegisterRoutes(e, m)

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not a Response envelope: %v\n%s", err, rec.Body.String())
	}
	return rec, resp
}

func TestStatusHandler(t *testing.T) {
	m := &fakeManager{outputs: []registry.OutputStatus{{Name: "eDP-1", Wallpaper: "/w/a.png"}}}
	rec, resp := serve(t, m, http.MethodGet, "/status", "")

	if rec.Code != http.StatusOK || resp.Status != "ok" {
		t.Fatalf("status = %d/%s, want 200/ok", rec.Code, resp.Status)
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	var payload StatusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("data is not a StatusPayload: %v", err)
	}
	if payload.PID != 1234 || len(payload.Outputs) != 1 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestGetWallpaperUnknownOutput(t *testing.T) {
	m := &fakeManager{}
	rec, resp := serve(t, m, http.MethodGet, "/wallpaper?output=DP-9", "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", rec.Code)
	}
	if resp.Status != "error" || resp.Kind != ErrorNotFound {
		t.Errorf("resp = %+v, want structured not-found error", resp)
	}
}

func TestSetWallpaper(t *testing.T) {
	m := &fakeManager{}
	rec, resp := serve(t, m, http.MethodPost, "/wallpaper",
		`{"output":"eDP-1","path":"/tmp/b.png"}`)

	if rec.Code != http.StatusOK || resp.Status != "ok" {
		t.Fatalf("status = %d/%s, want 200/ok", rec.Code, resp.Status)
	}
	if m.setOutput != "eDP-1" || m.setPath != "/tmp/b.png" {
		t.Errorf("manager got (%q, %q)", m.setOutput, m.setPath)
	}
}

func TestSetWallpaperMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"broken json", `{"output": "eDP-1",`},
		{"missing path", `{"output":"eDP-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeManager{}
			rec, resp := serve(t, m, http.MethodPost, "/wallpaper", tt.body)

			// Malformed requests get a structured error, never a dropped
			// connection or an empty body.
			if rec.Code != http.StatusBadRequest {
				t.Errorf("code = %d, want 400", rec.Code)
			}
			if resp.Status != "error" || resp.Kind != ErrorBadRequest {
				t.Errorf("resp = %+v, want bad-request error envelope", resp)
			}
			if m.setOutput != "" {
				t.Error("manager was called despite malformed request")
			}
		})
	}
}

func TestReloadReportsParseError(t *testing.T) {
	m := &fakeManager{reloadErr: &config.ParseError{Field: "default.mode", Message: "invalid mode \"zoom\""}}
	rec, resp := serve(t, m, http.MethodPost, "/reload", "")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("code = %d, want 422", rec.Code)
	}
	if resp.Kind != ErrorConfig {
		t.Errorf("kind = %q, want config", resp.Kind)
	}
	if !strings.Contains(resp.Message, "default.mode") {
		t.Errorf("message %q does not name the offending field", resp.Message)
	}
}

func TestPauseResumeAndStop(t *testing.T) {
	m := &fakeManager{}

	if _, resp := serve(t, m, http.MethodPost, "/pause", `{"output":"eDP-1"}`); resp.Status != "ok" {
		t.Errorf("pause resp = %+v", resp)
	}
	if _, resp := serve(t, m, http.MethodPost, "/resume", `{}`); resp.Status != "ok" {
		t.Errorf("resume resp = %+v", resp)
	}
	if _, resp := serve(t, m, http.MethodPost, "/stop", ""); resp.Status != "ok" {
		t.Errorf("stop resp = %+v", resp)
	}

	if len(m.paused) != 1 || m.paused[0] != "eDP-1" {
		t.Errorf("paused = %v", m.paused)
	}
	if len(m.resumed) != 1 || m.resumed[0] != "" {
		t.Errorf("resumed = %v, want one global resume", m.resumed)
	}
	if !m.stopped {
		t.Error("stop did not reach the manager")
	}
}
