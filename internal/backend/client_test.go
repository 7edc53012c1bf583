package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a minimal in-memory device backend.
type fakeBackend struct {
	mu      sync.Mutex
	list    string
	detail  map[string]string
	status  int
	updates []map[string]any
}

func (f *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /dispositivos", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, f.list) //nolint:errcheck // Test server
	})
	mux.HandleFunc("GET /dispositivos/{id}", func(w http.ResponseWriter, r *http.Request) {
		body, ok := f.detail[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body) //nolint:errcheck // Test server
	})
	mux.HandleFunc("PUT /dispositivos/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding update body: %v", err)
		}
		f.mu.Lock()
		f.updates = append(f.updates, body)
		status := f.status
		f.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second)
}

func TestDeviceID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want DeviceID
	}{
		{`42`, "42"},
		{`"abc-1"`, "abc-1"},
		{`null`, ""},
	}

	for _, tt := range tests {
		var id DeviceID
		if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
		}
		if id != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, id, tt.want)
		}
	}

	var id DeviceID
	if err := json.Unmarshal([]byte(`{}`), &id); err == nil {
		t.Error("Unmarshal({}) expected error")
	}
}

func TestFindBySerial(t *testing.T) {
	f := &fakeBackend{
		list: `[{"id": 1, "serial_number": "LUZAAAA0001"}, {"id": "7", "serial_number": "RIEGBBBB0002"}]`,
	}
	c := newTestClient(t, f)
	ctx := context.Background()

	id, err := c.FindBySerial(ctx, "RIEGBBBB0002")
	if err != nil {
		t.Fatalf("FindBySerial() error = %v", err)
	}
	if id != "7" {
		t.Errorf("FindBySerial() = %q, want 7", id)
	}

	_, err = c.FindBySerial(ctx, "NOPE")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("FindBySerial(unknown) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestGetDevice(t *testing.T) {
	f := &fakeBackend{
		detail: map[string]string{
			"1": `{"id": 1, "serial_number": "LUZAAAA0001", "configuracion": {"modo": "manual", "encendido": false, "intervalo_envio": 10}}`,
			"2": `{"id": 2, "serial_number": "LUZAAAA0002"}`,
		},
	}
	c := newTestClient(t, f)
	ctx := context.Background()

	rec, err := c.GetDevice(ctx, "1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if rec.Config["modo"] != "manual" || rec.Config["encendido"] != false {
		t.Errorf("Config = %v", rec.Config)
	}
	if rec.Config["intervalo_envio"] != float64(10) {
		t.Errorf("intervalo_envio = %v (%T)", rec.Config["intervalo_envio"], rec.Config["intervalo_envio"])
	}

	rec, err = c.GetDevice(ctx, "2")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if rec.Config == nil {
		t.Error("Config = nil, want empty document")
	}

	_, err = c.GetDevice(ctx, "99")
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("GetDevice(missing) error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestUpdateDevice(t *testing.T) {
	f := &fakeBackend{}
	c := newTestClient(t, f)

	err := c.UpdateDevice(context.Background(), "3", DeviceUpdate{
		Config: map[string]any{"modo": "horario", "encendido": true},
		Estado: "activo",
	})
	if err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.updates))
	}
	body := f.updates[0]
	if body["estado"] != "activo" {
		t.Errorf("estado = %v", body["estado"])
	}
	cfg, _ := body["configuracion"].(map[string]any)
	if cfg["encendido"] != true {
		t.Errorf("configuracion = %v", body["configuracion"])
	}
}

func TestUpdateDevice_Non2xx(t *testing.T) {
	f := &fakeBackend{status: http.StatusInternalServerError}
	c := newTestClient(t, f)

	err := c.UpdateDevice(context.Background(), "3", DeviceUpdate{Config: map[string]any{}})
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("UpdateDevice() error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	_, err := c.ListDevices(context.Background())
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("ListDevices() error = %v, want ErrRequestFailed", err)
	}
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient("http://example.invalid", 0)
	if c.http.GetClient().Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.http.GetClient().Timeout, DefaultTimeout)
	}
	if c.BaseURL() != "http://example.invalid" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
}
