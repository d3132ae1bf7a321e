package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/dmbot/internal/platform"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/", Token: "bridge-secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeOK(w http.ResponseWriter, result any) {
	data, _ := json.Marshal(result)
	json.NewEncoder(w).Encode(apiResponse{OK: true, Result: data})
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestLogin_Success(t *testing.T) {
	dev := platform.NewDeviceIdentity()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Bridge-Token"); got != "bridge-secret" {
			t.Errorf("X-Bridge-Token = %q", got)
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Username != "bot" || req.Password != "pw" {
			t.Errorf("credentials = %q/%q", req.Username, req.Password)
		}
		if req.Device != dev {
			t.Errorf("device not forwarded: %+v", req.Device)
		}
		writeOK(w, loginResult{UserID: "42", Authorization: "Bearer abc", Cookies: map[string]string{"sessionid": "s1"}})
	})
	c.SetDevice(dev)

	sess, err := c.Login(context.Background(), "bot", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.UserID != "42" || sess.Authorization != "Bearer abc" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if sess.Device != dev {
		t.Error("session should carry the bound device")
	}
	if c.SelfID() != "42" {
		t.Errorf("SelfID = %q, want 42", c.SelfID())
	}
}

func TestLogin_RequiresDevice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a device")
	})
	if _, err := c.Login(context.Background(), "bot", "pw"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogin_Challenge(t *testing.T) {
	tests := []struct {
		name string
		resp apiResponse
	}{
		{"by code", apiResponse{OK: false, ErrorCode: 428, Description: "verify"}},
		{"by description", apiResponse{OK: false, ErrorCode: 400, Description: "challenge_required"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(tt.resp)
			})
			c.SetDevice(platform.NewDeviceIdentity())
			_, err := c.Login(context.Background(), "bot", "pw")
			if !errors.Is(err, platform.ErrChallengeRequired) {
				t.Fatalf("expected ErrChallengeRequired, got %v", err)
			}
		})
	}
}

func TestLogin_BadPassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(apiResponse{OK: false, ErrorCode: 403, Description: "bad_password"})
	})
	c.SetDevice(platform.NewDeviceIdentity())
	_, err := c.Login(context.Background(), "bot", "pw")
	if err == nil || errors.Is(err, platform.ErrChallengeRequired) {
		t.Fatalf("expected plain login error, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 403 {
		t.Errorf("expected APIError 403, got %v", err)
	}
}

func TestRestoreSession_SendsCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer saved" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Cookie"); got != "a=1; b=2" {
			t.Errorf("Cookie = %q", got)
		}
		if r.URL.Query().Get("amount") != "10" {
			t.Errorf("amount = %q", r.URL.Query().Get("amount"))
		}
		writeOK(w, []wireThread{{ID: "t1", Users: []string{"u1"}}})
	})

	if err := c.RestoreSession(&platform.Session{}); err == nil {
		t.Error("expected error restoring an empty session")
	}
	err := c.RestoreSession(&platform.Session{
		Authorization: "Bearer saved",
		Cookies:       map[string]string{"b": "2", "a": "1"},
	})
	if err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}

	threads, err := c.ListThreads(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if len(threads) != 1 || threads[0].ID != "t1" || threads[0].UserIDs[0] != "u1" {
		t.Errorf("unexpected threads: %+v", threads)
	}
}

func TestListMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/direct/threads/t%2F1/messages" && r.URL.Path != "/direct/threads/t/1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeOK(w, []wireMessage{
			{ID: "m2", UserID: "u1", Text: "/info 123456", Timestamp: 2_000_000},
			{ID: "m1", UserID: "u1", Text: "hi", Timestamp: 1_000_000},
		})
	})

	msgs, err := c.ListMessages(context.Background(), "t/1", 5)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d", len(msgs))
	}
	if msgs[0].ThreadID != "t/1" {
		t.Errorf("thread id should default to the requested one, got %q", msgs[0].ThreadID)
	}
	if msgs[1].Timestamp.Unix() != 1 {
		t.Errorf("timestamp = %v", msgs[1].Timestamp)
	}
}

func TestSendText(t *testing.T) {
	var got sendRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		writeOK(w, map[string]string{"item_id": "x"})
	})

	if err := c.SendText(context.Background(), []string{"t1"}, ""); err == nil {
		t.Error("expected error for empty text")
	}
	if err := c.SendText(context.Background(), []string{"t1"}, "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if got.Text != "hello" || len(got.ThreadIDs) != 1 || got.ThreadIDs[0] != "t1" {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestCallAPI_NonJSONError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	})
	_, err := c.ListThreads(context.Background(), 10)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected APIError 502, got %v", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should mention status: %v", err)
	}
}
