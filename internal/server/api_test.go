package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxbridge/voxbridge/internal/relay"
	"github.com/voxbridge/voxbridge/internal/room"
)

func newAPIServer(t *testing.T, baseURL string) (*Server, *httptest.Server) {
	t.Helper()

	registry := room.NewRegistry(nil)
	s := New(Config{
		PublicBaseURL: baseURL,
		Registry:      registry,
		Relay:         relay.New(relay.RelayConfig{Registry: registry}),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func createRoom(t *testing.T, ts *httptest.Server, language, name string) createResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/rooms", createRequest{Language: language, Name: name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	return decodeBody[createResponse](t, resp)
}

func TestCreateRoom(t *testing.T) {
	_, ts := newAPIServer(t, "https://bridge.example.com")

	created := createRoom(t, ts, "en", "Alex")
	if len(created.RoomID) != 8 {
		t.Errorf("roomId = %q, want 8 characters", created.RoomID)
	}
	want := "https://bridge.example.com/join/" + created.RoomID
	if created.JoinURL != want {
		t.Errorf("joinUrl = %q, want %q", created.JoinURL, want)
	}
}

func TestCreateRoom_RelativeJoinURL(t *testing.T) {
	_, ts := newAPIServer(t, "")

	created := createRoom(t, ts, "en", "Alex")
	if want := "/join/" + created.RoomID; created.JoinURL != want {
		t.Errorf("joinUrl = %q, want %q", created.JoinURL, want)
	}
}

func TestCreateRoom_MissingLanguage(t *testing.T) {
	_, ts := newAPIServer(t, "")

	resp := postJSON(t, ts.URL+"/api/rooms", createRequest{Name: "Alex"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody[apiError](t, resp)
	if body.Error != "bad_request" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestJoinRoom(t *testing.T) {
	_, ts := newAPIServer(t, "")
	created := createRoom(t, ts, "en", "Alex")

	resp := postJSON(t, ts.URL+"/api/rooms/"+created.RoomID+"/join", joinRequest{Language: "es", Name: "Maria"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[joinResponse](t, resp)
	if body.CreatorLanguage != "en" || body.CreatorName != "Alex" {
		t.Errorf("join response = %+v, want creator details echoed", body)
	}
}

func TestJoinRoom_NotFound(t *testing.T) {
	_, ts := newAPIServer(t, "")

	resp := postJSON(t, ts.URL+"/api/rooms/deadbeef/join", joinRequest{Language: "es"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	body := decodeBody[apiError](t, resp)
	if body.Error != "room_not_found" {
		t.Errorf("error = %q, want room_not_found", body.Error)
	}
}

func TestJoinRoom_Full(t *testing.T) {
	_, ts := newAPIServer(t, "")
	created := createRoom(t, ts, "en", "Alex")

	resp := postJSON(t, ts.URL+"/api/rooms/"+created.RoomID+"/join", joinRequest{Language: "es", Name: "Maria"})
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/rooms/"+created.RoomID+"/join", joinRequest{Language: "fr", Name: "Pierre"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	body := decodeBody[apiError](t, resp)
	if body.Error != "room_full" {
		t.Errorf("error = %q, want room_full", body.Error)
	}
}

func TestRoomInfo(t *testing.T) {
	_, ts := newAPIServer(t, "")
	created := createRoom(t, ts, "en", "Alex")

	resp, err := http.Get(ts.URL + "/api/rooms/" + created.RoomID)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	info := decodeBody[room.Info](t, resp)
	if info.Initiator.Language != "en" || !info.Initiator.Joined {
		t.Errorf("initiator = %+v", info.Initiator)
	}
	if info.Peer.Joined {
		t.Error("peer should not be joined yet")
	}
}

func TestLeaveRoom(t *testing.T) {
	_, ts := newAPIServer(t, "")
	created := createRoom(t, ts, "en", "Alex")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/rooms/"+created.RoomID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/api/rooms/" + created.RoomID)
	if err != nil {
		t.Fatalf("GET after delete: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", getResp.StatusCode)
	}
}

func TestLeaveRoom_NotFound(t *testing.T) {
	_, ts := newAPIServer(t, "")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/rooms/deadbeef", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	_, ts := newAPIServer(t, "")

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
