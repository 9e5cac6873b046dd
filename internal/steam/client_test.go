package steam

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Nlkomaru/vrc-playtime/internal/logger"
)

// newTestClient points a client at a test server and captures its log output
func newTestClient(serverURL, apiKey, steamID string) (*Client, *bytes.Buffer) {
	var buf bytes.Buffer
	client := NewClient(apiKey, steamID, logger.New(logger.LevelDebug, &buf))
	client.baseURL = serverURL
	client.httpClient = &http.Client{}
	return client, &buf
}

func TestFetchPlaytime_Success(t *testing.T) {
	tests := []struct {
		name    string
		minutes string
		want    float64
	}{
		{"whole hours", "6000", 100},
		{"half hour", "7530", 125.5},
		{"two decimals", "7407", 123.45},
		{"rounds up", "1", 0.02},
		{"rounds down", "62", 1.03},
		{"zero", "0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"response":{"game_count":2,"games":[` +
					`{"appid":730,"playtime_forever":99999},` +
					`{"appid":438100,"playtime_forever":` + tt.minutes + `,"playtime_2weeks":60}]}}`))
			}))
			defer server.Close()

			client, _ := newTestClient(server.URL, "test-key", "76561198000000000")

			got, err := client.FetchPlaytime(context.Background())
			if err != nil {
				t.Fatalf("FetchPlaytime() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FetchPlaytime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFetchPlaytime_QueryParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET request, got %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("key") != "test-key" {
			t.Errorf("key = %q, want test-key", q.Get("key"))
		}
		if q.Get("steamid") != "76561198000000000" {
			t.Errorf("steamid = %q", q.Get("steamid"))
		}
		if q.Get("format") != "json" {
			t.Errorf("format = %q, want json", q.Get("format"))
		}
		w.Write([]byte(`{"response":{"games":[{"appid":438100,"playtime_forever":60}]}}`))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL, "test-key", "76561198000000000")

	if _, err := client.FetchPlaytime(context.Background()); err != nil {
		t.Fatalf("FetchPlaytime() unexpected error: %v", err)
	}
}

func TestFetchPlaytime_MissingCredentials(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	tests := []struct {
		name    string
		apiKey  string
		steamID string
	}{
		{"missing key", "", "76561198000000000"},
		{"missing steam id", "test-key", ""},
		{"missing both", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, logs := newTestClient(server.URL, tt.apiKey, tt.steamID)

			_, err := client.FetchPlaytime(context.Background())
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("FetchPlaytime() error = %v, want ErrMissingCredentials", err)
			}
			if !strings.Contains(logs.String(), "Missing Steam API credentials") {
				t.Errorf("expected missing credentials log line, got %q", logs.String())
			}
		})
	}

	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("server received %d requests, want 0", n)
	}
}

func TestFetchPlaytime_GameNotFound(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"other games only", `{"response":{"game_count":2,"games":[{"appid":730,"playtime_forever":10},{"appid":570,"playtime_forever":20}]}}`},
		{"private profile", `{"response":{}}`},
		{"empty list", `{"response":{"game_count":0,"games":[]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, logs := newTestClient(server.URL, "test-key", "76561198000000000")

			_, err := client.FetchPlaytime(context.Background())
			if !errors.Is(err, ErrGameNotFound) {
				t.Errorf("FetchPlaytime() error = %v, want ErrGameNotFound", err)
			}
			if !strings.Contains(logs.String(), "VRChat not found in owned games") {
				t.Errorf("expected not found log line, got %q", logs.String())
			}
		})
	}
}

func TestFetchPlaytime_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client, logs := newTestClient(server.URL, "test-key", "76561198000000000")

	_, err := client.FetchPlaytime(context.Background())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("FetchPlaytime() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", statusErr.StatusCode)
	}
	if !strings.Contains(logs.String(), `"status":500`) {
		t.Errorf("expected status 500 in logs, got %q", logs.String())
	}
}

func TestFetchPlaytime_HTMLErrorPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`<html><head><title>Forbidden</title></head><body><h1>Forbidden</h1>` +
			`Access is denied. Retrying will not help. Please verify your <pre>key=</pre> parameter.</body></html>`))
	}))
	defer server.Close()

	client, logs := newTestClient(server.URL, "bad-key", "76561198000000000")

	_, err := client.FetchPlaytime(context.Background())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("FetchPlaytime() error = %v, want *StatusError", err)
	}
	if statusErr.Title != "Forbidden" {
		t.Errorf("Title = %q, want Forbidden", statusErr.Title)
	}
	if !strings.Contains(logs.String(), `"page_title":"Forbidden"`) {
		t.Errorf("expected page title in logs, got %q", logs.String())
	}
}

func TestFetchPlaytime_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": {"games": [`))
	}))
	defer server.Close()

	client, logs := newTestClient(server.URL, "test-key", "76561198000000000")

	_, err := client.FetchPlaytime(context.Background())
	if err == nil {
		t.Fatal("FetchPlaytime() expected error for malformed body, got nil")
	}
	if !strings.Contains(err.Error(), "parsing response") {
		t.Errorf("error = %v, want parsing response error", err)
	}
	if !strings.Contains(logs.String(), "Error getting VRChat playtime") {
		t.Errorf("expected parse failure log line, got %q", logs.String())
	}
}

func TestMinutesToHours(t *testing.T) {
	tests := []struct {
		minutes int
		want    float64
	}{
		{0, 0},
		{30, 0.5},
		{60, 1},
		{61, 1.02},
		{7530, 125.5},
		{7407, 123.45},
		{100003, 1666.72},
	}

	for _, tt := range tests {
		if got := MinutesToHours(tt.minutes); got != tt.want {
			t.Errorf("MinutesToHours(%d) = %v, want %v", tt.minutes, got, tt.want)
		}
	}
}

func TestFindGame(t *testing.T) {
	resp := &OwnedGamesResponse{Response: OwnedGames{Games: []Game{
		{AppID: 730, PlaytimeForever: 1},
		{AppID: VRChatAppID, PlaytimeForever: 2},
		{AppID: VRChatAppID, PlaytimeForever: 3},
	}}}

	game, ok := resp.FindGame(VRChatAppID)
	if !ok {
		t.Fatal("FindGame() did not find VRChat")
	}
	if game.PlaytimeForever != 2 {
		t.Errorf("FindGame() returned entry with %d minutes, want the first match", game.PlaytimeForever)
	}

	if _, ok := resp.FindGame(1); ok {
		t.Error("FindGame(1) found a game that is not in the list")
	}
}
