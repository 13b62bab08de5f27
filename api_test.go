package relay

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestSnapshotStartRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rtm.start", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":false,"error":"invalid_auth"}`)
	}))
	defer server.Close()

	api, err := NewPlatformApi(server.URL, "xoxp-bad")
	assert.Equal(t, nil, err)
	defer api.Close()

	callback, result := NewBlockingApiCallback[*Snapshot]()
	api.SnapshotStart(nil, callback)
	r := <-result
	assert.NotEqual(t, nil, r.Error)

	apiError, ok := r.Error.(*ApiError)
	assert.Equal(t, true, ok)
	assert.Equal(t, ErrorCodeInvalidAuth, apiError.Code)
}

func TestSnapshotStartUnknownErrorCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error":"flux_capacitor_discharged"}`)
	}))
	defer server.Close()

	api, err := NewPlatformApi(server.URL, "xoxp-test")
	assert.Equal(t, nil, err)
	defer api.Close()

	callback, result := NewBlockingApiCallback[*Snapshot]()
	api.SnapshotStart(nil, callback)
	r := <-result

	apiError, ok := r.Error.(*ApiError)
	assert.Equal(t, true, ok)
	assert.Equal(t, ErrorCodeUnknown, apiError.Code)
}

func TestSnapshotStartArgsAndPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "xoxp-test", query.Get("token"))
		assert.Equal(t, "1", query.Get("simple_latest"))
		assert.Equal(t, "1", query.Get("no_unreads"))
		assert.Equal(t, "", query.Get("mpim_aware"))
		fmt.Fprint(w, `{
			"ok": true,
			"url": "wss://stream.example.com/ws",
			"team": {"id": "T1", "name": "acme"},
			"self": {"id": "U0"},
			"users": [{"id": "U1"}],
			"channels": [{"id": "C1"}]
		}`)
	}))
	defer server.Close()

	api, err := NewPlatformApi(server.URL, "xoxp-test")
	assert.Equal(t, nil, err)
	defer api.Close()

	callback, result := NewBlockingApiCallback[*Snapshot]()
	api.SnapshotStart(&SnapshotStartArgs{
		SimpleLatest: true,
		NoUnreads:    true,
	}, callback)
	r := <-result
	assert.Equal(t, nil, r.Error)
	assert.Equal(t, "wss://stream.example.com/ws", r.Result.Url)
	assert.Equal(t, "acme", r.Result.Team.Name)
	assert.Equal(t, 1, len(r.Result.Users))
}

func TestTokenRequired(t *testing.T) {
	_, err := NewPlatformApi("http://localhost", "")
	assert.NotEqual(t, nil, err)

	_, err = NewClient("http://localhost", "")
	assert.NotEqual(t, nil, err)
}
