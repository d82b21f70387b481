package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deviceServer(t *testing.T, answers ...string) (*DeviceFlow, *int) {
	t.Helper()
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/device/code", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "client", body["client_id"])
		assert.Equal(t, "public_repo gist", body["scope"])
		reply(w, 200, `{"device_code":"dev","user_code":"ABCD-1234","verification_uri":"https://github.com/login/device","expires_in":900,"interval":5}`)
	})
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "dev", body["device_code"])
		answer := answers[len(answers)-1]
		if polls < len(answers) {
			answer = answers[polls]
		}
		polls++
		reply(w, 200, answer)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := NewDeviceFlow(srv.URL, "client")
	f.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return f, &polls
}

func TestDeviceFlowLogin(t *testing.T) {
	f, polls := deviceServer(t,
		`{"error":"authorization_pending"}`,
		`{"error":"slow_down","interval":10}`,
		`{"access_token":"gho_x","token_type":"bearer","scope":"gist,public_repo"}`,
	)

	var shown string
	tok, err := f.Login(context.Background(), func(uri, code string) { shown = uri + " " + code })
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/login/device ABCD-1234", shown)
	assert.Equal(t, "gho_x", tok.AccessToken)
	assert.Equal(t, "gist,public_repo", tok.Scope)
	assert.Equal(t, 3, *polls)
}

func TestDeviceFlowDenied(t *testing.T) {
	f, _ := deviceServer(t, `{"error":"access_denied"}`)
	_, err := f.Login(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestDeviceFlowExpired(t *testing.T) {
	f, polls := deviceServer(t, `{"error":"authorization_pending"}`)
	start := time.Now()
	calls := 0
	f.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls) * 20 * time.Minute)
	}

	_, err := f.Login(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDeviceCodeExpired)
	assert.Zero(t, *polls)
}

func TestDeviceFlowNeedsClientID(t *testing.T) {
	_, err := NewDeviceFlow("", "").Login(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoClientID)
}
