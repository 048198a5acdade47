package pihole

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pifleet.dev/pifleet/internal/logging"
	"pifleet.dev/pifleet/internal/session"
	"pifleet.dev/pifleet/internal/transport"
)

// fakePihole emulates the Pi-hole v6 auth and blocking endpoints with
// enough fidelity to exercise login caching, 401 retries, and state
// writes.
type fakePihole struct {
	mu        sync.Mutex
	password  string
	validity  int
	logins    int
	sids      map[string]string // sid -> csrf
	blocking  bool
	timer     *float64
	failLogin bool
	rejectAll bool // every authenticated call 401s, even with a fresh sid

	lastSetBody map[string]any

	server *httptest.Server
}

func newFakePihole(password string) *fakePihole {
	f := &fakePihole{
		password: password,
		validity: 300,
		sids:     make(map[string]string),
		blocking: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth", f.handleAuth)
	mux.HandleFunc("GET /api/dns/blocking", f.handleGetBlocking)
	mux.HandleFunc("GET /api/stats/summary", f.handleStats)
	mux.HandleFunc("POST /api/dns/blocking", f.handleSetBlocking)
	f.server = httptest.NewServer(mux)
	return f
}

func (f *fakePihole) handleAuth(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]string
	json.NewDecoder(r.Body).Decode(&body)

	if f.failLogin || body["password"] != f.password {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"session": map[string]any{"valid": false}})
		return
	}

	f.logins++
	sid := fmt.Sprintf("sid-%d", f.logins)
	csrf := fmt.Sprintf("csrf-%d", f.logins)
	f.sids[sid] = csrf

	json.NewEncoder(w).Encode(map[string]any{
		"session": map[string]any{
			"valid":    true,
			"sid":      sid,
			"csrf":     csrf,
			"validity": f.validity,
		},
	})
}

// authorized reports whether the request carries a live session.
func (f *fakePihole) authorized(r *http.Request) bool {
	if f.rejectAll {
		return false
	}
	_, ok := f.sids[r.Header.Get("X-FTL-SID")]
	return ok
}

func (f *fakePihole) handleGetBlocking(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	state := "disabled"
	if f.blocking {
		state = "enabled"
	}
	json.NewEncoder(w).Encode(map[string]any{"blocking": state, "timer": f.timer})
}

func (f *fakePihole) handleStats(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"queries": map[string]any{
			"total":           10000,
			"blocked":         1234,
			"percent_blocked": 12.34,
		},
	})
}

func (f *fakePihole) handleSetBlocking(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	sid := r.Header.Get("X-FTL-SID")
	if r.Header.Get("X-FTL-CSRF") != f.sids[sid] {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "bad csrf token"})
		return
	}

	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)
	f.lastSetBody = body

	f.blocking, _ = body["blocking"].(bool)
	f.timer = nil
	if t, ok := body["timer"].(float64); ok {
		f.timer = &t
	}

	state := "disabled"
	if f.blocking {
		state = "enabled"
	}
	json.NewEncoder(w).Encode(map[string]any{"blocking": state, "timer": f.timer})
}

// revokeSessions invalidates every issued sid server-side, simulating
// session expiry on the appliance.
func (f *fakePihole) revokeSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sids = make(map[string]string)
}

func (f *fakePihole) setFailLogin(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLogin = v
}

func (f *fakePihole) setRejectAll(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectAll = v
}

func (f *fakePihole) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakePihole) instance() InstanceConfig {
	return InstanceConfig{Name: "test-pi", URL: f.server.URL, Password: f.password}
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})
}

func newTestClient() *Client {
	return NewClient(transport.NewClient(), session.NewStore(nil), quietLogger())
}

func TestFetchStatus_Success(t *testing.T) {
	fake := newFakePihole("hunter2")
	defer fake.server.Close()

	client := newTestClient()
	st := client.FetchStatus(context.Background(), fake.instance())

	require.Nil(t, st.Error)
	require.NotNil(t, st.Blocking)
	assert.True(t, *st.Blocking)
	assert.Equal(t, 0, st.Timer)
	assert.Equal(t, int64(10000), st.TotalQueries)
	assert.Equal(t, int64(1234), st.BlockedQueries)
	assert.InDelta(t, 12.34, st.PercentBlocked, 0.001)
	assert.Equal(t, "test-pi", st.Name)
	assert.Equal(t, fake.server.URL, st.URL)
}

func TestFetchStatus_SessionReuse(t *testing.T) {
	fake := newFakePihole("hunter2")
	defer fake.server.Close()

	client := newTestClient()
	st1 := client.FetchStatus(context.Background(), fake.instance())
	st2 := client.FetchStatus(context.Background(), fake.instance())

	require.Nil(t, st1.Error)
	require.Nil(t, st2.Error)
	assert.Equal(t, 1, fake.loginCount(), "second fetch inside the validity window must reuse the session")
}

func TestFetchStatus_WrongPassword(t *testing.T) {
	fake := newFakePihole("hunter2")
	defer fake.server.Close()

	client := newTestClient()
	inst := fake.instance()
	inst.Password = "wrong"

	st := client.FetchStatus(context.Background(), inst)

	require.NotNil(t, st.Error)
	assert.Nil(t, st.Blocking)
	assert.Zero(t, st.TotalQueries)
	assert.Contains(t, *st.Error, "authentication failed")
	assert.Contains(t, *st.Error, "test-pi")
}

func TestFetchStatus_RetryOnceAfter401(t *testing.T) {
	fake := newFakePihole("hunter2")
	defer fake.server.Close()

	client := newTestClient()

	// Prime the cache, then expire the session server-side only. The
	// client still believes its credential is fresh.
	st := client.FetchStatus(context.Background(), fake.instance())
	require.Nil(t, st.Error)
	fake.revokeSessions()

	st = client.FetchStatus(context.Background(), fake.instance())

	require.Nil(t, st.Error, "stale session must recover via one re-login")
	assert.Equal(t, 2, fake.loginCount(), "exactly one re-authentication")
}

func TestFetchStatus_SecondConsecutive401Fails(t *testing.T) {
	fake := newFakePihole("hunter2")
	fake.setRejectAll(true)
	defer fake.server.Close()

	client := newTestClient()
	st := client.FetchStatus(context.Background(), fake.instance())

	require.NotNil(t, st.Error)
	assert.Contains(t, *st.Error, "unauthorized")
	// One initial login plus one retry login: the loop is bounded.
	assert.Equal(t, 2, fake.loginCount())
}

func TestFetchStatus_UnreachableInstance(t *testing.T) {
	fake := newFakePihole("hunter2")
	inst := fake.instance()
	fake.server.Close()

	client := newTestClient()
	st := client.FetchStatus(context.Background(), inst)

	require.NotNil(t, st.Error)
	assert.Nil(t, st.Blocking)
	assert.Equal(t, "test-pi", st.Name)
}

func TestSetBlocking_Enable(t *testing.T) {
	fake := newFakePihole("hunter2")
	fake.blocking = false
	defer fake.server.Close()

	client := newTestClient()
	res, err := client.SetBlocking(context.Background(), fake.instance(), true, 0)

	require.NoError(t, err)
	require.NotNil(t, res.Blocking)
	assert.True(t, *res.Blocking)
	assert.Equal(t, 0, res.Timer)
	_, hasTimer := fake.lastSetBody["timer"]
	assert.False(t, hasTimer, "enable must not send a timer")
}

func TestSetBlocking_DisableWithTimer(t *testing.T) {
	fake := newFakePihole("hunter2")
	defer fake.server.Close()

	client := newTestClient()
	res, err := client.SetBlocking(context.Background(), fake.instance(), false, 1800)

	require.NoError(t, err)
	require.NotNil(t, res.Blocking)
	assert.False(t, *res.Blocking)
	assert.Equal(t, 1800, res.Timer)
	assert.Equal(t, float64(1800), fake.lastSetBody["timer"])
}

func TestSetBlocking_DisableWithoutTimerOmitsField(t *testing.T) {
	fake := newFakePihole("hunter2")
	defer fake.server.Close()

	client := newTestClient()
	_, err := client.SetBlocking(context.Background(), fake.instance(), false, 0)

	require.NoError(t, err)
	_, hasTimer := fake.lastSetBody["timer"]
	assert.False(t, hasTimer)
}

func TestSetBlocking_RetryOnceAfter401(t *testing.T) {
	fake := newFakePihole("hunter2")
	defer fake.server.Close()

	client := newTestClient()
	_, err := client.SetBlocking(context.Background(), fake.instance(), true, 0)
	require.NoError(t, err)
	fake.revokeSessions()

	res, err := client.SetBlocking(context.Background(), fake.instance(), false, 0)
	require.NoError(t, err)
	require.NotNil(t, res.Blocking)
	assert.False(t, *res.Blocking)
	assert.Equal(t, 2, fake.loginCount())
}

func TestSetBlocking_Persistent401Fails(t *testing.T) {
	fake := newFakePihole("hunter2")
	fake.setRejectAll(true)
	defer fake.server.Close()

	client := newTestClient()
	_, err := client.SetBlocking(context.Background(), fake.instance(), true, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
	assert.Equal(t, 2, fake.loginCount())
}

func TestSetBlocking_Non200IsSetBlockingError(t *testing.T) {
	// The fake rejects a bad CSRF with 403; that must surface as a
	// SetBlockingError carrying the upstream body.
	fake := newFakePihole("hunter2")
	defer fake.server.Close()

	store := session.NewStore(nil)
	client := NewClient(transport.NewClient(), store, quietLogger())

	// Pre-seed a session whose sid is valid but whose csrf is wrong.
	cred, err := client.Authenticate(context.Background(), fake.instance())
	require.NoError(t, err)
	store.Put(fake.instance().URL, session.Credential{SID: cred.SID, CSRF: "bogus"}, 300)

	_, err = client.SetBlocking(context.Background(), fake.instance(), true, 0)
	require.Error(t, err)

	var sbe *SetBlockingError
	require.ErrorAs(t, err, &sbe)
	assert.Equal(t, "test-pi", sbe.Instance)
	assert.Equal(t, http.StatusForbidden, sbe.StatusCode)
	assert.Contains(t, sbe.Body, "csrf")
}

func TestAuthenticate_MalformedSessionBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"session":{"valid":true}}`)) // no sid
	}))
	defer server.Close()

	client := newTestClient()
	_, err := client.Authenticate(context.Background(), InstanceConfig{Name: "broken", URL: server.URL})

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "broken", ae.Instance)
}

func TestAuthenticate_InvalidatesStaleEntryOnFailure(t *testing.T) {
	fake := newFakePihole("hunter2")
	defer fake.server.Close()

	store := session.NewStore(nil)
	client := NewClient(transport.NewClient(), store, quietLogger())

	_, err := client.Authenticate(context.Background(), fake.instance())
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	// Session store entries expire client-side before the server's do, so
	// force a miss by wiping and re-seeding with an expired-equivalent:
	// simplest is to invalidate then fail the next login.
	store.Invalidate(fake.instance().URL)
	fake.setFailLogin(true)

	_, err = client.Authenticate(context.Background(), fake.instance())
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}
