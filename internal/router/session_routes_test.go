package router_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/internal/display/displaytest"
	"github.com/tamias-pos/customer-display/internal/router"
	"github.com/tamias-pos/customer-display/pkg/models"
)

// stream opens the session's event stream; the returned cancel drops it.
func stream(t *testing.T, srv *httptest.Server, id string) (*http.Response, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/display/sessions/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})
	return resp, cancel
}

func selectBudi(t *testing.T, f *fixture, id string) {
	t.Helper()
	rec := f.do(http.MethodPost, "/display/sessions/"+id+"/cashier", strings.NewReader(`{"cashier_id":"emp-1"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamReconnectsWithinGrace(t *testing.T) {
	clock := displaytest.NewClock()
	f := newFixtureWith(t, display.HubOptions{ConnectGrace: time.Minute, Clock: clock}, router.HandlerOptions{})
	srv := httptest.NewServer(f.engine)
	defer srv.Close()
	id := f.open(t, "12345678")
	session, ok := f.hub.Get(id)
	require.True(t, ok)

	first, drop := stream(t, srv, id)
	require.Equal(t, http.StatusOK, first.StatusCode)
	views := readViews(first.Body)
	awaitView(t, views, "Pilih Kasir yang Bertugas")
	selectBudi(t, f, id)
	awaitView(t, views, "Selamat Datang di Kopi Kita")

	drop()
	require.Eventually(t, func() bool { return session.Viewers() == 0 }, 2*time.Second, 5*time.Millisecond)

	second, dropAgain := stream(t, srv, id)
	require.Equal(t, http.StatusOK, second.StatusCode, "a reconnect within the grace period finds the session")
	awaitView(t, readViews(second.Body), "Selamat Datang di Kopi Kita")
	assert.Equal(t, 1, f.hub.Len())
	assert.Equal(t, 1, f.broker.Active())

	dropAgain()
	require.Eventually(t, func() bool {
		clock.Advance(time.Minute)
		return f.hub.Len() == 0
	}, 2*time.Second, 5*time.Millisecond, "the session ends once the grace period passes unwatched")
	assert.Zero(t, f.broker.Active())
}

func TestStreamSendsKeepAlive(t *testing.T) {
	f := newFixtureWith(t, display.HubOptions{}, router.HandlerOptions{KeepAlive: 20 * time.Millisecond})
	srv := httptest.NewServer(f.engine)
	t.Cleanup(srv.Close)
	id := f.open(t, "12345678")

	resp, _ := stream(t, srv, id)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	pinged := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "event:") && strings.TrimSpace(strings.TrimPrefix(line, "event:")) == "ping" {
				close(pinged)
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no keepalive on an idle stream")
	}
}

func TestCloseDisplay(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			f := newFixtureWith(t, display.HubOptions{ConnectGrace: time.Minute, Clock: displaytest.NewClock()}, router.HandlerOptions{})
			id := f.open(t, "12345678")
			selectBudi(t, f, id)

			path := "/display/sessions/" + id
			if method == http.MethodPost {
				path += "/close"
			}
			rec := f.do(method, path, nil, "")

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Zero(t, f.broker.Active())
			require.Eventually(t, func() bool { return f.hub.Len() == 0 }, time.Second, 2*time.Millisecond)
			assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/display/sessions/"+id, nil, "").Code)
		})
	}
}

type presenceReader struct {
	channel   string
	presences []models.Presence
	err       error
}

func (p *presenceReader) Presence(_ context.Context, channel string) ([]models.Presence, error) {
	p.channel = channel
	return p.presences, p.err
}

func TestGetPresence(t *testing.T) {
	online := models.DisplayPresence(time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC))
	reader := &presenceReader{presences: []models.Presence{online}}
	f := newFixtureWith(t, display.HubOptions{}, router.HandlerOptions{Presence: reader})
	id := f.open(t, "12345678")
	path := "/api/display/sessions/" + id + "/presence"

	rec := f.do(http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"channel":"","displays":[]}`, string(decode(t, rec).Data), "no cashier, no channel to look at")
	assert.Empty(t, reader.channel)

	selectBudi(t, f, id)
	rec = f.do(http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Channel  string            `json:"channel"`
		Displays []models.Presence `json:"displays"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	channel := display.ChannelName(kopiKita.ID, budi.ID)
	assert.Equal(t, channel, body.Channel)
	assert.Equal(t, channel, reader.channel)
	assert.Equal(t, []models.Presence{online}, body.Displays)

	reader.err = errors.New("connection refused")
	rec = f.do(http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetPresenceWithoutTracking(t *testing.T) {
	f := newFixture(t, nil)
	id := f.open(t, "12345678")

	rec := f.do(http.MethodGet, "/api/display/sessions/"+id+"/presence", nil, "")

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

type invalidator struct {
	stores []models.Store
}

func (i *invalidator) Invalidate(_ context.Context, store models.Store) error {
	i.stores = append(i.stores, store)
	return nil
}

func TestInvalidateStore(t *testing.T) {
	cache := &invalidator{}
	f := newFixtureWith(t, display.HubOptions{}, router.HandlerOptions{Cache: cache})

	rec := f.do(http.MethodDelete, "/api/stores/12345678/cache", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.Store{kopiKita}, cache.stores)

	rec = f.do(http.MethodDelete, "/api/stores/99999999/cache", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, cache.stores, 1)

	disabled := newFixture(t, nil)
	rec = disabled.do(http.MethodDelete, "/api/stores/12345678/cache", nil, "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
