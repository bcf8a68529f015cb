package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"climalog/internal/modules/readings/service"
	"climalog/internal/modules/readings/types"
	"climalog/internal/modules/readings/views"
)

// mockRepo keeps readings in memory and answers QueryRecent like the SQL store.
type mockRepo struct {
	mu        sync.Mutex
	readings  []types.Reading
	appendErr error
	queryErr  error
}

func (m *mockRepo) Append(ctx context.Context, r types.Reading) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	r.ID = int64(len(m.readings) + 1)
	m.readings = append(m.readings, r)
	return r.ID, nil
}

func (m *mockRepo) QueryRecent(ctx context.Context, limit int) ([]types.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	out := slices.Clone(m.readings)
	slices.SortStableFunc(out, func(a, b types.Reading) int {
		switch {
		case a.Time > b.Time:
			return -1
		case a.Time < b.Time:
			return 1
		}
		return int(b.ID - a.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []types.Reading{}
	}
	return out, nil
}

func (m *mockRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.readings), nil
}

type publishRecorder struct {
	got []types.Reading
}

func (p *publishRecorder) Publish(r types.Reading) { p.got = append(p.got, r) }

func newTestMux(repo *mockRepo, opts ...service.Option) *http.ServeMux {
	svc := service.NewService(repo, opts...)
	ctrl := NewReadingsController(svc, nil).(*readingsControllerImpl)
	ctrl.location = time.UTC
	mux := http.NewServeMux()
	ctrl.RegisterRoutes(mux)
	return mux
}

func postForm(mux http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/senddata", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func get(mux http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeReadings(t *testing.T, rec *httptest.ResponseRecorder) []types.Reading {
	t.Helper()
	var out []types.Reading
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode readings: %v", err)
	}
	return out
}

func Test_handleRoot(t *testing.T) {
	mux := newTestMux(&mockRepo{})

	rec := get(mux, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"title":"Temp","value":30}` {
		t.Errorf("body = %s", got)
	}

	if rec := get(mux, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope status = %d; want 404", rec.Code)
	}
}

func Test_handleSendData(t *testing.T) {
	t.Run("stores reading and acknowledges", func(t *testing.T) {
		repo := &mockRepo{}
		pub := &publishRecorder{}
		mux := newTestMux(repo, service.WithPublisher(pub))

		rec := postForm(mux, url.Values{"TIME": {"1000"}, "TEMP": {"22.5"}, "RH": {"55"}})

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want 200 (body %s)", rec.Code, rec.Body)
		}
		var msg string
		if err := json.NewDecoder(rec.Body).Decode(&msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg != "Data sent was successful" {
			t.Errorf("body = %q", msg)
		}
		if len(repo.readings) != 1 || *repo.readings[0].Temp != 22.5 {
			t.Errorf("stored = %+v", repo.readings)
		}
		if len(pub.got) != 1 || pub.got[0].ID != 1 {
			t.Errorf("published = %+v", pub.got)
		}
	})

	t.Run("rejects unparseable form with 400", func(t *testing.T) {
		repo := &mockRepo{}
		mux := newTestMux(repo)

		rec := postForm(mux, url.Values{"TIME": {"soon"}})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d; want 400", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "TIME") {
			t.Errorf("body = %s; want message naming TIME", rec.Body)
		}
		if len(repo.readings) != 0 {
			t.Errorf("stored %d readings; want 0", len(repo.readings))
		}
	})

	t.Run("storage failure is 500", func(t *testing.T) {
		repo := &mockRepo{appendErr: &types.StorageError{Op: "insert reading", Err: errors.New("disk full")}}
		mux := newTestMux(repo)

		rec := postForm(mux, url.Values{"TIME": {"1"}})

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d; want 500", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "successful") {
			t.Errorf("failure reported success: %s", rec.Body)
		}
	})

	t.Run("GET is not allowed", func(t *testing.T) {
		if rec := get(newTestMux(&mockRepo{}), "/senddata"); rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d; want 405", rec.Code)
		}
	})
}

func Test_handleData(t *testing.T) {
	t.Run("empty store returns empty array", func(t *testing.T) {
		rec := get(newTestMux(&mockRepo{}), "/data?num=10")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want 200", rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
			t.Errorf("body = %s; want []", got)
		}
	})

	t.Run("send then query returns newest first", func(t *testing.T) {
		mux := newTestMux(&mockRepo{})
		postForm(mux, url.Values{"TIME": {"1000"}, "TEMP": {"22.5"}, "RH": {"55"}})
		postForm(mux, url.Values{"TIME": {"2000"}, "TEMP": {"23.0"}, "RH": {"50"}})

		rec := get(mux, "/data?num=1")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want 200", rec.Code)
		}
		got := decodeReadings(t, rec)
		if len(got) != 1 || got[0].Time != 2000 || *got[0].Temp != 23.0 || *got[0].RH != 50 {
			t.Fatalf("got %+v; want the reading at 2000", got)
		}
	})

	t.Run("orders by time not insertion", func(t *testing.T) {
		mux := newTestMux(&mockRepo{})
		for _, ts := range []string{"100", "300", "200"} {
			postForm(mux, url.Values{"TIME": {ts}})
		}
		got := decodeReadings(t, get(mux, "/data?num=3"))
		if len(got) != 3 || got[0].Time != 300 || got[1].Time != 200 || got[2].Time != 100 {
			t.Fatalf("got %+v", got)
		}
		if !strings.Contains(get(mux, "/data?num=1").Body.String(), `"temp":null`) {
			t.Errorf("missing temp should serialize as null")
		}
	})

	t.Run("missing num uses default", func(t *testing.T) {
		repo := &mockRepo{}
		mux := newTestMux(repo, service.WithLimits(2, 100))
		for _, ts := range []string{"1", "2", "3"} {
			postForm(mux, url.Values{"TIME": {ts}})
		}
		if got := decodeReadings(t, get(mux, "/data")); len(got) != 2 {
			t.Fatalf("len = %d; want default 2", len(got))
		}
	})

	for _, num := range []string{"abc", "0", "-1", "1001"} {
		t.Run("invalid num "+num, func(t *testing.T) {
			rec := get(newTestMux(&mockRepo{}), "/data?num="+num)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d; want 400", rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] == "" || body["message"] == "" {
				t.Errorf("body = %v; want error and message", body)
			}
		})
	}

	t.Run("storage failure is 500", func(t *testing.T) {
		repo := &mockRepo{queryErr: &types.StorageError{Op: "query recent readings", Err: errors.New("locked")}}
		rec := get(newTestMux(repo), "/data?num=5")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d; want 500", rec.Code)
		}
	})
}

func Test_handleChart(t *testing.T) {
	t.Run("renders page", func(t *testing.T) {
		if err := views.LoadTemplates(); err != nil {
			t.Fatalf("LoadTemplates: %v", err)
		}
		mux := newTestMux(&mockRepo{})
		postForm(mux, url.Values{"TIME": {"1700000000"}, "TEMP": {"24"}, "RH": {"45"}})

		rec := get(mux, "/chart?num=10")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want 200", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("Content-Type = %q", ct)
		}
		if !strings.Contains(rec.Body.String(), "The current temperature is 24 C") {
			t.Errorf("body missing current temperature")
		}
	})

	t.Run("invalid num is 400", func(t *testing.T) {
		if rec := get(newTestMux(&mockRepo{}), "/chart?num=x"); rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d; want 400", rec.Code)
		}
	})
}

type stubStreamer struct{ hits int }

func (s *stubStreamer) ServeWS(w http.ResponseWriter, r *http.Request) {
	s.hits++
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func TestRegisterRoutes_Stream(t *testing.T) {
	streamer := &stubStreamer{}
	ctrl := NewReadingsController(service.NewService(&mockRepo{}), streamer)
	mux := http.NewServeMux()
	ctrl.RegisterRoutes(mux)

	get(mux, "/data/stream")
	if streamer.hits != 1 {
		t.Fatalf("stream handler hits = %d; want 1", streamer.hits)
	}
}
