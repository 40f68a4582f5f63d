package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A78Z/pmn-marches-publics/internal/classification"
	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/infrastructure/storage"
	"github.com/A78Z/pmn-marches-publics/internal/usecase"
)

var clock = time.Date(2026, time.January, 20, 9, 0, 0, 0, time.UTC)

type stubRunner struct {
	result domain.ScrapingResult
	err    error
}

func (s stubRunner) RunOnce(context.Context) (domain.ScrapingResult, error) {
	return s.result, s.err
}

type stubController struct {
	running bool
}

func (s *stubController) Stop() bool {
	was := s.running
	s.running = false
	return was
}

func (s *stubController) Status() usecase.Status {
	state := usecase.StateIdle
	if s.running {
		state = usecase.StateRunning
	}
	return usecase.Status{IsRunning: s.running, State: state}
}

func newTestServer(t *testing.T, runner Runner, controller Controller) (*httptest.Server, *storage.MemoryRepository) {
	t.Helper()
	repo := storage.NewMemoryRepository()
	srv := httptest.NewServer(NewRouter(Deps{
		Runner:     runner,
		Controller: controller,
		Tenders:    repo,
		Classifier: classification.NewDefaultEngine(),
		Now:        func() time.Time { return clock },
	}))
	t.Cleanup(srv.Close)
	return srv, repo
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestTriggerStatusCodes(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		runner stubRunner
		want   int
	}{
		"success":  {stubRunner{result: domain.ScrapingResult{Success: true, SessionID: "s-1"}}, http.StatusOK},
		"conflict": {stubRunner{err: usecase.ErrAlreadyRunning}, http.StatusConflict},
		"fatal":    {stubRunner{result: domain.ScrapingResult{SessionID: "s-2"}, err: usecase.ErrSessionFatal}, http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv, _ := newTestServer(t, tc.runner, &stubController{})
			resp, err := http.Post(srv.URL+"/scraping/trigger", "application/json", nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)

			var body map[string]any
			decode(t, resp, &body)
			if tc.want == http.StatusConflict {
				assert.Equal(t, "Un scraping est déjà en cours", body["error"])
				return
			}
			assert.Equal(t, tc.runner.result.SessionID, body["sessionId"])
		})
	}
}

func TestStatusAndStop(t *testing.T) {
	t.Parallel()

	ctrl := &stubController{running: true}
	srv, _ := newTestServer(t, stubRunner{}, ctrl)

	resp, err := http.Get(srv.URL + "/scraping/status")
	require.NoError(t, err)
	var status map[string]any
	decode(t, resp, &status)
	assert.Equal(t, true, status["isRunning"])
	assert.Equal(t, "running", status["state"])

	resp, err = http.Post(srv.URL+"/scraping/stop", "application/json", nil)
	require.NoError(t, err)
	var stop map[string]any
	decode(t, resp, &stop)
	assert.Equal(t, "Scraping arrêté", stop["message"])
	assert.Equal(t, true, stop["stopped"])

	resp, err = http.Post(srv.URL+"/scraping/stop", "application/json", nil)
	require.NoError(t, err)
	decode(t, resp, &stop)
	assert.Equal(t, false, stop["stopped"])
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubRunner{}, &stubController{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2026-01-20T09:00:00Z", body["timestamp"])
}

func TestTenderEndpoints(t *testing.T) {
	t.Parallel()

	srv, repo := newTestServer(t, stubRunner{}, &stubController{})
	ctx := context.Background()
	for _, rec := range []domain.TenderRecord{
		{ScrapedTender: domain.ScrapedTender{Reference: "AO-1", Title: "Nettoyage des bureaux", Region: "Dakar", DeadlineDate: time.Now().AddDate(0, 0, 5)}, Module: domain.ModuleEntretiens},
		{ScrapedTender: domain.ScrapedTender{Reference: "AO-2", Title: "Construction d'un mur", Region: "Thiès", DeadlineDate: time.Now().AddDate(0, 0, 9)}, Module: domain.ModuleBTP},
	} {
		_, err := repo.Upsert(ctx, rec)
		require.NoError(t, err)
	}

	resp, err := http.Get(srv.URL + "/tenders?module=btp")
	require.NoError(t, err)
	var list struct {
		Items []tenderView `json:"items"`
		Limit int          `json:"limit"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "AO-2", list.Items[0].Reference)
	assert.Equal(t, defaultPageSize, list.Limit)

	resp, err = http.Get(srv.URL + "/tenders?q=nettoyage")
	require.NoError(t, err)
	decode(t, resp, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "AO-1", list.Items[0].Reference)

	resp, err = http.Get(srv.URL + "/tenders?module=bogus")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/tenders?limit=500")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/tenders/AO-1")
	require.NoError(t, err)
	var one tenderView
	decode(t, resp, &one)
	assert.Equal(t, domain.StatusActive, one.Status)
	assert.Equal(t, domain.DefaultCurrency, one.Currency)

	resp, err = http.Get(srv.URL + "/tenders/NOPE")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/tenders/stats")
	require.NoError(t, err)
	var stats struct {
		ByModule map[string]int `json:"byModule"`
		Total    int            `json:"total"`
	}
	decode(t, resp, &stats)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByModule["btp"])
	assert.Len(t, stats.ByModule, len(domain.AllModules()))
}

func TestClassificationEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubRunner{}, &stubController{})

	resp, err := http.Post(srv.URL+"/classification/preview", "application/json",
		strings.NewReader(`{"title":"Marché de nettoyage des locaux"}`))
	require.NoError(t, err)
	var preview classificationView
	decode(t, resp, &preview)
	assert.Equal(t, domain.ModuleEntretiens, preview.Module)
	assert.InDelta(t, 1.0, preview.Confidence, 1e-9)
	assert.Contains(t, preview.Keywords, "nettoyage")

	resp, err = http.Post(srv.URL+"/classification/preview", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/classification/modules")
	require.NoError(t, err)
	var modules []struct {
		Module   string   `json:"module"`
		Keywords []string `json:"keywords"`
	}
	decode(t, resp, &modules)
	require.Len(t, modules, len(domain.AllModules()))
	assert.Equal(t, "entretiens", modules[0].Module)
	assert.NotEmpty(t, modules[0].Keywords)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, stubRunner{}, &stubController{})
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/scraping/status", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
