package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bher20/tariffmatrix/internal/catalog"
	"github.com/bher20/tariffmatrix/internal/tariff"
)

// Resolved cells are rate+adj sums and the error survives the JSON round
// trip, so exact float comparison is unreliable.
func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("TARIFFMATRIX_DB_DRIVER", "memory")
	t.Setenv("TARIFFMATRIX_DB_DSN", "")
	srv := httptest.NewServer(NewMux())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/livez"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestListTariffs(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tariffs")
	if err != nil {
		t.Fatalf("GET /tariffs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /tariffs = %d", resp.StatusCode)
	}

	var body struct {
		Tariffs []catalog.TariffSummary `json:"tariffs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Tariffs) != 2 {
		t.Fatalf("got %d tariffs, want the 2 samples", len(body.Tariffs))
	}
}

func TestGetResolution(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tariffs/sample-residential-tou")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body catalog.ResolutionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Resolution == nil {
		t.Fatal("missing resolution")
	}
	// Off-peak January midnight: 0.085 + 0.004.
	if got := body.Resolution.EnergyWeekday[0][0]; !approxEqual(got, 0.089) {
		t.Errorf("EnergyWeekday[0][0] = %v, want 0.089", got)
	}
	if len(body.Resolution.EnergyPeriods) == 0 {
		t.Error("expected energy period summaries")
	}
}

func TestMatrixAndSummaryViews(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tariffs/sample-residential-tou/matrix")
	if err != nil {
		t.Fatalf("GET matrix: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("matrix status = %d", resp.StatusCode)
	}
	var matrix struct {
		EnergyWeekday tariff.RateMatrix `json:"energy_weekday"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&matrix); err != nil {
		t.Fatalf("decode matrix: %v", err)
	}
	// Summer weekday on-peak: 0.212 + 0.004.
	if got := matrix.EnergyWeekday[6][15]; !approxEqual(got, 0.216) {
		t.Errorf("EnergyWeekday[6][15] = %v, want 0.216", got)
	}

	resp2, err := http.Get(srv.URL + "/tariffs/sample-residential-tou/summary")
	if err != nil {
		t.Fatalf("GET summary: %v", err)
	}
	defer resp2.Body.Close()
	var summary struct {
		EnergyPeriods []tariff.PeriodSummary `json:"energy_periods"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.EnergyPeriods) != 2 {
		t.Fatalf("got %d energy periods, want 2", len(summary.EnergyPeriods))
	}
}

func TestUnknownTariff(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tariffs/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestImportRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/tariffs", "application/json",
		strings.NewReader(`{"utility":"U","name":"N"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("unauthenticated import = %d, want 403", resp.StatusCode)
	}
}

func TestRegisterLoginImport(t *testing.T) {
	srv := newTestServer(t)

	// Bootstrap: first registered user becomes admin.
	resp, err := http.Post(srv.URL+"/api/v1/auth/register", "application/json",
		strings.NewReader(`{"username":"root","password":"pw"}`))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/v1/auth/login", "application/json",
		strings.NewReader(`{"username":"root","password":"pw"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" {
		t.Fatal("empty token")
	}

	doc := `{"utility":"Test Util","name":"Plan A","sector":"Residential",
		"energyratestructure":[[{"rate":0.1,"adj":0.02}]],
		"energyweekdayschedule":[[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0]]}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/tariffs", strings.NewReader(doc))
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusCreated {
		t.Fatalf("import status = %d", resp2.StatusCode)
	}
	var imported struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&imported); err != nil {
		t.Fatalf("decode import: %v", err)
	}

	resp3, err := http.Get(srv.URL + "/tariffs/" + imported.ID)
	if err != nil {
		t.Fatalf("GET imported: %v", err)
	}
	defer resp3.Body.Close()
	var body catalog.ResolutionResponse
	if err := json.NewDecoder(resp3.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := body.Resolution.EnergyWeekday[0][0]; !approxEqual(got, 0.12) {
		t.Errorf("EnergyWeekday[0][0] = %v, want 0.12", got)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/internal/refresh?id=sample-residential-tou", "application/json", nil)
	if err != nil {
		t.Fatalf("POST refresh: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d", resp.StatusCode)
	}
	var body struct {
		Results []RefreshResponse `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != 1 || body.Results[0].Status != "ok" {
		t.Fatalf("unexpected results: %+v", body.Results)
	}
}
