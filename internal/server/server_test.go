package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"cotracker/internal/checkouts"
	"cotracker/internal/database"
	"cotracker/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testPassword = "hunter22"

type testServer struct {
	db      *database.DB
	router  *gin.Engine
	metrics *Metrics
	logs    *bytes.Buffer
}

func setupServer(t *testing.T) *testServer {
	db, err := database.New(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	for _, p := range []*models.Pilot{
		{Username: "p", FirstName: "Paula", LastName: "Pilot", IsPilot: true},
		{Username: "q", FirstName: "Quinn", IsPilot: true},
		{Username: "admin", IsSuperuser: true},
		{Username: "viewer"},
	} {
		p.PasswordHash = string(hash)
		require.NoError(t, db.Pilots().Create(p))
	}

	base := &models.Airstrip{Ident: "KXYZ", Name: "Base Camp", IsBase: true}
	a1 := &models.Airstrip{Ident: "A1", Name: "Alpha"}
	a2 := &models.Airstrip{Ident: "A2", Name: "Bravo"}
	a3 := &models.Airstrip{Ident: "A3", Name: "Charlie"}
	for _, a := range []*models.Airstrip{base, a1, a2, a3} {
		require.NoError(t, db.Airstrips().Create(a))
	}
	require.NoError(t, db.Airstrips().Attach(a1.ID, base.ID))
	require.NoError(t, db.Airstrips().Attach(a2.ID, base.ID))

	require.NoError(t, db.AircraftTypes().Create(&models.AircraftType{Name: "Cessna172"}))
	require.NoError(t, db.AircraftTypes().Create(&models.AircraftType{Name: "Cirrus"}))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	metrics := NewMetrics()
	service := checkouts.NewService(db.Pilots(), db.Airstrips(), db.AircraftTypes(), db.Checkouts(), metrics)
	router := NewRouter(NewHandler(service), db.Pilots(), metrics, logger, "cotracker")

	return &testServer{db: db, router: router, metrics: metrics, logs: &logs}
}

func (s *testServer) do(t *testing.T, method, path, user string, form url.Values) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if user != "" {
		req.SetBasicAuth(user, testPassword)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func messageTexts(t *testing.T, body map[string]any) []string {
	t.Helper()
	raw, ok := body["messages"].([]any)
	require.True(t, ok, "response carries messages")
	texts := make([]string, 0, len(raw))
	for _, m := range raw {
		texts = append(texts, m.(map[string]any)["text"].(string))
	}
	return texts
}

func TestAuthentication(t *testing.T) {
	s := setupServer(t)

	w, _ := s.do(t, http.MethodGet, "/pilots", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Basic realm="cotracker"`, w.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/pilots", nil)
	req.SetBasicAuth("p", "wrong")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, s.logs.String(), "Authentication failed")

	w, _ = s.do(t, http.MethodGet, "/pilots", "nobody", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, http.MethodGet, "/pilots", "viewer", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["pilots"], 2)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRequestID(t *testing.T) {
	s := setupServer(t)

	w, _ := s.do(t, http.MethodGet, "/airstrips", "viewer", nil)
	assert.Len(t, w.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/airstrips", nil)
	req.SetBasicAuth("viewer", testPassword)
	req.Header.Set(requestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
	assert.Contains(t, s.logs.String(), "request_id=abc-123")
}

func TestReadOnlyPages(t *testing.T) {
	s := setupServer(t)

	w, body := s.do(t, http.MethodGet, "/airstrips/KXYZ", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "KXYZ", body["airstrip"].(map[string]any)["ident"])

	w, body = s.do(t, http.MethodGet, "/bases", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["bases"], 1)

	w, body = s.do(t, http.MethodGet, "/bases/KXYZ/attached", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attached", body["attached_state"])
	assert.Len(t, body["airstrips"], 2)

	w, body = s.do(t, http.MethodGet, "/bases/KXYZ/unattached", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["airstrips"], 1)

	w, _ = s.do(t, http.MethodGet, "/pilots/nobody", "viewer", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodGet, "/airstrips/ZZZZ", "viewer", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEditAttachments(t *testing.T) {
	s := setupServer(t)

	w, body := s.do(t, http.MethodGet, "/bases/KXYZ/edit", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["airstrips"], 3, "every airstrip but the base")

	form := url.Values{"airstrip": {"A2", "A3", "KXYZ"}}
	w, body = s.do(t, http.MethodPost, "/bases/KXYZ/edit", "admin", form)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{
		"Unable to set attachment for 'Base Camp' to itself",
		"Attached: Charlie",
		"Unattached: Alpha",
	}, messageTexts(t, body))

	w, body = s.do(t, http.MethodPost, "/bases/KXYZ/edit", "admin", url.Values{"airstrip": {"A2", "A3"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Nothing updated; No changes necessary."}, messageTexts(t, body))

	w, body = s.do(t, http.MethodPost, "/bases/KXYZ/edit", "p", form)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, checkouts.ReasonAttachments, body["reason"])

	w, _ = s.do(t, http.MethodPost, "/bases/KXYZ/edit", "p", url.Values{"airstrip": {"not an ident!"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, "/bases/A1/edit", "admin", form)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// the base is resolved before the form is read
	w, _ = s.do(t, http.MethodPost, "/bases/A1/edit", "admin", url.Values{"airstrip": {""}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = s.do(t, http.MethodPost, "/bases/KXYZ/edit", "admin", url.Values{"airstrip": {""}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "This field is required.", body["errors"].(map[string]any)["airstrip"])
	assert.Equal(t, []string{formErrorMessage}, messageTexts(t, body))

	w, body = s.do(t, http.MethodPost, "/bases/KXYZ/edit", "admin", url.Values{"airstrip": {"not an ident!"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Select a valid choice. not an ident! is not one of the available choices.",
		body["errors"].(map[string]any)["airstrip"])
}

func TestEditWithUnusualStoredIdents(t *testing.T) {
	s := setupServer(t)

	unusual := []*models.Airstrip{
		{Ident: "WA_01", Name: "Wamena Strip"},
		{Ident: "X", Name: "X-Ray"},
		{Ident: "PAPUA-HIGHLANDS1", Name: "Highlands One"},
	}
	for _, a := range unusual {
		require.NoError(t, s.db.Airstrips().Create(a))
	}

	w, body := s.do(t, http.MethodGet, "/bases/KXYZ/edit", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	offered := map[string]bool{}
	for _, a := range body["airstrips"].([]any) {
		offered[a.(map[string]any)["ident"].(string)] = true
	}

	form := url.Values{"airstrip": {"A1", "A2"}}
	for _, a := range unusual {
		assert.True(t, offered[a.Ident], a.Ident)
		form.Add("airstrip", a.Ident)
	}

	w, body = s.do(t, http.MethodPost, "/bases/KXYZ/edit", "admin", form)
	require.Equal(t, http.StatusOK, w.Code)
	texts := messageTexts(t, body)
	require.Len(t, texts, 1)
	for _, a := range unusual {
		assert.Contains(t, texts[0], a.Name)
	}

	for _, a := range unusual {
		edit := url.Values{"pilot": {"p"}, "airstrip": {a.Ident}, "aircraft_type": {"Cirrus"}}
		w, body = s.do(t, http.MethodPost, "/checkouts/edit", "p", edit)
		require.Equal(t, http.StatusOK, w.Code, a.Ident)
		assert.Equal(t, []string{"Added 'Paula Pilot is checked out at " + a.Name + " in a Cirrus'"}, messageTexts(t, body))
	}
}

func TestEditCheckout(t *testing.T) {
	s := setupServer(t)

	w, body := s.do(t, http.MethodGet, "/checkouts/edit", "p", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p", body["initial_pilot"])
	assert.Len(t, body["pilots"], 1)

	w, body = s.do(t, http.MethodGet, "/checkouts/edit", "viewer", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, checkouts.ReasonCheckouts, body["reason"])

	// the role check runs before the form is read
	w, body = s.do(t, http.MethodPost, "/checkouts/edit", "viewer", url.Values{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, checkouts.ReasonCheckouts, body["reason"])

	add := url.Values{"pilot": {"p"}, "airstrip": {"A1"}, "aircraft_type": {"Cessna172"}, "action": {"Add Checkout"}}
	w, body = s.do(t, http.MethodPost, "/checkouts/edit", "p", add)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Added 'Paula Pilot is checked out at Alpha in a Cessna172'"}, messageTexts(t, body))

	w, body = s.do(t, http.MethodPost, "/checkouts/edit", "p", add)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Already exists: 'Paula Pilot is checked out at Alpha in a Cessna172'"}, messageTexts(t, body))

	other := url.Values{"pilot": {"q"}, "airstrip": {"A1"}, "aircraft_type": {"Cessna172"}}
	w, body = s.do(t, http.MethodPost, "/checkouts/edit", "p", other)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, checkouts.ReasonOwnCheckouts, body["reason"])

	remove := url.Values{"pilot": {"p"}, "airstrip": {"A1"}, "aircraft_type": {"Cessna172", "Cirrus"}, "action": {"Remove Checkout"}}
	w, body = s.do(t, http.MethodPost, "/checkouts/edit", "p", remove)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, messageTexts(t, body), 2)

	w, body = s.do(t, http.MethodPost, "/checkouts/edit", "p", url.Values{"pilot": {"p"}, "airstrip": {"A1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "This field is required.", body["errors"].(map[string]any)["aircraft_type"])

	w, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	metrics := w.Body.String()
	assert.Contains(t, metrics, `cotracker_forbidden_total{action="edit_checkouts"} 3`)
	assert.Contains(t, metrics, `cotracker_checkouts_changed_total{action="add"} 1`)
	assert.Contains(t, metrics, `cotracker_checkouts_changed_total{action="remove"} 1`)
}

func TestFilterCheckouts(t *testing.T) {
	s := setupServer(t)

	w, body := s.do(t, http.MethodGet, "/checkouts/filter", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["checkout_statuses"], 2)
	assert.Len(t, body["aircraft_types"], 2)

	w, body = s.do(t, http.MethodGet, "/checkouts/filter?checkout_status=not_completed&pilot=p&base=KXYZ", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 6, body["count"])

	w, body = s.do(t, http.MethodPost, "/checkouts/filter", "viewer", url.Values{"checkout_status": {"completed"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["count"])

	w, body = s.do(t, http.MethodGet, "/checkouts/filter?checkout_status=sometimes", "viewer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["errors"], "checkout_status")
}
