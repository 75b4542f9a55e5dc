package patient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newPatientContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_CreatePatient(t *testing.T) {
	h := NewHandler(NewService(newMemRepo()))

	body := `{
		"name": "Quality Test 01",
		"birth_date": "1960-05-01T00:00:00Z",
		"gender": "female",
		"encounters": [{"id":"` + uuid.NewString() + `","code":"99214","date":"2025-04-02T00:00:00Z"}]
	}`
	c, rec := newPatientContext(http.MethodPost, "/api/v1/patients", body)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var created TestPatient
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Error("the created patient should carry its assigned id")
	}
	if len(created.Encounters) != 1 || created.Encounters[0].Code != "99214" {
		t.Errorf("encounter facts lost on create: %+v", created.Encounters)
	}
}

func TestHandler_CreatePatient_BadRequests(t *testing.T) {
	h := NewHandler(NewService(newMemRepo()))

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name": `},
		{"missing birth date", `{"name":"x","gender":"female"}`},
		{"fact without code", `{
			"name":"x","birth_date":"1990-01-01T00:00:00Z","gender":"male",
			"conditions":[{"id":"` + uuid.NewString() + `","date":"2020-01-01T00:00:00Z"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newPatientContext(http.MethodPost, "/api/v1/patients", tc.body)
			err := h.CreatePatient(c)
			he, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected an HTTP error, got %v", err)
			}
			if he.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", he.Code)
			}
		})
	}
}

func TestHandler_GetPatient(t *testing.T) {
	repo := newMemRepo()
	h := NewHandler(NewService(repo))
	p := &TestPatient{
		ID:        uuid.New(),
		Name:      "Quality Test 02",
		BirthDate: day(1970, 1, 1),
		Gender:    "male",
	}
	repo.byID[p.ID] = p

	c, rec := newPatientContext(http.MethodGet, "/api/v1/patients/"+p.ID.String(), "")
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got TestPatient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != p.ID || got.Name != p.Name {
		t.Errorf("unexpected patient in response: %+v", got)
	}
}

func TestHandler_GetPatient_Errors(t *testing.T) {
	h := NewHandler(NewService(newMemRepo()))

	cases := []struct {
		name     string
		id       string
		wantCode int
	}{
		{"invalid id", "99213", http.StatusBadRequest},
		{"unknown id", uuid.NewString(), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newPatientContext(http.MethodGet, "/api/v1/patients/"+tc.id, "")
			c.SetParamNames("id")
			c.SetParamValues(tc.id)

			err := h.GetPatient(c)
			he, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected an HTTP error, got %v", err)
			}
			if he.Code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, he.Code)
			}
		})
	}
}

func TestHandler_DeletePatient(t *testing.T) {
	repo := newMemRepo()
	h := NewHandler(NewService(repo))
	p := &TestPatient{ID: uuid.New(), BirthDate: day(1970, 1, 1), Gender: "male"}
	repo.byID[p.ID] = p

	c, rec := newPatientContext(http.MethodDelete, "/api/v1/patients/"+p.ID.String(), "")
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.DeletePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := repo.byID[p.ID]; ok {
		t.Error("the patient should be gone from the repository")
	}
}
