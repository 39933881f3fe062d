package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/suffus/auth0/cmd/internal/resource"
)

func decodeList(t *testing.T, body []byte) (items []resource.Entry, total int) {
	t.Helper()
	var env struct {
		Items []resource.Entry `json:"items"`
		Total int              `json:"total"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode list: %v (body %s)", err, body)
	}
	return env.Items, env.Total
}

func TestCatalogCRUD(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t)
	bearer := "Bearer " + s.AccessToken

	// Create (write: device code).
	rec := e.do(t, http.MethodPost, "/locations", deviceCode,
		`{"name":"Server Room","description":"rack A"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created resource.Entry
	decodeItem(t, rec, &created)
	if created.Name != "server room" {
		t.Fatalf("created: %+v", created)
	}

	// Read list and single (bearer).
	rec = e.do(t, http.MethodGet, "/locations", bearer, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d body %s", rec.Code, rec.Body.String())
	}
	items, total := decodeList(t, rec.Body.Bytes())
	if total != 1 || len(items) != 1 {
		t.Fatalf("list: total %d items %d", total, len(items))
	}

	rec = e.do(t, http.MethodGet, "/locations/"+created.ID, bearer, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d body %s", rec.Code, rec.Body.String())
	}

	// Update.
	rec = e.do(t, http.MethodPut, "/locations/"+created.ID, deviceCode, `{"description":"rack B"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}
	var updated resource.Entry
	decodeItem(t, rec, &updated)
	if updated.Description != "rack B" {
		t.Fatalf("updated: %+v", updated)
	}

	// Delete, then the entry is gone from reads.
	rec = e.do(t, http.MethodDelete, "/locations/"+created.ID, deviceCode, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodGet, "/locations/"+created.ID, bearer, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodGet, "/locations", bearer, "")
	if _, total := decodeList(t, rec.Body.Bytes()); total != 0 {
		t.Fatalf("list after delete: total %d", total)
	}
}

func TestCatalogWritesRejectBearer(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t)
	bearer := "Bearer " + s.AccessToken

	cases := []struct{ method, path string }{
		{http.MethodPost, "/locations"},
		{http.MethodPut, "/locations/some-id"},
		{http.MethodDelete, "/locations/some-id"},
		{http.MethodPost, "/user-statuses"},
		{http.MethodPost, "/actions"},
	}
	for _, tc := range cases {
		rec := e.do(t, tc.method, tc.path, bearer, `{"name":"x"}`)
		if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "device_code_required" {
			t.Fatalf("%s %s with bearer: status %d body %s", tc.method, tc.path, rec.Code, rec.Body.String())
		}
	}
}

func TestCatalogReadsRejectDeviceCodeless(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/locations", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated read: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestCatalogConflict(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/user-statuses", deviceCode, `{"name":"on duty"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodPost, "/user-statuses", deviceCode, `{"name":"On Duty"}`)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "conflict" {
		t.Fatalf("duplicate: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestCatalogValidation(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/actions", deviceCode, `{"name":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty name: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodPost, "/actions", deviceCode, `{"name":"x","bogus":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestActivityForOtherUser(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t)
	bearer := "Bearer " + s.AccessToken

	rec := e.do(t, http.MethodPost, "/auth/action/enter", deviceCode, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("action: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/user-activity/u1", bearer, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("activity by user: status %d body %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Items []resource.Activity `json:"items"`
		Total int                 `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if env.Total != 1 || len(env.Items) != 1 || env.Items[0].UserID != "u1" {
		t.Fatalf("activity: %+v", env)
	}

	rec = e.do(t, http.MethodGet, "/user-activity/nobody", bearer, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestActivityLimitValidation(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t)

	rec := e.do(t, http.MethodGet, "/user-activity?limit=0", "Bearer "+s.AccessToken, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("limit=0: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodGet, "/user-activity?limit=10", "Bearer "+s.AccessToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("limit=10: status %d body %s", rec.Code, rec.Body.String())
	}
}
