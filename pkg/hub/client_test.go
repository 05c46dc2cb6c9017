package hub

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"stackerbuild.io/bomsync/errors"
)

const (
	testToken  = "api-token"
	testBearer = "bearer-1"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode: %v", err)
	}
}

// newServer returns a hub answering the authentication call. Other handlers
// require the bearer token.
func newServer(t *testing.T) (*httptest.Server, *http.ServeMux) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tokens/authenticate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Authorization") != "token "+testToken {
			writeJSON(t, w, http.StatusUnauthorized, map[string]string{"errorMessage": "bad token"})

			return
		}

		writeJSON(t, w, http.StatusOK, map[string]any{"bearerToken": testBearer, "expiresInMilliseconds": 7200000})
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tokens/authenticate" && r.Header.Get("Authorization") != "Bearer "+testBearer {
			writeJSON(t, w, http.StatusUnauthorized, map[string]string{"errorMessage": "not authenticated"})

			return
		}

		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return srv, mux
}

func newClient(t *testing.T, srv *httptest.Server, opts Options) *Client {
	t.Helper()

	opts.BaseURL = srv.URL
	opts.Token = testToken

	c, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatal(err)
	}

	return c
}

// pagedHandler serves items with limit/offset paging and counts requests.
func pagedHandler(t *testing.T, items []map[string]any, calls *int) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		*calls++

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		end := offset + limit
		if end > len(items) {
			end = len(items)
		}

		page := []map[string]any{}
		if offset < len(items) {
			page = items[offset:end]
		}

		writeJSON(t, w, http.StatusOK, map[string]any{"totalCount": len(items), "items": page})
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(Options{Token: "x"}); !stderrors.Is(err, errors.ErrConfig) {
		t.Errorf("missing url: err = %v", err)
	}

	if _, err := New(Options{BaseURL: "https://hub"}); !stderrors.Is(err, errors.ErrConfig) {
		t.Errorf("missing token: err = %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	srv, _ := newServer(t)

	c, err := New(Options{BaseURL: srv.URL, Token: "wrong"})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Authenticate(context.Background()); !stderrors.Is(err, errors.ErrRemote) {
		t.Errorf("err = %v, want ErrRemote", err)
	}

	newClient(t, srv, Options{})
}

func TestFindProjectVersion(t *testing.T) {
	srv, mux := newServer(t)

	projectCalls, versionCalls := 0, 0

	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "name:app" {
			t.Errorf("q = %q", got)
		}

		pagedHandler(t, []map[string]any{
			{"name": "app-extras"},
			{"name": "app", "_meta": map[string]any{
				"href":  srv.URL + "/api/projects/1",
				"links": []map[string]string{{"rel": "versions", "href": srv.URL + "/api/projects/1/versions"}},
			}},
			{"name": "my-app"},
		}, &projectCalls)(w, r)
	})
	mux.HandleFunc("/api/projects/1/versions", pagedHandler(t, []map[string]any{
		{"versionName": "1.0.1"},
		{"versionName": "1.0", "_meta": map[string]any{"href": srv.URL + "/api/projects/1/versions/2"}},
	}, &versionCalls))

	c := newClient(t, srv, Options{PageSize: 2})

	p, v, err := c.FindProjectVersion(context.Background(), "app", "1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Name != "app" || v.Meta.Href != srv.URL+"/api/projects/1/versions/2" {
		t.Errorf("got %s %+v", p.Name, v)
	}

	if projectCalls != 2 {
		t.Errorf("project pages = %d, want 2", projectCalls)
	}

	if _, _, err := c.FindProjectVersion(context.Background(), "app", "2.0"); !stderrors.Is(err, errors.ErrNotFound) ||
		!stderrors.Is(err, errors.ErrConfig) {
		t.Errorf("missing version: err = %v", err)
	}
}

func TestFindProjectAmbiguous(t *testing.T) {
	srv, mux := newServer(t)

	calls := 0
	mux.HandleFunc("/api/projects", pagedHandler(t, []map[string]any{{"name": "app"}, {"name": "app"}}, &calls))

	c := newClient(t, srv, Options{})

	_, err := c.FindProject(context.Background(), "app")
	if !stderrors.Is(err, errors.ErrAmbiguous) || !stderrors.Is(err, errors.ErrConfig) {
		t.Errorf("err = %v, want ErrAmbiguous", err)
	}
}

func TestSearchIsBounded(t *testing.T) {
	srv, mux := newServer(t)

	items := []map[string]any{}
	for i := 0; i < 10; i++ {
		items = append(items, map[string]any{"name": fmt.Sprintf("lib%d", i)})
	}

	calls := 0
	mux.HandleFunc("/api/components", pagedHandler(t, items, &calls))

	c := newClient(t, srv, Options{PageSize: 2, MaxSearchResults: 3})

	comps, err := c.SearchComponents(context.Background(), "lib")
	if err != nil {
		t.Fatal(err)
	}

	if len(comps) != 3 || calls != 2 {
		t.Errorf("components = %d, calls = %d", len(comps), calls)
	}
}

func TestLookupPurl(t *testing.T) {
	srv, mux := newServer(t)

	mux.HandleFunc("/api/search/kb-purl-component", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("purl") != "pkg:npm/left-pad@1.3.0" {
			writeJSON(t, w, http.StatusOK, map[string]any{"totalCount": 0, "items": []any{}})

			return
		}

		writeJSON(t, w, http.StatusOK, map[string]any{"totalCount": 1, "items": []map[string]string{{
			"componentName": "left-pad",
			"versionName":   "1.3.0",
			"component":     "/api/components/c1",
			"version":       "/api/components/c1/versions/v1",
		}}})
	})

	c := newClient(t, srv, Options{})

	got, err := c.LookupPurl(context.Background(), "pkg:npm/left-pad@1.3.0")
	if err != nil {
		t.Fatal(err)
	}

	want := &KBComponent{
		ComponentName: "left-pad",
		VersionName:   "1.3.0",
		Component:     "/api/components/c1",
		Version:       "/api/components/c1/versions/v1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LookupPurl() (-want +got)\n%s", diff)
	}

	miss, err := c.LookupPurl(context.Background(), "pkg:npm/unknown@1")
	if err != nil || miss != nil {
		t.Errorf("miss = %v, %v", miss, err)
	}
}

func TestCreateComponent(t *testing.T) {
	srv, mux := newServer(t)

	var body componentRequest

	mux.HandleFunc("/api/components", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}

		w.Header().Set("Location", srv.URL+"/api/components/c9")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/api/components/c9/versions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"totalCount": 1, "items": []map[string]any{{
			"versionName": "2.1",
			"_meta":       map[string]string{"href": srv.URL + "/api/components/c9/versions/v1"},
		}}})
	})

	c := newClient(t, srv, Options{})

	href, err := c.CreateComponent(context.Background(), "internal-tool", "2.1", "/api/licenses/l1")
	if err != nil {
		t.Fatal(err)
	}

	if href != srv.URL+"/api/components/c9/versions/v1" {
		t.Errorf("href = %q", href)
	}

	want := componentRequest{
		Name:    "internal-tool",
		Version: versionRequest{VersionName: "2.1", License: licenseRef{License: "/api/licenses/l1"}},
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("request (-want +got)\n%s", diff)
	}
}

func TestCreateVersion(t *testing.T) {
	srv, mux := newServer(t)

	mux.HandleFunc("/api/components/c1/versions", func(w http.ResponseWriter, r *http.Request) {
		var body versionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}

		if body.VersionName == "1.0" {
			writeJSON(t, w, http.StatusPreconditionFailed, map[string]string{"errorMessage": "exists"})

			return
		}

		w.Header().Add("Link", fmt.Sprintf(`<%s/api/components/c1>; rel="component", <%s/api/components/c1/versions/v2>; rel="self"`,
			srv.URL, srv.URL))
		w.WriteHeader(http.StatusCreated)
	})

	c := newClient(t, srv, Options{})

	href, err := c.CreateVersion(context.Background(), srv.URL+"/api/components/c1", "2.0", "/api/licenses/l1")
	if err != nil {
		t.Fatal(err)
	}

	if href != srv.URL+"/api/components/c1/versions/v2" {
		t.Errorf("href = %q", href)
	}

	if _, err := c.CreateVersion(context.Background(), srv.URL+"/api/components/c1", "1.0", ""); !stderrors.Is(err, errors.ErrRemote) {
		t.Errorf("existing version: err = %v", err)
	}
}

func TestFindLicenseExact(t *testing.T) {
	srv, mux := newServer(t)

	calls := 0
	mux.HandleFunc("/api/licenses", pagedHandler(t, []map[string]any{
		{"name": "NOASSERTION2", "_meta": map[string]string{"href": "/api/licenses/2"}},
		{"name": "NOASSERTION", "_meta": map[string]string{"href": "/api/licenses/1"}},
	}, &calls))

	c := newClient(t, srv, Options{})

	href, err := c.FindLicense(context.Background(), "NOASSERTION")
	if err != nil || href != "/api/licenses/1" {
		t.Errorf("href = %q, err = %v", href, err)
	}

	if _, err := c.FindLicense(context.Background(), "noassertion"); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUploadScan(t *testing.T) {
	srv, mux := newServer(t)

	path := filepath.Join(t.TempDir(), "app.spdx.json")
	if err := os.WriteFile(path, []byte(`{"spdxVersion": "SPDX-2.3"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	mux.HandleFunc("/api/scan/data", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)

			return
		}

		if r.FormValue("versionName") == "taken" {
			w.WriteHeader(http.StatusConflict)

			return
		}

		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Error(err)

			return
		}
		defer f.Close()

		content, _ := io.ReadAll(f)

		if hdr.Filename != "app.spdx.json" || hdr.Header.Get("Content-Type") != "application/spdx" ||
			r.FormValue("projectName") != "app" || string(content) != `{"spdxVersion": "SPDX-2.3"}` {
			t.Errorf("unexpected upload %s %s %s", hdr.Filename, hdr.Header.Get("Content-Type"), r.FormValue("projectName"))
		}

		w.WriteHeader(http.StatusCreated)
	})

	c := newClient(t, srv, Options{})

	if err := c.UploadScan(context.Background(), path, "application/spdx", "app", "1.0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.UploadScan(context.Background(), path, "application/spdx", "app", "taken"); !stderrors.Is(err, errors.ErrConfig) {
		t.Errorf("conflict: err = %v, want ErrConfig", err)
	}
}

func TestFetchReport(t *testing.T) {
	srv, mux := newServer(t)

	calls := 0
	mux.HandleFunc("/api/reports/r1/contents", func(w http.ResponseWriter, r *http.Request) {
		calls++

		switch calls {
		case 1:
			writeJSON(t, w, http.StatusPreconditionFailed, apiError{ErrorCode: "{report.main.read.unfinished.report.contents}"})
		case 2:
			writeJSON(t, w, http.StatusNotFound, apiError{ErrorCode: "{report.not.found}"})
		case 3:
			writeJSON(t, w, http.StatusOK, map[string]any{"reportContent": []any{}})
		default:
			writeJSON(t, w, http.StatusPreconditionFailed, apiError{ErrorCode: "{report.main.other}"})
		}
	})

	c := newClient(t, srv, Options{})
	loc := srv.URL + "/api/reports/r1"

	if _, ready, err := c.FetchReport(context.Background(), loc); ready || err != nil {
		t.Errorf("first fetch: ready = %v, err = %v", ready, err)
	}

	if _, ready, err := c.FetchReport(context.Background(), loc); ready || err != nil {
		t.Errorf("fetch before the contents exist: ready = %v, err = %v", ready, err)
	}

	content, ready, err := c.FetchReport(context.Background(), loc)
	if !ready || err != nil || len(content) == 0 {
		t.Errorf("third fetch: ready = %v, err = %v", ready, err)
	}

	if _, _, err := c.FetchReport(context.Background(), loc); !stderrors.Is(err, errors.ErrRemote) {
		t.Errorf("fourth fetch: err = %v, want ErrRemote", err)
	}
}

func TestLinkHeader(t *testing.T) {
	values := []string{`<https://hub/api/components/1>; rel="component"`, `<https://hub/api/components/1/versions>; rel="versions"`}

	if got := linkHeader(values, "versions"); got != "https://hub/api/components/1/versions" {
		t.Errorf("versions = %q", got)
	}

	if got := linkHeader(values, "self"); got != "" {
		t.Errorf("self = %q", got)
	}
}

func TestMetaLink(t *testing.T) {
	m := Meta{Href: "/api/projects/1", Links: []Link{{Rel: "versions", Href: "/api/projects/1/versions"}}}

	if got := m.Link("versions"); got != "/api/projects/1/versions" {
		t.Errorf("Link() = %q", got)
	}

	if _, err := m.LinkOf("codelocations"); !stderrors.Is(err, errors.ErrIncomplete) {
		t.Errorf("err = %v, want ErrIncomplete", err)
	}
}
