package importer

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"stackerbuild.io/bomsync/errors"
	"stackerbuild.io/bomsync/pkg/fossy"
)

const helloSum = "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"

// fakeFossy keeps the uploads of one FOSSology folder.
type fakeFossy struct {
	t   *testing.T
	mux *http.ServeMux

	mu          sync.Mutex
	uploads     []fossy.Upload
	posted      []http.Header
	urls        []map[string]string
	scheduled   []string
	jobStatus   string
	uploadQuery []string
}

func newFakeFossy(t *testing.T) (*fakeFossy, *fossy.Client) {
	t.Helper()

	f := &fakeFossy{t: t, mux: http.NewServeMux(), jobStatus: fossy.JobCompleted}

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	f.routes()

	fc, err := fossy.New(fossy.Options{URL: srv.URL, Token: "tok"})
	if err != nil {
		t.Fatal(err)
	}

	return f, fc
}

func (f *fakeFossy) routes() {
	t := f.t

	f.mux.HandleFunc("/uploads", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method == http.MethodGet {
			name := r.URL.Query().Get("name")
			f.uploadQuery = append(f.uploadQuery, name)

			found := []fossy.Upload{}
			for _, up := range f.uploads {
				if name == "" || up.UploadName == name {
					found = append(found, up)
				}
			}

			w.Header().Set("X-Total-Pages", "1")
			writeJSON(t, w, http.StatusOK, found)

			return
		}

		f.posted = append(f.posted, r.Header.Clone())

		if r.Header.Get("uploadType") == "url" {
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Error(err)
			}

			f.urls = append(f.urls, body)
		} else if _, _, err := r.FormFile("fileInput"); err != nil {
			t.Error(err)
		}

		writeJSON(t, w, http.StatusCreated, map[string]any{"code": 201, "message": 100 + len(f.posted), "type": "INFO"})
	})
	f.mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method == http.MethodPost {
			f.scheduled = append(f.scheduled, r.Header.Get("uploadId"))
			writeJSON(t, w, http.StatusCreated, map[string]any{"code": 201, "message": "7", "type": "INFO"})

			return
		}

		writeJSON(t, w, http.StatusOK, []fossy.Job{
			{ID: 7, Name: "ojo", Status: fossy.JobCompleted},
			{ID: 8, Name: "nomos", Status: f.jobStatus},
		})
	})
	f.mux.HandleFunc("/uploads/5/licenses/histogram", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []fossy.LicenseCount{{ID: 1, Name: "Apache-2.0", ScannerCount: 12}})
	})
	f.mux.HandleFunc("/uploads/5/copyrights", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []fossy.Copyright{
			{Content: "Copyright 2020 Acme"},
			{Content: "Copyright 2021 Acme Corp"},
		})
	})
}

func packageDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	for name, content := range map[string]string{"hello.txt": "hello\n", "other.txt": "other\n"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	return dir
}

func TestUploadName(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.com/dl/widget-1.0-sources.jar", "widget-1.0-sources"},
		{"https://example.com/dl/zlib-1.2.13.tar.gz?mirror=1", "zlib-1.2.13.tar"},
		{"https://example.com/dl/README", "README"},
	}

	for _, tc := range cases {
		got, err := UploadName(tc.url)
		if err != nil {
			t.Fatalf("UploadName(%q): %v", tc.url, err)
		}

		if got != tc.want {
			t.Errorf("UploadName(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}

	if _, err := UploadName("https://example.com/"); !stderrors.Is(err, errors.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestUploadFilesSkipExisting(t *testing.T) {
	f, fc := newFakeFossy(t)
	f.uploads = []fossy.Upload{{ID: 1, UploadName: "hello.txt", Hash: fossy.Hash{SHA256: strings.ToUpper(helloSum)}}}

	got, err := UploadFiles(context.Background(), fc, packageDir(t), UploadOptions{
		FolderID: 3, SkipExisting: true, Wait: true, MaxAttempts: 2, Interval: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]Uploaded{{Source: "other.txt", UploadID: 101, JobID: 7}}, got); diff != "" {
		t.Errorf("uploaded (-want +got):\n%s", diff)
	}

	if len(f.posted) != 1 {
		t.Fatalf("posted %d uploads, want 1", len(f.posted))
	}

	h := f.posted[0]
	if h.Get("folderId") != "3" || h.Get("uploadType") != "file" || h.Get("uploadDescription") != "other.txt" {
		t.Errorf("upload headers = %v", h)
	}

	if diff := cmp.Diff([]string{"101"}, f.scheduled); diff != "" {
		t.Errorf("scheduled (-want +got):\n%s", diff)
	}
}

func TestUploadURLs(t *testing.T) {
	f, fc := newFakeFossy(t)

	list := filepath.Join(t.TempDir(), "urls.txt")
	content := "# sources\nhttps://example.com/dl/widget-1.0-sources.jar\n\n  https://example.com/dl/zlib-1.2.13.tar.gz  \n"

	if err := os.WriteFile(list, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := UploadURLs(context.Background(), fc, list, UploadOptions{FolderID: 4})
	if err != nil {
		t.Fatal(err)
	}

	want := []Uploaded{
		{Source: "https://example.com/dl/widget-1.0-sources.jar", UploadID: 101, JobID: 7},
		{Source: "https://example.com/dl/zlib-1.2.13.tar.gz", UploadID: 102, JobID: 7},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("uploaded (-want +got):\n%s", diff)
	}

	wantBodies := []map[string]string{
		{"url": "https://example.com/dl/widget-1.0-sources.jar", "name": "widget-1.0-sources"},
		{"url": "https://example.com/dl/zlib-1.2.13.tar.gz", "name": "zlib-1.2.13.tar"},
	}
	if diff := cmp.Diff(wantBodies, f.urls); diff != "" {
		t.Errorf("url uploads (-want +got):\n%s", diff)
	}
}

func TestUploadURLsMissingFile(t *testing.T) {
	_, fc := newFakeFossy(t)

	_, err := UploadURLs(context.Background(), fc, filepath.Join(t.TempDir(), "nope.txt"), UploadOptions{})
	if !stderrors.Is(err, errors.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestWaitForJobsFailed(t *testing.T) {
	f, fc := newFakeFossy(t)
	f.jobStatus = fossy.JobFailed

	err := WaitForJobs(context.Background(), fc, 5, 3, time.Millisecond)
	if !stderrors.Is(err, errors.ErrRemoteFailure) {
		t.Errorf("err = %v, want ErrRemoteFailure", err)
	}
}

func TestVerifyUploads(t *testing.T) {
	f, fc := newFakeFossy(t)
	f.uploads = []fossy.Upload{{ID: 1, UploadName: "hello.txt", Hash: fossy.Hash{SHA256: helloSum}}}

	dir := packageDir(t)
	report := filepath.Join(t.TempDir(), "missing.spdx.json")

	missing, err := VerifyUploads(context.Background(), fc, dir, 3, report)
	if !stderrors.Is(err, errors.ErrIncomplete) {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}

	if len(missing) != 1 || missing[0].Path != filepath.Join(dir, "other.txt") {
		t.Errorf("missing = %v", missing)
	}

	if _, err := os.Stat(report); err != nil {
		t.Error(err)
	}
}

func TestFolderFindings(t *testing.T) {
	f, fc := newFakeFossy(t)
	f.uploads = []fossy.Upload{
		{ID: 5, UploadName: "widget-1.0-sources.jar"},
		{ID: 6, UploadName: "zlib-1.2.13.tar.gz"},
	}

	got, err := FolderFindings(context.Background(), fc, 3, "", "widget-1.0-sources.jar")
	if err != nil {
		t.Fatal(err)
	}

	want := []Findings{{
		Upload:     fossy.Upload{ID: 5, UploadName: "widget-1.0-sources.jar"},
		Licenses:   []fossy.LicenseCount{{ID: 1, Name: "Apache-2.0", ScannerCount: 12}},
		Copyrights: "Copyright 2020 Acme, Copyright 2021 Acme Corp",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("findings (-want +got):\n%s", diff)
	}
}

func TestNewMavenSource(t *testing.T) {
	got, err := NewMavenSource("com.acme:widget:1.0", "https://repo.example.com/com/acme/widget/1.0")
	if err != nil {
		t.Fatal(err)
	}

	want := &MavenSource{
		Purl:     "pkg:maven/com.acme/widget@1.0",
		FileName: "widget-1.0-sources.jar",
		URL:      "https://repo.example.com/com/acme/widget/1.0/widget-1.0-sources.jar",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("source (-want +got):\n%s", diff)
	}

	if _, err := NewMavenSource("com.acme", ""); !stderrors.Is(err, errors.ErrInvalidDoc) {
		t.Errorf("err = %v, want ErrInvalidDoc", err)
	}
}

//nolint:funlen
func TestMavenToFossy(t *testing.T) {
	jars := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/com/acme/widget/1.0/widget-1.0-sources.jar" {
			_, _ = w.Write([]byte("PK"))

			return
		}

		http.NotFound(w, r)
	}))
	t.Cleanup(jars.Close)

	h := newFakeHub(t)
	h.bom = []map[string]any{
		{"componentName": "widget", "componentVersionName": "1.0", "origins": []any{
			map[string]any{"name": "maven", "origin": h.url("/api/origins/m1")},
		}},
		{"componentName": "gone", "componentVersionName": "2.0", "origins": []any{
			map[string]any{"name": "maven", "origin": h.url("/api/origins/m2")},
		}},
		{"componentName": "lodash", "componentVersionName": "4.0", "origins": []any{
			map[string]any{"name": "npmjs", "origin": h.url("/api/origins/n1")},
		}},
		{"componentName": "skipme", "componentVersionName": "1.0", "ignored": true},
		{"componentName": "broken", "componentVersionName": "0.1", "origins": []any{
			map[string]any{"name": "maven", "origin": h.url("/api/origins/m3")},
		}},
	}

	origins := map[string]map[string]any{
		"m1": {"originName": "maven", "originId": "com.acme:widget:1.0", "originUrl": jars.URL + "/com/acme/widget/1.0",
			"_meta": meta(h.url("/api/origins/m1"), linkOriginCopyrights, h.url("/api/origins/m1/copyrights"))},
		"m2": {"originName": "maven", "originId": "com.acme:gone:2.0", "originUrl": jars.URL + "/com/acme/gone/2.0/",
			"_meta": meta(h.url("/api/origins/m2"))},
		"n1": {"originName": "npmjs", "originId": "lodash/4.0", "_meta": meta(h.url("/api/origins/n1"))},
		"m3": {"originName": "maven", "originId": "com.acme", "_meta": meta(h.url("/api/origins/m3"))},
	}

	h.mux.HandleFunc("/api/origins/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/origins/")

		if r.Method == http.MethodPost {
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Error(err)
			}

			h.mu.Lock()
			h.copyrights[id] = body["copyright"]
			h.mu.Unlock()

			w.WriteHeader(http.StatusCreated)

			return
		}

		origin, ok := origins[id]
		if !ok {
			http.NotFound(w, r)

			return
		}

		writeJSON(t, w, http.StatusOK, origin)
	})

	f, fc := newFakeFossy(t)
	f.uploads = []fossy.Upload{{ID: 5, UploadName: "widget-1.0-sources.jar"}}

	got, err := MavenToFossy(context.Background(), h.client(), fc, MavenOptions{
		Project: "my app", Version: "1.0", FolderID: 3, Upload: true, UpdateCopyright: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	want := &MavenOverview{
		Total:    5,
		NotFound: []string{"gone:2.0"},
		Bad:      []string{"broken:0.1"},
		Good:     []string{"widget:1.0"},
		Ignored:  []string{"skipme:1.0"},
		NotMaven: []string{"lodash:4.0"},
		Findings: map[string][]Findings{
			"widget:1.0": {{
				Upload:     fossy.Upload{ID: 5, UploadName: "widget-1.0-sources.jar"},
				Licenses:   []fossy.LicenseCount{{ID: 1, Name: "Apache-2.0", ScannerCount: 12}},
				Copyrights: "Copyright 2020 Acme, Copyright 2021 Acme Corp",
			}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overview (-want +got):\n%s", diff)
	}

	wantURL := "https" + strings.TrimPrefix(jars.URL, "http") + "/com/acme/widget/1.0/widget-1.0-sources.jar"
	if len(f.urls) != 1 || f.urls[0]["url"] != wantURL || f.urls[0]["name"] != "widget-1.0-sources.jar" {
		t.Errorf("url uploads = %v", f.urls)
	}

	if diff := cmp.Diff([]string{strconv.Itoa(101)}, f.scheduled); diff != "" {
		t.Errorf("scheduled (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(map[string]string{"m1/copyrights": "Copyright 2020 Acme, Copyright 2021 Acme Corp"}, h.copyrights); diff != "" {
		t.Errorf("copyrights (-want +got):\n%s", diff)
	}
}
