package server

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remdav/server/auth"
	"remdav/storage"
	"remdav/storage/abook"
	"remdav/storage/remind"
)

const (
	testEventLine = "REM 2024-03-01 AT 10:00 MSG Dentist"
	testCardName  = "Jane Doe"
)

// fixture wires a handler over real adapters in a temp directory.
type fixture struct {
	h          *Handler
	dir        string
	remindPath string
	eventUID   string
	cardUID    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	remindPath := filepath.Join(dir, ".reminders")
	require.NoError(t, os.WriteFile(remindPath, []byte(testEventLine+"\n"), 0o644))

	abookPath := filepath.Join(dir, ".abook")
	abookData := "[format]\nprogram=abook\nversion=0.6.1\n\n[0]\nname=" + testCardName + "\nemail=jane@example.org\n"
	require.NoError(t, os.WriteFile(abookPath, []byte(abookData), 0o600))

	registry := storage.NewRegistry(
		remind.New(remindPath, time.UTC, dir),
		abook.New(abookPath, dir),
	)

	eventSum := sha1.Sum([]byte(remindPath + ":" + testEventLine))
	cardSum := sha1.Sum([]byte(testCardName))

	return &fixture{
		h:          NewHandler("/", "remdav", registry),
		dir:        dir,
		remindPath: remindPath,
		eventUID:   hex.EncodeToString(eventSum[:]) + "@remdav",
		cardUID:    hex.EncodeToString(cardSum[:]) + "@remdav",
	}
}

// do runs a request through the handler as the principal "alice".
func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	ctx := context.WithValue(req.Context(), auth.PrincipalContextKey, &auth.Principal{ID: "alice"})
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, req.WithContext(ctx))
	return w
}

func TestParsePath(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		want Resource
	}{
		{
			name: "service root",
			path: "/",
			want: Resource{ResourceType: storage.ResourceServiceRoot},
		},
		{
			name: "principal",
			path: "/alice",
			want: Resource{UserID: "alice", ResourceType: storage.ResourcePrincipal},
		},
		{
			name: "collection",
			path: "/alice/.reminders/",
			want: Resource{
				UserID:         "alice",
				CollectionPath: ".reminders",
				ResourceType:   storage.ResourceCollection,
			},
		},
		{
			name: "object",
			path: "/alice/.reminders/" + f.eventUID,
			want: Resource{
				UserID:         "alice",
				CollectionPath: ".reminders",
				ObjectID:       f.eventUID,
				ResourceType:   storage.ResourceObject,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.h.parsePath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := f.h.parsePath("/alice/unknown/thing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestParseDepth(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		header string
		want   int
	}{
		{"", 0},
		{"0", 0},
		{"1", 1},
		{"2", 1}, // capped at MaxDepth
		{"infinity", 1},
		{"garbage", 0},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("PROPFIND", "/alice/", nil)
		if tt.header != "" {
			req.Header.Set("Depth", tt.header)
		}
		assert.Equal(t, tt.want, f.h.parseDepth(req), "Depth: %q", tt.header)
	}
}

func TestHrefs(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "/alice/", f.h.principalPath("alice"))
	assert.Equal(t, "/alice/.reminders/", f.h.collectionHref("alice", ".reminders"))
	assert.Equal(t, "/alice/.reminders/x", f.h.objectHref("alice", ".reminders", "x"))
}

func TestHandlerPrefixNormalization(t *testing.T) {
	h := NewHandler("dav", "remdav", storage.NewRegistry())
	assert.Equal(t, "/dav/", h.Prefix)
}

func TestCrossPrincipalAccessDenied(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "PROPFIND", "/bob/.reminders/", "", map[string]string{"Depth": "0"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnknownCollection(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "PROPFIND", "/alice/unknown/thing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnsupportedMethod(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "PATCH", "/alice/.reminders/", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestOptions(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodOptions, "/alice/.reminders/", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	dav := w.Header().Get("DAV")
	assert.Contains(t, dav, "calendar-access")
	assert.Contains(t, dav, "addressbook")
	assert.Contains(t, w.Header().Get("Allow"), "PROPFIND")
}

func TestMkcolForbidden(t *testing.T) {
	f := newFixture(t)
	for _, method := range []string{"MKCOL", "MKCALENDAR"} {
		w := f.do(t, method, "/alice/.reminders/", "", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, method)
	}
}

func TestMkcolNewCollectionForbidden(t *testing.T) {
	f := newFixture(t)
	// The target does not exist in the registry; the refusal must not
	// depend on path resolution.
	for _, method := range []string{"MKCOL", "MKCALENDAR"} {
		w := f.do(t, method, "/alice/newcal/", "", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, method)
	}
}

func TestHttpStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, httpStatus(storage.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, httpStatus(storage.ErrInvalidInput))
	assert.Equal(t, http.StatusPreconditionFailed, httpStatus(storage.ErrConflict))
	assert.Equal(t, http.StatusForbidden, httpStatus(storage.ErrUnsupported))
	assert.Equal(t, http.StatusInternalServerError, httpStatus(assert.AnError))
}
