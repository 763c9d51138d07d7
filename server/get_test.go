package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remdav/storage"
)

func TestGetCalendarObject(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/alice/.reminders/"+f.eventUID, "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, storage.ETag(f.eventUID), w.Header().Get("ETag"))
	assert.NotEmpty(t, w.Header().Get("Last-Modified"))
	body := w.Body.String()
	assert.Contains(t, body, "BEGIN:VEVENT")
	assert.Contains(t, body, "SUMMARY:Dentist")
}

func TestGetObjectNotModified(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{"If-None-Match": storage.ETag(f.eventUID)}
	w := f.do(t, "GET", "/alice/.reminders/"+f.eventUID, "", headers)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestGetCardObject(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/alice/.abook/"+f.cardUID, "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/vcard; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "FN:Jane Doe")
}

func TestGetMissingObject(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/alice/.reminders/nope@remdav", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCalendarCollectionExport(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/alice/.reminders/", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:Dentist")
}

func TestGetAddressbookCollectionExport(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/alice/.abook/", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/vcard; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "BEGIN:VCARD")
}

func TestGetPrincipalNotAllowed(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/alice/", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHeadObject(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "HEAD", "/alice/.reminders/"+f.eventUID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, storage.ETag(f.eventUID), w.Header().Get("ETag"))
}
