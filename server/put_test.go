package server

import (
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const putEventICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup@example.com\r\n" +
	"DTSTAMP:20240301T000000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"DTSTART:20240304T100000Z\r\n" +
	"DTEND:20240304T103000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

const putCardVCF = "BEGIN:VCARD\r\n" +
	"VERSION:4.0\r\n" +
	"FN:Bob Ross\r\n" +
	"N:Ross;Bob;;;\r\n" +
	"END:VCARD\r\n"

func TestPutCreatesEvent(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{"Content-Type": "text/calendar; charset=utf-8"}

	w := f.do(t, "PUT", "/alice/.reminders/new.ics", putEventICS, headers)

	require.Equal(t, http.StatusCreated, w.Code)
	location := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/alice/.reminders/"))
	etag := w.Header().Get("ETag")
	assert.True(t, strings.HasPrefix(etag, `"`))

	data, err := os.ReadFile(f.remindPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "REM 2024-03-04 AT 10:00 DURATION 0:30 MSG Standup")
}

func TestPutUpdatesEvent(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{"Content-Type": "text/calendar"}
	body := strings.Replace(putEventICS, "SUMMARY:Standup", "SUMMARY:Dentist followup", 1)

	w := f.do(t, "PUT", "/alice/.reminders/"+f.eventUID, body, headers)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	// The rewrite moved the content-addressed UID, so the response
	// carries the new object URL.
	location := w.Header().Get("Location")
	require.NotEmpty(t, location)
	assert.True(t, strings.HasPrefix(location, "/alice/.reminders/"))
	assert.NotEqual(t, "/alice/.reminders/"+f.eventUID, location)

	data, err := os.ReadFile(f.remindPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "MSG Dentist followup")
	assert.NotContains(t, string(data), testEventLine)
}

func TestPutCreatesCard(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{"Content-Type": "text/vcard"}

	w := f.do(t, "PUT", "/alice/.abook/new.vcf", putCardVCF, headers)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/alice/.abook/")

	w = f.do(t, "GET", "/alice/.abook/", "", nil)
	assert.Contains(t, w.Body.String(), "FN:Bob Ross")
}

func TestPutIfMatchMismatch(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{
		"Content-Type": "text/calendar",
		"If-Match":     `"wrong"`,
	}
	w := f.do(t, "PUT", "/alice/.reminders/"+f.eventUID, putEventICS, headers)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestPutIfMatchOnMissing(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{
		"Content-Type": "text/calendar",
		"If-Match":     `"anything"`,
	}
	w := f.do(t, "PUT", "/alice/.reminders/new.ics", putEventICS, headers)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestPutIfNoneMatchStarOnExisting(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{
		"Content-Type":  "text/calendar",
		"If-None-Match": "*",
	}
	w := f.do(t, "PUT", "/alice/.reminders/"+f.eventUID, putEventICS, headers)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestPutWrongContentType(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{"Content-Type": "application/json"}
	w := f.do(t, "PUT", "/alice/.reminders/new.ics", putEventICS, headers)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestPutInvalidBody(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{"Content-Type": "text/calendar"}
	w := f.do(t, "PUT", "/alice/.reminders/new.ics", "not a calendar", headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutOnCollectionNotAllowed(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{"Content-Type": "text/calendar"}
	w := f.do(t, "PUT", "/alice/.reminders/", putEventICS, headers)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
