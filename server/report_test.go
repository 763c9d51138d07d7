package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportCalendarMultiget(t *testing.T) {
	f := newFixture(t)
	body := `<?xml version="1.0" encoding="utf-8"?>
<c:calendar-multiget xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:getetag/>
    <c:calendar-data/>
  </d:prop>
  <d:href>/alice/.reminders/` + f.eventUID + `</d:href>
</c:calendar-multiget>`

	w := f.do(t, "REPORT", "/alice/.reminders/", body, nil)

	require.Equal(t, http.StatusMultiStatus, w.Code)
	out := w.Body.String()
	assert.Contains(t, out, "<d:href>/alice/.reminders/"+f.eventUID+"</d:href>")
	assert.Contains(t, out, `<d:getetag>&quot;`+f.eventUID+`&quot;</d:getetag>`)
	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "SUMMARY:Dentist")
}

func TestReportCalendarMultigetMissingHref(t *testing.T) {
	f := newFixture(t)
	body := `<?xml version="1.0" encoding="utf-8"?>
<c:calendar-multiget xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop><d:getetag/></d:prop>
  <d:href>/alice/.reminders/` + f.eventUID + `</d:href>
  <d:href>/alice/.reminders/missing@remdav</d:href>
</c:calendar-multiget>`

	w := f.do(t, "REPORT", "/alice/.reminders/", body, nil)

	require.Equal(t, http.StatusMultiStatus, w.Code)
	out := w.Body.String()
	assert.Equal(t, 2, strings.Count(out, "<d:response>"))
	assert.Contains(t, out, "HTTP/1.1 404 Not Found")
	assert.Contains(t, out, "<d:href>/alice/.reminders/missing@remdav</d:href>")
}

func TestReportCalendarQueryTimeRange(t *testing.T) {
	f := newFixture(t)
	matching := `<?xml version="1.0" encoding="utf-8"?>
<c:calendar-query xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop><d:getetag/><c:calendar-data/></d:prop>
  <c:filter>
    <c:comp-filter name="VCALENDAR">
      <c:comp-filter name="VEVENT">
        <c:time-range start="20240301T000000Z" end="20240302T000000Z"/>
      </c:comp-filter>
    </c:comp-filter>
  </c:filter>
</c:calendar-query>`

	w := f.do(t, "REPORT", "/alice/.reminders/", matching, nil)
	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Contains(t, w.Body.String(), "SUMMARY:Dentist")

	outside := strings.Replace(matching, "20240301T000000Z", "20250301T000000Z", 1)
	outside = strings.Replace(outside, "20240302T000000Z", "20250302T000000Z", 1)
	w = f.do(t, "REPORT", "/alice/.reminders/", outside, nil)
	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.NotContains(t, w.Body.String(), "SUMMARY:Dentist")
}

func TestReportCalendarQueryOnObject(t *testing.T) {
	f := newFixture(t)
	body := `<?xml version="1.0" encoding="utf-8"?>
<c:calendar-query xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop><d:getetag/></d:prop>
</c:calendar-query>`

	w := f.do(t, "REPORT", "/alice/.reminders/"+f.eventUID, body, nil)
	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Contains(t, w.Body.String(), f.eventUID)
}

func TestReportAddressbookMultiget(t *testing.T) {
	f := newFixture(t)
	body := `<?xml version="1.0" encoding="utf-8"?>
<c:addressbook-multiget xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:carddav">
  <d:prop>
    <d:getetag/>
    <c:address-data/>
  </d:prop>
  <d:href>/alice/.abook/` + f.cardUID + `</d:href>
</c:addressbook-multiget>`

	w := f.do(t, "REPORT", "/alice/.abook/", body, nil)

	require.Equal(t, http.StatusMultiStatus, w.Code)
	out := w.Body.String()
	assert.Contains(t, out, "BEGIN:VCARD")
	assert.Contains(t, out, "FN:Jane Doe")
}

func TestReportAddressbookQuery(t *testing.T) {
	f := newFixture(t)
	body := `<?xml version="1.0" encoding="utf-8"?>
<c:addressbook-query xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:carddav">
  <d:prop><d:getetag/><c:address-data/></d:prop>
  <c:filter>
    <c:prop-filter name="FN">
      <c:text-match match-type="contains">jane</c:text-match>
    </c:prop-filter>
  </c:filter>
</c:addressbook-query>`

	w := f.do(t, "REPORT", "/alice/.abook/", body, nil)
	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Contains(t, w.Body.String(), "FN:Jane Doe")

	noMatch := strings.Replace(body, ">jane<", ">nobody<", 1)
	w = f.do(t, "REPORT", "/alice/.abook/", noMatch, nil)
	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.NotContains(t, w.Body.String(), "FN:Jane Doe")
}

func TestReportUnsupportedType(t *testing.T) {
	f := newFixture(t)
	body := `<d:sync-collection xmlns:d="DAV:"/>`

	w := f.do(t, "REPORT", "/alice/.reminders/", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportInvalidBody(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "REPORT", "/alice/.reminders/", "<broken", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
