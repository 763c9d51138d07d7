package taskw

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// task is one record of a Taskwarrior data file. Attrs holds every
// attribute verbatim so unknown ones survive a rewrite.
type task struct {
	Attrs map[string]string
}

func (t task) UUID() string    { return t.Attrs["uuid"] }
func (t task) Project() string { return t.Attrs["project"] }
func (t task) Status() string  { return t.Attrs["status"] }

func (t task) time(key string) (time.Time, bool) {
	v, ok := t.Attrs[key]
	if !ok || v == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	// Older exports used the basic ISO form.
	if ts, err := time.Parse("20060102T150405Z", v); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

func (t task) setTime(key string, ts time.Time) {
	t.Attrs[key] = strconv.FormatInt(ts.Unix(), 10)
}

// annotations returns annotation texts ordered by their timestamps.
func (t task) annotations() []string {
	var keys []string
	for k := range t.Attrs {
		if strings.HasPrefix(k, "annotation_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	texts := make([]string, 0, len(keys))
	for _, k := range keys {
		texts = append(texts, t.Attrs[k])
	}
	return texts
}

// The FF4 data format encodes one task per line:
//
//	[key:"value" key:"value" ...]
//
// with "[", "]" and '"' inside values written as &open;, &close; and
// &dquot;.

var ff4Encoder = strings.NewReplacer(`"`, "&dquot;", "[", "&open;", "]", "&close;", "\\", `\\`, "\n", " ")
var ff4Decoder = strings.NewReplacer("&dquot;", `"`, "&open;", "[", "&close;", "]", `\\`, "\\")

func parseLine(line string) (task, error) {
	t := task{Attrs: map[string]string{}}
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return t, fmt.Errorf("not a task line")
	}
	body := line[1 : len(line)-1]

	for len(body) > 0 {
		colon := strings.Index(body, `:"`)
		if colon < 0 {
			return t, fmt.Errorf("malformed attribute near %q", body)
		}
		key := strings.TrimSpace(body[:colon])
		rest := body[colon+2:]
		end := strings.Index(rest, `"`)
		if end < 0 {
			return t, fmt.Errorf("unterminated value for %q", key)
		}
		t.Attrs[key] = ff4Decoder.Replace(rest[:end])
		body = strings.TrimLeft(rest[end+1:], " ")
	}
	if t.UUID() == "" {
		return t, fmt.Errorf("task without uuid")
	}
	return t, nil
}

func formatTask(t task) string {
	keys := make([]string, 0, len(t.Attrs))
	for k := range t.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("[")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, `%s:"%s"`, k, ff4Encoder.Replace(t.Attrs[k]))
	}
	b.WriteString("]")
	return b.String()
}

func readTasks(path string) ([]task, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open task data: %w", err)
	}
	defer f.Close()

	var tasks []task
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		t, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		tasks = append(tasks, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read task data: %w", err)
	}
	return tasks, nil
}
