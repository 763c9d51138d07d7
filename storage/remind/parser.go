package remind

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// entry is one parsed REM line.
type entry struct {
	// File is the absolute path of the file the line lives in.
	File string
	// Raw is the original line, used for content-addressed UIDs.
	Raw string

	Date     time.Time // date portion, midnight in the adapter timezone
	HasTime  bool      // AT clause present
	Duration time.Duration
	Interval int       // *n repeat in days, 0 = none
	Until    time.Time // zero = open ended
	Advance  int       // +n warning days
	Summary  string
	Location string
}

// fileData is the parse result of one remind file.
type fileData struct {
	Path    string
	Entries []entry
}

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// parseFiles reads the root file and every INCLUDEd file. Each file
// becomes its own collection, matching the original adapter where
// get_filesnames() returned root plus includes.
func (a *Adapter) parseFiles() ([]fileData, error) {
	seen := map[string]bool{}
	var files []fileData
	if err := a.parseFileInto(a.path, seen, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (a *Adapter) parseFileInto(path string, seen map[string]bool, files *[]fileData) error {
	if seen[path] {
		return nil
	}
	seen[path] = true

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && path == a.path {
			// Root file may not exist yet; it is created on first write.
			*files = append(*files, fileData{Path: path})
			return nil
		}
		return fmt.Errorf("open remind file: %w", err)
	}
	defer f.Close()

	data := fileData{Path: path}
	var includes []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";"):
			continue
		case strings.HasPrefix(line, "INCLUDE ") || strings.HasPrefix(line, "include "):
			inc := strings.TrimSpace(line[len("INCLUDE "):])
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(filepath.Dir(path), inc)
			}
			includes = append(includes, inc)
		case strings.HasPrefix(line, "REM ") || strings.HasPrefix(line, "rem "):
			e, err := a.parseLine(line)
			if err != nil {
				a.logger.Warn().Err(err).Str("file", path).Str("line", line).
					Msg("skipping unparseable REM line")
				continue
			}
			e.File = path
			data.Entries = append(data.Entries, e)
		default:
			// OMIT, SET, FSET and friends are remind scripting; the
			// original toolchain never round-tripped them either.
			a.logger.Debug().Str("file", path).Str("line", line).Msg("ignoring directive")
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read remind file: %w", err)
	}

	*files = append(*files, data)
	for _, inc := range includes {
		if err := a.parseFileInto(inc, seen, files); err != nil {
			return err
		}
	}
	return nil
}

// parseLine parses the declarative REM subset:
//
//	REM <date> [*<n>] [UNTIL <date>] [+<advance>] [AT hh:mm [DURATION h:mm]] MSG <body>
func (a *Adapter) parseLine(line string) (entry, error) {
	e := entry{Raw: line, Duration: time.Hour}

	rest := strings.TrimSpace(line[len("REM "):])
	msgIdx := strings.Index(rest, "MSG ")
	if msgIdx < 0 {
		return e, fmt.Errorf("missing MSG clause")
	}
	clause := strings.Fields(rest[:msgIdx])
	body := strings.TrimSpace(rest[msgIdx+len("MSG "):])
	e.Summary, e.Location = splitBody(body)

	i := 0
	date, n, err := parseDate(clause, a.tz)
	if err != nil {
		return e, err
	}
	e.Date = date
	i += n

	for i < len(clause) {
		tok := clause[i]
		switch {
		case strings.HasPrefix(tok, "*"):
			iv, err := strconv.Atoi(tok[1:])
			if err != nil || iv < 1 {
				return e, fmt.Errorf("bad repeat %q", tok)
			}
			e.Interval = iv
			i++
		case strings.HasPrefix(tok, "+"):
			adv, err := strconv.Atoi(tok[1:])
			if err != nil || adv < 0 {
				return e, fmt.Errorf("bad advance %q", tok)
			}
			e.Advance = adv
			i++
		case tok == "UNTIL":
			if i+1 >= len(clause) {
				return e, fmt.Errorf("UNTIL without date")
			}
			until, n, err := parseDate(clause[i+1:], a.tz)
			if err != nil {
				return e, fmt.Errorf("bad UNTIL date: %w", err)
			}
			e.Until = until
			i += 1 + n
		case tok == "AT":
			if i+1 >= len(clause) {
				return e, fmt.Errorf("AT without time")
			}
			hh, mm, err := parseClock(clause[i+1])
			if err != nil {
				return e, err
			}
			e.HasTime = true
			e.Date = time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), hh, mm, 0, 0, a.tz)
			i += 2
		case tok == "DURATION":
			if i+1 >= len(clause) {
				return e, fmt.Errorf("DURATION without value")
			}
			hh, mm, err := parseClock(clause[i+1])
			if err != nil {
				return e, err
			}
			e.Duration = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
			i += 2
		default:
			return e, fmt.Errorf("unsupported token %q", tok)
		}
	}
	return e, nil
}

// parseDate accepts "YYYY-MM-DD" (one token) and "Mon DD YYYY" (three
// tokens), returning the parsed date and the token count consumed.
func parseDate(tokens []string, tz *time.Location) (time.Time, int, error) {
	if len(tokens) == 0 {
		return time.Time{}, 0, fmt.Errorf("missing date")
	}
	if t, err := time.ParseInLocation("2006-01-02", tokens[0], tz); err == nil {
		return t, 1, nil
	}
	if len(tokens) >= 3 {
		month, ok := monthNames[strings.ToLower(tokens[0])]
		if ok {
			day, errD := strconv.Atoi(tokens[1])
			year, errY := strconv.Atoi(tokens[2])
			if errD == nil && errY == nil && day >= 1 && day <= 31 {
				return time.Date(year, month, day, 0, 0, 0, 0, tz), 3, nil
			}
		}
	}
	return time.Time{}, 0, fmt.Errorf("unrecognized date %q", tokens[0])
}

func parseClock(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad time %q", s)
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("bad time %q", s)
	}
	return hh, mm, nil
}

// splitBody separates summary and location. Remind quotes the summary
// with %"...%" when a location follows: `%"Lunch%" at Cafe`.
func splitBody(body string) (summary, location string) {
	const q = `%"`
	start := strings.Index(body, q)
	if start < 0 {
		return body, ""
	}
	end := strings.Index(body[start+len(q):], q)
	if end < 0 {
		return body, ""
	}
	summary = body[start+len(q) : start+len(q)+end]
	rest := strings.TrimSpace(body[start+len(q)+end+len(q):])
	if strings.HasPrefix(rest, "at ") {
		location = strings.TrimSpace(rest[len("at "):])
	}
	return summary, location
}

// formatLine is the inverse of parseLine.
func formatLine(e entry) string {
	var b strings.Builder
	b.WriteString("REM ")
	b.WriteString(e.Date.Format("2006-01-02"))
	if e.Interval > 0 {
		fmt.Fprintf(&b, " *%d", e.Interval)
	}
	if !e.Until.IsZero() {
		fmt.Fprintf(&b, " UNTIL %s", e.Until.Format("2006-01-02"))
	}
	if e.Advance > 0 {
		fmt.Fprintf(&b, " +%d", e.Advance)
	}
	if e.HasTime {
		fmt.Fprintf(&b, " AT %s", e.Date.Format("15:04"))
		if e.Duration > 0 {
			fmt.Fprintf(&b, " DURATION %d:%02d", int(e.Duration.Hours()), int(e.Duration.Minutes())%60)
		}
	}
	b.WriteString(" MSG ")
	if e.Location != "" {
		fmt.Fprintf(&b, `%%"%s%%" at %s`, e.Summary, e.Location)
	} else {
		b.WriteString(e.Summary)
	}
	return b.String()
}
