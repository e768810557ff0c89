package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	ErrNotCommand  = errors.New("not a command")
	ErrEmptyWhen   = errors.New("empty time expression")
	ErrInvalidWhen = errors.New("unable to interpret time expression")
	ErrInvalidTZ   = errors.New("unknown timezone")
	ErrInvalidRef  = errors.New("invalid message reference")
)

var (
	commandRe = regexp.MustCompile(`(?s)^/(\w*)@?\w*\s*(.*)$`)
	argRe     = regexp.MustCompile(`([^"\s]\S*|".+?")\s*`)
	daysRe    = regexp.MustCompile(`(\d+)d`)
)

// Command is a parsed "/name arg1 arg2" message.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits command text into its name and arguments. Quoted
// arguments keep their inner spaces:
//
//	/foo bar baz          => foo [bar baz]
//	/foo "a long one" baz => foo [a long one, baz]
//	/foo@somebot x        => foo [x]
func ParseCommand(text string) (Command, error) {
	m := commandRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Command{}, ErrNotCommand
	}
	cmd := Command{Name: strings.ToLower(m[1])}
	for _, a := range argRe.FindAllStringSubmatch(m[2], -1) {
		cmd.Args = append(cmd.Args, strings.Trim(a[1], `"`))
	}
	return cmd, nil
}

// Rest returns every argument joined back with single spaces.
func (c Command) Rest() string {
	return strings.Join(c.Args, " ")
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return "", ErrInvalidTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidTZ, tz)
	}
	return loc.String(), nil
}

var whenParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// absoluteLayouts are tried in the user's location before natural language.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseWhen resolves a reminder time expression relative to now, reading
// wall-clock values in loc. Accepted forms:
//
//	"90m", "1h30m", "in 2h", "3d"          offsets from now
//	"2024-05-01 18:00", RFC3339            absolute times
//	"tomorrow at 9am", "next friday 10:00" natural language
//
// The result is in UTC.
func ParseWhen(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyWhen
	}
	if loc == nil {
		loc = time.UTC
	}

	d, err := parseOffset(s)
	switch {
	case err == nil:
		return now.Add(d).UTC(), nil
	case errors.Is(err, ErrInvalidWhen):
		return time.Time{}, err
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}

	r, err := whenParser.Parse(s, now.In(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidWhen, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidWhen, s)
	}
	return r.Time.UTC(), nil
}

const (
	maxOffsetDays = 365 * 100
	maxOffset     = maxOffsetDays * 24 * time.Hour
)

// parseOffset accepts Go durations with an optional "in " prefix and a
// day unit, e.g. "in 1d12h".
func parseOffset(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "in ")
	s = strings.ReplaceAll(s, " ", "")

	var days time.Duration
	if m := daysRe.FindStringSubmatchIndex(s); m != nil {
		n, err := strconv.Atoi(s[m[2]:m[3]])
		if err != nil || n > maxOffsetDays {
			return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidWhen, s[m[0]:m[1]])
		}
		days = time.Duration(n) * 24 * time.Hour
		s = s[:m[0]] + s[m[1]:]
		if s == "" {
			return days, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d > maxOffset-days {
		return 0, fmt.Errorf("%w: offset is out of range", ErrInvalidWhen)
	}
	return days + d, nil
}

// FormatUTC renders t the way reminder confirmations show it.
func FormatUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05") + " (UTC)"
}
