package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestParseCommand_QuotedArgs(t *testing.T) {
	cmd, err := ParseCommand(`/foo "does a nice" bar`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Name != "foo" {
		t.Fatalf("want foo, got %s", cmd.Name)
	}
	want := []string{"does a nice", "bar"}
	if !reflect.DeepEqual(cmd.Args, want) {
		t.Fatalf("want %v, got %v", want, cmd.Args)
	}
}

func TestParseCommand_BotSuffixAndNoArgs(t *testing.T) {
	cmd, err := ParseCommand("/Greet@fotc_bot")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Name != "greet" || len(cmd.Args) != 0 {
		t.Fatalf("unexpected %+v", cmd)
	}
}

func TestParseCommand_NotACommand(t *testing.T) {
	if _, err := ParseCommand("hello there"); !errors.Is(err, ErrNotCommand) {
		t.Fatalf("want ErrNotCommand, got %v", err)
	}
}

func TestValidateTZ(t *testing.T) {
	tz, err := ValidateTZ(" America/Sao_Paulo ")
	if err != nil || tz != "America/Sao_Paulo" {
		t.Fatalf("want America/Sao_Paulo, got %q (%v)", tz, err)
	}
	if _, err := ValidateTZ("Mars/Olympus"); !errors.Is(err, ErrInvalidTZ) {
		t.Fatalf("want ErrInvalidTZ, got %v", err)
	}
}

func TestParseWhen_Offsets(t *testing.T) {
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Duration{
		"90m":       90 * time.Minute,
		"in 2h":     2 * time.Hour,
		"1h30m":     90 * time.Minute,
		"3d":        72 * time.Hour,
		"in 1d 12h": 36 * time.Hour,
	}
	for in, d := range cases {
		got, err := ParseWhen(in, now, time.UTC)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if want := now.Add(d); !got.Equal(want) {
			t.Fatalf("%q: want %s, got %s", in, want, got)
		}
	}
}

func TestParseWhen_AbsoluteInUserZone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	got, err := ParseWhen("2024-05-02 18:00", now, loc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// MSK is UTC+3
	want := time.Date(2024, time.May, 2, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}
}

func TestParseWhen_Garbage(t *testing.T) {
	now := time.Now()
	if _, err := ParseWhen("", now, nil); !errors.Is(err, ErrEmptyWhen) {
		t.Fatalf("want ErrEmptyWhen, got %v", err)
	}
	if _, err := ParseWhen("qwzx vbnm", now, nil); !errors.Is(err, ErrInvalidWhen) {
		t.Fatalf("want ErrInvalidWhen, got %v", err)
	}
}

func TestParseWhen_OffsetOutOfRange(t *testing.T) {
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	for _, in := range []string{"200000d", "9999999999d", "99999999999999999999d", "36500d 1h"} {
		if got, err := ParseWhen(in, now, time.UTC); !errors.Is(err, ErrInvalidWhen) {
			t.Fatalf("%q: want ErrInvalidWhen, got %s (%v)", in, got, err)
		}
	}
	got, err := ParseWhen("36500d", now, time.UTC)
	if err != nil {
		t.Fatalf("36500d: %v", err)
	}
	if want := now.Add(36500 * 24 * time.Hour); !got.Equal(want) {
		t.Fatalf("36500d: want %s, got %s", want, got)
	}
}

func TestMessageRef_RoundTrip(t *testing.T) {
	ref := MessageRef{ChatID: -100123, MessageID: 42}
	got, err := ParseMessageRef(ref.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != ref {
		t.Fatalf("want %+v, got %+v", ref, got)
	}
	for _, bad := range []string{"", "42", "x:1", "1:0", "1:y"} {
		if _, err := ParseMessageRef(bad); !errors.Is(err, ErrInvalidRef) {
			t.Fatalf("%q: want ErrInvalidRef, got %v", bad, err)
		}
	}
}

func TestIdleReturn(t *testing.T) {
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	threshold := 12 * time.Hour

	long := now.Add(-13 * time.Hour)
	short := now.Add(-1 * time.Hour)
	exact := now.Add(-12 * time.Hour)

	if !IdleReturn(&long, now, threshold) {
		t.Fatal("13h gap should be an idle return")
	}
	if IdleReturn(&short, now, threshold) {
		t.Fatal("1h gap should not be an idle return")
	}
	if IdleReturn(&exact, now, threshold) {
		t.Fatal("gap equal to threshold should not be an idle return")
	}
	if IdleReturn(nil, now, threshold) {
		t.Fatal("first activity should not be an idle return")
	}
}
