package main

import (
	"flag"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/axwatch/internal/config"
	"github.com/1broseidon/axwatch/internal/history"
	"github.com/1broseidon/axwatch/internal/platform"
)

func TestFormatSource(t *testing.T) {
	tests := []struct {
		src  config.Source
		want string
	}{
		{config.Source{Kind: config.SourceDefault}, "default"},
		{config.Source{Kind: config.SourceDefault, Name: "defaults"}, "default:defaults"},
		{config.Source{Kind: config.SourceFile}, "file"},
		{config.Source{Kind: config.SourceFile, File: "/c.yaml"}, "file:/c.yaml"},
		{config.Source{Kind: config.SourceFile, File: "/c.yaml", Line: 3, Column: 5}, "file:/c.yaml:3:5"},
	}
	for _, tt := range tests {
		if got := formatSource(tt.src); got != tt.want {
			t.Fatalf("formatSource(%+v) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestTargetFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantPID platform.PID
		wantWin platform.ElementID
		wantErr bool
	}{
		{name: "focused window", args: nil},
		{name: "pid only", args: []string{"--pid", "42"}, wantPID: 42},
		{name: "pid and window", args: []string{"--pid", "42", "--window", "7"}, wantPID: 42, wantWin: 7},
		{name: "window without pid", args: []string{"--window", "7"}, wantErr: true},
		{name: "negative pid", args: []string{"--pid", "-1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			tf := addTargetFlags(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Parse: %v", err)
			}
			target, err := tf.target()
			if (err != nil) != tt.wantErr {
				t.Fatalf("target() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (target.PID != tt.wantPID || target.WindowID != tt.wantWin) {
				t.Fatalf("unexpected target %+v", target)
			}
		})
	}
}

func TestParseInts(t *testing.T) {
	got, err := parseInts([]string{"10", "-20"}, "X", "Y")
	if err != nil || got[0] != 10 || got[1] != -20 {
		t.Fatalf("parseInts = %v, %v", got, err)
	}
	if _, err := parseInts([]string{"10"}, "X", "Y"); err == nil || !strings.Contains(err.Error(), "expected X Y") {
		t.Fatalf("expected arity error, got %v", err)
	}
	if _, err := parseInts([]string{"10", "ten"}, "X", "Y"); err == nil || !strings.Contains(err.Error(), "invalid Y") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestFormatEventLine(t *testing.T) {
	line := formatEventLine(history.Record{
		Time:         time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Notification: platform.NotificationWindowMoved,
		PID:          42,
		WindowID:     7,
		App:          "Editor",
		Title:        "doc",
		Frame:        &platform.Rect{X: 1, Y: 2, Width: 3, Height: 4},
	})
	for _, want := range []string{"03:04:05.000", string(platform.NotificationWindowMoved), "pid=42", `app="Editor"`, "window=7", `title="doc"`, "3x4+1+2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("a very long application name", 10); len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("truncate long = %q", got)
	}
}
