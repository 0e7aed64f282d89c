package applog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelsAndFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "info")
	defer Close()

	Debug("hidden.event", "k", "v")
	Info("group.created", "group", 12, "tabs", 2)
	Error("ws.send", errors.New("boom"), "action", "groupTabs")

	out := buf.String()
	if strings.Contains(out, "hidden.event") {
		t.Errorf("debug line written at info level:\n%s", out)
	}
	if !strings.Contains(out, "msg=group.created") || !strings.Contains(out, "group=12") {
		t.Errorf("info line missing fields:\n%s", out)
	}
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "err=boom") {
		t.Errorf("error line missing fields:\n%s", out)
	}
}

func TestTruncatesLongValues(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "debug")
	defer Close()

	Debug("long", "v", strings.Repeat("x", 500))
	if strings.Contains(buf.String(), strings.Repeat("x", 201)) {
		t.Error("value was not truncated")
	}
}

func TestNoopBeforeInit(t *testing.T) {
	Close()
	Info("nothing") // must not panic
}

func TestInitCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	if err := Init(Options{Dir: dir, Level: "info"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("started")
	Close()

	data, err := os.ReadFile(filepath.Join(dir, "tabgruppen.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "started") {
		t.Errorf("log file missing line: %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG").String() != "DEBUG" {
		t.Error("debug not parsed")
	}
	if ParseLevel("bogus").String() != "INFO" {
		t.Error("unknown level should be info")
	}
}
