package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"90", 90, true},
		{"1:30", 90, true},
		{" 0:05 ", 5, true},
		{"10:00", 600, true},
		{"0", 0, true},
		{"1:-30", 0, false},
		{"-1:30", 0, false},
		{"1:60", 0, false},
		{"-5", 0, false},
		{"abc", 0, false},
		{"1:", 0, false},
		{":30", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("parseClock(%q) = %d, %v; expected %d", tt.in, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("parseClock(%q) = %d; expected an error", tt.in, got)
		}
	}
}

func TestSplitAssignment(t *testing.T) {
	tests := []struct {
		in          string
		name, value string
		ok          bool
	}{
		{"zoom=2.5", "zoom", "2.5", true},
		{" rotation = 90 ", "rotation", "90", true},
		{"blur=", "blur", "", true},
		{"zoom", "", "", false},
		{"=3", "", "", false},
	}

	for _, tt := range tests {
		name, value, err := splitAssignment(tt.in)
		if tt.ok && (err != nil || name != tt.name || value != tt.value) {
			t.Errorf("splitAssignment(%q) = %q, %q, %v", tt.in, name, value, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("splitAssignment(%q): expected an error", tt.in)
		}
	}
}

func TestListFlag(t *testing.T) {
	var l listFlag
	l.Set("zoom, blur")
	l.Set("flip")
	if l.String() != "zoom,blur,flip" {
		t.Errorf("unexpected list %q", l.String())
	}
}

func TestLoadDotEnvSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	if err := os.WriteFile(local, []byte("AUGMENTOR_TEST_BACKEND=http://10.0.0.5:8080\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUGMENTOR_TEST_BACKEND", "")
	os.Unsetenv("AUGMENTOR_TEST_BACKEND")

	if err := loadDotEnv(filepath.Join(dir, ".env"), local); err != nil {
		t.Fatalf("loadDotEnv failed: %v", err)
	}
	if got := os.Getenv("AUGMENTOR_TEST_BACKEND"); got != "http://10.0.0.5:8080" {
		t.Errorf("expected .env.local to be loaded, got %q", got)
	}
}

func TestLoadDotEnvReportsBadFile(t *testing.T) {
	dir := t.TempDir()
	if err := loadDotEnv(dir); err == nil {
		t.Error("expected an error for a directory")
	}
}
