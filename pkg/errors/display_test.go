// Package errors tests for error formatting.
package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func plainFormatter(w *bytes.Buffer) *Formatter {
	return &Formatter{UseColor: false, Writer: w, Indent: "  "}
}

func TestFormat_NilError(t *testing.T) {
	var buf bytes.Buffer
	if got := plainFormatter(&buf).Format(nil); got != "" {
		t.Errorf("expected empty string for nil error, got %q", got)
	}
}

func TestFormat_StandardError(t *testing.T) {
	var buf bytes.Buffer
	got := plainFormatter(&buf).Format(fmt.Errorf("plain failure"))

	if got != "Error: plain failure" {
		t.Errorf("unexpected standard error format: %q", got)
	}
}

func TestFormat_DeviceError_Full(t *testing.T) {
	de := New("DISPLAY_INIT_FAILED", CategoryHardware, "display initialization failed").
		WithContext("addr", "0x3c").
		WithCause(fmt.Errorf("remote I/O error")).
		WithSuggestion("Check the I2C wiring")

	var buf bytes.Buffer
	got := plainFormatter(&buf).Format(de)

	for _, want := range []string{
		"ERROR [DISPLAY_INIT_FAILED]: display initialization failed",
		"addr: 0x3c",
		"cause: remote I/O error",
		"→ Check the I2C wiring",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted output missing %q:\n%s", want, got)
		}
	}
}

func TestFormat_ContextSorted(t *testing.T) {
	de := New("TEST", CategoryConfig, "test").
		WithContext("zebra", "z").
		WithContext("alpha", "a")

	var buf bytes.Buffer
	got := plainFormatter(&buf).Format(de)

	alphaIdx := strings.Index(got, "alpha")
	zebraIdx := strings.Index(got, "zebra")
	if alphaIdx < 0 || zebraIdx < 0 {
		t.Fatalf("context keys missing from output:\n%s", got)
	}
	if alphaIdx > zebraIdx {
		t.Error("expected context keys sorted alphabetically")
	}
}

func TestDisplay_WritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	f := plainFormatter(&buf)
	f.Display(New("TEST_UNKNOWN", CategoryHardware, "unknown hardware test"))

	if !strings.Contains(buf.String(), "TEST_UNKNOWN") {
		t.Errorf("expected error code in output, got %q", buf.String())
	}
}

func TestDisplay_NilError(t *testing.T) {
	var buf bytes.Buffer
	f := plainFormatter(&buf)
	f.Display(nil)

	if buf.Len() != 0 {
		t.Errorf("expected no output for nil error, got %q", buf.String())
	}
}

func TestSprint(t *testing.T) {
	de := New("SESSION_NOT_RUNNING", CategoryTrial, "no experiment is running")
	got := Sprint(de)

	if !strings.Contains(got, "ERROR [SESSION_NOT_RUNNING]: no experiment is running") {
		t.Errorf("unexpected Sprint output: %q", got)
	}
}

func TestFormatMultiple(t *testing.T) {
	errs := []error{
		New("A", CategoryInternal, "first"),
		nil,
		New("B", CategoryInternal, "second"),
	}

	got := FormatMultiple(errs)
	if !strings.Contains(got, "first") || !strings.Contains(got, "second") {
		t.Errorf("expected both errors in output:\n%s", got)
	}

	if FormatMultiple(nil) != "" {
		t.Error("expected empty output for no errors")
	}
}

func TestCategoryLabel(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryValidation, "Validation Error"},
		{CategoryTrial, "Trial Error"},
		{CategoryHardware, "Hardware Error"},
		{CategoryPersistence, "Persistence Error"},
		{CategoryTransport, "Transport Error"},
		{CategoryConfig, "Configuration Error"},
		{CategoryInternal, "Internal Error"},
		{Category("bogus"), "Error"},
	}

	for _, tt := range tests {
		if got := CategoryLabel(tt.cat); got != tt.want {
			t.Errorf("CategoryLabel(%v) = %q, want %q", tt.cat, got, tt.want)
		}
	}
}
