package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestTerminal_Confirm(t *testing.T) {
	tests := []struct {
		input string
		def   bool
		want  bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"maybe\n", true, false},
		{"", true, false}, // EOF never confirms
		{"yes", false, true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		term := NewTerminal(strings.NewReader(tt.input), &out)

		got, err := term.Confirm("Proceed?", tt.def)
		if err != nil {
			t.Fatalf("Confirm(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Confirm(%q, def=%v) = %v, want %v", tt.input, tt.def, got, tt.want)
		}
	}
}

func TestTerminal_ConfirmHint(t *testing.T) {
	var out bytes.Buffer
	NewTerminal(strings.NewReader("\n"), &out).Confirm("Fall back to rsync?", true)
	if out.String() != "Fall back to rsync? [Y/n]: " {
		t.Errorf("prompt = %q", out.String())
	}
}

func TestTerminal_Select(t *testing.T) {
	items := []string{"snapshot_2", "snapshot_1"}

	var out bytes.Buffer
	got, err := NewTerminal(strings.NewReader("2\n"), &out).Select("Choose a snapshot:", items)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got != 1 {
		t.Errorf("Select() = %d, want 1", got)
	}
	if !strings.Contains(out.String(), "  1) snapshot_2\n  2) snapshot_1\n") {
		t.Errorf("menu = %q", out.String())
	}

	for _, bad := range []string{"0\n", "3\n", "abc\n", ""} {
		_, err := NewTerminal(strings.NewReader(bad), &bytes.Buffer{}).Select("Choose:", items)
		if !errors.Is(err, ErrNoChoice) {
			t.Errorf("Select(%q) error = %v, want ErrNoChoice", bad, err)
		}
	}
}

func TestYes(t *testing.T) {
	var p Prompter = Yes{}
	if ok, _ := p.Confirm("x", false); !ok {
		t.Error("Yes.Confirm() = false")
	}
	if i, err := p.Select("x", []string{"a", "b"}); i != 0 || err != nil {
		t.Errorf("Yes.Select() = %d, %v", i, err)
	}
	if _, err := p.Select("x", nil); !errors.Is(err, ErrNoChoice) {
		t.Errorf("Yes.Select(nil) error = %v", err)
	}
}
