package command

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Command
	}{
		{"info", "/info 123456", Command{Kind: Info, UID: "123456"}},
		{"vists upper case", "/VISTS 99999", Command{Kind: Vists, UID: "99999"}},
		{"mixed case", "/Info 700000", Command{Kind: Info, UID: "700000"}},
		{"surrounding whitespace", "   /info   12345  \n", Command{Kind: Info, UID: "12345"}},
		{"tab separator", "/vists\t54321", Command{Kind: Vists, UID: "54321"}},
		{"trailing words", "/info 123456 please", Command{Kind: Info, UID: "123456"}},
		{"uid below floor", "/info 123", Command{}},
		{"four digits", "/vists 1234", Command{}},
		{"no separator", "/info123456", Command{}},
		{"not digits", "/info abcdef", Command{}},
		{"trailing comma", "/info 123456,", Command{Kind: Info, UID: "123456"}},
		{"trailing period", "/vists 123456.", Command{Kind: Vists, UID: "123456"}},
		{"letters after digits", "/info 12345abc", Command{Kind: Info, UID: "12345"}},
		{"short digits then letters", "/info 1234abc", Command{}},
		{"longer prefix", "/information 123456", Command{}},
		{"plain text", "hello", Command{}},
		{"empty", "", Command{}},
		{"whitespace only", "   ", Command{}},
		{"prefix only", "/info", Command{}},
		{"not at start", "please /info 123456", Command{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParse_Independent(t *testing.T) {
	if !Parse("/info 123456").Recognized() {
		t.Fatal("expected recognized")
	}
	// No state carried across calls.
	if Parse("hello").Recognized() {
		t.Error("unrelated text must stay unrecognized")
	}
}

func TestKindString(t *testing.T) {
	if Info.String() != "info" || Vists.String() != "vists" || Unrecognized.String() != "unrecognized" {
		t.Error("unexpected Kind strings")
	}
}

func TestUsage(t *testing.T) {
	u := Usage()
	for _, want := range []string{"/info <UID>", "/vists <UID>"} {
		if !strings.Contains(u, want) {
			t.Errorf("usage missing %q", want)
		}
	}
}
