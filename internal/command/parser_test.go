package command

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		prefix string
		want   Command
	}{
		{"help", "$bu help", "$bu", Command{Kind: Help}},
		{"long help flag", "$bu --help", "$bu", Command{Kind: Help}},
		{"short help flag", "$bu -h", "$bu", Command{Kind: Help}},
		{"help uppercase", "$bu HELP", "$bu", Command{Kind: Help}},
		{"help with padding", "$bu   Help  ", "$bu", Command{Kind: Help}},
		{"task", "$bu go to example.com", "$bu", Command{Kind: Task, Task: "go to example.com"}},
		{"task trimmed", "$bu  find the top story \n", "$bu", Command{Kind: Task, Task: "find the top story"}},
		{"empty task", "$bu   ", "$bu", Command{Kind: Task, Task: ""}},
		{"plain text", "hello world", "$bu", Command{Kind: Ignore}},
		{"prefix without space", "$buhelp", "$bu", Command{Kind: Ignore}},
		{"bare prefix", "$bu", "$bu", Command{Kind: Ignore}},
		{"prefix not at start", "hey $bu help", "$bu", Command{Kind: Ignore}},
		{"empty text", "", "$bu", Command{Kind: Ignore}},
		{"custom prefix", "!web open news", "!web", Command{Kind: Task, Task: "open news"}},
		{"default prefix when empty", "$bu -H", "", Command{Kind: Help}},
		{"help word inside task", "$bu help me find flights", "$bu", Command{Kind: Task, Task: "help me find flights"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text, tt.prefix)
			if got != tt.want {
				t.Errorf("Parse(%q, %q) = %+v, want %+v", tt.text, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestCommand_IsEmptyTask(t *testing.T) {
	if !Parse("$bu   ", "$bu").IsEmptyTask() {
		t.Error("expected empty task")
	}
	if Parse("$bu x", "$bu").IsEmptyTask() {
		t.Error("non-empty task reported empty")
	}
	if Parse("$bu help", "$bu").IsEmptyTask() {
		t.Error("help reported as empty task")
	}
}

func TestHelpText(t *testing.T) {
	got := HelpText("!web")
	if !strings.Contains(got, "Use `!web <task>` to run a browser task.") {
		t.Errorf("help text missing usage line: %q", got)
	}
	if n := strings.Count(got, "• `!web "); n != 3 {
		t.Errorf("help text has %d examples, want 3", n)
	}
	if !strings.Contains(HelpText(""), "`$bu <task>`") {
		t.Error("empty prefix should fall back to $bu")
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{Ignore: "ignore", Help: "help", Task: "task"} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
