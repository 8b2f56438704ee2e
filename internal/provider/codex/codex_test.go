package codex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cexll/codex-replier/internal/logging"
)

// stubExec routes every command to TestCodexHelperProcess with mode selecting
// its behaviour. It records the argv of each call.
func stubExec(t *testing.T, mode string) *[][]string {
	t.Helper()
	var calls [][]string

	original := execCommandContext
	t.Cleanup(func() { execCommandContext = original })

	execCommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		cmdArgs := []string{"-test.run=TestCodexHelperProcess", "--", name}
		cmdArgs = append(cmdArgs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cmdArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_CODEX_HELPER=1", "CODEX_HELPER_MODE="+mode)
		return cmd
	}
	return &calls
}

func TestCandidates_Default(t *testing.T) {
	got, err := Candidates("", "hello world", "o4-mini")
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	want := []Invocation{
		{Args: []string{"npx", "-y", "@openai/codex@latest", "exec", "-"}, Stdin: "hello world"},
		{Args: []string{"npx", "-y", "@openai/codex@latest", "exec", "hello world"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Candidates() mismatch (-want +got):\n%s", diff)
	}
}

func TestCandidates_Template(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     Invocation
	}{
		{
			name:     "prompt and model placeholders",
			template: `codex exec -m {model} "{prompt}"`,
			want:     Invocation{Args: []string{"codex", "exec", "-m", "o4-mini", "say hi; rm -rf /"}},
		},
		{
			name:     "no prompt placeholder uses stdin",
			template: "codex exec --model={model} -",
			want:     Invocation{Args: []string{"codex", "exec", "--model=o4-mini", "-"}, Stdin: "say hi; rm -rf /"},
		},
		{
			name:     "quoted arguments",
			template: `my-cli --flag 'a b' {prompt}`,
			want:     Invocation{Args: []string{"my-cli", "--flag", "a b", "say hi; rm -rf /"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Candidates(tt.template, "say hi; rm -rf /", "o4-mini")
			if err != nil {
				t.Fatalf("Candidates() error = %v", err)
			}
			if diff := cmp.Diff([]Invocation{tt.want}, got); diff != "" {
				t.Errorf("Candidates() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCandidates_BadTemplate(t *testing.T) {
	if _, err := Candidates(`codex "unterminated`, "p", "m"); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestRunner_FirstCandidateAccepted(t *testing.T) {
	calls := stubExec(t, "echo-stdin")

	r := NewRunner("", "o4-mini", 10*time.Second, logging.Discard())
	out, ok := r.Run(context.Background(), "explain this")
	if !ok {
		t.Fatal("Run() ok = false, want true")
	}
	if out != "reply: explain this" {
		t.Errorf("Run() = %q", out)
	}
	if len(*calls) != 1 {
		t.Errorf("expected 1 invocation, got %d", len(*calls))
	}
}

func TestRunner_FallsThroughToSecondCandidate(t *testing.T) {
	calls := stubExec(t, "arg-only")

	r := NewRunner("", "o4-mini", 10*time.Second, logging.Discard())
	out, ok := r.Run(context.Background(), "explain this")
	if !ok {
		t.Fatal("Run() ok = false, want true")
	}
	if out != "reply: explain this" {
		t.Errorf("Run() = %q", out)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(*calls))
	}
	if last := (*calls)[1]; last[len(last)-1] != "explain this" {
		t.Errorf("second candidate should pass the prompt as an argument, got %v", last)
	}
}

func TestRunner_AllRejected(t *testing.T) {
	tests := []struct {
		name string
		mode string
	}{
		{"non-zero exit", "fail"},
		{"empty output", "blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := stubExec(t, tt.mode)

			r := NewRunner("", "o4-mini", 10*time.Second, logging.Discard())
			out, ok := r.Run(context.Background(), "p")
			if ok || out != "" {
				t.Errorf("Run() = %q, %v; want empty, false", out, ok)
			}
			if len(*calls) != 2 {
				t.Errorf("expected both candidates to run, got %d", len(*calls))
			}
		})
	}
}

func TestRunner_LogsRejections(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		timeout time.Duration
		want    string
	}{
		{"non-zero exit", "fail", 10 * time.Second, "::notice title=Codex Replier::CLI exited with 1: boom command=codex"},
		{"empty output", "blank", 10 * time.Second, "::notice title=Codex Replier::CLI produced no output command=codex"},
		{"timeout", "hang", 200 * time.Millisecond, "::notice title=Codex Replier::CLI failed: timed out after 200ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubExec(t, tt.mode)

			var buf bytes.Buffer
			logger := logging.NewLogger(&buf, logging.FormatActions, slog.LevelInfo)
			r := NewRunner("codex {prompt}", "o4-mini", tt.timeout, logger)
			if _, ok := r.Run(context.Background(), "p"); ok {
				t.Fatal("Run() ok = true, want false")
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("log = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestRunner_Timeout(t *testing.T) {
	stubExec(t, "hang")

	r := NewRunner("codex {prompt}", "o4-mini", 200*time.Millisecond, logging.Discard())
	start := time.Now()
	_, ok := r.Run(context.Background(), "p")
	if ok {
		t.Fatal("Run() ok = true for a hung command")
	}
	if elapsed := time.Since(start); elapsed > 8*time.Second {
		t.Errorf("Run() took %v, timeout not enforced", elapsed)
	}
}

func TestRunner_TemplateSubstitution(t *testing.T) {
	calls := stubExec(t, "args")

	r := NewRunner("codex exec -m {model} {prompt}", "gpt-5", time.Second*10, logging.Discard())
	out, ok := r.Run(context.Background(), "two words")
	if !ok {
		t.Fatal("Run() ok = false")
	}
	if out != "codex|exec|-m|gpt-5|two words" {
		t.Errorf("Run() = %q", out)
	}
	if len(*calls) != 1 {
		t.Errorf("template should produce a single candidate, got %d", len(*calls))
	}
}

func TestRunner_BadTemplateSkipsCLI(t *testing.T) {
	calls := stubExec(t, "args")

	r := NewRunner(`codex "oops`, "m", 0, logging.Discard())
	if _, ok := r.Run(context.Background(), "p"); ok {
		t.Fatal("Run() ok = true for an unparsable template")
	}
	if len(*calls) != 0 {
		t.Errorf("no command should run, got %d", len(*calls))
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{Pending: "pending", Ran: "ran", Accepted: "accepted", Rejected: "rejected"} {
		if s.String() != want {
			t.Errorf("%d.String() = %s, want %s", int(s), s.String(), want)
		}
	}
}

func TestCodexHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_CODEX_HELPER") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}

	switch os.Getenv("CODEX_HELPER_MODE") {
	case "echo-stdin":
		input, _ := io.ReadAll(os.Stdin)
		fmt.Printf("  reply: %s\n", strings.TrimSpace(string(input)))
	case "arg-only":
		last := args[len(args)-1]
		if last == "-" {
			fmt.Fprintln(os.Stderr, "stdin not supported")
			os.Exit(2)
		}
		fmt.Printf("reply: %s\n", last)
	case "args":
		fmt.Print(strings.Join(args, "|"))
	case "fail":
		fmt.Println("partial output")
		fmt.Fprintln(os.Stderr, "boom")
		os.Exit(1)
	case "blank":
		fmt.Println("   ")
	case "hang":
		time.Sleep(30 * time.Second)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode")
		os.Exit(1)
	}
}
