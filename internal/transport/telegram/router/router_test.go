package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mcwatch/internal/status"
	"mcwatch/internal/transport"
	"mcwatch/internal/watch"
	"mcwatch/pkg/logx"
)

type sent struct {
	to   transport.ChatTarget
	text string
}

type fakeAdapter struct {
	out  chan sent
	mu   sync.Mutex
	menu []transport.BotCommand
}

func newFakeAdapter() *fakeAdapter { return &fakeAdapter{out: make(chan sent, 16)} }

func (a *fakeAdapter) Start(context.Context, chan<- transport.Message) error { return nil }
func (a *fakeAdapter) Stop(context.Context) error { return nil }

func (a *fakeAdapter) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	a.out <- sent{to: to, text: text}
	return transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID}, nil
}

func (a *fakeAdapter) UpdateMenuCommands(_ context.Context, cmds []transport.BotCommand) error {
	a.mu.Lock()
	a.menu = cmds
	a.mu.Unlock()
	return nil
}

func (a *fakeAdapter) menuSnapshot() []transport.BotCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]transport.BotCommand(nil), a.menu...)
}

type fakeWatch struct {
	mu     sync.Mutex
	checks int
}

func (w *fakeWatch) Status() status.Snapshot {
	return status.Snapshot{Interval: status.Duration(time.Minute), Recipients: []string{"-100"}, Seen: 3, Bootstrapped: true}
}

func (w *fakeWatch) Latest(context.Context) (status.Latest, error) {
	return status.Latest{Release: &status.Version{ID: "1.21.2", Label: "Release", ArticleURL: "https://example.test/a"}}, nil
}

func (w *fakeWatch) Check(context.Context) (watch.Result, error) {
	w.mu.Lock()
	w.checks++
	w.mu.Unlock()
	return watch.Result{Known: 3}, nil
}

const owner = 42

func startRouter(t *testing.T, w WatchPort) (*fakeAdapter, chan<- transport.Message) {
	t.Helper()
	a := newFakeAdapter()
	r := New(logx.Nop(), a, []int64{owner})
	r.SetCommands(WatchCommands(w))

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan transport.Message)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx, in)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return a, in
}

func waitReply(t *testing.T, a *fakeAdapter) sent {
	t.Helper()
	select {
	case s := <-a.out:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return sent{}
	}
}

func TestRouterCommands(t *testing.T) {
	w := &fakeWatch{}
	a, in := startRouter(t, w)

	cases := []struct {
		name string
		msg  transport.Message
		want string
	}{
		{"version", transport.Message{ChatID: -1, Text: "/mcversion"}, "release: 1.21.2 (Release)"},
		{"bot suffix", transport.Message{ChatID: -1, Text: "/mcstatus@mcwatch_bot"}, "seen: 3 (bootstrapped: true)"},
		{"alias", transport.Message{ChatID: -1, Text: "/status"}, "recipients: -100"},
		{"unknown", transport.Message{ChatID: -1, Text: "/nope"}, "unknown command"},
		{"not owner", transport.Message{ChatID: -1, FromID: 7, Text: "/mccheck"}, "unauthorized"},
		{"owner", transport.Message{ChatID: -1, FromID: owner, Text: "/mccheck"}, "no new versions (3 known)"},
		{"help", transport.Message{ChatID: -1, Text: "/help"}, "/mccheck - poll the manifest now (owner)"},
		{"help detail", transport.Message{ChatID: -1, Text: "/help mcversion"}, "usage: /mcversion"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in <- tc.msg
			got := waitReply(t, a)
			if !strings.Contains(got.text, tc.want) {
				t.Fatalf("reply = %q, want it to contain %q", got.text, tc.want)
			}
		})
	}
	if w.checks != 1 {
		t.Fatalf("checks = %d, want 1", w.checks)
	}
}

func TestRouterRepliesInThread(t *testing.T) {
	a, in := startRouter(t, &fakeWatch{})
	in <- transport.Message{ChatID: -5, ThreadID: 9, Text: "/mcstatus"}
	got := waitReply(t, a)
	if got.to != (transport.ChatTarget{ChatID: -5, ThreadID: 9}) {
		t.Fatalf("reply target = %+v", got.to)
	}
}

func TestRouterIgnoresPlainText(t *testing.T) {
	a, in := startRouter(t, &fakeWatch{})
	in <- transport.Message{ChatID: -1, Text: "hello"}
	in <- transport.Message{ChatID: -1, Text: "/mcstatus"}
	if got := waitReply(t, a); !strings.Contains(got.text, "mcwatch status") {
		t.Fatalf("first reply = %q", got.text)
	}
}

func TestRouterPublishesMenu(t *testing.T) {
	a, _ := startRouter(t, &fakeWatch{})
	deadline := time.Now().Add(2 * time.Second)
	for len(a.menuSnapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("menu never published")
		}
		time.Sleep(10 * time.Millisecond)
	}
	var names []string
	for _, c := range a.menuSnapshot() {
		names = append(names, c.Command)
		if c.Command == "mccheck" && !strings.HasPrefix(c.Description, "🔒") {
			t.Fatalf("owner-only command not marked: %q", c.Description)
		}
	}
	if got := strings.Join(names, ","); got != "help,mccheck,mcstatus,mcversion" {
		t.Fatalf("menu = %s", got)
	}
}

type failingWatch struct{ fakeWatch }

func (*failingWatch) Latest(context.Context) (status.Latest, error) {
	return status.Latest{}, errors.New("offline")
}

func TestRouterVersionFetchFailure(t *testing.T) {
	a, in := startRouter(t, &failingWatch{})
	in <- transport.Message{ChatID: -1, Text: "/mcversion"}
	if got := waitReply(t, a); !strings.Contains(got.text, "could not fetch") {
		t.Fatalf("reply = %q", got.text)
	}
}

func TestSanitizeTelegramCommand(t *testing.T) {
	cases := map[string]string{
		"McVersion": "mcversion",
		"/help":     "help",
		"mc-check":  "mc_check",
		"a  b":      "a_b",
		"1up":       "cmd_1up",
		"!!":        "",
		"__x__":     "x",
	}
	for in, want := range cases {
		if got := sanitizeTelegramCommand(in); got != want {
			t.Fatalf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTokenizeCommandLine(t *testing.T) {
	got := tokenizeCommandLine(`/help "mc version" x\ y`)
	want := []string{"/help", "mc version", "x y"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("tokens = %q", got)
	}
}
