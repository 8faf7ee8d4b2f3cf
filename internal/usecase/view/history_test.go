package view

import (
	"context"
	"net/url"
	"testing"
)

func TestHistory_PushReplace(t *testing.T) {
	h := NewHistory(url.Values{"a": {"1"}})

	h.Push(url.Values{"a": {"2"}})
	h.Replace(url.Values{"a": {"3"}})

	if h.Len() != 2 || h.Index() != 1 {
		t.Fatalf("Len/Index = %d/%d, want 2/1", h.Len(), h.Index())
	}
	if got := h.Location().Get("a"); got != "3" {
		t.Errorf("Location a = %q, want 3", got)
	}
}

func TestHistory_BackForward(t *testing.T) {
	h := NewHistory(url.Values{})
	h.Push(url.Values{"p": {"1"}})
	h.Push(url.Values{"p": {"2"}})

	if !h.Back() || h.Location().Get("p") != "1" {
		t.Fatalf("Back: location = %v", h.Location())
	}
	if !h.Back() || len(h.Location()) != 0 {
		t.Fatalf("Back: location = %v", h.Location())
	}
	if h.Back() {
		t.Error("Back at the first entry must report false")
	}
	if !h.Forward() || h.Location().Get("p") != "1" {
		t.Fatalf("Forward: location = %v", h.Location())
	}

	// Pushing drops forward entries.
	h.Push(url.Values{"p": {"x"}})
	if h.Forward() {
		t.Error("Forward after push must report false")
	}
	if h.Len() != 3 {
		t.Errorf("Len = %d, want 3", h.Len())
	}
}

func TestHistory_Listeners(t *testing.T) {
	h := NewHistory(url.Values{})
	var seen []string
	stop := h.Listen(func(v url.Values) { seen = append(seen, v.Get("p")) })

	h.Push(url.Values{"p": {"1"}})
	_ = h.Navigate(context.Background(), url.Values{"p": {"2"}}, true)
	h.Back()
	stop()
	h.Push(url.Values{"p": {"3"}})

	want := []string{"1", "2", ""}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestHistory_Detached(t *testing.T) {
	in := url.Values{"a": {"1"}}
	h := NewHistory(in)
	in.Set("a", "2")

	loc := h.Location()
	loc.Set("a", "3")

	if got := h.Location().Get("a"); got != "1" {
		t.Errorf("history must copy values, got %q", got)
	}
}

func TestHistory_NavigateCancelled(t *testing.T) {
	h := NewHistory(url.Values{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.Navigate(ctx, url.Values{"a": {"1"}}, false); err == nil {
		t.Fatal("expected context error")
	}
	if h.Len() != 1 {
		t.Errorf("cancelled navigation must not record an entry")
	}
}
