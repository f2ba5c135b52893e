package notify

import "testing"

func TestCenter_PostDeliversInRegistrationOrder(t *testing.T) {
	c := NewCenter()
	var got []string
	c.AddObserver("ev", func(n Notification) { got = append(got, "a:"+n.UserInfo["k"].(string)) })
	c.AddObserver("ev", func(n Notification) { got = append(got, "b:"+n.UserInfo["k"].(string)) })
	c.AddObserver("other", func(n Notification) { got = append(got, "other") })

	c.Post("ev", map[string]any{"k": "v"})

	if len(got) != 2 || got[0] != "a:v" || got[1] != "b:v" {
		t.Fatalf("unexpected delivery order: %v", got)
	}
}

func TestCenter_RemoveObserver(t *testing.T) {
	c := NewCenter()
	calls := 0
	tok := c.AddObserver("ev", func(Notification) { calls++ })
	c.Post("ev", nil)
	c.RemoveObserver(tok)
	c.Post("ev", nil)

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if c.Observers("ev") != 0 {
		t.Fatalf("expected no observers left, got %d", c.Observers("ev"))
	}

	// Unknown tokens are ignored.
	c.RemoveObserver(tok)
}

func TestCenter_ObserverMayUnregisterDuringPost(t *testing.T) {
	c := NewCenter()
	var tok Token
	calls := 0
	tok = c.AddObserver("ev", func(Notification) {
		calls++
		c.RemoveObserver(tok)
	})

	c.Post("ev", nil)
	c.Post("ev", nil)
	if calls != 1 {
		t.Fatalf("expected observer to run once, got %d", calls)
	}
}
