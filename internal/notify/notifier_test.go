package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPingsCoalesce(t *testing.T) {
	n := New()
	n.Ping()
	n.Ping()
	n.Ping()

	select {
	case <-n.C():
	case <-time.After(time.Second):
		t.Fatal("expected a pending wake")
	}

	select {
	case <-n.C():
		t.Fatal("expected the three pings to have coalesced into one wake")
	default:
	}
}

func TestAwaitEitherNotifier(t *testing.T) {
	a, b := New(), New()
	b.Ping()

	select {
	case <-a.C():
		t.Fatal("a should not have fired")
	case <-b.C():
	case <-time.After(time.Second):
		t.Fatal("expected b to wake the select")
	}
	assert.NotNil(t, a)
}
