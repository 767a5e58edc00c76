package authstate_test

import (
	"testing"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/authstate"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"
)

func TestHolder_BroadcastsAndUnsubscribes(t *testing.T) {
	var h authstate.Holder
	var got []port.AuthEventType

	unsub := h.Subscribe(func(ev port.AuthEvent) { got = append(got, ev.Type) })

	h.Set(port.AuthSignedIn, &domain.Session{User: domain.User{ID: "u"}})
	if h.Current() == nil || h.Current().User.ID != "u" {
		t.Fatalf("expected current session for u, got %+v", h.Current())
	}

	unsub()
	unsub()
	h.Set(port.AuthSignedOut, nil)

	if len(got) != 1 || got[0] != port.AuthSignedIn {
		t.Errorf("expected exactly one SIGNED_IN event, got %v", got)
	}
	if h.Current() != nil {
		t.Error("expected nil session after sign-out")
	}
}
