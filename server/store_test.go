package server

import (
	"errors"
	"testing"
	"time"

	"persona_ad_studio/persona"
)

func TestSessionStoreIsolatesCopies(t *testing.T) {
	seed := []persona.Persona{{ID: "1", Name: "Tech Enthusiast", Bio: "original"}}
	st := newStore(time.Minute)

	sess := st.create(seed)
	sess.Personas[0].Bio = "mutated by caller"
	if seed[0].Bio != "original" {
		t.Fatal("create must not alias the seed")
	}
	got, ok := st.get(sess.ID)
	if !ok || got.Personas[0].Bio != "original" {
		t.Fatalf("stored session changed through a returned copy: %+v", got)
	}

	updated, err := st.updateBio(sess.ID, "1", "new bio")
	if err != nil || updated.Personas[0].Bio != "new bio" {
		t.Fatalf("updateBio = %+v, %v", updated, err)
	}
	other := st.create(seed)
	if other.Personas[0].Bio != "original" {
		t.Fatal("a new session must start from the seed")
	}
}

func TestSessionStoreErrors(t *testing.T) {
	st := newStore(time.Minute)
	if _, err := st.updateBio("missing", "1", "x"); !errors.Is(err, errSessionNotFound) {
		t.Fatalf("expected errSessionNotFound, got %v", err)
	}
	sess := st.create([]persona.Persona{{ID: "1"}})
	if _, err := st.updateBio(sess.ID, "7", "x"); !errors.Is(err, errPersonaNotFound) {
		t.Fatalf("expected errPersonaNotFound, got %v", err)
	}
	if _, ok := st.get("missing"); ok {
		t.Fatal("get of unknown id should miss")
	}
}
