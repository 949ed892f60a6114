package libscan_test

import (
	"testing"

	libscan "github.com/soumya-jain123/libscan-go"
)

func TestConfirmer(t *testing.T) {
	c0 := &libscan.Confirmer{}
	if _, err := c0.Add("x"); err == nil {
		t.Errorf("missing error for Confirmer created without NewConfirmer")
	}

	c0, err := libscan.NewConfirmer(2)
	if err != nil {
		t.Fatalf("making new Confirmer: %v", err)
	}

	ok, err := c0.Add("a")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if ok {
		t.Fatalf("payload accepted after a single tick, need 2")
	}
	// A different payload resets the streak.
	if ok, _ := c0.Add("b"); ok {
		t.Fatalf("payload accepted after switching, streak should reset")
	}
	if ok, _ := c0.Add("b"); !ok {
		t.Fatalf("payload not accepted after 2 consecutive ticks")
	}
	// Accepting resets, the next payload starts a fresh streak.
	if ok, _ := c0.Add("b"); ok {
		t.Fatalf("payload accepted again without a fresh streak")
	}

	if _, err := c0.Add(""); err == nil {
		t.Fatalf("missing error for empty payload")
	}

	if _, err := libscan.NewConfirmer(0); err == nil {
		t.Fatalf("missing error for new Confirmer with need 0")
	}

	c1, err := libscan.NewConfirmer(1)
	if err != nil {
		t.Fatalf("making new Confirmer: %v", err)
	}
	if ok, _ := c1.Add("a"); !ok {
		t.Fatalf("payload not accepted immediately with need 1")
	}
}
