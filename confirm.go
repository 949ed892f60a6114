package libscan

import (
	"fmt"
)

// Confirmer suppresses one-frame misreads by requiring the same payload to
// be decoded on a number of consecutive ticks before it is accepted.
type Confirmer struct {
	need  int
	last  string
	count int
}

// NewConfirmer returns a new Confirmer that accepts a payload once it has
// been seen on need consecutive ticks. need must be > 0.
func NewConfirmer(need int) (*Confirmer, error) {
	if need <= 0 {
		return nil, fmt.Errorf("need must be > 0")
	}
	return &Confirmer{need: need}, nil
}

// Add records one decoded payload and reports whether it has now been seen
// on enough consecutive ticks. A different payload resets the count. Empty
// payloads are an error, as is a Confirmer not created with NewConfirmer.
func (c *Confirmer) Add(payload string) (bool, error) {
	if c.need == 0 {
		return false, fmt.Errorf("invalid Confirmer, use NewConfirmer")
	}
	if payload == "" {
		return false, fmt.Errorf("payload must not be empty")
	}
	if payload != c.last {
		c.last = payload
		c.count = 0
	}
	c.count++
	if c.count < c.need {
		return false, nil
	}
	c.last = ""
	c.count = 0
	return true, nil
}
