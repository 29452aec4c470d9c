package model

import (
	"fmt"
	"math/rand"
	"time"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewReferenceNumber returns a human-readable payment reference,
// HB-<unix seconds>-<6 base36 chars>. Uniqueness is enforced by the
// payments table constraint; callers retry on conflict.
func NewReferenceNumber() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = base36[rand.Intn(len(base36))]
	}
	return fmt.Sprintf("HB-%d-%s", time.Now().Unix(), b)
}
