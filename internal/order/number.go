package order

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	orderNumberPrefix = "ORD-"
	// maxOrderNumberAttempts bounds regeneration on a unique-constraint
	// collision. Collisions need the same second and the same random
	// suffix, so hitting the cap means something else is wrong.
	maxOrderNumberAttempts = 5
)

func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("%s%s-%04d", orderNumberPrefix, now.UTC().Format("20060102150405"), rand.Intn(10000))
}
