package composer

import "time"

// Keystroke cadence. Every character waits a base delay, and occasionally a
// longer hesitation follows a character mid-text. No hesitation after the
// final character so submission is not needlessly delayed.
const (
	typeDelayMin = 100 * time.Millisecond
	typeDelayMax = 300 * time.Millisecond

	hesitateChance = 0.10
	hesitateMin    = 300 * time.Millisecond
	hesitateMax    = 800 * time.Millisecond
)

// KeyDelay returns the pause to take after typing one character. isLast
// suppresses the random hesitation.
func (c *Composer) KeyDelay(isLast bool) time.Duration {
	d := typeDelayMin + time.Duration(c.rng.Int63n(int64(typeDelayMax-typeDelayMin)))
	if !isLast && c.rng.Float64() < hesitateChance {
		d += hesitateMin + time.Duration(c.rng.Int63n(int64(hesitateMax-hesitateMin)))
	}
	return d
}
