package chrono

import "time"

var riga *time.Location

func init() {
	var err error
	riga, err = time.LoadLocation("Europe/Riga")
	if err != nil {
		riga = time.UTC
	}
}

// Riga returns a [*time.Location] for Europe/Riga, the timezone both exam sites run in.
func Riga() *time.Location {
	return riga
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in Europe/Riga.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

func (StandardTime) Now() time.Time {
	return time.Now().In(riga)
}

// FixedTime is a TimeAPI that always returns the same instant.
type FixedTime struct {
	Time time.Time
}

func (f FixedTime) Now() time.Time {
	return f.Time.In(riga)
}
