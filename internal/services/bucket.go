package services

import (
	"time"

	"github.com/t766/control/internal/models"
)

// LabelLayout renders interval start times for the dashboard, e.g. "9:00 AM 1-1-24".
const LabelLayout = "3:04 PM 1-2-06"

// Bucketer maps report timestamps onto fixed-width display intervals. It is
// a pure function of the timestamp: equal windows always yield equal labels.
type Bucketer struct {
	loc           *time.Location
	bucketMinutes int64
}

// NewBucketer creates a Bucketer. Timestamps are interpreted, and labels
// rendered, in loc.
func NewBucketer(loc *time.Location, bucketMinutes int) *Bucketer {
	if loc == nil {
		loc = time.Local
	}
	if bucketMinutes < 1 {
		bucketMinutes = 15
	}
	return &Bucketer{loc: loc, bucketMinutes: int64(bucketMinutes)}
}

// Index returns floor(unix_minutes / bucket_minutes) for a stored timestamp.
func (b *Bucketer) Index(timestamp string) (int64, error) {
	t, err := models.ParseTimestamp(timestamp, b.loc)
	if err != nil {
		return 0, err
	}
	minutes := t.Unix() / 60
	idx := minutes / b.bucketMinutes
	if minutes%b.bucketMinutes != 0 && minutes < 0 {
		idx--
	}
	return idx, nil
}

// Label returns the display label of the interval starting at index.
func (b *Bucketer) Label(index int64) string {
	return time.Unix(index*b.bucketMinutes*60, 0).In(b.loc).Format(LabelLayout)
}

// LabelFor returns the display label of the interval containing timestamp.
func (b *Bucketer) LabelFor(timestamp string) (string, error) {
	idx, err := b.Index(timestamp)
	if err != nil {
		return "", err
	}
	return b.Label(idx), nil
}
