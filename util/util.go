package util

import (
	"fmt"
	"os"
	"strings"
	"time"
)

//TimeFormat stores a correctly formatted timestamp
const TimeFormat string = "2006-01-02-T15:04:05-0700"

// Exists returns true if file or directory exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	return true
}

// ModTime returns the modification time of path, or the zero time if it
// cannot be read
func ModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

const (
	day  = time.Minute * 60 * 24
	year = 365 * day
)

// FormatDuration properly prints a given time.Duration
// https://gist.github.com/harshavardhana/327e0577c4fed9211f65#gistcomment-2557682
func FormatDuration(d time.Duration) string {
	if d < day {
		return d.String()
	}

	var b strings.Builder

	if d >= year {
		years := d / year
		fmt.Fprintf(&b, "%dy", years)
		d -= years * year
	}

	days := d / day
	d -= days * day
	fmt.Fprintf(&b, "%dd%s", days, d)

	return b.String()
}
