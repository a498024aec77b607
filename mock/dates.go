package main

import (
	"regexp"
	"time"
)

const pageDateLayout = "Mon, 02 Jan 2006"

var pageDate = regexp.MustCompile(`[A-Z][a-z]{2}, \d{2} [A-Z][a-z]{2} \d{4}`)

// shiftDates moves every date in page by the distance between fixture and requested.
// Requests without a parseable date get the page untouched.
func shiftDates(page []byte, fixture time.Time, requested, layout string) []byte {
	to, err := time.Parse(layout, requested)
	if err != nil {
		return page
	}
	delta := to.Sub(fixture)
	return pageDate.ReplaceAllFunc(page, func(m []byte) []byte {
		t, err := time.Parse(pageDateLayout, string(m))
		if err != nil {
			return m
		}
		return []byte(t.Add(delta).Format(pageDateLayout))
	})
}
