package disclosure

import (
	"time"
)

// datePubLayout is the day.month.year format of the file-level
// "DatePub" attribute.
const datePubLayout = "02.01.2006"

// SeenFunc reports whether an event uid has already been processed
type SeenFunc func(uid string) bool

// SelectNewFileEvents filters raw file events down to the actionable ones:
// published today, not yet processed, and carrying a retrievable file
// reference. Provider response order is preserved.
func SelectNewFileEvents(events []Event, today time.Time, seen SeenFunc) []Event {
	var selected []Event
	for _, ev := range events {
		if seen(ev.UID) {
			continue
		}
		if ev.File == nil || (ev.File.UID == "" && ev.File.PublicURL == "") {
			continue
		}

		pubDateStr, ok := ev.File.Attributes["DatePub"]
		if !ok {
			continue
		}
		pubDate, err := time.Parse(datePubLayout, pubDateStr)
		if err != nil {
			// Unparsable date means the record is not yet actionable.
			continue
		}

		if !sameDay(pubDate, today) {
			continue
		}
		selected = append(selected, ev)
	}
	return selected
}

// SelectNewMessageEvents is the message-event counterpart: the date source
// is the event-level ISO-8601 timestamp, compared by date component only.
func SelectNewMessageEvents(events []Event, today time.Time, seen SeenFunc) []Event {
	var selected []Event
	for _, ev := range events {
		if seen(ev.UID) {
			continue
		}
		if ev.Message == nil {
			continue
		}

		ts, err := ParseTime(ev.Date)
		if err != nil {
			continue
		}

		if !sameDay(ts, today) {
			continue
		}
		selected = append(selected, ev)
	}
	return selected
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
