package app

import (
	"strings"
	"time"
)

func indexDirectives(t time.Time) *strings.Replacer {
	return strings.NewReplacer(
		"%Y", t.Format("2006"),
		"%m", t.Format("01"),
		"%d", t.Format("02"),
		"%H", t.Format("15"),
		"%M", t.Format("04"),
		"%S", t.Format("05"),
	)
}

// buildIndexFn compiles an index pattern such as "logs-%Y.%m.%d" into a
// closure rendering the current time. A pattern with no directives is
// returned verbatim on every call.
func buildIndexFn(pattern string) func(time.Time) string {
	return func(t time.Time) string {
		return indexDirectives(t).Replace(pattern)
	}
}
