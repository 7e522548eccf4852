package model

import (
	"strconv"
	"time"
)

// ValidationError reports invalid input. It is surfaced to the caller
// before any write happens.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Date builds a date value at midnight UTC. All scheduling arithmetic in
// this package works on such values.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf strips the time-of-day component from t.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns b − a in whole days.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// WeekdayChosen reports whether the template's flag for the given weekday
// is set.
func (t *RecurringTaskTemplate) WeekdayChosen(d time.Weekday) bool {
	switch d {
	case time.Monday:
		return t.Monday
	case time.Tuesday:
		return t.Tuesday
	case time.Wednesday:
		return t.Wednesday
	case time.Thursday:
		return t.Thursday
	case time.Friday:
		return t.Friday
	case time.Saturday:
		return t.Saturday
	case time.Sunday:
		return t.Sunday
	}
	return false
}

func (t *RecurringTaskTemplate) anyWeekdayChosen() bool {
	return t.Monday || t.Tuesday || t.Wednesday || t.Thursday || t.Friday || t.Saturday || t.Sunday
}

func (t *RecurringTaskTemplate) anyOrdinalChosen() bool {
	return t.First || t.Second || t.Third || t.Fourth || t.Last || t.Every
}

// RepeatsOnCertainDays reports whether the template uses the
// day-of-week/ordinal-in-month mode.
func (t *RecurringTaskTemplate) RepeatsOnCertainDays() bool {
	return t.anyWeekdayChosen() && t.anyOrdinalChosen()
}

// RepeatsAtIntervals reports whether the template uses the fixed-interval
// mode.
func (t *RecurringTaskTemplate) RepeatsAtIntervals() bool {
	return t.RepeatInterval != nil && t.FlexibleDates != nil
}

// Validate rejects templates whose recurrence definition is ambiguous or
// whose fields are out of range. Conflicting modes are an error here
// rather than an undefined marker at match time.
func (t *RecurringTaskTemplate) Validate() error {
	days := t.RepeatsOnCertainDays()
	intervals := t.RepeatsAtIntervals()
	switch {
	case days && intervals:
		return &ValidationError{Msg: "choose either certain-days or interval recurrence, not both"}
	case !days && !intervals:
		return &ValidationError{Msg: "recurrence is undefined: set weekday+ordinal flags or a repeat interval"}
	}
	if t.Every && (t.First || t.Second || t.Third || t.Fourth || t.Last) {
		return &ValidationError{Msg: "if the task recurs every week, don't choose any other weeks"}
	}
	if t.Fourth && t.Last {
		return &ValidationError{Msg: "choose either fourth week or last week, not both"}
	}
	if intervals && *t.RepeatInterval <= 0 {
		return &ValidationError{Msg: "repeat interval must be a positive number of days"}
	}
	if t.WorkEstimate < 0 {
		return &ValidationError{Msg: "invalid work estimate"}
	}
	return nil
}

// MatchesDate reports whether d is an occurrence of this template.
// lastScheduled is the greatest scheduled date among the template's tasks;
// when no tasks exist yet callers must pass StartDate − 1 day, so the
// first interval-mode occurrence lands RepeatInterval days after that.
// An invalid template (both or neither mode configured) never matches;
// Validate catches that state at save time.
func (t *RecurringTaskTemplate) MatchesDate(d, lastScheduled time.Time) bool {
	if t.RepeatsAtIntervals() && !t.RepeatsOnCertainDays() {
		return DaysBetween(lastScheduled, d) == *t.RepeatInterval
	}
	if t.RepeatsOnCertainDays() && !t.RepeatsAtIntervals() {
		return t.matchesCertainDays(d)
	}
	return false
}

func (t *RecurringTaskTemplate) matchesCertainDays(d time.Time) bool {
	if !t.WeekdayChosen(d.Weekday()) {
		return false
	}
	if t.Every {
		return true
	}
	if t.Last && lastWeekdayOfMonth(d) {
		return true
	}
	ord := nthWeekdayOfMonth(d)
	switch ord {
	case 1:
		return t.First
	case 2:
		return t.Second
	case 3:
		return t.Third
	case 4:
		// A month with no 5th occurrence treats "last" as the 4th.
		return t.Fourth || t.Last
	}
	return false
}

// nthWeekdayOfMonth returns which occurrence of its weekday the date is
// within its month: days 1–7 → 1, 8–14 → 2, and so on.
func nthWeekdayOfMonth(d time.Time) int {
	return (d.Day()-1)/7 + 1
}

// lastWeekdayOfMonth reports whether adding a week rolls into the next
// month, i.e. d is the final occurrence of its weekday.
func lastWeekdayOfMonth(d time.Time) bool {
	return d.AddDate(0, 0, 7).Month() != d.Month()
}

// RecurrenceString renders the schedule for admin listings: a weekday
// pattern like "◌T◌T◌◌◌" or "every 90 days".
func (t *RecurringTaskTemplate) RecurrenceString() string {
	days := t.RepeatsOnCertainDays()
	intervals := t.RepeatsAtIntervals()
	if days == intervals {
		return "?"
	}
	if intervals {
		if *t.RepeatInterval == 1 {
			return "every day"
		}
		return "every " + strconv.Itoa(*t.RepeatInterval) + " days"
	}
	const blank = '◌'
	letters := []rune{blank, blank, blank, blank, blank, blank, blank}
	flags := []bool{t.Monday, t.Tuesday, t.Wednesday, t.Thursday, t.Friday, t.Saturday, t.Sunday}
	names := []rune{'M', 'T', 'W', 'T', 'F', 'S', 'S'}
	for i, on := range flags {
		if on {
			letters[i] = names[i]
		}
	}
	return string(letters)
}
