package session

import (
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/weekday"
)

// PlanLessons places the lessons of a session, in order, one per study day starting at start.
// A day is a study day when its weekday is set in studyDays and no break covers it.
// Returns one single-day lesson Event per lesson.
func PlanLessons(sessionID string, start core.Date, studyDays int, lessons []curriculum.Lesson, breaks []Event) ([]Event, error) {
	if err := weekday.Validate(studyDays); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(lessons))
	if len(lessons) == 0 {
		return events, nil
	}
	if weekday.Count(studyDays) == 0 {
		return nil, ErrNoStudyDaysConfigured
	}

	day := start
	for _, lsn := range lessons {
		day = nextStudyDay(day, studyDays, breaks)
		events = append(events, Event{
			SessionID: sessionID,
			EventDate: day,
			NumDays:   1,
			LessonID:  null.StringFrom(lsn.ID),
		})
		day = day.AddDays(1)
	}
	return events, nil
}

// nextStudyDay returns the first study day on or after d. studyDays must not be empty.
func nextStudyDay(d core.Date, studyDays int, breaks []Event) core.Date {
	for {
		if weekday.Contains(studyDays, d.Weekday()) {
			if brk, ok := coveringBreak(d, breaks); ok {
				d = brk.EndDate()
				continue
			}
			return d
		}
		d = d.AddDays(1)
	}
}

func coveringBreak(d core.Date, breaks []Event) (Event, bool) {
	for _, brk := range breaks {
		if brk.IsBreak && brk.Covers(d) {
			return brk, true
		}
	}
	return Event{}, false
}

// EndDate returns the day following the last day of events, or start if there are none.
func EndDate(start core.Date, events []Event) core.Date {
	if len(events) == 0 {
		return start
	}
	end := events[0].EndDate()
	for _, e := range events[1:] {
		if e.EndDate().After(end) {
			end = e.EndDate()
		}
	}
	return end
}

// ShiftLessons returns the lesson events on or after from, moved days later.
func ShiftLessons(events []Event, from core.Date, days int) []Event {
	var shifted []Event
	for _, e := range events {
		if e.IsLesson() && !e.EventDate.Before(from) {
			e.EventDate = e.EventDate.AddDays(days)
			shifted = append(shifted, e)
		}
	}
	return shifted
}

func checkDuration(numDays int) error {
	if numDays < 1 {
		return errors.Wrapf(ErrInvalidDuration, "got %d", numDays)
	}
	return nil
}
