package session

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/weekday"
)

const monWed = 1<<1 | 1<<3

var d = core.MustParseDate

func lessonsN(n int) []curriculum.Lesson {
	lessons := make([]curriculum.Lesson, n)
	for i := range lessons {
		lessons[i] = curriculum.Lesson{ID: string(rune('a' + i)), Order: i}
	}
	return lessons
}

func brk(start string, days int) Event {
	return Event{EventDate: d(start), NumDays: days, IsBreak: true}
}

func dates(events []Event) []string {
	ds := make([]string, 0, len(events))
	for _, e := range events {
		ds = append(ds, e.EventDate.String())
	}
	return ds
}

func TestPlanLessons(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		studyDays int
		lessons   int
		breaks    []Event
		want      []string
		wantErr   error
	}{
		{name: "monday & wednesday", start: "2024-01-01", studyDays: monWed, lessons: 3, want: []string{"2024-01-01", "2024-01-03", "2024-01-08"}},
		{name: "start on a non study day", start: "2024-01-02", studyDays: monWed, lessons: 2, want: []string{"2024-01-03", "2024-01-08"}},
		{
			name:      "breaks are skipped",
			start:     "2024-01-01",
			studyDays: monWed,
			lessons:   3,
			breaks:    []Event{brk("2024-01-03", 1)},
			want:      []string{"2024-01-01", "2024-01-08", "2024-01-10"},
		},
		{
			name:      "study day right after a break",
			start:     "2024-01-01",
			studyDays: weekday.MaxMask,
			lessons:   2,
			breaks:    []Event{brk("2024-01-01", 3)},
			want:      []string{"2024-01-04", "2024-01-05"},
		},
		{
			name:      "overlapping breaks",
			start:     "2024-01-01",
			studyDays: weekday.MaxMask,
			lessons:   1,
			breaks:    []Event{brk("2024-01-01", 2), brk("2024-01-02", 3)},
			want:      []string{"2024-01-05"},
		},
		{name: "no lessons", start: "2024-01-01", studyDays: monWed, want: []string{}},
		{name: "no lessons & no study days", start: "2024-01-01", want: []string{}},
		{name: "no study days", start: "2024-01-01", lessons: 1, wantErr: ErrNoStudyDaysConfigured},
		{name: "invalid mask", start: "2024-01-01", studyDays: 128, lessons: 1, wantErr: weekday.ErrOutOfRangeBitmask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanLessons("sess", d(tt.start), tt.studyDays, lessonsN(tt.lessons), tt.breaks)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dates(got))
			for i, e := range got {
				assert.Equal(t, "sess", e.SessionID)
				assert.Equal(t, 1, e.NumDays)
				assert.False(t, e.IsBreak)
				assert.Equal(t, null.StringFrom(lessonsN(tt.lessons)[i].ID), e.LessonID)
			}
		})
	}
}

func TestPlanLessons_idempotent(t *testing.T) {
	lessons := lessonsN(5)
	breaks := []Event{brk("2024-01-08", 7)}

	first, err := PlanLessons("sess", d("2024-01-01"), monWed, lessons, breaks)
	require.NoError(t, err)
	second, err := PlanLessons("sess", d("2024-01-01"), monWed, lessons, breaks)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEndDate(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   string
	}{
		{name: "no events", want: "2024-01-01"},
		{name: "single lesson", events: []Event{{EventDate: d("2024-01-03"), NumDays: 1}}, want: "2024-01-04"},
		{
			name:   "break ending last",
			events: []Event{{EventDate: d("2024-01-08"), NumDays: 1}, brk("2024-01-05", 10)},
			want:   "2024-01-15",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EndDate(d("2024-01-01"), tt.events).String())
		})
	}
}

func TestShiftLessons(t *testing.T) {
	events := []Event{
		{ID: "l1", EventDate: d("2024-01-01"), NumDays: 1},
		{ID: "l2", EventDate: d("2024-01-08"), NumDays: 1},
		brk("2024-01-08", 3),
		{ID: "l3", EventDate: d("2024-01-10"), NumDays: 1},
	}

	got := ShiftLessons(events, d("2024-01-08"), 3)
	assert.Equal(t, []string{"2024-01-11", "2024-01-13"}, dates(got))
	assert.Equal(t, "l2", got[0].ID)
	// input is left untouched
	assert.Equal(t, "2024-01-08", events[1].EventDate.String())
}

func TestEvent_Covers(t *testing.T) {
	e := brk("2024-01-08", 3)
	assert.False(t, e.Covers(d("2024-01-07")))
	assert.True(t, e.Covers(d("2024-01-08")))
	assert.True(t, e.Covers(d("2024-01-10")))
	assert.False(t, e.Covers(d("2024-01-11")))
}
