package curriculum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lessonIDs(lessons []Lesson) []string {
	ids := make([]string, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	return ids
}

func TestFlatten(t *testing.T) {
	phases := []Phase{
		{ID: "p2", ProgramID: "prog", Order: 5},
		{ID: "p1", ProgramID: "prog", Order: 0},
	}
	lessons := []Lesson{
		{ID: "a1", BookID: "a", Order: 0},
		{ID: "a2", BookID: "a", Order: 1},
		{ID: "b3", BookID: "b", Order: 7},
		{ID: "b1", BookID: "b", Order: 2},
		{ID: "c1", BookID: "c", Order: 0},
		{ID: "orphan", BookID: "z", Order: 0},
	}

	tests := []struct {
		name        string
		phases      []Phase
		memberships []PhaseBook
		lessons     []Lesson
		want        []string
	}{
		{name: "no phases", memberships: []PhaseBook{{PhaseID: "p1", BookID: "a"}}, lessons: lessons, want: []string{}},
		{name: "phases without books", phases: phases, lessons: lessons, want: []string{}},
		{
			name:   "phases, books & lessons by order",
			phases: phases,
			memberships: []PhaseBook{
				{PhaseID: "p2", BookID: "c", Order: 0},
				{PhaseID: "p1", BookID: "b", Order: 3},
				{PhaseID: "p1", BookID: "a", Order: 1},
			},
			lessons: lessons,
			want:    []string{"a1", "a2", "b1", "b3", "c1"},
		},
		{
			name:   "book in several phases",
			phases: phases,
			memberships: []PhaseBook{
				{PhaseID: "p1", BookID: "a", Order: 0},
				{PhaseID: "p2", BookID: "a", Order: 0},
			},
			lessons: lessons,
			want:    []string{"a1", "a2", "a1", "a2"},
		},
		{
			name:        "book without lessons",
			phases:      phases,
			memberships: []PhaseBook{{PhaseID: "p1", BookID: "empty", Order: 0}, {PhaseID: "p1", BookID: "c", Order: 1}},
			lessons:     lessons,
			want:        []string{"c1"},
		},
		{
			name:        "membership of another phase",
			phases:      phases[1:],
			memberships: []PhaseBook{{PhaseID: "p1", BookID: "c"}, {PhaseID: "other", BookID: "a"}},
			lessons:     lessons,
			want:        []string{"c1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Flatten(tt.phases, tt.memberships, tt.lessons)
			assert.Equal(t, tt.want, lessonIDs(got))
		})
	}
}

func TestFlatten_doesNotMutateInput(t *testing.T) {
	phases := []Phase{{ID: "p2", Order: 1}, {ID: "p1", Order: 0}}
	Flatten(phases, nil, nil)
	assert.Equal(t, "p2", phases[0].ID)
}
