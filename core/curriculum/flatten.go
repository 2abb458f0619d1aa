package curriculum

import "sort"

// Flatten composes the lessons of a program into a single sequence:
// phases by order, then the books of each phase by membership order, then the lessons of each book by order.
// A book found in several phases contributes its lessons once per phase.
// memberships and lessons may hold rows of other phases/books, those are ignored.
func Flatten(phases []Phase, memberships []PhaseBook, lessons []Lesson) []Lesson {
	flat := make([]Lesson, 0, len(lessons))
	if len(phases) == 0 {
		return flat
	}

	sortedPhases := append([]Phase(nil), phases...)
	sort.SliceStable(sortedPhases, func(i, j int) bool { return sortedPhases[i].Order < sortedPhases[j].Order })

	booksByPhase := make(map[string][]PhaseBook, len(phases))
	for _, pb := range memberships {
		booksByPhase[pb.PhaseID] = append(booksByPhase[pb.PhaseID], pb)
	}
	for _, pbs := range booksByPhase {
		sort.SliceStable(pbs, func(i, j int) bool { return pbs[i].Order < pbs[j].Order })
	}

	lessonsByBook := make(map[string][]Lesson)
	for _, l := range lessons {
		lessonsByBook[l.BookID] = append(lessonsByBook[l.BookID], l)
	}
	for _, ls := range lessonsByBook {
		sort.SliceStable(ls, func(i, j int) bool { return ls[i].Order < ls[j].Order })
	}

	for _, ph := range sortedPhases {
		for _, pb := range booksByPhase[ph.ID] {
			flat = append(flat, lessonsByBook[pb.BookID]...)
		}
	}
	return flat
}
