package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
)

type curriculumRepository struct {
	conn
}

var _ curriculum.Repository = (*curriculumRepository)(nil) // interface compliance check

func NewCurriculumRepository(db *DB) curriculum.Repository {
	return &curriculumRepository{conn{db: db}}
}

func (repo *curriculumRepository) Atomic(ctx context.Context, fn func(repo curriculum.Repository) error) error {
	return repo.atomic(func(tx conn) error {
		return fn(&curriculumRepository{tx})
	})
}

// Ordering

// LockScope only checks that the parent exists: the DB is already locked by Atomic.
func (repo *curriculumRepository) LockScope(ctx context.Context, scope curriculum.Scope) error {
	return repo.read(func(t *tables) error {
		var ok bool
		var entity string
		switch scope.Kind {
		case curriculum.ProgramPhases:
			_, ok = t.programs[scope.ParentID]
			entity = "program"
		case curriculum.PhaseBooks:
			_, ok = t.phases[scope.ParentID]
			entity = "phase"
		case curriculum.BookLessons:
			_, ok = t.books[scope.ParentID]
			entity = "book"
		}
		if !ok {
			return core.NewParentNotFoundError(entity, scope.ParentID)
		}
		return nil
	})
}

// siblings returns the orders of the children of scope, keyed by child ID (book ID for phase books).
func (t *tables) siblings(scope curriculum.Scope) map[string]int {
	orders := make(map[string]int)
	switch scope.Kind {
	case curriculum.ProgramPhases:
		for _, ph := range t.phases {
			if ph.ProgramID == scope.ParentID {
				orders[ph.ID] = ph.Order
			}
		}
	case curriculum.PhaseBooks:
		for k, pb := range t.phaseBooks {
			if k.phaseID == scope.ParentID {
				orders[k.bookID] = pb.Order
			}
		}
	case curriculum.BookLessons:
		for _, lsn := range t.lessons {
			if lsn.BookID == scope.ParentID {
				orders[lsn.ID] = lsn.Order
			}
		}
	}
	return orders
}

func (repo *curriculumRepository) MaxOrder(ctx context.Context, scope curriculum.Scope) (max int, ok bool, err error) {
	err = repo.read(func(t *tables) error {
		for _, order := range t.siblings(scope) {
			if !ok || order > max {
				max, ok = order, true
			}
		}
		return nil
	})
	return max, ok, err
}

func (repo *curriculumRepository) OrderTaken(ctx context.Context, scope curriculum.Scope, order int, exceptID string) (bool, error) {
	var taken bool
	err := repo.read(func(t *tables) error {
		for id, o := range t.siblings(scope) {
			if o == order && id != exceptID {
				taken = true
				break
			}
		}
		return nil
	})
	return taken, err
}

// checkOrderFree backs the (parent, order) unique constraints.
func (t *tables) checkOrderFree(scope curriculum.Scope, order int, exceptID string) error {
	for id, o := range t.siblings(scope) {
		if o == order && id != exceptID {
			return curriculum.ErrDuplicateOrder
		}
	}
	return nil
}

// Programs

func (repo *curriculumRepository) CreateProgram(ctx context.Context, prog curriculum.Program) (curriculum.Program, error) {
	err := repo.write(func(t *tables) error {
		prog.ID = uuid.New().String()
		t.programs[prog.ID] = prog
		return nil
	})
	return prog, err
}

func (repo *curriculumRepository) GetProgram(ctx context.Context, id string) (curriculum.Program, error) {
	var prog curriculum.Program
	err := repo.read(func(t *tables) error {
		var ok bool
		if prog, ok = t.programs[id]; !ok {
			return curriculum.ErrProgramNotFound
		}
		return nil
	})
	return prog, err
}

func (repo *curriculumRepository) QueryPrograms(ctx context.Context, filter *curriculum.ProgramFilter, ordering []core.DBOrdering, page core.Pagination) ([]curriculum.Program, int, error) {
	progs := make([]curriculum.Program, 0)
	err := repo.read(func(t *tables) error {
		for _, prog := range t.programs {
			if filter == nil || containsFold(prog.Title, filter.Search) {
				progs = append(progs, prog)
			}
		}
		return nil
	})
	sort.SliceStable(progs, func(i, j int) bool {
		return titleLess(progs[i].Title, progs[i].ID, progs[j].Title, progs[j].ID, ordering)
	})
	start, end := page.Page(len(progs))
	return progs[start:end], len(progs), err
}

func (repo *curriculumRepository) UpdateProgram(ctx context.Context, prog curriculum.Program) (curriculum.Program, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.programs[prog.ID]; !ok {
			return curriculum.ErrProgramNotFound
		}
		t.programs[prog.ID] = prog
		return nil
	})
	return prog, err
}

func (repo *curriculumRepository) DeleteProgram(ctx context.Context, id string) error {
	return repo.write(func(t *tables) error {
		if _, ok := t.programs[id]; !ok {
			return curriculum.ErrProgramNotFound
		}
		t.deleteProgram(id)
		return nil
	})
}

// Phases

func (repo *curriculumRepository) CreatePhase(ctx context.Context, ph curriculum.Phase) (curriculum.Phase, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.programs[ph.ProgramID]; !ok {
			return core.NewParentNotFoundError("program", ph.ProgramID)
		}
		if err := t.checkOrderFree(curriculum.PhasesOf(ph.ProgramID), ph.Order, ""); err != nil {
			return err
		}
		ph.ID = uuid.New().String()
		t.phases[ph.ID] = ph
		return nil
	})
	return ph, err
}

func (repo *curriculumRepository) GetPhase(ctx context.Context, id string) (curriculum.Phase, error) {
	var ph curriculum.Phase
	err := repo.read(func(t *tables) error {
		var ok bool
		if ph, ok = t.phases[id]; !ok {
			return curriculum.ErrPhaseNotFound
		}
		return nil
	})
	return ph, err
}

func (repo *curriculumRepository) QueryPhases(ctx context.Context, programID string) ([]curriculum.Phase, error) {
	phases := make([]curriculum.Phase, 0)
	err := repo.read(func(t *tables) error {
		for _, ph := range t.phases {
			if ph.ProgramID == programID {
				phases = append(phases, ph)
			}
		}
		return nil
	})
	sort.Slice(phases, func(i, j int) bool { return phases[i].Order < phases[j].Order })
	return phases, err
}

func (repo *curriculumRepository) UpdatePhaseOrder(ctx context.Context, id string, order int) error {
	return repo.write(func(t *tables) error {
		ph, ok := t.phases[id]
		if !ok {
			return curriculum.ErrPhaseNotFound
		}
		if err := t.checkOrderFree(curriculum.PhasesOf(ph.ProgramID), order, ph.ID); err != nil {
			return err
		}
		ph.Order = order
		t.phases[id] = ph
		return nil
	})
}

func (repo *curriculumRepository) DeletePhase(ctx context.Context, id string) error {
	return repo.write(func(t *tables) error {
		if _, ok := t.phases[id]; !ok {
			return curriculum.ErrPhaseNotFound
		}
		t.deletePhase(id)
		return nil
	})
}

// Phase books

func (repo *curriculumRepository) CreatePhaseBook(ctx context.Context, pb curriculum.PhaseBook) (curriculum.PhaseBook, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.phases[pb.PhaseID]; !ok {
			return core.NewParentNotFoundError("phase", pb.PhaseID)
		}
		if _, ok := t.books[pb.BookID]; !ok {
			return core.NewParentNotFoundError("book", pb.BookID)
		}
		key := phaseBookKey{phaseID: pb.PhaseID, bookID: pb.BookID}
		if _, ok := t.phaseBooks[key]; ok {
			return curriculum.ErrBookAlreadyInPhase
		}
		if err := t.checkOrderFree(curriculum.BooksOf(pb.PhaseID), pb.Order, ""); err != nil {
			return err
		}
		t.phaseBooks[key] = pb
		return nil
	})
	return pb, err
}

func (repo *curriculumRepository) GetPhaseBook(ctx context.Context, phaseID, bookID string) (curriculum.PhaseBook, error) {
	var pb curriculum.PhaseBook
	err := repo.read(func(t *tables) error {
		var ok bool
		if pb, ok = t.phaseBooks[phaseBookKey{phaseID: phaseID, bookID: bookID}]; !ok {
			return curriculum.ErrPhaseBookNotFound
		}
		return nil
	})
	return pb, err
}

func (repo *curriculumRepository) QueryPhaseBooks(ctx context.Context, phaseID string) ([]curriculum.PhaseBook, error) {
	pbs := make([]curriculum.PhaseBook, 0)
	err := repo.read(func(t *tables) error {
		for k, pb := range t.phaseBooks {
			if k.phaseID == phaseID {
				pbs = append(pbs, pb)
			}
		}
		return nil
	})
	sort.Slice(pbs, func(i, j int) bool { return pbs[i].Order < pbs[j].Order })
	return pbs, err
}

func (repo *curriculumRepository) UpdatePhaseBookOrder(ctx context.Context, phaseID, bookID string, order int) error {
	return repo.write(func(t *tables) error {
		key := phaseBookKey{phaseID: phaseID, bookID: bookID}
		pb, ok := t.phaseBooks[key]
		if !ok {
			return curriculum.ErrPhaseBookNotFound
		}
		if err := t.checkOrderFree(curriculum.BooksOf(phaseID), order, bookID); err != nil {
			return err
		}
		pb.Order = order
		t.phaseBooks[key] = pb
		return nil
	})
}

func (repo *curriculumRepository) DeletePhaseBook(ctx context.Context, phaseID, bookID string) error {
	return repo.write(func(t *tables) error {
		key := phaseBookKey{phaseID: phaseID, bookID: bookID}
		if _, ok := t.phaseBooks[key]; !ok {
			return curriculum.ErrPhaseBookNotFound
		}
		delete(t.phaseBooks, key)
		return nil
	})
}

// Books

func (repo *curriculumRepository) CreateBook(ctx context.Context, book curriculum.Book) (curriculum.Book, error) {
	err := repo.write(func(t *tables) error {
		book.ID = uuid.New().String()
		t.books[book.ID] = book
		return nil
	})
	return book, err
}

func (repo *curriculumRepository) GetBook(ctx context.Context, id string) (curriculum.Book, error) {
	var book curriculum.Book
	err := repo.read(func(t *tables) error {
		var ok bool
		if book, ok = t.books[id]; !ok {
			return curriculum.ErrBookNotFound
		}
		return nil
	})
	return book, err
}

func (repo *curriculumRepository) QueryBooks(ctx context.Context, filter *curriculum.BookFilter, ordering []core.DBOrdering, page core.Pagination) ([]curriculum.Book, int, error) {
	books := make([]curriculum.Book, 0)
	err := repo.read(func(t *tables) error {
		for _, book := range t.books {
			if filter == nil || containsFold(book.Title, filter.Search) {
				books = append(books, book)
			}
		}
		return nil
	})
	sort.SliceStable(books, func(i, j int) bool {
		return titleLess(books[i].Title, books[i].ID, books[j].Title, books[j].ID, ordering)
	})
	start, end := page.Page(len(books))
	return books[start:end], len(books), err
}

func (repo *curriculumRepository) UpdateBook(ctx context.Context, book curriculum.Book) (curriculum.Book, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.books[book.ID]; !ok {
			return curriculum.ErrBookNotFound
		}
		t.books[book.ID] = book
		return nil
	})
	return book, err
}

func (repo *curriculumRepository) DeleteBook(ctx context.Context, id string) error {
	return repo.write(func(t *tables) error {
		if _, ok := t.books[id]; !ok {
			return curriculum.ErrBookNotFound
		}
		t.deleteBook(id)
		return nil
	})
}

// Lessons

func (repo *curriculumRepository) CreateLesson(ctx context.Context, lsn curriculum.Lesson) (curriculum.Lesson, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.books[lsn.BookID]; !ok {
			return core.NewParentNotFoundError("book", lsn.BookID)
		}
		if err := t.checkOrderFree(curriculum.LessonsOf(lsn.BookID), lsn.Order, ""); err != nil {
			return err
		}
		lsn.ID = uuid.New().String()
		t.lessons[lsn.ID] = lsn
		return nil
	})
	return lsn, err
}

func (repo *curriculumRepository) GetLesson(ctx context.Context, id string) (curriculum.Lesson, error) {
	var lsn curriculum.Lesson
	err := repo.read(func(t *tables) error {
		var ok bool
		if lsn, ok = t.lessons[id]; !ok {
			return curriculum.ErrLessonNotFound
		}
		return nil
	})
	return lsn, err
}

func (repo *curriculumRepository) QueryLessons(ctx context.Context, bookID string) ([]curriculum.Lesson, error) {
	lessons := make([]curriculum.Lesson, 0)
	err := repo.read(func(t *tables) error {
		for _, lsn := range t.lessons {
			if lsn.BookID == bookID {
				lessons = append(lessons, lsn)
			}
		}
		return nil
	})
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
	return lessons, err
}

func (repo *curriculumRepository) UpdateLesson(ctx context.Context, lsn curriculum.Lesson) (curriculum.Lesson, error) {
	err := repo.write(func(t *tables) error {
		orig, ok := t.lessons[lsn.ID]
		if !ok {
			return curriculum.ErrLessonNotFound
		}
		if err := t.checkOrderFree(curriculum.LessonsOf(orig.BookID), lsn.Order, lsn.ID); err != nil {
			return err
		}
		lsn.BookID = orig.BookID
		t.lessons[lsn.ID] = lsn
		return nil
	})
	return lsn, err
}

func (repo *curriculumRepository) DeleteLesson(ctx context.Context, id string) error {
	return repo.write(func(t *tables) error {
		if _, ok := t.lessons[id]; !ok {
			return curriculum.ErrLessonNotFound
		}
		t.deleteLesson(id)
		return nil
	})
}

func (repo *curriculumRepository) ProgramLessons(ctx context.Context, programID string) ([]curriculum.Lesson, error) {
	var lessons []curriculum.Lesson
	err := repo.read(func(t *tables) error {
		lessons = t.programLessons(programID)
		return nil
	})
	return lessons, err
}

func (t *tables) programLessons(programID string) []curriculum.Lesson {
	var (
		phases      []curriculum.Phase
		memberships []curriculum.PhaseBook
		lessons     []curriculum.Lesson
	)
	phaseIDs := make(map[string]bool)
	for _, ph := range t.phases {
		if ph.ProgramID == programID {
			phases = append(phases, ph)
			phaseIDs[ph.ID] = true
		}
	}
	bookIDs := make(map[string]bool)
	for k, pb := range t.phaseBooks {
		if phaseIDs[k.phaseID] {
			memberships = append(memberships, pb)
			bookIDs[k.bookID] = true
		}
	}
	for _, lsn := range t.lessons {
		if bookIDs[lsn.BookID] {
			lessons = append(lessons, lsn)
		}
	}
	return curriculum.Flatten(phases, memberships, lessons)
}

// Questions

func (repo *curriculumRepository) CreateQuestion(ctx context.Context, q curriculum.Question) (curriculum.Question, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.lessons[q.LessonID]; !ok {
			return core.NewParentNotFoundError("lesson", q.LessonID)
		}
		q.ID = uuid.New().String()
		q.Options = append([]string(nil), q.Options...)
		q.CorrectOptions = append([]int(nil), q.CorrectOptions...)
		t.questions[q.ID] = q
		return nil
	})
	return q, err
}

func (repo *curriculumRepository) GetQuestion(ctx context.Context, id string) (curriculum.Question, error) {
	var q curriculum.Question
	err := repo.read(func(t *tables) error {
		var ok bool
		if q, ok = t.questions[id]; !ok {
			return curriculum.ErrQuestionNotFound
		}
		return nil
	})
	return q, err
}

func (repo *curriculumRepository) QueryQuestions(ctx context.Context, lessonID string) ([]curriculum.Question, error) {
	questions := make([]curriculum.Question, 0)
	err := repo.read(func(t *tables) error {
		for _, q := range t.questions {
			if q.LessonID == lessonID {
				questions = append(questions, q)
			}
		}
		return nil
	})
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions, err
}

func (repo *curriculumRepository) DeleteQuestion(ctx context.Context, id string) error {
	return repo.write(func(t *tables) error {
		if _, ok := t.questions[id]; !ok {
			return curriculum.ErrQuestionNotFound
		}
		delete(t.questions, id)
		return nil
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// titleLess orders by title (the only sortable field besides id), then id.
func titleLess(titleA, idA, titleB, idB string, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		var a, b string
		switch ord.Field {
		case "title":
			a, b = titleA, titleB
		case "id":
			a, b = idA, idB
		default:
			continue
		}
		if a == b {
			continue
		}
		if ord.Ascending {
			return a < b
		}
		return a > b
	}
	if titleA != titleB {
		return titleA < titleB
	}
	return idA < idB
}
