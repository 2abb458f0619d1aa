package curriculum

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/weekday"
)

var (
	// errors
	ErrProgramNotFound         = errors.New("program not found")
	ErrPhaseNotFound           = errors.New("phase not found")
	ErrBookNotFound            = errors.New("book not found")
	ErrLessonNotFound          = errors.New("lesson not found")
	ErrQuestionNotFound        = errors.New("question not found")
	ErrPhaseBookNotFound       = errors.New("book not in phase")
	ErrBookAlreadyInPhase      = errors.New("book already in phase")
	ErrDuplicateOrder          = errors.New("order already taken by a sibling")
	ErrInvalidOrderValue       = errors.New("order must be a non-negative integer")
	ErrCorrectOptionOutOfRange = errors.New("correct option index is out of range of options")
)

type (
	// Repository is the curriculum storage. Getters return the matching Err*NotFound error
	// when the entity does not exist.
	Repository interface {
		OrderStore

		// Atomic runs fn within a single transaction. repo is bound to that transaction:
		// if fn returns an error, none of its writes are kept.
		Atomic(ctx context.Context, fn func(repo Repository) error) error

		CreateProgram(ctx context.Context, prog Program) (Program, error)
		GetProgram(ctx context.Context, id string) (Program, error)
		QueryPrograms(ctx context.Context, filter *ProgramFilter, ordering []core.DBOrdering, page core.Pagination) ([]Program, int, error)
		UpdateProgram(ctx context.Context, prog Program) (Program, error)
		DeleteProgram(ctx context.Context, id string) error

		CreatePhase(ctx context.Context, ph Phase) (Phase, error)
		GetPhase(ctx context.Context, id string) (Phase, error)
		// QueryPhases returns the phases of a program ordered by Phase.Order.
		QueryPhases(ctx context.Context, programID string) ([]Phase, error)
		UpdatePhaseOrder(ctx context.Context, id string, order int) error
		DeletePhase(ctx context.Context, id string) error

		CreatePhaseBook(ctx context.Context, pb PhaseBook) (PhaseBook, error)
		GetPhaseBook(ctx context.Context, phaseID, bookID string) (PhaseBook, error)
		// QueryPhaseBooks returns the memberships of a phase ordered by PhaseBook.Order.
		QueryPhaseBooks(ctx context.Context, phaseID string) ([]PhaseBook, error)
		UpdatePhaseBookOrder(ctx context.Context, phaseID, bookID string, order int) error
		DeletePhaseBook(ctx context.Context, phaseID, bookID string) error

		CreateBook(ctx context.Context, book Book) (Book, error)
		GetBook(ctx context.Context, id string) (Book, error)
		QueryBooks(ctx context.Context, filter *BookFilter, ordering []core.DBOrdering, page core.Pagination) ([]Book, int, error)
		UpdateBook(ctx context.Context, book Book) (Book, error)
		DeleteBook(ctx context.Context, id string) error

		CreateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		// QueryLessons returns the lessons of a book ordered by Lesson.Order.
		QueryLessons(ctx context.Context, bookID string) ([]Lesson, error)
		UpdateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error

		// ProgramLessons returns the flattened curriculum of a program (see Flatten).
		ProgramLessons(ctx context.Context, programID string) ([]Lesson, error)

		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestion(ctx context.Context, id string) (Question, error)
		QueryQuestions(ctx context.Context, lessonID string) ([]Question, error)
		DeleteQuestion(ctx context.Context, id string) error
	}

	Service interface {
		CreateProgram(ctx context.Context, np NewProgram) (Program, error)
		GetProgram(ctx context.Context, id string) (Program, error)
		QueryPrograms(ctx context.Context, filter *ProgramFilter, ordering []core.DBOrdering, page core.Pagination) ([]Program, int, error)
		UpdateProgram(ctx context.Context, id string, up UpdateProgram) (Program, error)
		DeleteProgram(ctx context.Context, id string) error
		Flatten(ctx context.Context, programID string) ([]Lesson, error)

		AddPhase(ctx context.Context, programID string, np NewPhase) (Phase, error)
		GetPhase(ctx context.Context, id string) (Phase, error)
		QueryPhases(ctx context.Context, programID string) ([]Phase, error)
		ReorderPhase(ctx context.Context, id string, order int) (Phase, error)
		DeletePhase(ctx context.Context, id string) error

		AddBookToPhase(ctx context.Context, phaseID, bookID string, order *int) (PhaseBook, error)
		QueryPhaseBooks(ctx context.Context, phaseID string) ([]PhaseBook, error)
		ReorderPhaseBook(ctx context.Context, phaseID, bookID string, order int) (PhaseBook, error)
		RemoveBookFromPhase(ctx context.Context, phaseID, bookID string) error

		CreateBook(ctx context.Context, nb NewBook) (Book, error)
		GetBook(ctx context.Context, id string) (Book, error)
		QueryBooks(ctx context.Context, filter *BookFilter, ordering []core.DBOrdering, page core.Pagination) ([]Book, int, error)
		UpdateBook(ctx context.Context, id string, ub UpdateBook) (Book, error)
		DeleteBook(ctx context.Context, id string) error

		AddLesson(ctx context.Context, bookID string, nl NewLesson) (Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		QueryLessons(ctx context.Context, bookID string) ([]Lesson, error)
		UpdateLesson(ctx context.Context, id string, ul UpdateLesson) (Lesson, error)
		ReorderLesson(ctx context.Context, id string, order int) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error

		AddQuestion(ctx context.Context, lessonID string, nq NewQuestion) (Question, error)
		QueryQuestions(ctx context.Context, lessonID string) ([]Question, error)
		DeleteQuestion(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// parentErr turns the not found error of a parent into a core.ErrParentNotFound error.
func parentErr(err, notFound error, entity, id string) error {
	if errors.Cause(err) == notFound {
		return core.NewParentNotFoundError(entity, id)
	}
	return err
}

// Programs

func (svc *service) CreateProgram(ctx context.Context, np NewProgram) (Program, error) {
	mask, err := weekday.Encode(np.StudyDays...)
	if err != nil {
		return Program{}, err
	}
	return svc.repo.CreateProgram(ctx, Program{Title: np.Title, StudyDays: mask})
}

func (svc *service) GetProgram(ctx context.Context, id string) (Program, error) {
	return svc.repo.GetProgram(ctx, id)
}

func (svc *service) QueryPrograms(ctx context.Context, filter *ProgramFilter, ordering []core.DBOrdering, page core.Pagination) ([]Program, int, error) {
	return svc.repo.QueryPrograms(ctx, filter, ordering, page)
}

func (svc *service) UpdateProgram(ctx context.Context, id string, up UpdateProgram) (Program, error) {
	var prog Program
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		var err error
		if prog, err = repo.GetProgram(ctx, id); err != nil {
			return err
		}
		if up.Title != "" {
			prog.Title = up.Title
		}
		if up.StudyDays != nil {
			if prog.StudyDays, err = weekday.Encode(up.StudyDays...); err != nil {
				return err
			}
		}
		prog, err = repo.UpdateProgram(ctx, prog)
		return err
	})
	return prog, err
}

func (svc *service) DeleteProgram(ctx context.Context, id string) error {
	return svc.repo.DeleteProgram(ctx, id)
}

// Flatten returns the lessons of a program in curriculum order.
func (svc *service) Flatten(ctx context.Context, programID string) ([]Lesson, error) {
	if _, err := svc.repo.GetProgram(ctx, programID); err != nil {
		return nil, parentErr(err, ErrProgramNotFound, "program", programID)
	}
	return svc.repo.ProgramLessons(ctx, programID)
}

// Phases

func (svc *service) AddPhase(ctx context.Context, programID string, np NewPhase) (Phase, error) {
	var ph Phase
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		scope := PhasesOf(programID)
		if err := repo.LockScope(ctx, scope); err != nil {
			return err
		}
		order, err := AssignOrder(ctx, repo, scope, np.Order)
		if err != nil {
			return err
		}
		ph, err = repo.CreatePhase(ctx, Phase{ProgramID: programID, Order: order})
		return err
	})
	return ph, err
}

func (svc *service) GetPhase(ctx context.Context, id string) (Phase, error) {
	return svc.repo.GetPhase(ctx, id)
}

func (svc *service) QueryPhases(ctx context.Context, programID string) ([]Phase, error) {
	if _, err := svc.repo.GetProgram(ctx, programID); err != nil {
		return nil, parentErr(err, ErrProgramNotFound, "program", programID)
	}
	return svc.repo.QueryPhases(ctx, programID)
}

func (svc *service) ReorderPhase(ctx context.Context, id string, order int) (Phase, error) {
	var ph Phase
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		var err error
		if ph, err = repo.GetPhase(ctx, id); err != nil {
			return err
		}
		scope := PhasesOf(ph.ProgramID)
		if err = repo.LockScope(ctx, scope); err != nil {
			return err
		}
		changed, err := CheckReorder(ctx, repo, scope, ph.ID, ph.Order, order)
		if err != nil || !changed {
			return err
		}
		if err = repo.UpdatePhaseOrder(ctx, ph.ID, order); err != nil {
			return err
		}
		ph.Order = order
		return nil
	})
	return ph, err
}

func (svc *service) DeletePhase(ctx context.Context, id string) error {
	return svc.repo.DeletePhase(ctx, id)
}

// Phase books

func (svc *service) AddBookToPhase(ctx context.Context, phaseID, bookID string, order *int) (PhaseBook, error) {
	var pb PhaseBook
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		scope := BooksOf(phaseID)
		if err := repo.LockScope(ctx, scope); err != nil {
			return err
		}
		if _, err := repo.GetBook(ctx, bookID); err != nil {
			return parentErr(err, ErrBookNotFound, "book", bookID)
		}
		if _, err := repo.GetPhaseBook(ctx, phaseID, bookID); err == nil {
			return ErrBookAlreadyInPhase
		} else if errors.Cause(err) != ErrPhaseBookNotFound {
			return err
		}
		o, err := AssignOrder(ctx, repo, scope, order)
		if err != nil {
			return err
		}
		pb, err = repo.CreatePhaseBook(ctx, PhaseBook{PhaseID: phaseID, BookID: bookID, Order: o})
		return err
	})
	return pb, err
}

func (svc *service) QueryPhaseBooks(ctx context.Context, phaseID string) ([]PhaseBook, error) {
	if _, err := svc.repo.GetPhase(ctx, phaseID); err != nil {
		return nil, parentErr(err, ErrPhaseNotFound, "phase", phaseID)
	}
	return svc.repo.QueryPhaseBooks(ctx, phaseID)
}

func (svc *service) ReorderPhaseBook(ctx context.Context, phaseID, bookID string, order int) (PhaseBook, error) {
	var pb PhaseBook
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		scope := BooksOf(phaseID)
		if err := repo.LockScope(ctx, scope); err != nil {
			return err
		}
		var err error
		if pb, err = repo.GetPhaseBook(ctx, phaseID, bookID); err != nil {
			return err
		}
		changed, err := CheckReorder(ctx, repo, scope, pb.BookID, pb.Order, order)
		if err != nil || !changed {
			return err
		}
		if err = repo.UpdatePhaseBookOrder(ctx, phaseID, bookID, order); err != nil {
			return err
		}
		pb.Order = order
		return nil
	})
	return pb, err
}

func (svc *service) RemoveBookFromPhase(ctx context.Context, phaseID, bookID string) error {
	return svc.repo.DeletePhaseBook(ctx, phaseID, bookID)
}

// Books

func (svc *service) CreateBook(ctx context.Context, nb NewBook) (Book, error) {
	return svc.repo.CreateBook(ctx, Book{Title: nb.Title, PDF: nb.PDF, Audio: nb.Audio})
}

func (svc *service) GetBook(ctx context.Context, id string) (Book, error) {
	return svc.repo.GetBook(ctx, id)
}

func (svc *service) QueryBooks(ctx context.Context, filter *BookFilter, ordering []core.DBOrdering, page core.Pagination) ([]Book, int, error) {
	return svc.repo.QueryBooks(ctx, filter, ordering, page)
}

func (svc *service) UpdateBook(ctx context.Context, id string, ub UpdateBook) (Book, error) {
	var book Book
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		var err error
		if book, err = repo.GetBook(ctx, id); err != nil {
			return err
		}
		if ub.Title != "" {
			book.Title = ub.Title
		}
		if ub.PDF.Valid {
			book.PDF = ub.PDF
		}
		if ub.Audio.Valid {
			book.Audio = ub.Audio
		}
		book, err = repo.UpdateBook(ctx, book)
		return err
	})
	return book, err
}

func (svc *service) DeleteBook(ctx context.Context, id string) error {
	return svc.repo.DeleteBook(ctx, id)
}

// Lessons

func (svc *service) AddLesson(ctx context.Context, bookID string, nl NewLesson) (Lesson, error) {
	var lsn Lesson
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		scope := LessonsOf(bookID)
		if err := repo.LockScope(ctx, scope); err != nil {
			return err
		}
		order, err := AssignOrder(ctx, repo, scope, nl.Order)
		if err != nil {
			return err
		}
		lsn, err = repo.CreateLesson(ctx, Lesson{
			BookID:           bookID,
			Order:            order,
			BookPartPDF:      nl.BookPartPDF,
			BookPartAudio:    nl.BookPartAudio,
			LessonAudio:      nl.LessonAudio,
			ExplanationNotes: nl.ExplanationNotes,
		})
		return err
	})
	return lsn, err
}

func (svc *service) GetLesson(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLesson(ctx, id)
}

func (svc *service) QueryLessons(ctx context.Context, bookID string) ([]Lesson, error) {
	if _, err := svc.repo.GetBook(ctx, bookID); err != nil {
		return nil, parentErr(err, ErrBookNotFound, "book", bookID)
	}
	return svc.repo.QueryLessons(ctx, bookID)
}

func (svc *service) UpdateLesson(ctx context.Context, id string, ul UpdateLesson) (Lesson, error) {
	var lsn Lesson
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		var err error
		if lsn, err = repo.GetLesson(ctx, id); err != nil {
			return err
		}
		if ul.BookPartPDF != nil {
			lsn.BookPartPDF = core.CleanString(*ul.BookPartPDF)
		}
		if ul.BookPartAudio != nil {
			lsn.BookPartAudio = core.CleanString(*ul.BookPartAudio)
		}
		if ul.LessonAudio != nil {
			lsn.LessonAudio = core.CleanString(*ul.LessonAudio)
		}
		if ul.ExplanationNotes != nil {
			lsn.ExplanationNotes = *ul.ExplanationNotes
		}
		lsn, err = repo.UpdateLesson(ctx, lsn)
		return err
	})
	return lsn, err
}

func (svc *service) ReorderLesson(ctx context.Context, id string, order int) (Lesson, error) {
	var lsn Lesson
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		var err error
		if lsn, err = repo.GetLesson(ctx, id); err != nil {
			return err
		}
		scope := LessonsOf(lsn.BookID)
		if err = repo.LockScope(ctx, scope); err != nil {
			return err
		}
		changed, err := CheckReorder(ctx, repo, scope, lsn.ID, lsn.Order, order)
		if err != nil || !changed {
			return err
		}
		lsn.Order = order
		lsn, err = repo.UpdateLesson(ctx, lsn)
		return err
	})
	return lsn, err
}

func (svc *service) DeleteLesson(ctx context.Context, id string) error {
	return svc.repo.DeleteLesson(ctx, id)
}

// Questions

func (svc *service) AddQuestion(ctx context.Context, lessonID string, nq NewQuestion) (Question, error) {
	if err := nq.checkCorrectOptions(); err != nil {
		return Question{}, err
	}
	if _, err := svc.repo.GetLesson(ctx, lessonID); err != nil {
		return Question{}, parentErr(err, ErrLessonNotFound, "lesson", lessonID)
	}
	return svc.repo.CreateQuestion(ctx, Question{
		LessonID:       lessonID,
		Question:       nq.Question,
		Options:        nq.Options,
		CorrectOptions: nq.CorrectOptions,
		Explanation:    nq.Explanation,
	})
}

func (svc *service) QueryQuestions(ctx context.Context, lessonID string) ([]Question, error) {
	if _, err := svc.repo.GetLesson(ctx, lessonID); err != nil {
		return nil, parentErr(err, ErrLessonNotFound, "lesson", lessonID)
	}
	return svc.repo.QueryQuestions(ctx, lessonID)
}

func (svc *service) DeleteQuestion(ctx context.Context, id string) error {
	return svc.repo.DeleteQuestion(ctx, id)
}
