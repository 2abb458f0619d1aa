package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/session"
	"github.com/trezcool/masomo-academy/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateProgram(t *testing.T, svc curriculum.Service, title string, studyDays ...string) curriculum.Program {
	prog, err := svc.CreateProgram(context.Background(), curriculum.NewProgram{Title: title, StudyDays: studyDays})
	if err != nil {
		t.Fatalf("createProgram() failed: %v", err)
	}
	return prog
}

func AddPhase(t *testing.T, svc curriculum.Service, programID string) curriculum.Phase {
	ph, err := svc.AddPhase(context.Background(), programID, curriculum.NewPhase{})
	if err != nil {
		t.Fatalf("addPhase() failed: %v", err)
	}
	return ph
}

func CreateBook(t *testing.T, svc curriculum.Service, title string) curriculum.Book {
	book, err := svc.CreateBook(context.Background(), curriculum.NewBook{Title: title})
	if err != nil {
		t.Fatalf("createBook() failed: %v", err)
	}
	return book
}

func AddBookToPhase(t *testing.T, svc curriculum.Service, phaseID, bookID string) curriculum.PhaseBook {
	pb, err := svc.AddBookToPhase(context.Background(), phaseID, bookID, nil)
	if err != nil {
		t.Fatalf("addBookToPhase() failed: %v", err)
	}
	return pb
}

// AddLessons appends n lessons to a book.
func AddLessons(t *testing.T, svc curriculum.Service, bookID string, n int) []curriculum.Lesson {
	lessons := make([]curriculum.Lesson, 0, n)
	for i := 0; i < n; i++ {
		lsn, err := svc.AddLesson(context.Background(), bookID, curriculum.NewLesson{
			BookPartPDF:   fmt.Sprintf("part-%d.pdf", i),
			BookPartAudio: fmt.Sprintf("part-%d.mp3", i),
			LessonAudio:   fmt.Sprintf("lesson-%d.mp3", i),
		})
		if err != nil {
			t.Fatalf("addLesson() failed: %v", err)
		}
		lessons = append(lessons, lsn)
	}
	return lessons
}

// SeedProgram creates a program made of one phase holding one book of n lessons.
func SeedProgram(t *testing.T, svc curriculum.Service, title string, n int, studyDays ...string) (curriculum.Program, []curriculum.Lesson) {
	prog := CreateProgram(t, svc, title, studyDays...)
	ph := AddPhase(t, svc, prog.ID)
	book := CreateBook(t, svc, title+" book")
	AddBookToPhase(t, svc, ph.ID, book.ID)
	return prog, AddLessons(t, svc, book.ID, n)
}

func CreateSession(t *testing.T, svc session.Service, programID string, start core.Date) session.Session {
	sess, err := svc.Create(context.Background(), session.NewSession{ProgramID: programID, StartDate: start})
	if err != nil {
		t.Fatalf("createSession() failed: %v", err)
	}
	return sess
}
