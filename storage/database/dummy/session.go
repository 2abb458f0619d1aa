package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/session"
	"github.com/trezcool/masomo-academy/core/user"
)

type sessionRepository struct {
	conn
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{conn{db: db}}
}

func (repo *sessionRepository) Atomic(ctx context.Context, fn func(repo session.Repository) error) error {
	return repo.atomic(func(tx conn) error {
		return fn(&sessionRepository{tx})
	})
}

func (repo *sessionRepository) GetProgram(ctx context.Context, id string) (curriculum.Program, error) {
	return (&curriculumRepository{repo.conn}).GetProgram(ctx, id)
}

func (repo *sessionRepository) GetBook(ctx context.Context, id string) (curriculum.Book, error) {
	return (&curriculumRepository{repo.conn}).GetBook(ctx, id)
}

func (repo *sessionRepository) ProgramLessons(ctx context.Context, programID string) ([]curriculum.Lesson, error) {
	return (&curriculumRepository{repo.conn}).ProgramLessons(ctx, programID)
}

func (repo *sessionRepository) GetUser(ctx context.Context, id string) (user.User, error) {
	return (&userRepository{repo.conn}).GetUserByID(ctx, id)
}

// Sessions

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.programs[sess.ProgramID]; !ok {
			return core.NewParentNotFoundError("program", sess.ProgramID)
		}
		sess.ID = uuid.New().String()
		t.sessions[sess.ID] = sess
		return nil
	})
	return sess, err
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (session.Session, error) {
	var sess session.Session
	err := repo.read(func(t *tables) error {
		var ok bool
		if sess, ok = t.sessions[id]; !ok {
			return session.ErrNotFound
		}
		return nil
	})
	return sess, err
}

// LockSession only checks that the session exists: the DB is already locked by Atomic.
func (repo *sessionRepository) LockSession(ctx context.Context, id string) error {
	_, err := repo.GetSession(ctx, id)
	return err
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, filter *session.QueryFilter, page core.Pagination) ([]session.Session, int, error) {
	sessions := make([]session.Session, 0)
	err := repo.read(func(t *tables) error {
		for _, sess := range t.sessions {
			if filter == nil || filter.ProgramID == "" || sess.ProgramID == filter.ProgramID {
				sessions = append(sessions, sess)
			}
		}
		return nil
	})
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.ID < b.ID
	})
	start, end := page.Page(len(sessions))
	return sessions[start:end], len(sessions), err
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	err := repo.write(func(t *tables) error {
		orig, ok := t.sessions[sess.ID]
		if !ok {
			return session.ErrNotFound
		}
		sess.ProgramID = orig.ProgramID
		t.sessions[sess.ID] = sess
		return nil
	})
	return sess, err
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	return repo.write(func(t *tables) error {
		if _, ok := t.sessions[id]; !ok {
			return session.ErrNotFound
		}
		t.deleteSession(id)
		return nil
	})
}

// Members

func (repo *sessionRepository) AddMember(ctx context.Context, sessionID, userID string, role session.Role) error {
	return repo.write(func(t *tables) error {
		if _, ok := t.sessions[sessionID]; !ok {
			return core.NewParentNotFoundError("session", sessionID)
		}
		if _, ok := t.users[userID]; !ok {
			return core.NewParentNotFoundError("user", userID)
		}
		t.members[memberKey{sessionID: sessionID, userID: userID, role: role}] = struct{}{}
		return nil
	})
}

func (repo *sessionRepository) RemoveMember(ctx context.Context, sessionID, userID string, role session.Role) error {
	return repo.write(func(t *tables) error {
		key := memberKey{sessionID: sessionID, userID: userID, role: role}
		if _, ok := t.members[key]; !ok {
			return session.ErrMemberNotFound
		}
		delete(t.members, key)
		return nil
	})
}

func (repo *sessionRepository) QueryMembers(ctx context.Context, sessionID string, role session.Role) ([]user.User, error) {
	users := make([]user.User, 0)
	err := repo.read(func(t *tables) error {
		for k := range t.members {
			if k.sessionID == sessionID && k.role == role {
				if usr, ok := t.users[k.userID]; ok {
					users = append(users, usr)
				}
			}
		}
		return nil
	})
	sortUsers(users, nil)
	return users, err
}

// Events

func (repo *sessionRepository) CreateEvents(ctx context.Context, events ...session.Event) ([]session.Event, error) {
	created := make([]session.Event, 0, len(events))
	err := repo.atomic(func(tx conn) error {
		return tx.write(func(t *tables) error {
			for _, evt := range events {
				if _, ok := t.sessions[evt.SessionID]; !ok {
					return core.NewParentNotFoundError("session", evt.SessionID)
				}
				if evt.LessonID.Valid {
					if _, ok := t.lessons[evt.LessonID.String]; !ok {
						return core.NewParentNotFoundError("lesson", evt.LessonID.String)
					}
				}
				evt.ID = uuid.New().String()
				t.events[evt.ID] = evt
				created = append(created, evt)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *sessionRepository) GetEvent(ctx context.Context, id string) (session.Event, error) {
	var evt session.Event
	err := repo.read(func(t *tables) error {
		var ok bool
		if evt, ok = t.events[id]; !ok {
			return session.ErrEventNotFound
		}
		return nil
	})
	return evt, err
}

func (repo *sessionRepository) QueryEvents(ctx context.Context, sessionID string, filter *session.EventFilter, page core.Pagination) ([]session.Event, int, error) {
	events := make([]session.Event, 0)
	err := repo.read(func(t *tables) error {
		for _, evt := range t.events {
			if evt.SessionID != sessionID {
				continue
			}
			if filter != nil && filter.IsBreak != nil && evt.IsBreak != *filter.IsBreak {
				continue
			}
			events = append(events, evt)
		}
		return nil
	})
	sortEvents(events)
	start, end := page.Page(len(events))
	return events[start:end], len(events), err
}

func (repo *sessionRepository) DeleteEvent(ctx context.Context, id string) error {
	return repo.write(func(t *tables) error {
		if _, ok := t.events[id]; !ok {
			return session.ErrEventNotFound
		}
		delete(t.events, id)
		return nil
	})
}

func (repo *sessionRepository) DeleteLessonEvents(ctx context.Context, sessionID string) error {
	return repo.write(func(t *tables) error {
		for id, evt := range t.events {
			if evt.SessionID == sessionID && evt.IsLesson() {
				delete(t.events, id)
			}
		}
		return nil
	})
}

func (repo *sessionRepository) ShiftLessonEvents(ctx context.Context, sessionID string, from core.Date, days int) error {
	return repo.write(func(t *tables) error {
		var events []session.Event
		for _, evt := range t.events {
			if evt.SessionID == sessionID {
				events = append(events, evt)
			}
		}
		for _, evt := range session.ShiftLessons(events, from, days) {
			t.events[evt.ID] = evt
		}
		return nil
	})
}

// Exams

func (repo *sessionRepository) CreateExam(ctx context.Context, exam session.Exam) (session.Exam, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.sessions[exam.SessionID]; !ok {
			return core.NewParentNotFoundError("session", exam.SessionID)
		}
		if _, ok := t.books[exam.BookID]; !ok {
			return core.NewParentNotFoundError("book", exam.BookID)
		}
		exam.ID = uuid.New().String()
		t.exams[exam.ID] = exam
		return nil
	})
	return exam, err
}

func (repo *sessionRepository) GetExam(ctx context.Context, id string) (session.Exam, error) {
	var exam session.Exam
	err := repo.read(func(t *tables) error {
		var ok bool
		if exam, ok = t.exams[id]; !ok {
			return session.ErrExamNotFound
		}
		return nil
	})
	return exam, err
}

func (repo *sessionRepository) QueryExams(ctx context.Context, sessionID string) ([]session.Exam, error) {
	exams := make([]session.Exam, 0)
	err := repo.read(func(t *tables) error {
		for _, exam := range t.exams {
			if exam.SessionID == sessionID {
				exams = append(exams, exam)
			}
		}
		return nil
	})
	sort.Slice(exams, func(i, j int) bool {
		a, b := exams[i], exams[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.ID < b.ID
	})
	return exams, err
}

func (repo *sessionRepository) DeleteExam(ctx context.Context, id string) error {
	return repo.write(func(t *tables) error {
		if _, ok := t.exams[id]; !ok {
			return session.ErrExamNotFound
		}
		t.deleteExam(id)
		return nil
	})
}

// Exam attempts

func (repo *sessionRepository) CreateExamAttempt(ctx context.Context, att session.ExamAttempt) (session.ExamAttempt, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.exams[att.ExamID]; !ok {
			return core.NewParentNotFoundError("exam", att.ExamID)
		}
		if _, ok := t.users[att.StudentID]; !ok {
			return core.NewParentNotFoundError("student", att.StudentID)
		}
		if _, ok := t.users[att.ExaminerID]; !ok {
			return core.NewParentNotFoundError("examiner", att.ExaminerID)
		}
		att.ID = uuid.New().String()
		t.attempts[att.ID] = att
		return nil
	})
	return att, err
}

func (repo *sessionRepository) GetExamAttempt(ctx context.Context, id string) (session.ExamAttempt, error) {
	var att session.ExamAttempt
	err := repo.read(func(t *tables) error {
		var ok bool
		if att, ok = t.attempts[id]; !ok {
			return session.ErrAttemptNotFound
		}
		return nil
	})
	return att, err
}

func (repo *sessionRepository) QueryExamAttempts(ctx context.Context, filter session.AttemptFilter) ([]session.ExamAttempt, error) {
	attempts := make([]session.ExamAttempt, 0)
	err := repo.read(func(t *tables) error {
		for _, att := range t.attempts {
			if filter.ExamID != "" && att.ExamID != filter.ExamID {
				continue
			}
			if filter.StudentID != "" && att.StudentID != filter.StudentID {
				continue
			}
			attempts = append(attempts, att)
		}
		return nil
	})
	sort.Slice(attempts, func(i, j int) bool {
		a, b := attempts[i], attempts[j]
		if !a.AttemptDate.Equal(b.AttemptDate) {
			return a.AttemptDate.Before(b.AttemptDate)
		}
		return a.ID < b.ID
	})
	return attempts, err
}

func (repo *sessionRepository) UpdateExamAttempt(ctx context.Context, att session.ExamAttempt) (session.ExamAttempt, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.attempts[att.ID]; !ok {
			return session.ErrAttemptNotFound
		}
		t.attempts[att.ID] = att
		return nil
	})
	return att, err
}

// sortEvents orders events by date, breaks first on the same date, then by id.
func sortEvents(events []session.Event) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.EventDate.Equal(b.EventDate) {
			return a.EventDate.Before(b.EventDate)
		}
		if a.IsBreak != b.IsBreak {
			return a.IsBreak
		}
		return a.ID < b.ID
	})
}
