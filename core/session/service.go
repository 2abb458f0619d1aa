package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/user"
)

var (
	// errors
	ErrNotFound              = errors.New("session not found")
	ErrEventNotFound         = errors.New("session event not found")
	ErrExamNotFound          = errors.New("exam not found")
	ErrMemberNotFound        = errors.New("user is not a member of the session")
	ErrInvalidRole           = errors.New("invalid member role")
	ErrNoStudyDaysConfigured = errors.New("program has no study days configured")
	ErrInvalidDuration       = errors.New("number of days must be at least 1")
	ErrBreakWithLesson       = errors.New("a break cannot reference a lesson")
	ErrExamDeadline          = errors.New("start_date cannot be after deadline")
	ErrAttemptNotFound       = errors.New("exam attempt not found")
	ErrExamClosed            = errors.New("exam can only be taken between its start date and deadline")
	ErrNotEnrolled           = errors.New("student is not enrolled in the exam's session")
	ErrMaxAttemptsReached    = errors.New("student has reached the maximum number of attempts")

	NowFunc = time.Now // mockable
)

type (
	// Repository is the session storage. It also reads the curriculum of the session's program,
	// so that scheduling reads and writes happen in the same transaction.
	Repository interface {
		// Atomic runs fn within a single transaction. repo is bound to that transaction:
		// if fn returns an error, none of its writes are kept.
		Atomic(ctx context.Context, fn func(repo Repository) error) error

		GetProgram(ctx context.Context, id string) (curriculum.Program, error)
		GetBook(ctx context.Context, id string) (curriculum.Book, error)
		ProgramLessons(ctx context.Context, programID string) ([]curriculum.Lesson, error)
		GetUser(ctx context.Context, id string) (user.User, error)

		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		// LockSession locks the session until the end of the transaction. Returns ErrNotFound if it does not exist.
		LockSession(ctx context.Context, id string) error
		QuerySessions(ctx context.Context, filter *QueryFilter, page core.Pagination) ([]Session, int, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		DeleteSession(ctx context.Context, id string) error

		// AddMember is a no-op if the user is already a member with that role.
		AddMember(ctx context.Context, sessionID, userID string, role Role) error
		RemoveMember(ctx context.Context, sessionID, userID string, role Role) error
		QueryMembers(ctx context.Context, sessionID string, role Role) ([]user.User, error)

		CreateEvents(ctx context.Context, events ...Event) ([]Event, error)
		GetEvent(ctx context.Context, id string) (Event, error)
		// QueryEvents returns the events of a session ordered by EventDate, and their total count.
		QueryEvents(ctx context.Context, sessionID string, filter *EventFilter, page core.Pagination) ([]Event, int, error)
		DeleteEvent(ctx context.Context, id string) error
		DeleteLessonEvents(ctx context.Context, sessionID string) error
		// ShiftLessonEvents moves the lesson events dated on or after from, days later.
		ShiftLessonEvents(ctx context.Context, sessionID string, from core.Date, days int) error

		CreateExam(ctx context.Context, exam Exam) (Exam, error)
		GetExam(ctx context.Context, id string) (Exam, error)
		QueryExams(ctx context.Context, sessionID string) ([]Exam, error)
		DeleteExam(ctx context.Context, id string) error

		CreateExamAttempt(ctx context.Context, att ExamAttempt) (ExamAttempt, error)
		GetExamAttempt(ctx context.Context, id string) (ExamAttempt, error)
		// QueryExamAttempts returns the matching attempts ordered by AttemptDate.
		QueryExamAttempts(ctx context.Context, filter AttemptFilter) ([]ExamAttempt, error)
		UpdateExamAttempt(ctx context.Context, att ExamAttempt) (ExamAttempt, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewSession) (Session, error)
		Get(ctx context.Context, id string) (Session, error)
		Query(ctx context.Context, filter *QueryFilter, page core.Pagination) ([]Session, int, error)
		// UpdateStartDate moves the start date of a session. Its events are left as they are.
		UpdateStartDate(ctx context.Context, id string, start core.Date) (Session, error)
		Delete(ctx context.Context, id string) error

		AddMembers(ctx context.Context, sessionID string, role Role, userIDs ...string) error
		RemoveMember(ctx context.Context, sessionID string, role Role, userID string) error
		QueryMembers(ctx context.Context, sessionID string, role Role) ([]user.User, error)
		IsMember(ctx context.Context, sessionID string, role Role, userID string) (bool, error)

		CreateEvent(ctx context.Context, sessionID string, ne NewEvent) (Event, error)
		QueryEvents(ctx context.Context, sessionID string, filter *EventFilter, page core.Pagination) ([]Event, int, error)
		DeleteEvent(ctx context.Context, id string) error

		Reschedule(ctx context.Context, sessionID string, newStart *core.Date) ([]Event, error)
		AddBreak(ctx context.Context, sessionID string, start core.Date, numDays int) (Event, error)
		GetBreaks(ctx context.Context, sessionID string) ([]Event, error)
		GetLessons(ctx context.Context, sessionID string) ([]Event, error)
		EndDate(ctx context.Context, sessionID string) (core.Date, error)

		CreateExam(ctx context.Context, sessionID string, ne NewExam) (Exam, error)
		GetExam(ctx context.Context, id string) (Exam, error)
		QueryExams(ctx context.Context, sessionID string) ([]Exam, error)
		DeleteExam(ctx context.Context, id string) error

		// CreateExamAttempt records an attempt of na.StudentID at the exam, graded by examinerID.
		CreateExamAttempt(ctx context.Context, examID, examinerID string, na NewExamAttempt) (ExamAttempt, error)
		GetExamAttempt(ctx context.Context, id string) (ExamAttempt, error)
		// QueryExamAttempts returns the attempts at an exam, only those of studentID when it is not empty.
		QueryExamAttempts(ctx context.Context, examID, studentID string) ([]ExamAttempt, error)
		QueryStudentAttempts(ctx context.Context, studentID string) ([]ExamAttempt, error)
		UpdateExamAttempt(ctx context.Context, id string, ua UpdateExamAttempt) (ExamAttempt, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

// NewService returns the session Service. Members are emailed through mailSvc when they join
// a session and when its schedule changes.
func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{repo: repo, mailSvc: mailSvc}
}

func (svc *service) notify(msgs []*core.EmailMessage) {
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func parentErr(err, notFound error, entity, id string) error {
	if errors.Cause(err) == notFound {
		return core.NewParentNotFoundError(entity, id)
	}
	return err
}

func (svc *service) Create(ctx context.Context, ns NewSession) (Session, error) {
	if _, err := svc.repo.GetProgram(ctx, ns.ProgramID); err != nil {
		return Session{}, parentErr(err, curriculum.ErrProgramNotFound, "program", ns.ProgramID)
	}
	return svc.repo.CreateSession(ctx, Session{ProgramID: ns.ProgramID, StartDate: ns.StartDate})
}

func (svc *service) Get(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, page core.Pagination) ([]Session, int, error) {
	return svc.repo.QuerySessions(ctx, filter, page)
}

func (svc *service) UpdateStartDate(ctx context.Context, id string, start core.Date) (Session, error) {
	if err := requireDate("start_date", start); err != nil {
		return Session{}, err
	}
	var sess Session
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		if err := repo.LockSession(ctx, id); err != nil {
			return err
		}
		var err error
		if sess, err = repo.GetSession(ctx, id); err != nil {
			return err
		}
		sess.StartDate = start
		sess, err = repo.UpdateSession(ctx, sess)
		return err
	})
	return sess, err
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSession(ctx, id)
}

// Members

func (svc *service) AddMembers(ctx context.Context, sessionID string, role Role, userIDs ...string) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	var msgs []*core.EmailMessage
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		if err := repo.LockSession(ctx, sessionID); err != nil {
			return parentErr(err, ErrNotFound, "session", sessionID)
		}
		sess, err := repo.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		members, err := repo.QueryMembers(ctx, sessionID, role)
		if err != nil {
			return errors.Wrapf(err, "querying %ss", role)
		}
		isMember := make(map[string]bool, len(members))
		for _, m := range members {
			isMember[m.ID] = true
		}

		added := make([]user.User, 0, len(userIDs))
		for _, id := range userIDs {
			usr, err := repo.GetUser(ctx, id)
			if err != nil {
				return parentErr(err, user.ErrNotFound, "user", id)
			}
			if err := repo.AddMember(ctx, sessionID, id, role); err != nil {
				return errors.Wrapf(err, "adding %s %s", role, id)
			}
			if !isMember[id] {
				isMember[id] = true
				added = append(added, usr)
			}
		}

		if len(added) > 0 {
			prog, err := repo.GetProgram(ctx, sess.ProgramID)
			if err != nil {
				return parentErr(err, curriculum.ErrProgramNotFound, "program", sess.ProgramID)
			}
			msgs = enrollmentMessages(prog, sess, role, added)
		}
		return nil
	})
	if err != nil {
		return err
	}
	svc.notify(msgs)
	return nil
}

func (svc *service) RemoveMember(ctx context.Context, sessionID string, role Role, userID string) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	return svc.repo.RemoveMember(ctx, sessionID, userID, role)
}

func (svc *service) QueryMembers(ctx context.Context, sessionID string, role Role) ([]user.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return nil, parentErr(err, ErrNotFound, "session", sessionID)
	}
	return svc.repo.QueryMembers(ctx, sessionID, role)
}

func (svc *service) IsMember(ctx context.Context, sessionID string, role Role, userID string) (bool, error) {
	members, err := svc.QueryMembers(ctx, sessionID, role)
	if err != nil {
		return false, err
	}
	return containsUser(members, userID), nil
}

// Events

func (svc *service) CreateEvent(ctx context.Context, sessionID string, ne NewEvent) (Event, error) {
	if err := checkDuration(ne.NumDays); err != nil {
		return Event{}, err
	}
	var evt Event
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		if err := repo.LockSession(ctx, sessionID); err != nil {
			return parentErr(err, ErrNotFound, "session", sessionID)
		}
		events, err := repo.CreateEvents(ctx, Event{
			SessionID: sessionID,
			EventDate: ne.EventDate,
			NumDays:   ne.NumDays,
			IsBreak:   ne.IsBreak,
			LessonID:  ne.LessonID,
		})
		if err != nil {
			return err
		}
		evt = events[0]
		return nil
	})
	return evt, err
}

func (svc *service) QueryEvents(ctx context.Context, sessionID string, filter *EventFilter, page core.Pagination) ([]Event, int, error) {
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return nil, 0, parentErr(err, ErrNotFound, "session", sessionID)
	}
	return svc.repo.QueryEvents(ctx, sessionID, filter, page)
}

func (svc *service) DeleteEvent(ctx context.Context, id string) error {
	return svc.repo.DeleteEvent(ctx, id)
}

// Scheduling

// Reschedule replaces the lesson events of a session with a fresh plan of its program's curriculum,
// around the breaks of the session. The session starts at newStart from now on, when given.
func (svc *service) Reschedule(ctx context.Context, sessionID string, newStart *core.Date) ([]Event, error) {
	var planned []Event
	var msgs []*core.EmailMessage
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		if err := repo.LockSession(ctx, sessionID); err != nil {
			return parentErr(err, ErrNotFound, "session", sessionID)
		}
		sess, err := repo.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		prog, err := repo.GetProgram(ctx, sess.ProgramID)
		if err != nil {
			return parentErr(err, curriculum.ErrProgramNotFound, "program", sess.ProgramID)
		}
		lessons, err := repo.ProgramLessons(ctx, prog.ID)
		if err != nil {
			return errors.Wrap(err, "flattening program")
		}

		if newStart != nil && !newStart.IsZero() && !newStart.Equal(sess.StartDate) {
			sess.StartDate = *newStart
			if _, err = repo.UpdateSession(ctx, sess); err != nil {
				return errors.Wrap(err, "updating start date")
			}
		}

		breaks, _, err := repo.QueryEvents(ctx, sessionID, &EventFilter{IsBreak: boolPtr(true)}, core.Pagination{})
		if err != nil {
			return errors.Wrap(err, "querying breaks")
		}
		events, err := PlanLessons(sessionID, sess.StartDate, prog.StudyDays, lessons, breaks)
		if err != nil {
			return err
		}

		if err = repo.DeleteLessonEvents(ctx, sessionID); err != nil {
			return errors.Wrap(err, "deleting lesson events")
		}
		planned = events
		if len(events) > 0 {
			if planned, err = repo.CreateEvents(ctx, events...); err != nil {
				return err
			}
		}

		msgs, err = scheduleUpdateMessages(ctx, repo, sess)
		return err
	})
	if err != nil {
		return nil, err
	}
	svc.notify(msgs)
	return planned, nil
}

// AddBreak inserts a break of numDays days and moves the lessons planned from its start date, numDays later.
// Moved lessons may land on a non study day.
func (svc *service) AddBreak(ctx context.Context, sessionID string, start core.Date, numDays int) (Event, error) {
	if err := checkDuration(numDays); err != nil {
		return Event{}, err
	}
	var brk Event
	var msgs []*core.EmailMessage
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		if err := repo.LockSession(ctx, sessionID); err != nil {
			return parentErr(err, ErrNotFound, "session", sessionID)
		}
		sess, err := repo.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		events, err := repo.CreateEvents(ctx, Event{
			SessionID: sessionID,
			EventDate: start,
			NumDays:   numDays,
			IsBreak:   true,
		})
		if err != nil {
			return errors.Wrap(err, "inserting break")
		}
		brk = events[0]
		if err = repo.ShiftLessonEvents(ctx, sessionID, start, numDays); err != nil {
			return errors.Wrap(err, "shifting lessons")
		}

		msgs, err = scheduleUpdateMessages(ctx, repo, sess)
		return err
	})
	if err != nil {
		return Event{}, err
	}
	svc.notify(msgs)
	return brk, nil
}

func (svc *service) GetBreaks(ctx context.Context, sessionID string) ([]Event, error) {
	events, _, err := svc.QueryEvents(ctx, sessionID, &EventFilter{IsBreak: boolPtr(true)}, core.Pagination{})
	return events, err
}

func (svc *service) GetLessons(ctx context.Context, sessionID string) ([]Event, error) {
	events, _, err := svc.QueryEvents(ctx, sessionID, &EventFilter{IsBreak: boolPtr(false)}, core.Pagination{})
	return events, err
}

// EndDate returns the day following the last day of the session's events, or its start date if it has none.
func (svc *service) EndDate(ctx context.Context, sessionID string) (core.Date, error) {
	sess, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		return core.Date{}, parentErr(err, ErrNotFound, "session", sessionID)
	}
	events, _, err := svc.repo.QueryEvents(ctx, sessionID, nil, core.Pagination{})
	if err != nil {
		return core.Date{}, err
	}
	return EndDate(sess.StartDate, events), nil
}

// Exams

func (svc *service) CreateExam(ctx context.Context, sessionID string, ne NewExam) (Exam, error) {
	if err := ne.checkDates(); err != nil {
		return Exam{}, err
	}
	if ne.MaxAttempts < 1 {
		return Exam{}, core.NewValidationError(nil, core.FieldError{Field: "max_attempts", Error: "max_attempts must be at least 1"})
	}
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return Exam{}, parentErr(err, ErrNotFound, "session", sessionID)
	}
	if _, err := svc.repo.GetBook(ctx, ne.BookID); err != nil {
		return Exam{}, parentErr(err, curriculum.ErrBookNotFound, "book", ne.BookID)
	}
	return svc.repo.CreateExam(ctx, Exam{
		SessionID:   sessionID,
		BookID:      ne.BookID,
		StartDate:   ne.StartDate,
		Deadline:    ne.Deadline,
		MaxAttempts: ne.MaxAttempts,
	})
}

func (svc *service) GetExam(ctx context.Context, id string) (Exam, error) {
	return svc.repo.GetExam(ctx, id)
}

func (svc *service) QueryExams(ctx context.Context, sessionID string) ([]Exam, error) {
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return nil, parentErr(err, ErrNotFound, "session", sessionID)
	}
	return svc.repo.QueryExams(ctx, sessionID)
}

func (svc *service) DeleteExam(ctx context.Context, id string) error {
	return svc.repo.DeleteExam(ctx, id)
}

// Exam attempts

// CreateExamAttempt only accepts attempts from today's date within the exam window, by students of
// the exam's session who have attempts left.
func (svc *service) CreateExamAttempt(ctx context.Context, examID, examinerID string, na NewExamAttempt) (ExamAttempt, error) {
	var att ExamAttempt
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		exam, err := repo.GetExam(ctx, examID)
		if err != nil {
			return err
		}
		today := core.DateOf(NowFunc())
		if today.Before(exam.StartDate) || today.After(exam.Deadline) {
			return ErrExamClosed
		}

		// serializes the attempts count of concurrent requests
		if err = repo.LockSession(ctx, exam.SessionID); err != nil {
			return parentErr(err, ErrNotFound, "session", exam.SessionID)
		}
		if _, err = repo.GetUser(ctx, na.StudentID); err != nil {
			return parentErr(err, user.ErrNotFound, "student", na.StudentID)
		}
		students, err := repo.QueryMembers(ctx, exam.SessionID, Student)
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		if !containsUser(students, na.StudentID) {
			return ErrNotEnrolled
		}

		attempts, err := repo.QueryExamAttempts(ctx, AttemptFilter{ExamID: examID, StudentID: na.StudentID})
		if err != nil {
			return errors.Wrap(err, "querying attempts")
		}
		if len(attempts) >= exam.MaxAttempts {
			return ErrMaxAttemptsReached
		}

		att, err = repo.CreateExamAttempt(ctx, ExamAttempt{
			ExamID:      examID,
			StudentID:   na.StudentID,
			ExaminerID:  examinerID,
			Observation: na.Observation,
			Passed:      na.Passed,
			AttemptDate: today,
		})
		return err
	})
	return att, err
}

func (svc *service) GetExamAttempt(ctx context.Context, id string) (ExamAttempt, error) {
	return svc.repo.GetExamAttempt(ctx, id)
}

func (svc *service) QueryExamAttempts(ctx context.Context, examID, studentID string) ([]ExamAttempt, error) {
	if _, err := svc.repo.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	return svc.repo.QueryExamAttempts(ctx, AttemptFilter{ExamID: examID, StudentID: studentID})
}

func (svc *service) QueryStudentAttempts(ctx context.Context, studentID string) ([]ExamAttempt, error) {
	if _, err := svc.repo.GetUser(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryExamAttempts(ctx, AttemptFilter{StudentID: studentID})
}

func (svc *service) UpdateExamAttempt(ctx context.Context, id string, ua UpdateExamAttempt) (ExamAttempt, error) {
	var att ExamAttempt
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		var err error
		if att, err = repo.GetExamAttempt(ctx, id); err != nil {
			return err
		}
		if ua.Observation != nil {
			att.Observation = *ua.Observation
		}
		if ua.Passed != nil {
			att.Passed = *ua.Passed
		}
		att, err = repo.UpdateExamAttempt(ctx, att)
		return err
	})
	return att, err
}

func containsUser(users []user.User, id string) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func boolPtr(b bool) *bool { return &b }
