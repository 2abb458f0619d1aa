package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/session"
	"github.com/trezcool/masomo-academy/core/user"
)

const (
	sessionColumns = "id, program_id, start_date"
	eventColumns   = "id, session_id, event_date, num_days, is_break, lesson_id"
	examColumns    = "id, session_id, book_id, start_date, deadline, max_attempts"
	attemptColumns = "id, exam_id, student_id, examiner_id, observation, passed, attempt_date"
)

type sessionRepository struct {
	conn
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db core.DB) session.Repository {
	return &sessionRepository{conn{db: db}}
}

func (repo *sessionRepository) Atomic(ctx context.Context, fn func(repo session.Repository) error) error {
	return repo.atomic(ctx, func(tx conn) error {
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
	q := "INSERT INTO session (program_id, start_date) VALUES ($1, $2) RETURNING id"
	if err := repo.exec().GetContext(ctx, &sess.ID, q, sess.ProgramID, sess.StartDate); err != nil {
		return session.Session{}, trapConstraintErr(err, nil)
	}
	return sess, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (session.Session, error) {
	var sess session.Session
	q := "SELECT " + sessionColumns + " FROM session WHERE id = $1"
	if err := repo.exec().GetContext(ctx, &sess, q, id); err != nil {
		return session.Session{}, trapNoRowsErr(err, session.ErrNotFound)
	}
	return sess, nil
}

func (repo *sessionRepository) LockSession(ctx context.Context, id string) error {
	var locked string
	err := repo.exec().GetContext(ctx, &locked, "SELECT id FROM session WHERE id = $1 FOR UPDATE", id)
	return trapNoRowsErr(err, session.ErrNotFound)
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, filter *session.QueryFilter, page core.Pagination) ([]session.Session, int, error) {
	var where whereClause
	if filter != nil && filter.ProgramID != "" {
		where.add("program_id::text = ?", filter.ProgramID)
	}

	var count int
	if err := repo.exec().GetContext(ctx, &count, "SELECT COUNT(*) FROM session"+where.String(), where.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting sessions")
	}
	sessions := make([]session.Session, 0)
	q := "SELECT " + sessionColumns + " FROM session" + where.String() + " ORDER BY start_date, id" + paginate(page)
	if err := repo.exec().SelectContext(ctx, &sessions, q, where.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying sessions")
	}
	return sessions, count, nil
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	q := "UPDATE session SET start_date = $2 WHERE id = $1 RETURNING program_id"
	if err := repo.exec().GetContext(ctx, &sess.ProgramID, q, sess.ID, sess.StartDate); err != nil {
		return session.Session{}, trapNoRowsErr(err, session.ErrNotFound)
	}
	return sess, nil
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "session", id, session.ErrNotFound)
}

// Members

func memberTable(role session.Role) string {
	if role == session.Teacher {
		return "user_session_teacher"
	}
	return "user_session_student"
}

func (repo *sessionRepository) AddMember(ctx context.Context, sessionID, userID string, role session.Role) error {
	q := "INSERT INTO " + memberTable(role) + " (session_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING"
	_, err := repo.exec().ExecContext(ctx, q, sessionID, userID)
	return trapConstraintErr(err, nil)
}

func (repo *sessionRepository) RemoveMember(ctx context.Context, sessionID, userID string, role session.Role) error {
	q := "DELETE FROM " + memberTable(role) + " WHERE session_id = $1 AND user_id = $2"
	res, err := repo.exec().ExecContext(ctx, q, sessionID, userID)
	return checkAffected(res, err, session.ErrMemberNotFound)
}

func (repo *sessionRepository) QueryMembers(ctx context.Context, sessionID string, role session.Role) ([]user.User, error) {
	var rows []userRow
	q := "SELECT u.id, u.name, u.username, u.email, u.is_active, u.roles, u.created_at, u.updated_at FROM users u JOIN " +
		memberTable(role) + " m ON m.user_id = u.id WHERE m.session_id = $1 ORDER BY u.username, u.id"
	if err := repo.exec().SelectContext(ctx, &rows, q, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	users := make([]user.User, len(rows))
	for i, r := range rows {
		users[i] = r.toUser()
	}
	return users, nil
}

// Events

func (repo *sessionRepository) CreateEvents(ctx context.Context, events ...session.Event) ([]session.Event, error) {
	created := make([]session.Event, 0, len(events))
	err := repo.atomic(ctx, func(tx conn) error {
		q := `INSERT INTO session_event (session_id, event_date, num_days, is_break, lesson_id)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`
		for _, evt := range events {
			err := tx.exec().GetContext(ctx, &evt.ID, q, evt.SessionID, evt.EventDate, evt.NumDays, evt.IsBreak, evt.LessonID)
			if err != nil {
				return trapConstraintErr(err, nil)
			}
			created = append(created, evt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *sessionRepository) GetEvent(ctx context.Context, id string) (session.Event, error) {
	var evt session.Event
	q := "SELECT " + eventColumns + " FROM session_event WHERE id = $1"
	if err := repo.exec().GetContext(ctx, &evt, q, id); err != nil {
		return session.Event{}, trapNoRowsErr(err, session.ErrEventNotFound)
	}
	return evt, nil
}

func (repo *sessionRepository) QueryEvents(ctx context.Context, sessionID string, filter *session.EventFilter, page core.Pagination) ([]session.Event, int, error) {
	var where whereClause
	where.add("session_id = ?", sessionID)
	if filter != nil && filter.IsBreak != nil {
		where.add("is_break = ?", *filter.IsBreak)
	}

	var count int
	if err := repo.exec().GetContext(ctx, &count, "SELECT COUNT(*) FROM session_event"+where.String(), where.args...); err != nil {
		return nil, 0, trapNoRowsErr(err, session.ErrNotFound)
	}
	events := make([]session.Event, 0)
	q := "SELECT " + eventColumns + " FROM session_event" + where.String() +
		" ORDER BY event_date, is_break DESC, id" + paginate(page)
	if err := repo.exec().SelectContext(ctx, &events, q, where.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying events")
	}
	return events, count, nil
}

func (repo *sessionRepository) DeleteEvent(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "session_event", id, session.ErrEventNotFound)
}

func (repo *sessionRepository) DeleteLessonEvents(ctx context.Context, sessionID string) error {
	_, err := repo.exec().ExecContext(ctx, "DELETE FROM session_event WHERE session_id = $1 AND NOT is_break", sessionID)
	return errors.Wrap(err, "deleting lesson events")
}

func (repo *sessionRepository) ShiftLessonEvents(ctx context.Context, sessionID string, from core.Date, days int) error {
	q := `UPDATE session_event SET event_date = event_date + $3::integer
		WHERE session_id = $1 AND NOT is_break AND event_date >= $2`
	_, err := repo.exec().ExecContext(ctx, q, sessionID, from, days)
	return errors.Wrap(err, "shifting lesson events")
}

// Exams

func (repo *sessionRepository) CreateExam(ctx context.Context, exam session.Exam) (session.Exam, error) {
	q := `INSERT INTO exam (session_id, book_id, start_date, deadline, max_attempts)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := repo.exec().GetContext(ctx, &exam.ID, q, exam.SessionID, exam.BookID, exam.StartDate, exam.Deadline, exam.MaxAttempts)
	if err != nil {
		return session.Exam{}, trapConstraintErr(err, nil)
	}
	return exam, nil
}

func (repo *sessionRepository) GetExam(ctx context.Context, id string) (session.Exam, error) {
	var exam session.Exam
	q := "SELECT " + examColumns + " FROM exam WHERE id = $1"
	if err := repo.exec().GetContext(ctx, &exam, q, id); err != nil {
		return session.Exam{}, trapNoRowsErr(err, session.ErrExamNotFound)
	}
	return exam, nil
}

func (repo *sessionRepository) QueryExams(ctx context.Context, sessionID string) ([]session.Exam, error) {
	exams := make([]session.Exam, 0)
	q := "SELECT " + examColumns + " FROM exam WHERE session_id = $1 ORDER BY start_date, id"
	if err := repo.exec().SelectContext(ctx, &exams, q, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	return exams, nil
}

func (repo *sessionRepository) DeleteExam(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "exam", id, session.ErrExamNotFound)
}

// Exam attempts

func (repo *sessionRepository) CreateExamAttempt(ctx context.Context, att session.ExamAttempt) (session.ExamAttempt, error) {
	q := `INSERT INTO exam_attempt (exam_id, student_id, examiner_id, observation, passed, attempt_date)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := repo.exec().GetContext(ctx, &att.ID, q,
		att.ExamID, att.StudentID, att.ExaminerID, att.Observation, att.Passed, att.AttemptDate)
	if err != nil {
		return session.ExamAttempt{}, trapConstraintErr(err, nil)
	}
	return att, nil
}

func (repo *sessionRepository) GetExamAttempt(ctx context.Context, id string) (session.ExamAttempt, error) {
	var att session.ExamAttempt
	q := "SELECT " + attemptColumns + " FROM exam_attempt WHERE id = $1"
	if err := repo.exec().GetContext(ctx, &att, q, id); err != nil {
		return session.ExamAttempt{}, trapNoRowsErr(err, session.ErrAttemptNotFound)
	}
	return att, nil
}

func (repo *sessionRepository) QueryExamAttempts(ctx context.Context, filter session.AttemptFilter) ([]session.ExamAttempt, error) {
	var where whereClause
	if filter.ExamID != "" {
		where.add("exam_id = ?", filter.ExamID)
	}
	if filter.StudentID != "" {
		where.add("student_id = ?", filter.StudentID)
	}

	attempts := make([]session.ExamAttempt, 0)
	q := "SELECT " + attemptColumns + " FROM exam_attempt" + where.String() + " ORDER BY attempt_date, id"
	if err := repo.exec().SelectContext(ctx, &attempts, q, where.args...); err != nil {
		if isInvalidID(err) {
			return attempts, nil
		}
		return nil, errors.Wrap(err, "querying exam attempts")
	}
	return attempts, nil
}

func (repo *sessionRepository) UpdateExamAttempt(ctx context.Context, att session.ExamAttempt) (session.ExamAttempt, error) {
	q := "UPDATE exam_attempt SET observation = $2, passed = $3 WHERE id = $1 RETURNING " + attemptColumns
	if err := repo.exec().GetContext(ctx, &att, q, att.ID, att.Observation, att.Passed); err != nil {
		return session.ExamAttempt{}, trapNoRowsErr(err, session.ErrAttemptNotFound)
	}
	return att, nil
}
