package session

import (
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-academy/core"
)

// Member roles
const (
	Student Role = "student"
	Teacher Role = "teacher"
)

type Role string

func (r Role) Valid() bool {
	return r == Student || r == Teacher
}

// Session is a cohort of students & teachers going through a program.
type Session struct {
	ID        string    `json:"id" db:"id"`
	ProgramID string    `json:"program_id" db:"program_id"`
	StartDate core.Date `json:"start_date" db:"start_date"`
}

// Event is a block of NumDays days starting on EventDate: either a lesson or a break.
// LessonID is only set on lessons, and is nulled when the lesson gets deleted.
type Event struct {
	ID        string      `json:"id" db:"id"`
	SessionID string      `json:"session_id" db:"session_id"`
	EventDate core.Date   `json:"event_date" db:"event_date"`
	NumDays   int         `json:"num_days" db:"num_days"`
	IsBreak   bool        `json:"is_break" db:"is_break"`
	LessonID  null.String `json:"lesson_id" db:"lesson_id"`
}

func (e Event) IsLesson() bool {
	return !e.IsBreak
}

// EndDate returns the day following the last day of the event.
func (e Event) EndDate() core.Date {
	return e.EventDate.AddDays(e.NumDays)
}

// Covers reports whether d is one of the days of the event.
func (e Event) Covers(d core.Date) bool {
	return !d.Before(e.EventDate) && d.Before(e.EndDate())
}

type Exam struct {
	ID          string    `json:"id" db:"id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	BookID      string    `json:"book_id" db:"book_id"`
	StartDate   core.Date `json:"start_date" db:"start_date"`
	Deadline    core.Date `json:"deadline" db:"deadline"`
	MaxAttempts int       `json:"max_attempts" db:"max_attempts"`
}

// ExamAttempt is one try of a student at an exam, graded by its examiner.
type ExamAttempt struct {
	ID          string    `json:"id" db:"id"`
	ExamID      string    `json:"exam_id" db:"exam_id"`
	StudentID   string    `json:"student_id" db:"student_id"`
	ExaminerID  string    `json:"examiner_id" db:"examiner_id"`
	Observation string    `json:"observation" db:"observation"`
	Passed      bool      `json:"passed" db:"passed"`
	AttemptDate core.Date `json:"attempt_date" db:"attempt_date"`
}

// NewSession contains information needed to create a new Session.
type NewSession struct {
	ProgramID string    `json:"program_id" validate:"required"`
	StartDate core.Date `json:"start_date"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.ProgramID = core.CleanString(ns.ProgramID)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	return requireDate("start_date", ns.StartDate)
}

type QueryFilter struct {
	ProgramID string `query:"program_id"`
}

func (qf *QueryFilter) Clean() {
	qf.ProgramID = core.CleanString(qf.ProgramID)
}

// NewEvent is an event created by hand, outside of the scheduler.
type NewEvent struct {
	EventDate core.Date   `json:"event_date"`
	NumDays   int         `json:"num_days" validate:"gte=0"`
	IsBreak   bool        `json:"is_break"`
	LessonID  null.String `json:"lesson_id"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	if ne.NumDays == 0 {
		ne.NumDays = 1
	}
	if err := validate.Struct(ne); err != nil {
		return err
	}
	if err := requireDate("event_date", ne.EventDate); err != nil {
		return err
	}
	if ne.IsBreak && ne.LessonID.Valid {
		return core.NewValidationError(
			ErrBreakWithLesson,
			core.FieldError{Field: "lesson_id", Error: ErrBreakWithLesson.Error()},
		)
	}
	return nil
}

type EventFilter struct {
	IsBreak *bool `query:"is_break"`
}

type NewBreak struct {
	StartDate core.Date `json:"start_date"`
	NumDays   int       `json:"num_days"`
}

func (nb *NewBreak) Validate() error {
	return requireDate("start_date", nb.StartDate)
}

// RescheduleRequest keeps the current start date of the session when StartDate is zero.
type RescheduleRequest struct {
	StartDate core.Date `json:"start_date"`
}

type NewExam struct {
	BookID      string    `json:"book_id" validate:"required"`
	StartDate   core.Date `json:"start_date"`
	Deadline    core.Date `json:"deadline"`
	MaxAttempts int       `json:"max_attempts" validate:"gte=0"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.BookID = core.CleanString(ne.BookID)
	if ne.MaxAttempts == 0 {
		ne.MaxAttempts = 1
	}
	if err := validate.Struct(ne); err != nil {
		return err
	}
	if err := requireDate("start_date", ne.StartDate); err != nil {
		return err
	}
	if err := requireDate("deadline", ne.Deadline); err != nil {
		return err
	}
	return ne.checkDates()
}

func (ne NewExam) checkDates() error {
	if ne.StartDate.After(ne.Deadline) {
		return core.NewValidationError(
			ErrExamDeadline,
			core.FieldError{Field: "deadline", Error: ErrExamDeadline.Error()},
		)
	}
	return nil
}

type NewExamAttempt struct {
	StudentID   string `json:"student_id" validate:"required"`
	Observation string `json:"observation" validate:"max=2000"`
	Passed      bool   `json:"passed"`
}

func (na *NewExamAttempt) Validate(validate *validator.Validate) error {
	na.StudentID = core.CleanString(na.StudentID)
	na.Observation = core.CleanString(na.Observation)
	return validate.Struct(na)
}

// UpdateExamAttempt leaves the fields it does not set untouched.
type UpdateExamAttempt struct {
	Observation *string `json:"observation" validate:"omitempty,max=2000"`
	Passed      *bool   `json:"passed"`
}

func (ua *UpdateExamAttempt) Validate(validate *validator.Validate) error {
	if ua.Observation != nil {
		obs := core.CleanString(*ua.Observation)
		ua.Observation = &obs
	}
	return validate.Struct(ua)
}

// AttemptFilter selects exam attempts. Empty fields match any value.
type AttemptFilter struct {
	ExamID    string
	StudentID string
}

type MembersRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,required"`
}

func requireDate(field string, d core.Date) error {
	if d.IsZero() {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: "this field is required"})
	}
	return nil
}
