package curriculum

import (
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-academy/core"
)

// Program is a curriculum template made of ordered phases.
// StudyDays is a weekday.Encode mask; it is only decoded at the API boundary.
type Program struct {
	ID        string `json:"id" db:"id"`
	Title     string `json:"title" db:"title"`
	StudyDays int    `json:"weekly_study_days" db:"weekly_study_days"`
}

type Phase struct {
	ID        string `json:"id" db:"id"`
	ProgramID string `json:"program_id" db:"program_id"`
	Order     int    `json:"order" db:"order"`
}

// PhaseBook is the membership of a book in a phase.
type PhaseBook struct {
	PhaseID string `json:"phase_id" db:"phase_id"`
	BookID  string `json:"book_id" db:"book_id"`
	Order   int    `json:"order" db:"order"`
}

type Book struct {
	ID    string      `json:"id" db:"id"`
	Title string      `json:"title" db:"title"`
	PDF   null.String `json:"pdf" db:"pdf"`
	Audio null.String `json:"audio" db:"audio"`
}

type Lesson struct {
	ID               string `json:"id" db:"id"`
	BookID           string `json:"book_id" db:"book_id"`
	Order            int    `json:"order" db:"order"`
	BookPartPDF      string `json:"book_part_pdf" db:"book_part_pdf"`
	BookPartAudio    string `json:"book_part_audio" db:"book_part_audio"`
	LessonAudio      string `json:"lesson_audio" db:"lesson_audio"`
	ExplanationNotes string `json:"explanation_notes" db:"explanation_notes"`
}

type Question struct {
	ID             string      `json:"id"`
	LessonID       string      `json:"lesson_id"`
	Question       string      `json:"question"`
	Options        []string    `json:"options"`
	CorrectOptions []int       `json:"correct_options"`
	Explanation    null.String `json:"explanation"`
}

func (q Question) IsSingleAnswer() bool {
	return len(q.CorrectOptions) == 1
}

// NewProgram contains information needed to create a new Program.
type NewProgram struct {
	Title     string   `json:"title" validate:"required,max=255"`
	StudyDays []string `json:"study_days" validate:"weekday"`
}

func (np *NewProgram) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	return validate.Struct(np)
}

// UpdateProgram defines what information may be provided to modify an existing Program.
// A nil StudyDays leaves the study days unchanged.
type UpdateProgram struct {
	Title     string   `json:"title" validate:"omitempty,max=255"`
	StudyDays []string `json:"study_days" validate:"omitempty,weekday"`
}

func (up *UpdateProgram) Validate(validate *validator.Validate) error {
	up.Title = core.CleanString(up.Title)
	return validate.Struct(up)
}

type ProgramFilter struct {
	Search string `query:"search"`
}

func (pf *ProgramFilter) Clean() {
	pf.Search = core.CleanString(pf.Search)
}

// NewPhase is appended at the end of its program when Order is nil.
type NewPhase struct {
	Order *int `json:"order" validate:"omitempty,gte=0"`
}

type NewBook struct {
	Title string      `json:"title" validate:"required,max=255"`
	PDF   null.String `json:"pdf"`
	Audio null.String `json:"audio"`
}

func (nb *NewBook) Validate(validate *validator.Validate) error {
	nb.Title = core.CleanString(nb.Title)
	return validate.Struct(nb)
}

type UpdateBook struct {
	Title string      `json:"title" validate:"omitempty,max=255"`
	PDF   null.String `json:"pdf"`
	Audio null.String `json:"audio"`
}

func (ub *UpdateBook) Validate(validate *validator.Validate) error {
	ub.Title = core.CleanString(ub.Title)
	return validate.Struct(ub)
}

type BookFilter struct {
	Search string `query:"search"`
}

func (bf *BookFilter) Clean() {
	bf.Search = core.CleanString(bf.Search)
}

// NewLesson is appended at the end of its book when Order is nil.
type NewLesson struct {
	Order            *int   `json:"order" validate:"omitempty,gte=0"`
	BookPartPDF      string `json:"book_part_pdf" validate:"required"`
	BookPartAudio    string `json:"book_part_audio" validate:"required"`
	LessonAudio      string `json:"lesson_audio" validate:"required"`
	ExplanationNotes string `json:"explanation_notes"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.BookPartPDF = core.CleanString(nl.BookPartPDF)
	nl.BookPartAudio = core.CleanString(nl.BookPartAudio)
	nl.LessonAudio = core.CleanString(nl.LessonAudio)
	return validate.Struct(nl)
}

// UpdateLesson only changes the content of a lesson. Use the reorder operation to move it.
type UpdateLesson struct {
	BookPartPDF      *string `json:"book_part_pdf"`
	BookPartAudio    *string `json:"book_part_audio"`
	LessonAudio      *string `json:"lesson_audio"`
	ExplanationNotes *string `json:"explanation_notes"`
}

type NewQuestion struct {
	Question       string      `json:"question" validate:"required"`
	Options        []string    `json:"options" validate:"required,min=1,dive,required"`
	CorrectOptions []int       `json:"correct_options" validate:"required,min=1"`
	Explanation    null.String `json:"explanation"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Question = core.CleanString(nq.Question)
	if err := validate.Struct(nq); err != nil {
		return err
	}
	return nq.checkCorrectOptions()
}

// checkCorrectOptions makes sure every correct option points to an existing option.
func (nq NewQuestion) checkCorrectOptions() error {
	for _, idx := range nq.CorrectOptions {
		if idx < 0 || idx >= len(nq.Options) {
			return core.NewValidationError(
				ErrCorrectOptionOutOfRange,
				core.FieldError{Field: "correct_options", Error: ErrCorrectOptionOutOfRange.Error()},
			)
		}
	}
	return nil
}

// Reorder is the payload of all reorder operations.
type Reorder struct {
	Order *int `json:"order" validate:"required,gte=0"`
}
