package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
)

const (
	programColumns  = `id, title, weekly_study_days`
	phaseColumns    = `id, program_id, "order"`
	phaseBookColumn = `phase_id, book_id, "order"`
	bookColumns     = `id, title, pdf, audio`
	lessonColumns   = `id, book_id, "order", book_part_pdf, book_part_audio, lesson_audio, explanation_notes`
	questionColumns = `id, lesson_id, question, options, correct_options, explanation`
)

var orderConstraints = map[string]error{
	"uq_phase_program_order":    curriculum.ErrDuplicateOrder,
	"uq_phase_book_phase_order": curriculum.ErrDuplicateOrder,
	"uq_lesson_book_order":      curriculum.ErrDuplicateOrder,
	"uq_phase_book_phase_book":  curriculum.ErrBookAlreadyInPhase,
}

var titleOrderingColumns = map[string]string{
	"id":    "id",
	"title": "title",
}

type curriculumRepository struct {
	conn
}

var _ curriculum.Repository = (*curriculumRepository)(nil) // interface compliance check

func NewCurriculumRepository(db core.DB) curriculum.Repository {
	return &curriculumRepository{conn{db: db}}
}

func (repo *curriculumRepository) Atomic(ctx context.Context, fn func(repo curriculum.Repository) error) error {
	return repo.atomic(ctx, func(tx conn) error {
		return fn(&curriculumRepository{tx})
	})
}

// Ordering

type scopeTable struct {
	parentTable, childTable, parentColumn, idColumn string
	entity                                          string
}

func tableOf(scope curriculum.Scope) scopeTable {
	switch scope.Kind {
	case curriculum.ProgramPhases:
		return scopeTable{"program", "phase", "program_id", "id", "program"}
	case curriculum.PhaseBooks:
		return scopeTable{"phase", "phase_book", "phase_id", "book_id", "phase"}
	default:
		return scopeTable{"book", "lesson", "book_id", "id", "book"}
	}
}

// LockScope locks the parent row, which serializes writers of the same scope.
func (repo *curriculumRepository) LockScope(ctx context.Context, scope curriculum.Scope) error {
	st := tableOf(scope)
	var id string
	q := "SELECT id FROM " + st.parentTable + " WHERE id = $1 FOR UPDATE"
	err := repo.exec().GetContext(ctx, &id, q, scope.ParentID)
	return trapNoRowsErr(err, core.NewParentNotFoundError(st.entity, scope.ParentID))
}

func (repo *curriculumRepository) MaxOrder(ctx context.Context, scope curriculum.Scope) (int, bool, error) {
	st := tableOf(scope)
	var max sql.NullInt64
	q := `SELECT MAX("order") FROM ` + st.childTable + " WHERE " + st.parentColumn + " = $1"
	if err := repo.exec().GetContext(ctx, &max, q, scope.ParentID); err != nil {
		return 0, false, errors.Wrap(err, "selecting max order")
	}
	return int(max.Int64), max.Valid, nil
}

func (repo *curriculumRepository) OrderTaken(ctx context.Context, scope curriculum.Scope, order int, exceptID string) (bool, error) {
	st := tableOf(scope)
	var taken bool
	q := `SELECT EXISTS (SELECT 1 FROM ` + st.childTable + " WHERE " + st.parentColumn + ` = $1 AND "order" = $2 AND ` +
		st.idColumn + "::text <> $3)"
	if err := repo.exec().GetContext(ctx, &taken, q, scope.ParentID, order, exceptID); err != nil {
		return false, errors.Wrap(err, "checking order")
	}
	return taken, nil
}

// Programs

func (repo *curriculumRepository) CreateProgram(ctx context.Context, prog curriculum.Program) (curriculum.Program, error) {
	q := "INSERT INTO program (title, weekly_study_days) VALUES ($1, $2) RETURNING id"
	if err := repo.exec().GetContext(ctx, &prog.ID, q, prog.Title, prog.StudyDays); err != nil {
		return curriculum.Program{}, errors.Wrap(err, "inserting program")
	}
	return prog, nil
}

func (repo *curriculumRepository) GetProgram(ctx context.Context, id string) (curriculum.Program, error) {
	var prog curriculum.Program
	q := "SELECT " + programColumns + " FROM program WHERE id = $1"
	if err := repo.exec().GetContext(ctx, &prog, q, id); err != nil {
		return curriculum.Program{}, trapNoRowsErr(err, curriculum.ErrProgramNotFound)
	}
	return prog, nil
}

func (repo *curriculumRepository) QueryPrograms(ctx context.Context, filter *curriculum.ProgramFilter, ordering []core.DBOrdering, page core.Pagination) ([]curriculum.Program, int, error) {
	var where whereClause
	if filter != nil && filter.Search != "" {
		where.add("title ILIKE ?", "%"+filter.Search+"%")
	}

	var count int
	if err := repo.exec().GetContext(ctx, &count, "SELECT COUNT(*) FROM program"+where.String(), where.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting programs")
	}
	progs := make([]curriculum.Program, 0)
	q := "SELECT " + programColumns + " FROM program" + where.String() + orderBy(ordering, titleOrderingColumns, "title, id") + paginate(page)
	if err := repo.exec().SelectContext(ctx, &progs, q, where.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying programs")
	}
	return progs, count, nil
}

func (repo *curriculumRepository) UpdateProgram(ctx context.Context, prog curriculum.Program) (curriculum.Program, error) {
	q := "UPDATE program SET title = $2, weekly_study_days = $3 WHERE id = $1"
	res, err := repo.exec().ExecContext(ctx, q, prog.ID, prog.Title, prog.StudyDays)
	if err = checkAffected(res, err, curriculum.ErrProgramNotFound); err != nil {
		return curriculum.Program{}, err
	}
	return prog, nil
}

func (repo *curriculumRepository) DeleteProgram(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "program", id, curriculum.ErrProgramNotFound)
}

// Phases

func (repo *curriculumRepository) CreatePhase(ctx context.Context, ph curriculum.Phase) (curriculum.Phase, error) {
	q := `INSERT INTO phase (program_id, "order") VALUES ($1, $2) RETURNING id`
	if err := repo.exec().GetContext(ctx, &ph.ID, q, ph.ProgramID, ph.Order); err != nil {
		return curriculum.Phase{}, trapConstraintErr(err, orderConstraints)
	}
	return ph, nil
}

func (repo *curriculumRepository) GetPhase(ctx context.Context, id string) (curriculum.Phase, error) {
	var ph curriculum.Phase
	q := "SELECT " + phaseColumns + " FROM phase WHERE id = $1"
	if err := repo.exec().GetContext(ctx, &ph, q, id); err != nil {
		return curriculum.Phase{}, trapNoRowsErr(err, curriculum.ErrPhaseNotFound)
	}
	return ph, nil
}

func (repo *curriculumRepository) QueryPhases(ctx context.Context, programID string) ([]curriculum.Phase, error) {
	phases := make([]curriculum.Phase, 0)
	q := "SELECT " + phaseColumns + ` FROM phase WHERE program_id = $1 ORDER BY "order"`
	if err := repo.exec().SelectContext(ctx, &phases, q, programID); err != nil {
		return nil, errors.Wrap(err, "querying phases")
	}
	return phases, nil
}

func (repo *curriculumRepository) UpdatePhaseOrder(ctx context.Context, id string, order int) error {
	res, err := repo.exec().ExecContext(ctx, `UPDATE phase SET "order" = $2 WHERE id = $1`, id, order)
	return checkAffected(res, trapConstraintErr(err, orderConstraints), curriculum.ErrPhaseNotFound)
}

func (repo *curriculumRepository) DeletePhase(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "phase", id, curriculum.ErrPhaseNotFound)
}

// Phase books

func (repo *curriculumRepository) CreatePhaseBook(ctx context.Context, pb curriculum.PhaseBook) (curriculum.PhaseBook, error) {
	q := `INSERT INTO phase_book (phase_id, book_id, "order") VALUES (:phase_id, :book_id, :order)`
	if _, err := repo.exec().NamedExecContext(ctx, q, pb); err != nil {
		return curriculum.PhaseBook{}, trapConstraintErr(err, orderConstraints)
	}
	return pb, nil
}

func (repo *curriculumRepository) GetPhaseBook(ctx context.Context, phaseID, bookID string) (curriculum.PhaseBook, error) {
	var pb curriculum.PhaseBook
	q := "SELECT " + phaseBookColumn + " FROM phase_book WHERE phase_id = $1 AND book_id = $2"
	if err := repo.exec().GetContext(ctx, &pb, q, phaseID, bookID); err != nil {
		return curriculum.PhaseBook{}, trapNoRowsErr(err, curriculum.ErrPhaseBookNotFound)
	}
	return pb, nil
}

func (repo *curriculumRepository) QueryPhaseBooks(ctx context.Context, phaseID string) ([]curriculum.PhaseBook, error) {
	pbs := make([]curriculum.PhaseBook, 0)
	q := "SELECT " + phaseBookColumn + ` FROM phase_book WHERE phase_id = $1 ORDER BY "order"`
	if err := repo.exec().SelectContext(ctx, &pbs, q, phaseID); err != nil {
		return nil, errors.Wrap(err, "querying phase books")
	}
	return pbs, nil
}

func (repo *curriculumRepository) UpdatePhaseBookOrder(ctx context.Context, phaseID, bookID string, order int) error {
	q := `UPDATE phase_book SET "order" = $3 WHERE phase_id = $1 AND book_id = $2`
	res, err := repo.exec().ExecContext(ctx, q, phaseID, bookID, order)
	return checkAffected(res, trapConstraintErr(err, orderConstraints), curriculum.ErrPhaseBookNotFound)
}

func (repo *curriculumRepository) DeletePhaseBook(ctx context.Context, phaseID, bookID string) error {
	res, err := repo.exec().ExecContext(ctx, "DELETE FROM phase_book WHERE phase_id = $1 AND book_id = $2", phaseID, bookID)
	return checkAffected(res, trapNoRowsErr(err, curriculum.ErrPhaseBookNotFound), curriculum.ErrPhaseBookNotFound)
}

// Books

func (repo *curriculumRepository) CreateBook(ctx context.Context, book curriculum.Book) (curriculum.Book, error) {
	q := "INSERT INTO book (title, pdf, audio) VALUES ($1, $2, $3) RETURNING id"
	if err := repo.exec().GetContext(ctx, &book.ID, q, book.Title, book.PDF, book.Audio); err != nil {
		return curriculum.Book{}, errors.Wrap(err, "inserting book")
	}
	return book, nil
}

func (repo *curriculumRepository) GetBook(ctx context.Context, id string) (curriculum.Book, error) {
	var book curriculum.Book
	q := "SELECT " + bookColumns + " FROM book WHERE id = $1"
	if err := repo.exec().GetContext(ctx, &book, q, id); err != nil {
		return curriculum.Book{}, trapNoRowsErr(err, curriculum.ErrBookNotFound)
	}
	return book, nil
}

func (repo *curriculumRepository) QueryBooks(ctx context.Context, filter *curriculum.BookFilter, ordering []core.DBOrdering, page core.Pagination) ([]curriculum.Book, int, error) {
	var where whereClause
	if filter != nil && filter.Search != "" {
		where.add("title ILIKE ?", "%"+filter.Search+"%")
	}

	var count int
	if err := repo.exec().GetContext(ctx, &count, "SELECT COUNT(*) FROM book"+where.String(), where.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting books")
	}
	books := make([]curriculum.Book, 0)
	q := "SELECT " + bookColumns + " FROM book" + where.String() + orderBy(ordering, titleOrderingColumns, "title, id") + paginate(page)
	if err := repo.exec().SelectContext(ctx, &books, q, where.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying books")
	}
	return books, count, nil
}

func (repo *curriculumRepository) UpdateBook(ctx context.Context, book curriculum.Book) (curriculum.Book, error) {
	q := "UPDATE book SET title = $2, pdf = $3, audio = $4 WHERE id = $1"
	res, err := repo.exec().ExecContext(ctx, q, book.ID, book.Title, book.PDF, book.Audio)
	if err = checkAffected(res, err, curriculum.ErrBookNotFound); err != nil {
		return curriculum.Book{}, err
	}
	return book, nil
}

func (repo *curriculumRepository) DeleteBook(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "book", id, curriculum.ErrBookNotFound)
}

// Lessons

func (repo *curriculumRepository) CreateLesson(ctx context.Context, lsn curriculum.Lesson) (curriculum.Lesson, error) {
	q := `INSERT INTO lesson (book_id, "order", book_part_pdf, book_part_audio, lesson_audio, explanation_notes)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := repo.exec().GetContext(ctx, &lsn.ID, q,
		lsn.BookID, lsn.Order, lsn.BookPartPDF, lsn.BookPartAudio, lsn.LessonAudio, lsn.ExplanationNotes)
	if err != nil {
		return curriculum.Lesson{}, trapConstraintErr(err, orderConstraints)
	}
	return lsn, nil
}

func (repo *curriculumRepository) GetLesson(ctx context.Context, id string) (curriculum.Lesson, error) {
	var lsn curriculum.Lesson
	q := "SELECT " + lessonColumns + " FROM lesson WHERE id = $1"
	if err := repo.exec().GetContext(ctx, &lsn, q, id); err != nil {
		return curriculum.Lesson{}, trapNoRowsErr(err, curriculum.ErrLessonNotFound)
	}
	return lsn, nil
}

func (repo *curriculumRepository) QueryLessons(ctx context.Context, bookID string) ([]curriculum.Lesson, error) {
	lessons := make([]curriculum.Lesson, 0)
	q := "SELECT " + lessonColumns + ` FROM lesson WHERE book_id = $1 ORDER BY "order"`
	if err := repo.exec().SelectContext(ctx, &lessons, q, bookID); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	return lessons, nil
}

func (repo *curriculumRepository) UpdateLesson(ctx context.Context, lsn curriculum.Lesson) (curriculum.Lesson, error) {
	q := `UPDATE lesson SET "order" = $2, book_part_pdf = $3, book_part_audio = $4, lesson_audio = $5,
		explanation_notes = $6 WHERE id = $1 RETURNING book_id`
	err := repo.exec().GetContext(ctx, &lsn.BookID, q,
		lsn.ID, lsn.Order, lsn.BookPartPDF, lsn.BookPartAudio, lsn.LessonAudio, lsn.ExplanationNotes)
	if err != nil {
		return curriculum.Lesson{}, trapNoRowsErr(trapConstraintErr(err, orderConstraints), curriculum.ErrLessonNotFound)
	}
	return lsn, nil
}

func (repo *curriculumRepository) DeleteLesson(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "lesson", id, curriculum.ErrLessonNotFound)
}

// ProgramLessons flattens the curriculum of a program in SQL, with the same ordering as curriculum.Flatten.
func (repo *curriculumRepository) ProgramLessons(ctx context.Context, programID string) ([]curriculum.Lesson, error) {
	lessons := make([]curriculum.Lesson, 0)
	q := `SELECT l.id, l.book_id, l."order", l.book_part_pdf, l.book_part_audio, l.lesson_audio, l.explanation_notes
		FROM phase ph
		JOIN phase_book pb ON pb.phase_id = ph.id
		JOIN lesson l ON l.book_id = pb.book_id
		WHERE ph.program_id = $1
		ORDER BY ph."order", pb."order", l."order"`
	if err := repo.exec().SelectContext(ctx, &lessons, q, programID); err != nil {
		return nil, errors.Wrap(err, "flattening program")
	}
	return lessons, nil
}

// Questions

type questionRow struct {
	ID             string         `db:"id"`
	LessonID       string         `db:"lesson_id"`
	Question       string         `db:"question"`
	Options        pq.StringArray `db:"options"`
	CorrectOptions pq.Int64Array  `db:"correct_options"`
	Explanation    null.String    `db:"explanation"`
}

func (r questionRow) toQuestion() curriculum.Question {
	q := curriculum.Question{
		ID:             r.ID,
		LessonID:       r.LessonID,
		Question:       r.Question,
		Options:        []string(r.Options),
		CorrectOptions: make([]int, len(r.CorrectOptions)),
		Explanation:    r.Explanation,
	}
	for i, o := range r.CorrectOptions {
		q.CorrectOptions[i] = int(o)
	}
	return q
}

func (repo *curriculumRepository) CreateQuestion(ctx context.Context, q curriculum.Question) (curriculum.Question, error) {
	correct := make(pq.Int64Array, len(q.CorrectOptions))
	for i, o := range q.CorrectOptions {
		correct[i] = int64(o)
	}
	stmt := `INSERT INTO question (lesson_id, question, options, correct_options, explanation)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := repo.exec().GetContext(ctx, &q.ID, stmt, q.LessonID, q.Question, pq.StringArray(q.Options), correct, q.Explanation)
	if err != nil {
		return curriculum.Question{}, trapConstraintErr(err, nil)
	}
	return q, nil
}

func (repo *curriculumRepository) GetQuestion(ctx context.Context, id string) (curriculum.Question, error) {
	var row questionRow
	q := "SELECT " + questionColumns + " FROM question WHERE id = $1"
	if err := repo.exec().GetContext(ctx, &row, q, id); err != nil {
		return curriculum.Question{}, trapNoRowsErr(err, curriculum.ErrQuestionNotFound)
	}
	return row.toQuestion(), nil
}

func (repo *curriculumRepository) QueryQuestions(ctx context.Context, lessonID string) ([]curriculum.Question, error) {
	var rows []questionRow
	q := "SELECT " + questionColumns + " FROM question WHERE lesson_id = $1 ORDER BY id"
	if err := repo.exec().SelectContext(ctx, &rows, q, lessonID); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	questions := make([]curriculum.Question, len(rows))
	for i, r := range rows {
		questions[i] = r.toQuestion()
	}
	return questions, nil
}

func (repo *curriculumRepository) DeleteQuestion(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "question", id, curriculum.ErrQuestionNotFound)
}

// deleteByID deletes a row of table; children are deleted by the ON DELETE clauses.
func (c conn) deleteByID(ctx context.Context, table, id string, notFound error) error {
	res, err := c.exec().ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	return checkAffected(res, trapNoRowsErr(err, notFound), notFound)
}

// checkAffected returns notFound when a statement matched no row.
func checkAffected(res sql.Result, err, notFound error) error {
	if err != nil {
		return trapNoRowsErr(err, notFound)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "getting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
