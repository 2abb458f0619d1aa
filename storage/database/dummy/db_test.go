package dummydb_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/session"
	"github.com/trezcool/masomo-academy/core/user"
	dummydb "github.com/trezcool/masomo-academy/storage/database/dummy"
	"github.com/trezcool/masomo-academy/tests"
)

var (
	ctx    = context.Background()
	d      = core.MustParseDate
	errBoo = errors.New("boo")
)

func TestCurriculumRepository_Atomic(t *testing.T) {
	repo := dummydb.NewCurriculumRepository(dummydb.Open())

	err := repo.Atomic(ctx, func(tx curriculum.Repository) error {
		prog, err := tx.CreateProgram(ctx, curriculum.Program{Title: "Rolled back"})
		if err != nil {
			return err
		}
		// nested blocks join the running one
		return tx.Atomic(ctx, func(tx curriculum.Repository) error {
			if _, err := tx.CreatePhase(ctx, curriculum.Phase{ProgramID: prog.ID}); err != nil {
				return err
			}
			return errBoo
		})
	})
	assert.Equal(t, errBoo, err)

	progs, count, err := repo.QueryPrograms(ctx, nil, nil, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, progs)

	err = repo.Atomic(ctx, func(tx curriculum.Repository) error {
		_, err := tx.CreateProgram(ctx, curriculum.Program{Title: "Kept"})
		return err
	})
	require.NoError(t, err)
	_, count, err = repo.QueryPrograms(ctx, nil, nil, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCurriculumRepository_uniqueOrders(t *testing.T) {
	repo := dummydb.NewCurriculumRepository(dummydb.Open())
	book, err := repo.CreateBook(ctx, curriculum.Book{Title: "Genesis"})
	require.NoError(t, err)

	_, err = repo.CreateLesson(ctx, curriculum.Lesson{BookID: book.ID, Order: 0})
	require.NoError(t, err)
	_, err = repo.CreateLesson(ctx, curriculum.Lesson{BookID: book.ID, Order: 0})
	assert.Equal(t, curriculum.ErrDuplicateOrder, errors.Cause(err))

	_, err = repo.CreateLesson(ctx, curriculum.Lesson{BookID: "lol", Order: 0})
	assert.True(t, errors.Is(err, core.ErrParentNotFound))

	max, ok, err := repo.MaxOrder(ctx, curriculum.LessonsOf(book.ID))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, max)

	_, ok, err = repo.MaxOrder(ctx, curriculum.LessonsOf("lol"))
	require.NoError(t, err)
	assert.False(t, ok)

	err = repo.LockScope(ctx, curriculum.BooksOf("lol"))
	assert.True(t, errors.Is(err, core.ErrParentNotFound))
}

func TestRepositories_cascades(t *testing.T) {
	db := dummydb.Open()
	curr := curriculum.NewService(dummydb.NewCurriculumRepository(db))
	sessions := dummydb.NewSessionRepository(db)
	users := dummydb.NewUserRepository(db)

	prog, lessons := testutil.SeedProgram(t, curr, "Foundations", 2, "monday")
	book, err := curr.GetBook(ctx, lessons[0].BookID)
	require.NoError(t, err)
	usr := testutil.CreateUser(t, users, "Hero", "hero", "hero@test.cd", []string{user.RoleStudent}, true)

	sess, err := sessions.CreateSession(ctx, session.Session{ProgramID: prog.ID, StartDate: d("2024-01-01")})
	require.NoError(t, err)
	require.NoError(t, sessions.AddMember(ctx, sess.ID, usr.ID, session.Student))
	_, err = sessions.CreateEvents(ctx,
		session.Event{SessionID: sess.ID, EventDate: d("2024-01-01"), NumDays: 1, LessonID: null.StringFrom(lessons[0].ID)},
		session.Event{SessionID: sess.ID, EventDate: d("2024-01-08"), NumDays: 1, LessonID: null.StringFrom(lessons[1].ID)},
	)
	require.NoError(t, err)
	exam, err := sessions.CreateExam(ctx, session.Exam{SessionID: sess.ID, BookID: book.ID, StartDate: d("2024-02-01"), Deadline: d("2024-02-01"), MaxAttempts: 1})
	require.NoError(t, err)
	examiner := testutil.CreateUser(t, users, "Teach", "teach", "teach@test.cd", []string{user.RoleTeacher}, true)
	att, err := sessions.CreateExamAttempt(ctx, session.ExamAttempt{ExamID: exam.ID, StudentID: usr.ID, ExaminerID: examiner.ID, AttemptDate: d("2024-02-01")})
	require.NoError(t, err)
	_, err = sessions.CreateExamAttempt(ctx, session.ExamAttempt{ExamID: exam.ID, StudentID: "lol", ExaminerID: examiner.ID})
	assert.True(t, errors.Is(err, core.ErrParentNotFound))

	t.Run("deleting a lesson nulls its events", func(t *testing.T) {
		require.NoError(t, curr.DeleteLesson(ctx, lessons[0].ID))
		events, count, err := sessions.QueryEvents(ctx, sess.ID, nil, core.Pagination{})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.False(t, events[0].LessonID.Valid)
		assert.True(t, events[1].LessonID.Valid)
	})

	t.Run("deleting a user removes its memberships", func(t *testing.T) {
		require.NoError(t, users.DeleteUsersByID(ctx, usr.ID))
		members, err := sessions.QueryMembers(ctx, sess.ID, session.Student)
		require.NoError(t, err)
		assert.Empty(t, members)
		_, err = sessions.GetExamAttempt(ctx, att.ID)
		assert.Equal(t, session.ErrAttemptNotFound, err)
	})

	t.Run("deleting a program removes its sessions", func(t *testing.T) {
		require.NoError(t, curr.DeleteProgram(ctx, prog.ID))
		_, err := sessions.GetSession(ctx, sess.ID)
		assert.Equal(t, session.ErrNotFound, err)
		_, count, err := sessions.QueryEvents(ctx, sess.ID, nil, core.Pagination{})
		require.NoError(t, err)
		assert.Equal(t, 0, count)
		exams, err := sessions.QueryExams(ctx, sess.ID)
		require.NoError(t, err)
		assert.Empty(t, exams)
	})
}

func TestSessionRepository_events(t *testing.T) {
	db := dummydb.Open()
	curr := curriculum.NewService(dummydb.NewCurriculumRepository(db))
	repo := dummydb.NewSessionRepository(db)

	prog := testutil.CreateProgram(t, curr, "Foundations", "monday")
	sess, err := repo.CreateSession(ctx, session.Session{ProgramID: prog.ID, StartDate: d("2024-01-01")})
	require.NoError(t, err)

	_, err = repo.CreateEvents(ctx,
		session.Event{SessionID: sess.ID, EventDate: d("2024-01-08"), NumDays: 1},
		session.Event{SessionID: sess.ID, EventDate: d("2024-01-01"), NumDays: 1},
		session.Event{SessionID: sess.ID, EventDate: d("2024-01-08"), NumDays: 2, IsBreak: true},
	)
	require.NoError(t, err)

	_, err = repo.CreateEvents(ctx,
		session.Event{SessionID: sess.ID, EventDate: d("2024-01-15"), NumDays: 1},
		session.Event{SessionID: "lol", EventDate: d("2024-01-15"), NumDays: 1},
	)
	assert.True(t, errors.Is(err, core.ErrParentNotFound))

	events, count, err := repo.QueryEvents(ctx, sess.ID, nil, core.Pagination{})
	require.NoError(t, err)
	require.Equal(t, 3, count, "a failed batch must not be partially inserted")
	assert.Equal(t, d("2024-01-01"), events[0].EventDate)
	assert.True(t, events[1].IsBreak, "breaks come first on the same day")

	require.NoError(t, repo.ShiftLessonEvents(ctx, sess.ID, d("2024-01-08"), 2))
	lessons, _, err := repo.QueryEvents(ctx, sess.ID, &session.EventFilter{IsBreak: boolPtr(false)}, core.Pagination{})
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "2024-01-01", lessons[0].EventDate.String())
	assert.Equal(t, "2024-01-10", lessons[1].EventDate.String())

	require.NoError(t, repo.DeleteLessonEvents(ctx, sess.ID))
	_, count, err = repo.QueryEvents(ctx, sess.ID, nil, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func boolPtr(b bool) *bool { return &b }
