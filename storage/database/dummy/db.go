package dummydb

import (
	"sync"

	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/session"
	"github.com/trezcool/masomo-academy/core/user"
)

type (
	// DB is an in-memory database. Atomic blocks hold the write lock for their whole duration
	// and restore a snapshot of the tables when they fail.
	DB struct {
		sync.RWMutex
		tables *tables
	}

	phaseBookKey struct {
		phaseID, bookID string
	}

	memberKey struct {
		sessionID, userID string
		role              session.Role
	}

	tables struct {
		users      map[string]user.User
		programs   map[string]curriculum.Program
		phases     map[string]curriculum.Phase
		phaseBooks map[phaseBookKey]curriculum.PhaseBook
		books      map[string]curriculum.Book
		lessons    map[string]curriculum.Lesson
		questions  map[string]curriculum.Question
		sessions   map[string]session.Session
		members    map[memberKey]struct{}
		events     map[string]session.Event
		exams      map[string]session.Exam
		attempts   map[string]session.ExamAttempt
	}
)

func Open() *DB {
	return &DB{tables: newTables()}
}

// Reset drops all rows.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.tables = newTables()
}

func newTables() *tables {
	return &tables{
		users:      make(map[string]user.User),
		programs:   make(map[string]curriculum.Program),
		phases:     make(map[string]curriculum.Phase),
		phaseBooks: make(map[phaseBookKey]curriculum.PhaseBook),
		books:      make(map[string]curriculum.Book),
		lessons:    make(map[string]curriculum.Lesson),
		questions:  make(map[string]curriculum.Question),
		sessions:   make(map[string]session.Session),
		members:    make(map[memberKey]struct{}),
		events:     make(map[string]session.Event),
		exams:      make(map[string]session.Exam),
		attempts:   make(map[string]session.ExamAttempt),
	}
}

// clone copies the tables. Rows are values, and their slices are never mutated in place.
func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.programs {
		c.programs[k] = v
	}
	for k, v := range t.phases {
		c.phases[k] = v
	}
	for k, v := range t.phaseBooks {
		c.phaseBooks[k] = v
	}
	for k, v := range t.books {
		c.books[k] = v
	}
	for k, v := range t.lessons {
		c.lessons[k] = v
	}
	for k, v := range t.questions {
		c.questions[k] = v
	}
	for k, v := range t.sessions {
		c.sessions[k] = v
	}
	for k, v := range t.members {
		c.members[k] = v
	}
	for k, v := range t.events {
		c.events[k] = v
	}
	for k, v := range t.exams {
		c.exams[k] = v
	}
	for k, v := range t.attempts {
		c.attempts[k] = v
	}
	return c
}

// conn runs reads & writes on the tables, taking the DB locks unless it is bound to an Atomic block.
type conn struct {
	db   *DB
	inTx bool
}

func (c conn) read(fn func(t *tables) error) error {
	if !c.inTx {
		c.db.RLock()
		defer c.db.RUnlock()
	}
	return fn(c.db.tables)
}

func (c conn) write(fn func(t *tables) error) error {
	if !c.inTx {
		c.db.Lock()
		defer c.db.Unlock()
	}
	return fn(c.db.tables)
}

func (c conn) atomic(fn func(tx conn) error) error {
	if c.inTx {
		return fn(c)
	}
	c.db.Lock()
	defer c.db.Unlock()

	snapshot := c.db.tables.clone()
	if err := fn(conn{db: c.db, inTx: true}); err != nil {
		c.db.tables = snapshot
		return err
	}
	return nil
}

// cascade deletes

func (t *tables) deleteProgram(id string) {
	delete(t.programs, id)
	for phID, ph := range t.phases {
		if ph.ProgramID == id {
			t.deletePhase(phID)
		}
	}
	for sessID, sess := range t.sessions {
		if sess.ProgramID == id {
			t.deleteSession(sessID)
		}
	}
}

func (t *tables) deletePhase(id string) {
	delete(t.phases, id)
	for k := range t.phaseBooks {
		if k.phaseID == id {
			delete(t.phaseBooks, k)
		}
	}
}

func (t *tables) deleteBook(id string) {
	delete(t.books, id)
	for k := range t.phaseBooks {
		if k.bookID == id {
			delete(t.phaseBooks, k)
		}
	}
	for lsnID, lsn := range t.lessons {
		if lsn.BookID == id {
			t.deleteLesson(lsnID)
		}
	}
	for examID, exam := range t.exams {
		if exam.BookID == id {
			t.deleteExam(examID)
		}
	}
}

func (t *tables) deleteLesson(id string) {
	delete(t.lessons, id)
	for qID, q := range t.questions {
		if q.LessonID == id {
			delete(t.questions, qID)
		}
	}
	for evtID, evt := range t.events {
		if evt.LessonID.Valid && evt.LessonID.String == id {
			evt.LessonID.String, evt.LessonID.Valid = "", false
			t.events[evtID] = evt
		}
	}
}

func (t *tables) deleteSession(id string) {
	delete(t.sessions, id)
	for k := range t.members {
		if k.sessionID == id {
			delete(t.members, k)
		}
	}
	for evtID, evt := range t.events {
		if evt.SessionID == id {
			delete(t.events, evtID)
		}
	}
	for examID, exam := range t.exams {
		if exam.SessionID == id {
			t.deleteExam(examID)
		}
	}
}

func (t *tables) deleteExam(id string) {
	delete(t.exams, id)
	for attID, att := range t.attempts {
		if att.ExamID == id {
			delete(t.attempts, attID)
		}
	}
}

func (t *tables) deleteUser(id string) {
	delete(t.users, id)
	for k := range t.members {
		if k.userID == id {
			delete(t.members, k)
		}
	}
	for attID, att := range t.attempts {
		if att.StudentID == id || att.ExaminerID == id {
			delete(t.attempts, attID)
		}
	}
}
