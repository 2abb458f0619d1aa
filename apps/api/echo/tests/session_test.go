package tests

import (
	"net/http"
	"testing"

	"github.com/trezcool/masomo-academy/apps/api/echo"
	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/session"
	"github.com/trezcool/masomo-academy/tests"
)

func eventDates(events []session.Event) []string {
	ds := make([]string, 0, len(events))
	for _, e := range events {
		ds = append(ds, e.EventDate.String())
	}
	return ds
}

func getEvents(t *testing.T, path, token string) []session.Event {
	req, rec := newAuthRequest(http.MethodGet, path, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: code = %v; body %s", path, rec.Code, rec.Body.String())
	}
	var events []session.Event
	unmarshall(t, rec, &events)
	return events
}

func Test_sessionApi(t *testing.T) {
	f := createUsers(t)
	prog, _ := testutil.SeedProgram(t, currSvc, "Foundations", 2, "monday", "wednesday")
	sess := testutil.CreateSession(t, sessSvc, prog.ID, core.MustParseDate("2024-01-01"))

	tests := []httpTest{
		{name: "Auth required", path: "/v1/sessions", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "List", path: "/v1/sessions?program_id=" + prog.ID, token: f.studentToken,
			wantData: marchallObj(t, echoapi.ListResponse{Count: 1, Results: []session.Session{sess}}),
		},
		{name: "List other program", path: "/v1/sessions?program_id=lol", token: f.studentToken, wantData: marchallObj(t, echoapi.ListResponse{Count: 0, Results: []session.Session{}})},
		{name: "Retrieve", path: "/v1/sessions/" + sess.ID, token: f.studentToken, wantData: marchallObj(t, sess)},
		{name: "Retrieve unknown", path: "/v1/sessions/lol", token: f.studentToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: session.ErrNotFound.Error()})},
		{
			name: "Create requires admin", method: http.MethodPost, path: "/v1/sessions", token: f.teacherToken,
			body: []byte(`{"program_id": "` + prog.ID + `", "start_date": "2024-01-01"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Create without start date", method: http.MethodPost, path: "/v1/sessions", token: f.adminToken,
			body: []byte(`{"program_id": "` + prog.ID + `"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"start_date": "this field is required"}),
		},
		{
			name: "Create with an invalid date", method: http.MethodPost, path: "/v1/sessions", token: f.adminToken,
			body: []byte(`{"program_id": "` + prog.ID + `", "start_date": "01/01/2024"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "Create for unknown program", method: http.MethodPost, path: "/v1/sessions", token: f.adminToken,
			body: []byte(`{"program_id": "lol", "start_date": "2024-01-01"}`), wantCode: http.StatusNotFound,
		},
		{
			name: "Create", method: http.MethodPost, path: "/v1/sessions", token: f.adminToken,
			body: []byte(`{"program_id": "` + prog.ID + `", "start_date": "2024-03-04"}`), wantCode: http.StatusCreated,
		},
		{
			name: "Update start date", method: http.MethodPut, path: "/v1/sessions/" + sess.ID, token: f.adminToken,
			body:     []byte(`{"start_date": "2024-01-08"}`),
			wantData: marchallObj(t, session.Session{ID: sess.ID, ProgramID: prog.ID, StartDate: core.MustParseDate("2024-01-08")}),
		},
	}
	runTests(t, tests)
}

func Test_sessionApi_members(t *testing.T) {
	f := createUsers(t)
	prog := testutil.CreateProgram(t, currSvc, "Foundations", "monday")
	sess := testutil.CreateSession(t, sessSvc, prog.ID, core.MustParseDate("2024-01-01"))
	studentsPath := "/v1/sessions/" + sess.ID + "/students"
	teachersPath := "/v1/sessions/" + sess.ID + "/teachers"

	tests := []httpTest{
		{
			name: "Add requires admin", method: http.MethodPost, path: studentsPath, token: f.teacherToken,
			body: marchallObj(t, session.MembersRequest{UserIDs: []string{f.student.ID}}), wantCode: http.StatusForbidden,
		},
		{
			name: "Add nobody", method: http.MethodPost, path: studentsPath, token: f.adminToken,
			body: marchallObj(t, session.MembersRequest{UserIDs: []string{}}), wantCode: http.StatusBadRequest,
		},
		{
			name: "Add unknown user", method: http.MethodPost, path: studentsPath, token: f.adminToken,
			body: marchallObj(t, session.MembersRequest{UserIDs: []string{f.student.ID, "lol"}}), wantCode: http.StatusNotFound,
		},
		{
			name: "No students yet", path: studentsPath, token: f.studentToken, wantData: marchallList(t, []interface{}{}...),
		},
		{
			name: "Add students", method: http.MethodPost, path: studentsPath, token: f.adminToken,
			body:     marchallObj(t, session.MembersRequest{UserIDs: []string{f.student.ID, f.naughty.ID, f.student.ID}}),
			wantData: marchallList(t, f.student, f.naughty),
		},
		{
			name: "Add teacher", method: http.MethodPost, path: teachersPath, token: f.adminToken,
			body: marchallObj(t, session.MembersRequest{UserIDs: []string{f.teacher.ID}}), wantData: marchallList(t, f.teacher),
		},
		{name: "Remove student", method: http.MethodDelete, path: studentsPath + "/" + f.naughty.ID, token: f.adminToken, wantCode: http.StatusNoContent},
		{
			name: "Remove non member", method: http.MethodDelete, path: teachersPath + "/" + f.student.ID, token: f.adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: session.ErrMemberNotFound.Error()}),
		},
		{name: "Students", path: studentsPath, token: f.teacherToken, wantData: marchallList(t, f.student)},
		{name: "Unknown session", path: "/v1/sessions/lol/students", token: f.teacherToken, wantCode: http.StatusNotFound},
	}
	runTests(t, tests)
}

func Test_sessionApi_schedule(t *testing.T) {
	f := createUsers(t)
	prog, lessons := testutil.SeedProgram(t, currSvc, "Foundations", 3, "monday", "wednesday")
	sess := testutil.CreateSession(t, sessSvc, prog.ID, core.MustParseDate("2024-01-01"))
	path := "/v1/sessions/" + sess.ID

	tests := []httpTest{
		{name: "Reschedule requires admin", method: http.MethodPost, path: path + "/reschedule", token: f.teacherToken, body: []byte(`{}`), wantCode: http.StatusForbidden},
		{name: "Reschedule unknown session", method: http.MethodPost, path: "/v1/sessions/lol/reschedule", token: f.adminToken, body: []byte(`{}`), wantCode: http.StatusNotFound},
		{name: "End date without events", path: path + "/end-date", token: f.studentToken, wantData: marchallObj(t, echoapi.EndDateResponse{SessionID: sess.ID, EndDate: core.MustParseDate("2024-01-01")})},
		{name: "Reschedule", method: http.MethodPost, path: path + "/reschedule", token: f.adminToken, body: []byte(`{}`)},
		{name: "End date", path: path + "/end-date", token: f.studentToken, wantData: marchallObj(t, echoapi.EndDateResponse{SessionID: sess.ID, EndDate: core.MustParseDate("2024-01-09")})},
		{
			name: "Break without duration", method: http.MethodPost, path: path + "/breaks", token: f.adminToken,
			body: []byte(`{"start_date": "2024-01-08"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: session.ErrInvalidDuration.Error()}),
		},
		{
			name: "Break without start date", method: http.MethodPost, path: path + "/breaks", token: f.adminToken,
			body: []byte(`{"num_days": 3}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "Break requires admin", method: http.MethodPost, path: path + "/breaks", token: f.teacherToken,
			body: []byte(`{"start_date": "2024-01-08", "num_days": 3}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Add break", method: http.MethodPost, path: path + "/breaks", token: f.adminToken,
			body: []byte(`{"start_date": "2024-01-08", "num_days": 3}`), wantCode: http.StatusCreated,
		},
		{name: "End date after break", path: path + "/end-date", token: f.studentToken, wantData: marchallObj(t, echoapi.EndDateResponse{SessionID: sess.ID, EndDate: core.MustParseDate("2024-01-12")})},
	}
	runTests(t, tests)

	got := getEvents(t, path+"/lessons", f.studentToken)
	if want := []string{"2024-01-01", "2024-01-03", "2024-01-11"}; !equalStrings(eventDates(got), want) {
		t.Errorf("lessons = %v; want %v", eventDates(got), want)
	}
	for i, e := range got {
		if e.LessonID.String != lessons[i].ID || e.NumDays != 1 || e.IsBreak {
			t.Errorf("lesson event %d = %+v; want a 1 day event of lesson %s", i, e, lessons[i].ID)
		}
	}
	breaks := getEvents(t, path+"/breaks", f.studentToken)
	if len(breaks) != 1 || !breaks[0].IsBreak || breaks[0].NumDays != 3 || breaks[0].LessonID.Valid {
		t.Errorf("breaks = %+v; want one 3 days break", breaks)
	}

	// a new start date keeps the breaks
	req, rec := newAuthRequest(http.MethodPost, path+"/reschedule", f.adminToken, []byte(`{"start_date": "2024-01-03"}`))
	app.ServeHTTP(rec, req)
	var planned []session.Event
	unmarshall(t, rec, &planned)
	if want := []string{"2024-01-03", "2024-01-15", "2024-01-17"}; !equalStrings(eventDates(planned), want) {
		t.Errorf("planned = %v; want %v", eventDates(planned), want)
	}
	if got := getEvents(t, path+"/breaks", f.studentToken); len(got) != 1 {
		t.Errorf("breaks = %+v; want the break to be kept", got)
	}

	// events, paginated & filtered
	req, rec = newAuthRequest(http.MethodGet, path+"/events?limit=2", f.studentToken)
	app.ServeHTTP(rec, req)
	var page struct {
		Count   int             `json:"count"`
		Results []session.Event `json:"results"`
	}
	unmarshall(t, rec, &page)
	if page.Count != 4 || !equalStrings(eventDates(page.Results), []string{"2024-01-03", "2024-01-08"}) {
		t.Errorf("events page = %+v; want 4 events, starting on 2024-01-03 & 2024-01-08", page)
	}
	runTests(t, []httpTest{
		{name: "Events with an invalid filter", path: path + "/events?is_break=lol", token: f.studentToken, wantCode: http.StatusBadRequest},
	})
}

func Test_sessionApi_noStudyDays(t *testing.T) {
	f := createUsers(t)
	prog, _ := testutil.SeedProgram(t, currSvc, "Lazy", 1)
	sess := testutil.CreateSession(t, sessSvc, prog.ID, core.MustParseDate("2024-01-01"))

	runTests(t, []httpTest{
		{
			name: "Reschedule", method: http.MethodPost, path: "/v1/sessions/" + sess.ID + "/reschedule", token: f.adminToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: session.ErrNoStudyDaysConfigured.Error()}),
		},
	})
}

func Test_sessionApi_events(t *testing.T) {
	f := createUsers(t)
	prog, lessons := testutil.SeedProgram(t, currSvc, "Foundations", 1, "monday")
	sess := testutil.CreateSession(t, sessSvc, prog.ID, core.MustParseDate("2024-01-01"))
	path := "/v1/sessions/" + sess.ID + "/events"
	lessonEvent := []byte(`{"event_date": "2024-01-01", "lesson_id": "` + lessons[0].ID + `"}`)

	tests := []httpTest{
		{name: "Students cannot add events", method: http.MethodPost, path: path, token: f.studentToken, body: lessonEvent, wantCode: http.StatusForbidden},
		{
			name: "Break with a lesson", method: http.MethodPost, path: path, token: f.teacherToken,
			body:     []byte(`{"event_date": "2024-01-01", "is_break": true, "lesson_id": "` + lessons[0].ID + `"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"lesson_id": session.ErrBreakWithLesson.Error()}),
		},
		{
			name: "Unknown lesson", method: http.MethodPost, path: path, token: f.teacherToken,
			body: []byte(`{"event_date": "2024-01-01", "lesson_id": "lol"}`), wantCode: http.StatusNotFound,
		},
		{name: "Teacher adds a lesson", method: http.MethodPost, path: path, token: f.teacherToken, body: lessonEvent, wantCode: http.StatusCreated},
		{name: "Unknown event", method: http.MethodDelete, path: "/v1/events/lol", token: f.teacherToken, wantCode: http.StatusNotFound},
	}
	runTests(t, tests)

	events := getEvents(t, "/v1/sessions/"+sess.ID+"/lessons", f.studentToken)
	if len(events) != 1 || events[0].NumDays != 1 {
		t.Fatalf("lessons = %+v; want one single day lesson", events)
	}
	runTests(t, []httpTest{
		{name: "Students cannot delete events", method: http.MethodDelete, path: "/v1/events/" + events[0].ID, token: f.studentToken, wantCode: http.StatusForbidden},
		{name: "Delete event", method: http.MethodDelete, path: "/v1/events/" + events[0].ID, token: f.teacherToken, wantCode: http.StatusNoContent},
	})
}

func Test_sessionApi_exams(t *testing.T) {
	f := createUsers(t)
	prog := testutil.CreateProgram(t, currSvc, "Foundations", "monday")
	book := testutil.CreateBook(t, currSvc, "Genesis")
	sess := testutil.CreateSession(t, sessSvc, prog.ID, core.MustParseDate("2024-01-01"))
	path := "/v1/sessions/" + sess.ID + "/exams"

	tests := []httpTest{
		{
			name: "Deadline before start", method: http.MethodPost, path: path, token: f.adminToken,
			body:     []byte(`{"book_id": "` + book.ID + `", "start_date": "2024-02-08", "deadline": "2024-02-01"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"deadline": session.ErrExamDeadline.Error()}),
		},
		{
			name: "Unknown book", method: http.MethodPost, path: path, token: f.adminToken,
			body: []byte(`{"book_id": "lol", "start_date": "2024-02-01", "deadline": "2024-02-08"}`), wantCode: http.StatusNotFound,
		},
		{
			name: "Requires admin", method: http.MethodPost, path: path, token: f.teacherToken,
			body: []byte(`{"book_id": "` + book.ID + `", "start_date": "2024-02-01", "deadline": "2024-02-08"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Created", method: http.MethodPost, path: path, token: f.adminToken,
			body: []byte(`{"book_id": "` + book.ID + `", "start_date": "2024-02-01", "deadline": "2024-02-01"}`), wantCode: http.StatusCreated,
		},
	}
	runTests(t, tests)

	req, rec := newAuthRequest(http.MethodGet, path, f.studentToken)
	app.ServeHTTP(rec, req)
	var exams []session.Exam
	unmarshall(t, rec, &exams)
	if len(exams) != 1 || exams[0].MaxAttempts != 1 || exams[0].BookID != book.ID {
		t.Fatalf("exams = %+v; want one exam with a single attempt", exams)
	}
	runTests(t, []httpTest{
		{name: "Delete exam", method: http.MethodDelete, path: "/v1/exams/" + exams[0].ID, token: f.adminToken, wantCode: http.StatusNoContent},
		{name: "Delete exam twice", method: http.MethodDelete, path: "/v1/exams/" + exams[0].ID, token: f.adminToken, wantCode: http.StatusNotFound},
	})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

