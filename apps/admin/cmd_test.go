package main

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/session"
	"github.com/trezcool/masomo-academy/core/user"
	emailsvc "github.com/trezcool/masomo-academy/services/email"
	logsvc "github.com/trezcool/masomo-academy/services/logger"
	dummydb "github.com/trezcool/masomo-academy/storage/database/dummy"
	"github.com/trezcool/masomo-academy/tests"
)

var (
	usrRepo user.Repository
	out     *bytes.Buffer
)

func setup(t *testing.T) *commandLine {
	db := dummydb.Open()
	usrRepo = dummydb.NewUserRepository(db)
	out = new(bytes.Buffer)
	conf := &core.Config{
		TestMode:  true,
		AppName:   "Masomo Academy",
		SecretKey: "secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf))

	return &commandLine{
		conf:     conf,
		usrSvc:   user.NewService(usrRepo),
		currSvc:  curriculum.NewService(dummydb.NewCurriculumRepository(db)),
		sessSvc:  session.NewService(dummydb.NewSessionRepository(db), mailSvc),
		validate: newValidator(),
		out:      out,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			switch {
			case err == nil:
				if tt.wantErr != nil || tt.wantErrStr != "" {
					t.Fatalf("cli.run() error = nil, wantErr %v %s", tt.wantErr, tt.wantErrStr)
				}
				if check != nil {
					check(t, tt)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
				}
			default:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
		})
	}
}

func Test_commandLine_run(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "adduser: no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "token: no args", args: []string{"token"}, wantErr: errHelp},
		{name: "reschedule: no args", args: []string{"reschedule"}, wantErr: errHelp},
		{name: "addbreak: no start", args: []string{"addbreak", "-session", "lol"}, wantErr: errHelp},
		{name: "schedule: no args", args: []string{"schedule"}, wantErr: errHelp},
		{name: "migrate: in-memory engine", args: []string{"migrate", "up"}, wantErr: errNoDatabase},
	}
	runCLITests(t, cli, tests, nil)
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)
	cli.db = new(sqlx.DB)

	migrateFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "exams", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	runCLITests(t, cli, tests, nil)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", nil, true)

	type extra struct {
		uname   string
		isAdmin bool
		roles   []string
	}
	tests := []cliTest{
		{name: "username taken", args: []string{"adduser", "-username", "awe", "-email", "new@test.cd"}, wantErr: user.ErrUsernameExists},
		{name: "email taken", args: []string{"adduser", "-username", "new", "-email", "awe@test.cd"}, wantErr: user.ErrEmailExists},
		{
			name:  "admin",
			args:  []string{"adduser", "-name", "Admin", "-username", "Admin", "-email", "admin@test.cd", "-admin"},
			extra: extra{uname: "admin", isAdmin: true, roles: user.AllRoles},
		},
		{
			name:  "teacher",
			args:  []string{"adduser", "-name", "Teacher", "-username", "teacher", "-email", "teacher@test.cd", "-teacher"},
			extra: extra{uname: "teacher", roles: []string{user.RoleTeacher}},
		},
		{
			name:  "student",
			args:  []string{"adduser", "-username", "student", "-email", "student@test.cd", "-student"},
			extra: extra{uname: "student", roles: []string{user.RoleStudent}},
		},
	}
	runCLITests(t, cli, tests, func(t *testing.T, tt cliTest) {
		want := tt.extra.(extra)
		usr, err := cli.usrSvc.GetByUsernameOrEmail(context.Background(), want.uname)
		if err != nil {
			t.Fatalf("GetByUsernameOrEmail() failed, %v", err)
		}
		if !usr.IsActive {
			t.Error("created user is not active")
		}
		if usr.IsAdmin() != want.isAdmin {
			t.Errorf("IsAdmin() = %v; want %v", usr.IsAdmin(), want.isAdmin)
		}
		if len(usr.Roles) != len(want.roles) {
			t.Errorf("Roles = %v; want %v", usr.Roles, want.roles)
		}
	})
}

func Test_commandLine_token(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", nil, true)
	testutil.CreateUser(t, usrRepo, "Gone", "gone", "gone@test.cd", nil, false)

	tests := []cliTest{
		{name: "user not found", args: []string{"token", "-username", "lol"}, wantErr: user.ErrNotFound},
		{name: "inactive user", args: []string{"token", "-username", "gone"}, wantErrStr: "code=403, message=account deactivated"},
		{name: "by username", args: []string{"token", "-username", usr.Username}},
		{name: "by email", args: []string{"token", "-username", usr.Email}},
	}
	runCLITests(t, cli, tests, func(t *testing.T, tt cliTest) {
		if token := strings.TrimSpace(out.String()); strings.Count(token, ".") != 2 {
			t.Errorf("printed token = %q; want a JWT", token)
		}
	})
}

func Test_commandLine_schedule(t *testing.T) {
	cli := setup(t)
	prog, _ := testutil.SeedProgram(t, cli.currSvc, "Foundations", 3, "monday", "wednesday")
	sess := testutil.CreateSession(t, cli.sessSvc, prog.ID, core.MustParseDate("2024-01-01"))

	tests := []cliTest{
		{name: "session not found", args: []string{"schedule", "-session", "lol"}, wantErr: session.ErrNotFound},
		{name: "bad start date", args: []string{"reschedule", "-session", sess.ID, "-start", "lol"}, wantErrStr: `parsing date "lol": parsing time "lol" as "2006-01-02": cannot parse "lol" as "2006"`},
		{name: "bad break duration", args: []string{"addbreak", "-session", sess.ID, "-start", "2024-01-08", "-days", "0"}, wantErr: session.ErrInvalidDuration},
		{
			name: "reschedule",
			args: []string{"reschedule", "-session", sess.ID},
			extra: []string{
				"3 lessons planned",
				"2024-01-01  lesson",
				"2024-01-03  lesson",
				"2024-01-08  lesson",
				"end date: 2024-01-09",
			},
		},
		{
			name: "add break",
			args: []string{"addbreak", "-session", sess.ID, "-start", "2024-01-08", "-days", "3"},
			extra: []string{
				"2024-01-03  lesson",
				"2024-01-08  break   3 day(s)",
				"2024-01-11  lesson",
				"end date: 2024-01-12",
			},
		},
		{
			name: "reschedule keeps breaks",
			args: []string{"reschedule", "-session", sess.ID, "-start", "2024-01-03"},
			extra: []string{
				"session " + sess.ID + " (start 2024-01-03)",
				"2024-01-03  lesson",
				"2024-01-08  break   3 day(s)",
				"2024-01-15  lesson",
				"2024-01-17  lesson",
				"end date: 2024-01-18",
			},
		},
		{
			name:  "schedule",
			args:  []string{"schedule", "-session", sess.ID},
			extra: []string{"end date: 2024-01-18"},
		},
	}
	runCLITests(t, cli, tests, func(t *testing.T, tt cliTest) {
		for _, line := range tt.extra.([]string) {
			if !strings.Contains(out.String(), line) {
				t.Errorf("output = %q; want line %q", out.String(), line)
			}
		}
	})
}
