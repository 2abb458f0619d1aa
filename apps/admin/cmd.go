package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/session"
	"github.com/trezcool/masomo-academy/core/user"
)

var (
	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("migrations need the postgres engine")
)

type commandLine struct {
	conf     *core.Config
	db       *sqlx.DB // nil with the in-memory engine
	usrSvc   user.Service
	currSvc  curriculum.Service
	sessSvc  session.Service
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -username USERNAME -email EMAIL [-admin] [-teacher] [-student] - create a user")
	fmt.Fprintln(cli.out, "  token -username USERNAME|EMAIL - print an API token for the user")
	fmt.Fprintln(cli.out, "  reschedule -session ID [-start YYYY-MM-DD] - plan the lessons of a session again")
	fmt.Fprintln(cli.out, "  addbreak -session ID -start YYYY-MM-DD -days N - insert a break in a session")
	fmt.Fprintln(cli.out, "  schedule -session ID - print the lessons, breaks and end date of a session")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := cli.newFlagSet("adduser")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role to the user.")
	addUserTeacher := addUserCmd.Bool("teacher", false, "Grant the teacher role to the user.")
	addUserStudent := addUserCmd.Bool("student", false, "Grant the student role to the user.")

	tokenCmd := cli.newFlagSet("token")
	tokenUname := tokenCmd.String("username", "", "The user's username or email.")

	rescheduleCmd := cli.newFlagSet("reschedule")
	rescheduleSession := rescheduleCmd.String("session", "", "The session ID.")
	rescheduleStart := rescheduleCmd.String("start", "", "The new start date of the session (YYYY-MM-DD).")

	addBreakCmd := cli.newFlagSet("addbreak")
	addBreakSession := addBreakCmd.String("session", "", "The session ID.")
	addBreakStart := addBreakCmd.String("start", "", "The first day of the break (YYYY-MM-DD).")
	addBreakDays := addBreakCmd.Int("days", 0, "The number of days of the break.")

	scheduleCmd := cli.newFlagSet("schedule")
	scheduleSession := scheduleCmd.String("session", "", "The session ID.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, *addUserAdmin, *addUserTeacher, *addUserStudent)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUname == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUname)
	case "reschedule":
		if err := rescheduleCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rescheduleSession == "" {
			rescheduleCmd.Usage()
			return errHelp
		}
		return cli.reschedule(*rescheduleSession, *rescheduleStart)
	case "addbreak":
		if err := addBreakCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addBreakSession == "" || *addBreakStart == "" {
			addBreakCmd.Usage()
			return errHelp
		}
		return cli.addBreak(*addBreakSession, *addBreakStart, *addBreakDays)
	case "schedule":
		if err := scheduleCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *scheduleSession == "" {
			scheduleCmd.Usage()
			return errHelp
		}
		return cli.schedule(*scheduleSession)
	default:
		cli.printUsage()
		return errHelp
	}
}
