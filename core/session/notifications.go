package session

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/user"
)

const (
	EnrollmentTemplate     = "session_enrollment"
	ScheduleUpdateTemplate = "schedule_update"
)

type (
	EnrollmentData struct {
		Name      string
		Role      Role
		Program   string
		StartDate core.Date
	}

	ScheduleUpdateData struct {
		Name      string
		Program   string
		StartDate core.Date
		EndDate   core.Date
	}
)

func address(usr user.User) []mail.Address {
	return []mail.Address{{Name: usr.Name, Address: usr.Email}}
}

func enrollmentMessages(prog curriculum.Program, sess Session, role Role, users []user.User) []*core.EmailMessage {
	msgs := make([]*core.EmailMessage, 0, len(users))
	for _, usr := range users {
		msgs = append(msgs, &core.EmailMessage{
			To:           address(usr),
			Subject:      "Welcome to " + prog.Title,
			TemplateName: EnrollmentTemplate,
			TemplateData: EnrollmentData{
				Name:      usr.Name,
				Role:      role,
				Program:   prog.Title,
				StartDate: sess.StartDate,
			},
		})
	}
	return msgs
}

// scheduleUpdateMessages tells every member of sess about its current end date.
// It must run in the transaction that changed the schedule.
func scheduleUpdateMessages(ctx context.Context, repo Repository, sess Session) ([]*core.EmailMessage, error) {
	prog, err := repo.GetProgram(ctx, sess.ProgramID)
	if err != nil {
		return nil, parentErr(err, curriculum.ErrProgramNotFound, "program", sess.ProgramID)
	}
	events, _, err := repo.QueryEvents(ctx, sess.ID, nil, core.Pagination{})
	if err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	end := EndDate(sess.StartDate, events)

	var msgs []*core.EmailMessage
	for _, role := range []Role{Student, Teacher} {
		members, err := repo.QueryMembers(ctx, sess.ID, role)
		if err != nil {
			return nil, errors.Wrapf(err, "querying %ss", role)
		}
		for _, usr := range members {
			msgs = append(msgs, &core.EmailMessage{
				To:           address(usr),
				Subject:      "Schedule update: " + prog.Title,
				TemplateName: ScheduleUpdateTemplate,
				TemplateData: ScheduleUpdateData{
					Name:      usr.Name,
					Program:   prog.Title,
					StartDate: sess.StartDate,
					EndDate:   end,
				},
			})
		}
	}
	return msgs, nil
}
