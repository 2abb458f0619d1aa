package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/session"
)

func (cli *commandLine) reschedule(sessionID, start string) error {
	var newStart *core.Date
	if start != "" {
		d, err := core.ParseDate(start)
		if err != nil {
			return err
		}
		newStart = &d
	}

	events, err := cli.sessSvc.Reschedule(context.Background(), sessionID, newStart)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d lessons planned\n", len(events))
	return cli.schedule(sessionID)
}

func (cli *commandLine) addBreak(sessionID, start string, numDays int) error {
	d, err := core.ParseDate(start)
	if err != nil {
		return err
	}
	brk, err := cli.sessSvc.AddBreak(context.Background(), sessionID, d, numDays)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "break added: %s\n", brk.ID)
	return cli.schedule(sessionID)
}

// schedule prints the events of a session in date order.
func (cli *commandLine) schedule(sessionID string) error {
	ctx := context.Background()
	sess, err := cli.sessSvc.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	events, _, err := cli.sessSvc.QueryEvents(ctx, sessionID, new(session.EventFilter), core.Pagination{})
	if err != nil {
		return err
	}
	end, err := cli.sessSvc.EndDate(ctx, sessionID)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "session %s (start %s)\n", sess.ID, sess.StartDate)
	for _, evt := range events {
		if evt.IsBreak {
			fmt.Fprintf(cli.out, "  %s  break   %d day(s)\n", evt.EventDate, evt.NumDays)
			continue
		}
		fmt.Fprintf(cli.out, "  %s  lesson  %s\n", evt.EventDate, evt.LessonID.String)
	}
	fmt.Fprintf(cli.out, "end date: %s\n", end)
	return nil
}
