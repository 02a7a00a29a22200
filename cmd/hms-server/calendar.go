package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/domain/calendar"
)

type calendarOptions struct {
	file     string
	view     string
	date     string
	category string
	today    string
}

func (o *calendarOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.file, "file", "", "YAML events file (built-in sample when empty)")
	cmd.Flags().StringVar(&o.view, "view", "month", "View: month, week, day or list")
	cmd.Flags().StringVar(&o.date, "date", "", "Reference date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&o.category, "category", "all", "Category filter")
	cmd.Flags().StringVar(&o.today, "today", "", "Override today's date YYYY-MM-DD")
}

// planner loads the events file and positions a planner on the requested view.
func (o *calendarOptions) planner(now time.Time) (*calendar.Planner, error) {
	view, err := calendar.ParseView(o.view)
	if err != nil {
		return nil, err
	}
	today := now
	if o.today != "" {
		if today, err = time.Parse(calendar.DateLayout, o.today); err != nil {
			return nil, fmt.Errorf("invalid --today: %w", err)
		}
	}
	events, err := calendar.LoadSampleFile(o.file)
	if err != nil {
		return nil, err
	}

	p := calendar.NewPlanner(today)
	p.SetUserEvents(events)
	p.SetView(view)
	p.SetCategory(calendar.Category(o.category))
	if o.date != "" {
		ref, err := time.Parse(calendar.DateLayout, o.date)
		if err != nil {
			return nil, fmt.Errorf("invalid --date: %w", err)
		}
		p.SetReference(ref)
	}
	return p, nil
}

func calendarCmd() *cobra.Command {
	var opts calendarOptions
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Render a calendar view from an events file",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.planner(time.Now())
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p.Visible())
			}
			renderCalendar(cmd.OutOrStdout(), p)
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().Bool("json", false, "Print the visible events as JSON")
	return cmd
}

func exportICSCmd() *cobra.Command {
	var opts calendarOptions
	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Export a calendar view as iCalendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			p, err := opts.planner(now)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" || out == "-" {
				return calendar.EncodeICS(cmd.OutOrStdout(), p.Visible(), now)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := calendar.EncodeICS(f, p.Visible(), now); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	opts.bind(cmd)
	cmd.Flags().String("out", "", "Output file (stdout when empty)")
	return cmd
}

func renderCalendar(w io.Writer, p *calendar.Planner) {
	win := calendar.WindowFor(p.View(), p.Reference())
	marker := ""
	if p.TodayInView() {
		marker = " (today in view)"
	}
	fmt.Fprintf(w, "%s view from %s, category %s%s\n", p.View(), win.Start.Format(calendar.DateLayout), p.Category(), marker)

	if p.View() == calendar.ViewMonth {
		ref := p.Reference()
		days := p.MonthDays()
		for d := 1; d <= calendar.DaysInMonth(ref.Year(), int(ref.Month())-1); d++ {
			for _, e := range days[d] {
				fmt.Fprintf(w, "%s  %s\n", calendar.Date(ref.Year(), int(ref.Month())-1, d).Format(calendar.DateLayout), eventLine(e))
			}
		}
		return
	}
	for _, e := range p.Visible() {
		start, _ := e.Range()
		fmt.Fprintf(w, "%s  %s\n", start.Format(calendar.DateLayout), eventLine(e))
	}
}

func eventLine(e calendar.Event) string {
	at := "all-day"
	if !e.AllDay() {
		at = e.StartTime
	}
	line := fmt.Sprintf("%-7s  %s %s [%s]", at, e.Emoji, e.Title, e.Category)
	if e.DurationDays > 1 {
		line += fmt.Sprintf(" (%d days)", e.DurationDays)
	}
	return line
}
