package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/session"
)

var (
	runPosition   string
	runRole       string
	runTeamSize   string
	runMotivation string
	runUserID     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one assessment in the terminal",
	Long:  "Asks the assessment questions on stdout, reads answers from stdin, and prints the evaluation. Type \"back\" to revise the previous answer.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg, "run", prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer env.Close()

		t := newTerminal(os.Stdin, cmd.OutOrStdout())
		profile, err := t.profile(runPosition, runRole, runTeamSize, runMotivation)
		if err != nil {
			return err
		}
		profile.UserID = runUserID

		res, err := t.interview(ctx, env.newController(), profile)
		if err != nil {
			return err
		}
		t.printResult(res)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runPosition, "position", "", "job position (prompted when empty)")
	runCmd.Flags().StringVar(&runRole, "role", "", "functional role (prompted when empty)")
	runCmd.Flags().StringVar(&runTeamSize, "team-size", "", "number of direct reports (prompted when empty)")
	runCmd.Flags().StringVar(&runMotivation, "motivation", "", "what motivates you as a leader")
	runCmd.Flags().StringVar(&runUserID, "user-id", "", "user id recorded with the evaluation")
	rootCmd.AddCommand(runCmd)
}

const backCommand = "back"

// terminal runs a session over line-oriented text streams.
type terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{in: bufio.NewScanner(in), out: out}
}

func (t *terminal) readLine(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	if !t.in.Scan() {
		if err := t.in.Err(); err != nil {
			return "", eris.Wrap(err, "read input")
		}
		return "", io.EOF
	}
	return strings.TrimSpace(t.in.Text()), nil
}

// profile fills blank intake fields from the input and re-asks until the
// profile validates.
func (t *terminal) profile(position, role, teamSize, motivation string) (model.Profile, error) {
	ask := func(v *string, prompt string) error {
		if strings.TrimSpace(*v) != "" {
			return nil
		}
		line, err := t.readLine(prompt)
		*v = line
		return err
	}
	for {
		if err := ask(&position, "Position: "); err != nil {
			return model.Profile{}, err
		}
		if err := ask(&role, "Role: "); err != nil {
			return model.Profile{}, err
		}
		if err := ask(&teamSize, "Team size: "); err != nil {
			return model.Profile{}, err
		}
		p, err := model.ParseProfile(position, role, teamSize, motivation)
		if err == nil {
			return p, nil
		}
		var pie *model.ProfileIncompleteError
		if !errors.As(err, &pie) {
			return model.Profile{}, err
		}
		fmt.Fprintf(t.out, "Please provide: %s\n", strings.Join(pie.Missing, ", "))
		for _, f := range pie.Missing {
			switch f {
			case "position":
				position = ""
			case "role":
				role = ""
			case "team_size":
				teamSize = ""
			}
		}
	}
}

// interview asks every question and returns the evaluation.
func (t *terminal) interview(ctx context.Context, ctrl *session.Controller, profile model.Profile) (model.EvaluationResult, error) {
	q, err := ctrl.Start(ctx, profile)
	if err != nil {
		return model.EvaluationResult{}, err
	}
	for {
		snap := ctrl.Snapshot()
		t.printQuestion(snap.QuestionsAsked+1, snap.TotalQuestions, q)
		line, err := t.readLine("> ")
		if err != nil {
			return model.EvaluationResult{}, err
		}

		if strings.EqualFold(line, backCommand) {
			prev, err := ctrl.GoBack(ctx)
			if errors.Is(err, model.ErrNothingToUndo) {
				fmt.Fprintln(t.out, "Nothing to go back to.")
				continue
			}
			if err != nil {
				return model.EvaluationResult{}, err
			}
			q = prev
			continue
		}

		answer, err := parseAnswer(q, line)
		if err != nil {
			fmt.Fprintf(t.out, "%v\n", err)
			continue
		}
		next, err := ctrl.RecordAnswer(ctx, answer)
		if errors.Is(err, model.ErrInvalidAnswer) {
			fmt.Fprintf(t.out, "%v\n", err)
			continue
		}
		if err != nil {
			return model.EvaluationResult{}, err
		}
		if next == nil {
			break
		}
		q = *next
	}

	fmt.Fprintln(t.out, "\nScoring your responses...")
	return ctrl.Evaluate(ctx)
}

func (t *terminal) printQuestion(n, total int, q model.Question) {
	fmt.Fprintf(t.out, "\n[%d/%d] %s\n", n, total, q.Text)
	switch q.Type {
	case model.QuestionMultipleChoice:
		for i, o := range q.Options {
			fmt.Fprintf(t.out, "  %d. %s\n", i+1, o)
		}
	case model.QuestionMostLeast:
		for i, o := range q.Options {
			fmt.Fprintf(t.out, "  %d. %s\n", i+1, o)
		}
		fmt.Fprintln(t.out, "  Enter the number most like you, then the number least like you (e.g. 2 4).")
	case model.QuestionScale:
		lo, hi, loLabel, hiLabel := model.ScaleMin, model.ScaleMax, "", ""
		if q.Scale != nil {
			lo, hi, loLabel, hiLabel = q.Scale.Min, q.Scale.Max, q.Scale.MinLabel, q.Scale.MaxLabel
		}
		fmt.Fprintf(t.out, "  %d (%s) to %d (%s)\n", lo, loLabel, hi, hiLabel)
	}
}

func (t *terminal) printResult(res model.EvaluationResult) {
	fmt.Fprintf(t.out, "\n%s\n%s\n\n", res.Overall.Persona, res.Overall.Summary)
	for _, f := range res.Frameworks {
		fmt.Fprintf(t.out, "  %-28s %3d  (level %d)\n", f.Label, f.Score, f.Level)
	}
	fmt.Fprintf(t.out, "\nAverage: %.1f\n", res.AverageScore)
	if len(res.Strengths) > 0 {
		fmt.Fprintf(t.out, "Strengths: %s\n", strings.Join(res.Strengths, ", "))
	}
	if len(res.GrowthAreas) > 0 {
		fmt.Fprintf(t.out, "Growth areas: %s\n", strings.Join(res.GrowthAreas, ", "))
	}
}

// parseAnswer reads a typed answer from one input line. Options may be given
// by number or by text.
func parseAnswer(q model.Question, line string) (model.Answer, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return model.Answer{}, eris.New("please enter an answer")
	}
	switch q.Type {
	case model.QuestionMultipleChoice:
		opt, err := pickOption(q.Options, line)
		if err != nil {
			return model.Answer{}, err
		}
		return model.Answer{Choice: opt}, nil
	case model.QuestionScale:
		n, err := strconv.Atoi(line)
		if err != nil {
			return model.Answer{}, eris.Errorf("%q is not a number", line)
		}
		return model.Answer{Scale: n}, nil
	case model.QuestionMostLeast:
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' })
		if len(fields) != 2 {
			return model.Answer{}, eris.New("enter two option numbers: most, then least")
		}
		most, err := pickOption(q.Options, fields[0])
		if err != nil {
			return model.Answer{}, err
		}
		least, err := pickOption(q.Options, fields[1])
		if err != nil {
			return model.Answer{}, err
		}
		return model.Answer{Ranking: &model.MostLeast{Most: most, Least: least}}, nil
	default:
		return model.Answer{Text: line}, nil
	}
}

func pickOption(options []string, s string) (string, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > len(options) {
			return "", eris.Errorf("choose a number from 1 to %d", len(options))
		}
		return options[n-1], nil
	}
	for _, o := range options {
		if strings.EqualFold(o, s) {
			return o, nil
		}
	}
	return "", eris.Errorf("%q is not one of the options", s)
}
