package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/umputun/jobtrail/app/history"
	"github.com/umputun/jobtrail/app/storage"
)

// ShowCommand set of flags and command for job details
type ShowCommand struct {
	Job string `long:"job" required:"true" description:"job id"`

	CommonOpts
}

// Execute is the entry point for "show" command, called by flag parser.
// Missing experiment reported in the output, not as an error.
func (sc *ShowCommand) Execute(_ []string) error {
	job, err := history.LoadJob(sc.Ctx, sc.Store, sc.Job)
	if err != nil {
		return err
	}

	kwargs, err := json.Marshal(job.Kwargs())
	if err != nil {
		return fmt.Errorf("can't marshal kwargs of %s: %w", job.ID(), err)
	}

	fmt.Fprintf(sc.Out, "job:        %s\n", job.ID())
	fmt.Fprintf(sc.Out, "name:       %s\n", job.Name())
	fmt.Fprintf(sc.Out, "user:       %s\n", job.User())
	fmt.Fprintf(sc.Out, "timestamp:  %s\n", job.Timestamp().Format(time.RFC3339))
	fmt.Fprintf(sc.Out, "args:       %s\n", strings.Join(job.Args(), " "))
	fmt.Fprintf(sc.Out, "kwargs:     %s\n", kwargs)

	exp, err := job.Experiment(sc.Ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Fprintf(sc.Out, "experiment: %s (missing)\n", job.ExperimentID())
	case err != nil:
		return err
	default:
		fmt.Fprintf(sc.Out, "experiment: %s %s (%s)\n", exp.ID, exp.Name, strings.TrimSpace(exp.Command+" "+strings.Join(exp.Args, " ")))
	}

	runs := []history.Run{}
	for run, err := range job.Runs(sc.Ctx) {
		if err != nil {
			return fmt.Errorf("can't get runs of %s: %w", job.ID(), err)
		}
		runs = append(runs, run)
	}
	fmt.Fprintf(sc.Out, "runs:       %d\n", len(runs))
	for _, run := range runs {
		fmt.Fprintf(sc.Out, "  %s %s %s %s\n", run.ID, run.Timestamp.Format(time.RFC3339), run.Platform, run.Status)
	}
	return nil
}
