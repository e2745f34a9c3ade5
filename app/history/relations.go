package history

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/umputun/jobtrail/app/history/enums"
	"github.com/umputun/jobtrail/app/storage"
)

// Experiment groups jobs created by one invocation
type Experiment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Args      []string  `json:"args"`

	Raw storage.Record `json:"-"` // record as stored, including keys not mapped to fields
}

// NewExperiment makes experiment with fresh id and current time
func NewExperiment(name, user, command string, args []string) Experiment {
	return Experiment{ID: NewID(), Name: name, User: user, Timestamp: time.Now(), Command: command, Args: args}
}

// Record serializes experiment. Keys of Raw not mapped to fields are kept.
func (e Experiment) Record() storage.Record {
	res := storage.Record{}
	maps.Copy(res, e.Raw)
	args := slices.Clone(e.Args)
	if args == nil {
		args = []string{}
	}
	maps.Copy(res, storage.Record{
		"id":        e.ID,
		"name":      e.Name,
		"user":      e.User,
		"timestamp": e.Timestamp,
		"command":   e.Command,
		"args":      args,
	})
	return res
}

// ExperimentFromRecord deserializes experiment record
func ExperimentFromRecord(rec storage.Record) (Experiment, error) {
	var res Experiment
	if err := decodeRecord(rec, &res); err != nil {
		return Experiment{}, err
	}
	if res.Args == nil {
		res.Args = []string{}
	}
	res.Raw = rec
	return res, nil
}

// Run is a single execution attempt of a job on a compute platform
type Run struct {
	ID        string          `json:"id"`
	Job       string          `json:"job"`
	User      string          `json:"user"`
	Timestamp time.Time       `json:"timestamp"`
	Platform  enums.Platform  `json:"platform"`
	Status    enums.JobStatus `json:"status"`
	Details   map[string]any  `json:"details"`

	Raw storage.Record `json:"-"` // record as stored, including keys not mapped to fields
}

// NewRun makes run of the job with fresh id and current time
func NewRun(job, user string, platform enums.Platform, status enums.JobStatus, details map[string]any) Run {
	return Run{ID: NewID(), Job: job, User: user, Timestamp: time.Now(), Platform: platform, Status: status, Details: details}
}

// Record serializes run. Keys of Raw not mapped to fields are kept, unset status and platform
// written as unknown and local.
func (r Run) Record() storage.Record {
	if r.Status == (enums.JobStatus{}) {
		r.Status = enums.JobStatusUnknown
	}
	if r.Platform == (enums.Platform{}) {
		r.Platform = enums.PlatformLocal
	}
	res := storage.Record{}
	maps.Copy(res, r.Raw)
	details := maps.Clone(r.Details)
	if details == nil {
		details = map[string]any{}
	}
	maps.Copy(res, storage.Record{
		"id":        r.ID,
		"job":       r.Job,
		"user":      r.User,
		"timestamp": r.Timestamp,
		"platform":  r.Platform.String(),
		"status":    r.Status.String(),
		"details":   details,
	})
	return res
}

// RunFromRecord deserializes run record. Missing status is unknown, missing platform is local.
func RunFromRecord(rec storage.Record) (Run, error) {
	var res Run
	if err := decodeRecord(rec, &res); err != nil {
		return Run{}, err
	}
	if res.Status == (enums.JobStatus{}) {
		res.Status = enums.JobStatusUnknown
	}
	if res.Platform == (enums.Platform{}) {
		res.Platform = enums.PlatformLocal
	}
	if res.Details == nil {
		res.Details = map[string]any{}
	}
	res.Raw = rec
	return res, nil
}

// decodeRecord maps record to struct by json tags, converting RFC 3339 strings to time
// and enum names to enums
func decodeRecord(rec storage.Record, out any) error {
	if rec.ID() == "" {
		return &RecordError{Key: "id", Reason: "missing"}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return fmt.Errorf("can't make decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(rec)); err != nil {
		return &RecordError{Reason: fmt.Sprintf("record %q: %v", rec.ID(), err)}
	}
	return nil
}
