package history

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobtrail/app/history/enums"
	"github.com/umputun/jobtrail/app/storage"
)

func TestExperiment_Record(t *testing.T) {
	exp := NewExperiment("sweep", "alice", "train.py", nil)
	assert.Len(t, exp.ID, 32)
	rec := exp.Record()
	assert.Equal(t, []string{}, rec["args"])
	assert.Equal(t, "train.py", rec["command"])

	got, err := ExperimentFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, exp.ID, got.ID)
	assert.Equal(t, exp.Timestamp, got.Timestamp)
	assert.Equal(t, []string{}, got.Args)
}

func TestExperimentFromRecord_Decoded(t *testing.T) {
	rec := storage.Record{
		"id": "e1", "name": "sweep", "user": "alice", "timestamp": "2020-07-21T16:30:00Z",
		"command": "train.py", "args": []any{"--gpu"}, "xgroup": "xg-1",
	}
	exp, err := ExperimentFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 7, 21, 16, 30, 0, 0, time.UTC), exp.Timestamp)
	assert.Equal(t, []string{"--gpu"}, exp.Args)
	assert.Equal(t, "xg-1", exp.Record()["xgroup"], "unmapped keys preserved")

	_, err = ExperimentFromRecord(storage.Record{"name": "no id"})
	var rerr *RecordError
	assert.True(t, errors.As(err, &rerr))

	_, err = ExperimentFromRecord(storage.Record{"id": "e1", "timestamp": "not a time"})
	assert.True(t, errors.As(err, &rerr))
}

func TestRun_Record(t *testing.T) {
	run := NewRun("j1", "alice", enums.PlatformCAIP, enums.JobStatusSubmitted, map[string]any{"machine": "n1-standard-4"})
	rec := run.Record()
	assert.Equal(t, "caip", rec["platform"])
	assert.Equal(t, "submitted", rec["status"])
	assert.Equal(t, "j1", rec["job"])

	got, err := RunFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, enums.PlatformCAIP, got.Platform)
	assert.Equal(t, enums.JobStatusSubmitted, got.Status)
	assert.Equal(t, map[string]any{"machine": "n1-standard-4"}, got.Details)
}

func TestRun_RecordUnsetEnums(t *testing.T) {
	rec := Run{ID: "r1", Job: "j1"}.Record()
	assert.Equal(t, "unknown", rec["status"])
	assert.Equal(t, "local", rec["platform"])

	got, err := RunFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, enums.JobStatusUnknown, got.Status)
	assert.Equal(t, enums.PlatformLocal, got.Platform)
}

func TestRunFromRecord_Defaults(t *testing.T) {
	run, err := RunFromRecord(storage.Record{"id": "r1", "job": "j1"})
	require.NoError(t, err)
	assert.Equal(t, enums.JobStatusUnknown, run.Status)
	assert.Equal(t, enums.PlatformLocal, run.Platform)
	assert.Equal(t, map[string]any{}, run.Details)
	assert.True(t, run.Timestamp.IsZero())

	_, err = RunFromRecord(storage.Record{"id": "r1", "platform": "mainframe"})
	assert.Error(t, err)
}

func TestErrors(t *testing.T) {
	assert.EqualError(t, &ConfigurationError{Index: 2, Key: "lr", Reason: "bad"}, `invalid config #2, key "lr": bad`)
	assert.EqualError(t, &ConfigurationError{Index: 0, Reason: "empty key"}, "invalid config #0: empty key")
	assert.EqualError(t, &RecordError{Key: "id", Reason: "missing"}, `bad record field "id": missing`)
	assert.EqualError(t, &RecordError{Reason: "oops"}, "bad record: oops")
}
