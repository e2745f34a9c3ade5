package enums

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus(t *testing.T) {
	require.Len(t, JobStatusValues(), len(JobStatusNames()))
	for i, s := range JobStatusValues() {
		parsed, err := ParseJobStatus(JobStatusNames()[i])
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
		assert.Equal(t, i, parsed.Index())
	}

	parsed, err := ParseJobStatus("succeeded")
	require.NoError(t, err)
	assert.Equal(t, JobStatusSucceeded, parsed)
	assert.True(t, parsed.Finished())
	assert.True(t, JobStatusStopped.Finished())
	assert.False(t, JobStatusRunning.Finished())
	assert.False(t, JobStatusUnknown.Finished())

	_, err = ParseJobStatus("blah")
	assert.EqualError(t, err, "invalid jobStatus: blah")
	assert.Panics(t, func() { MustJobStatus("blah") })
	assert.Equal(t, JobStatusFailed, MustJobStatus("failed"))
}

func TestPlatform(t *testing.T) {
	for i, p := range PlatformValues() {
		parsed, err := ParsePlatform(PlatformNames()[i])
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	assert.Equal(t, "caip", PlatformCAIP.String())
	assert.Equal(t, 2, PlatformGKE.Index())

	_, err := ParsePlatform("aws")
	assert.EqualError(t, err, "invalid platform: aws")
}

func TestEnumsScanValue(t *testing.T) {
	var s JobStatus
	require.NoError(t, s.Scan("running"))
	assert.Equal(t, JobStatusRunning, s)
	require.NoError(t, s.Scan([]byte("failed")))
	assert.Equal(t, JobStatusFailed, s)
	require.NoError(t, s.Scan(nil))
	assert.Equal(t, JobStatusUnknown, s)
	assert.Error(t, s.Scan(42))

	v, err := PlatformGKE.Value()
	require.NoError(t, err)
	assert.Equal(t, "gke", v)
}

func TestEnumsJSON(t *testing.T) {
	v := struct {
		Status   JobStatus `json:"status"`
		Platform Platform  `json:"platform"`
	}{Status: JobStatusFailed, Platform: PlatformCAIP}

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"failed","platform":"caip"}`, string(data))

	v.Status, v.Platform = JobStatus{}, Platform{}
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, JobStatusFailed, v.Status)
	assert.Equal(t, PlatformCAIP, v.Platform)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"bad"}`), &v))
}
