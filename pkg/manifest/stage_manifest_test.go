package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStageManifestYAML() string {
	return `version: "1.0"
name: fetch
request:
  task_name: playstore.fetch_detail
  kwargs:
    region: us

pipelines:
  - task_name: playstore.store_detail
  - task_name: playstore.store_reviews

terminators:
  - task_name: terminator.static
    kwargs:
      max_cost: 1000

callbacks:
  - task_name: notify.stage_done
`
}

func TestLoadStageFromBytes_YAML(t *testing.T) {
	m, err := LoadStageFromBytes([]byte(validStageManifestYAML()), "fetch.yaml")
	require.NoError(t, err)

	assert.Equal(t, "1.0", m.Version)
	assert.Equal(t, "fetch", m.Name)
	assert.Equal(t, "playstore.fetch_detail", m.Request.TaskName)
	assert.Equal(t, "us", m.Request.Kwargs["region"])
	require.Len(t, m.Pipelines, 2)
	assert.Equal(t, "playstore.store_detail", m.Pipelines[0].TaskName)
	require.Len(t, m.Terminators, 1)
	assert.Equal(t, "terminator.static", m.Terminators[0].TaskName)
	require.Len(t, m.Callbacks, 1)
	assert.Equal(t, "notify.stage_done", m.Callbacks[0].TaskName)
}

func TestLoadStageFromBytes_MinimalManifest(t *testing.T) {
	minimal := `version: "1.0"
name: fetch
request:
  task_name: playstore.fetch_detail
`
	m, err := LoadStageFromBytes([]byte(minimal), "fetch.yaml")
	require.NoError(t, err)
	assert.Empty(t, m.Pipelines)
	assert.Empty(t, m.Terminators)
	assert.Empty(t, m.Callbacks)
}

func TestLoadStageFromBytes_MissingRequestRejected(t *testing.T) {
	bad := `version: "1.0"
name: fetch
`
	_, err := LoadStageFromBytes([]byte(bad), "fetch.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request")
}

func TestLoadStageFromBytes_UnknownFieldRejected(t *testing.T) {
	bad := `version: "1.0"
name: fetch
request:
  task_name: playstore.fetch_detail
unknown_field: true
`
	_, err := LoadStageFromBytes([]byte(bad), "fetch.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "additional")
}

func TestLoadStageFromBytes_SignatureWithoutTaskNameRejected(t *testing.T) {
	bad := `version: "1.0"
name: fetch
request:
  kwargs:
    region: us
`
	_, err := LoadStageFromBytes([]byte(bad), "fetch.yaml")
	require.Error(t, err)
}

func TestValidateStage(t *testing.T) {
	t.Run("valid manifest passes", func(t *testing.T) {
		m := &StageManifest{
			Version: "1.0",
			Name:    "fetch",
			Request: SignatureManifest{TaskName: "playstore.fetch_detail"},
		}
		assert.NoError(t, ValidateStage(m))
	})

	t.Run("invalid manifest fails", func(t *testing.T) {
		m := &StageManifest{
			Version: "1.0",
			Name:    "fetch",
		}
		err := ValidateStage(m)
		require.Error(t, err)
	})
}

func TestStageManifest_ApplyDefaults(t *testing.T) {
	m := &StageManifest{Name: "fetch", Request: SignatureManifest{TaskName: "x"}}
	m.ApplyDefaults()
	assert.Equal(t, DefaultStageVersion, m.Version)
}
