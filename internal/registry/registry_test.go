package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_BuiltinAlias(t *testing.T) {
	r := New("")

	d, err := r.Resolve("gpt5")
	require.NoError(t, err)
	assert.Equal(t, "ocid1.generativeaimodel.oc1.us-chicago-1.amaaaaaask7dceyasebknceb4ekbiaiisjtu3fj5i7s4io3ignvg4ip2uyma", d.BackendID)
	assert.Equal(t, KindModel, d.Kind)
	assert.Equal(t, "MEDIUM", d.DefaultParams["reasoning_effort"])
}

func TestResolve_RawBackendIDPassthrough(t *testing.T) {
	r := New("")
	id := "ocid1.generativeaimodel.oc1.us-chicago-1.custom"

	d, err := r.Resolve(id)
	require.NoError(t, err)
	assert.Equal(t, id, d.BackendID)
	assert.Empty(t, d.DefaultParams)
}

func TestResolve_UnknownIdentifier(t *testing.T) {
	r := New("")

	_, err := r.Resolve("definitely-not-a-model")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestResolve_HotReloadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	r := New(path)

	require.NoError(t, os.WriteFile(path, []byte(`
chatbot:
  id: ocid1.generativeaiagentendpoint.oc1..agent1
  compartmentId: ocid1.compartment.oc1..comp1
  region: us-chicago-1
  type: agent
`), 0600))

	d, err := r.Resolve("chatbot")
	require.NoError(t, err)
	assert.Equal(t, KindAgent, d.Kind)
	assert.Equal(t, "us-chicago-1", d.Region)

	// Edits are visible on the next lookup without a restart.
	require.NoError(t, os.WriteFile(path, []byte(`
chatbot:
  id: ocid1.generativeaiagentendpoint.oc1..agent2
  type: agent
`), 0600))

	d, err = r.Resolve("chatbot")
	require.NoError(t, err)
	assert.Equal(t, "ocid1.generativeaiagentendpoint.oc1..agent2", d.BackendID)
}

func TestResolve_InvalidFileFallsBackToBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0600))
	r := New(path)

	d, err := r.Resolve("grok3mini")
	require.NoError(t, err)
	assert.Contains(t, d.BackendID, "ocid1.generativeaimodel")
}

func TestResolve_EntryMissingIDFallsBackToBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broken:\n  region: us-ashburn-1\n"), 0600))
	r := New(path)

	_, err := r.Resolve("broken")
	assert.ErrorIs(t, err, ErrModelNotFound)

	_, err = r.Resolve("llama4maverick")
	assert.NoError(t, err)
}
