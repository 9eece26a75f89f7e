package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/galaxy/solver"
)

func TestObserveStep(t *testing.T) {
	r := New()

	d := solver.Diagnostics{
		Kind: solver.BarnesHut,
		Particles: 100,
		BuildTime: 2 * time.Millisecond,
		SolveTime: 5 * time.Millisecond,
		Nodes: 141,
		Dropped: 2,
		Outside: 1,
	}
	r.ObserveStep(d, 0.1, 0.3)
	r.ObserveStep(d, 0.12, 0.42)
	r.ObserveKineticEnergy(12.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.steps))
	assert.Equal(t, 0.12, testutil.ToFloat64(r.timestep))
	assert.Equal(t, 0.42, testutil.ToFloat64(r.simTime))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.particles))
	assert.Equal(t, 141.0, testutil.ToFloat64(r.nodes))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outside))
	assert.Equal(t, 12.5, testutil.ToFloat64(r.kineticEnergy))

	assert.Equal(t, 1, testutil.CollectAndCount(r.buildSeconds))
	assert.Equal(t, 1, testutil.CollectAndCount(r.solveSeconds))
}

func TestBruteforceSkipsBuildTime(t *testing.T) {
	r := New()
	r.ObserveStep(solver.Diagnostics{ Kind: solver.Bruteforce }, 1, 1)

	assert.Equal(t, 0, testutil.CollectAndCount(r.buildSeconds))
	assert.Equal(t, 1, testutil.CollectAndCount(r.solveSeconds))
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveStep(solver.Diagnostics{ Kind: solver.Bruteforce, Particles: 7 }, 1, 1)

	server := httptest.NewServer(r.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "galaxy_particles 7"))
	assert.True(t, strings.Contains(text, "galaxy_steps_total 1"))
	assert.True(t, strings.Contains(text,
		`galaxy_force_solve_seconds_count{solver="Bruteforce"} 1`))
	assert.True(t, strings.Contains(text, "go_goroutines"))
}
