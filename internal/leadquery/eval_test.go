package leadquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatline/core/internal/types"
)

func evalSrc(t *testing.T, src string, lead types.Lead) bool {
	t.Helper()
	expr, errs := Parse(src)
	require.Empty(t, errs, "parse errors for %q", src)
	return Eval(expr, lead)
}

func TestEval_Fields(t *testing.T) {
	alice := "alice"
	lead := types.Lead{Status: types.StatusLead, Priority: 72, Source: "propertyradar", AssignedTo: &alice}

	assert.True(t, evalSrc(t, `status = lead`, lead))
	assert.False(t, evalSrc(t, `status = prospect`, lead))
	assert.True(t, evalSrc(t, `priority >= 70`, lead))
	assert.False(t, evalSrc(t, `priority > 72`, lead))
	assert.True(t, evalSrc(t, `source = propertyradar`, lead))
	assert.True(t, evalSrc(t, `assigned_to = alice`, lead))
}

func TestEval_Logic(t *testing.T) {
	lead := types.Lead{Status: types.StatusLead, Priority: 72}

	assert.True(t, evalSrc(t, `status = lead and priority >= 70`, lead))
	assert.False(t, evalSrc(t, `status = lead and priority >= 80`, lead))
	assert.True(t, evalSrc(t, `status = dead or priority >= 70`, lead))
	assert.True(t, evalSrc(t, `not status = dead`, lead))
}

func TestEval_In(t *testing.T) {
	lead := types.Lead{Status: types.StatusNegotiation}
	assert.True(t, evalSrc(t, `status in [prospect, lead, negotiation]`, lead))
	assert.False(t, evalSrc(t, `status in [dead, closed]`, lead))
}

func TestEval_UnassignedLead(t *testing.T) {
	lead := types.Lead{Status: types.StatusProspect}
	// != on a null assignment matches; = never does.
	assert.True(t, evalSrc(t, `assigned_to != alice`, lead))
	assert.False(t, evalSrc(t, `assigned_to = alice`, lead))
	assert.False(t, evalSrc(t, `assigned_to in [alice, bob]`, lead))
}

func TestEval_NilMatchesAll(t *testing.T) {
	assert.True(t, Eval(nil, types.Lead{}))
}
