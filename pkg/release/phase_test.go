package release

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/rollout/pkg/errors"
)

func TestPhaseConditions(t *testing.T) {
	tests := []struct {
		name  string
		conds []Condition
		host  string
		want  bool
	}{
		{"none", nil, "web1", true},
		{"on hosts match", []Condition{OnHosts("web1", "web2")}, "web2", true},
		{"on hosts miss", []Condition{OnHosts("web1")}, "web2", false},
		{"except", []Condition{ExceptHosts("web1")}, "web1", false},
		{"all must hold", []Condition{OnHosts("web1"), ExceptHosts("web1")}, "web1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Phase{Name: "x", Conditions: tt.conds}
			assert.Equal(t, tt.want, p.Matches(&Context{Host: tt.host}))
		})
	}
}

func TestDeployingCondition(t *testing.T) {
	assert.True(t, Deploying(&Context{}))
	assert.False(t, Deploying(&Context{Rollback: true}))
}

func TestPhaseLimitCountsSuccesses(t *testing.T) {
	fail := true
	p := NewPhase("migrate", func(ctx context.Context, d *Context) error {
		if fail {
			return errors.New(errors.ErrCommand, "boom")
		}
		return nil
	}, nil)
	p.Limit = 1
	d := &Context{Host: "web1"}

	g, err := p.invokeRun(context.Background(), d, nil)
	assert.Equal(t, gateOpen, g)
	require.Error(t, err)

	fail = false
	g, err = p.invokeRun(context.Background(), d, nil)
	assert.Equal(t, gateOpen, g)
	require.NoError(t, err)

	g, err = p.invokeRun(context.Background(), d, nil)
	assert.Equal(t, gateLimited, g)
	require.NoError(t, err)

	runs, _ := p.Counts()
	assert.Equal(t, 1, runs)

	p.reset()
	runs, _ = p.Counts()
	assert.Zero(t, runs)
}

func TestInvokeCallsBeforeOnlyWhenRunning(t *testing.T) {
	p := NewPhase("migrate", func(ctx context.Context, d *Context) error { return nil }, nil)
	p.Limit = 1
	calls := 0
	before := func() { calls++ }

	g, err := p.invokeRun(context.Background(), &Context{Host: "web1"}, before)
	require.NoError(t, err)
	assert.Equal(t, gateOpen, g)

	g, err = p.invokeRun(context.Background(), &Context{Host: "web2"}, before)
	require.NoError(t, err)
	assert.Equal(t, gateLimited, g)

	p.When(OnHosts("web1"))
	g, err = p.invokeFail(context.Background(), &Context{Host: "web2"}, before)
	require.NoError(t, err)
	assert.Equal(t, gateSkipped, g)

	assert.Equal(t, 1, calls)
}

func TestPhaseWithoutActions(t *testing.T) {
	p := NewPhase("noop", nil, nil)
	g, err := p.invokeRun(context.Background(), &Context{}, nil)
	assert.Equal(t, gateSkipped, g)
	assert.NoError(t, err)
	g, err = p.invokeFail(context.Background(), &Context{}, nil)
	assert.Equal(t, gateSkipped, g)
	assert.NoError(t, err)
}

func TestDefaultPhasesOrder(t *testing.T) {
	assert.Equal(t, DefaultOrder, DefaultPhases().List())
}
