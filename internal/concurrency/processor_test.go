// File: internal/concurrency/processor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/momentics/hioload-async/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTask replays a fixed list of actions, then finishes.
type scriptedTask struct {
	id       int
	script   []api.Action
	trace    *[]int
	steps    int
	released int
	err      error
}

func (t *scriptedTask) Step() api.Action {
	t.steps++
	if t.trace != nil {
		*t.trace = append(*t.trace, t.id)
	}
	if t.steps > len(t.script) {
		return api.ActionFinish
	}
	return t.script[t.steps-1]
}

func (t *scriptedTask) Err() error { return t.err }
func (t *scriptedTask) Release()   { t.released++ }

// gatedTask waits until open is set, then finishes on its next step.
type gatedTask struct {
	open     bool
	steps    int
	released int
}

func (t *gatedTask) Ready() bool { return t.open }
func (t *gatedTask) Step() api.Action {
	t.steps++
	if !t.open {
		return api.ActionWait
	}
	return api.ActionFinish
}
func (t *gatedTask) Err() error { return nil }
func (t *gatedTask) Release()   { t.released++ }

func repeat(a api.Action, n int) []api.Action {
	s := make([]api.Action, n)
	for i := range s {
		s[i] = a
	}
	return s
}

func TestProcessor_FIFOFairness(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())
	var trace []int
	const n = 6
	for i := 0; i < n; i++ {
		p.AddCoroutine(&scriptedTask{id: i, script: repeat(api.ActionProceed, 3), trace: &trace})
	}

	require.True(t, p.Iterate(n))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, trace)

	require.True(t, p.Iterate(n))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 0, 1, 2, 3, 4, 5}, trace)
}

func TestProcessor_RunsUntilDone(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())
	tasks := make([]*scriptedTask, 3)
	for i := range tasks {
		tasks[i] = &scriptedTask{id: i, script: repeat(api.ActionProceed, i)}
		p.AddCoroutine(tasks[i])
	}
	for p.Iterate(100) {
	}
	for i, task := range tasks {
		assert.Equal(t, i+1, task.steps, "task %d", i)
		assert.Equal(t, 1, task.released, "task %d", i)
	}
	assert.Zero(t, p.Len())
	assert.Equal(t, uint64(3), p.Stats().Finished)
}

func TestProcessor_NoTaskLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := NewProcessor(ProcessorConfig{CheckWaitingInterval: 2, SleepThreshold: 1})
	actions := []api.Action{api.ActionProceed, api.ActionWait}

	var tasks []*scriptedTask
	for i := 0; i < 200; i++ {
		script := make([]api.Action, rng.Intn(8))
		for j := range script {
			script[j] = actions[rng.Intn(len(actions))]
		}
		if rng.Intn(5) == 0 {
			script = append(script, api.ActionError)
		}
		task := &scriptedTask{id: i, script: script, err: errors.New("boom")}
		tasks = append(tasks, task)
		if rng.Intn(2) == 0 {
			p.AddCoroutine(task)
		} else {
			p.AddWaitingCoroutine(task)
		}
	}

	for i := 0; i < 10_000 && p.Len() > 0; i++ {
		p.Iterate(7)
	}

	require.Zero(t, p.Len())
	var failed int
	for _, task := range tasks {
		assert.Equal(t, 1, task.released, "task %d released", task.id)
		if len(task.script) > 0 && task.script[len(task.script)-1] == api.ActionError {
			failed++
			assert.Equal(t, len(task.script), task.steps, "task %d steps", task.id)
		} else {
			assert.Equal(t, len(task.script)+1, task.steps, "task %d steps", task.id)
		}
	}
	stats := p.Stats()
	assert.Equal(t, uint64(len(tasks)), stats.Admitted)
	assert.Equal(t, uint64(failed), stats.Failed)
	assert.Equal(t, uint64(len(tasks)-failed), stats.Finished)
}

func TestProcessor_WaitingPromotionIsBounded(t *testing.T) {
	const interval = 3
	p := NewProcessor(ProcessorConfig{CheckWaitingInterval: interval})
	busy := &scriptedTask{script: repeat(api.ActionProceed, 1_000)}
	gated := &gatedTask{}
	p.AddCoroutine(busy)
	p.AddWaitingCoroutine(gated)

	for i := 0; i < 7; i++ {
		require.True(t, p.Iterate(10))
	}
	assert.Zero(t, gated.steps, "readiness check must not step the task")

	gated.open = true
	var cycles int
	for gated.released == 0 {
		cycles++
		require.LessOrEqual(t, cycles, interval+1, "waiting task stalled")
		p.Iterate(10)
	}
	assert.Equal(t, uint64(1), p.Stats().Promoted)
}

func TestProcessor_WaitingWithoutReadinessIsRestepped(t *testing.T) {
	p := NewProcessor(ProcessorConfig{CheckWaitingInterval: 1})
	task := &scriptedTask{script: []api.Action{api.ActionWait, api.ActionWait, api.ActionProceed}}
	p.AddWaitingCoroutine(task)

	assert.False(t, p.Iterate(10))
	assert.Equal(t, 1, task.steps)
	assert.False(t, p.Iterate(10))
	assert.Equal(t, 2, task.steps)
	assert.True(t, p.Iterate(10), "promoted task must be reported as active work")
	assert.False(t, p.Iterate(10))
	assert.Equal(t, 1, task.released)
}

func TestProcessor_IdleDetection(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())
	p.AddWaitingCoroutine(&gatedTask{})
	assert.False(t, p.Iterate(100), "waiting tasks are not active work")
	assert.Equal(t, 1, p.Stats().Waiting)

	p.AddCoroutine(&scriptedTask{script: repeat(api.ActionProceed, 5)})
	assert.True(t, p.Iterate(1))
	assert.Equal(t, 1, p.Stats().Active)
}

func TestProcessor_ErrorIsolation(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())
	var trace []int
	bad := &scriptedTask{id: 0, script: []api.Action{api.ActionError}, trace: &trace, err: errors.New("fatal")}
	good := &scriptedTask{id: 1, script: repeat(api.ActionProceed, 2), trace: &trace}
	waiting := &gatedTask{}
	p.AddCoroutine(bad)
	p.AddCoroutine(good)
	p.AddWaitingCoroutine(waiting)

	require.True(t, p.Iterate(2))
	assert.Equal(t, 1, bad.released)
	assert.Equal(t, uint64(1), p.Stats().Failed)

	require.True(t, p.Iterate(1))
	assert.Equal(t, []int{0, 1, 1}, trace)
	assert.Equal(t, 1, p.Stats().Waiting)

	waiting.open = true
	for p.Iterate(10) {
	}
	assert.Equal(t, 1, good.released)
	assert.Equal(t, 1, waiting.released)
}

func TestProcessor_PanickingStepFailsOnlyItsTask(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())
	panicky := api.CoroutineFunc(func() api.Action { panic("kaboom") })
	other := &scriptedTask{}
	p.AddCoroutine(panicky)
	p.AddCoroutine(other)

	require.NotPanics(t, func() { p.Iterate(10) })
	assert.Equal(t, 1, other.released)
	assert.Equal(t, uint64(1), p.Stats().Failed)
	assert.Equal(t, uint64(1), p.Stats().Finished)
}

func TestProcessor_UndefinedActionFailsTask(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())
	active := &scriptedTask{script: []api.Action{api.Action(9)}}
	waiting := &scriptedTask{script: []api.Action{api.Action(42)}}
	other := &scriptedTask{}
	p.AddCoroutine(active)
	p.AddWaitingCoroutine(waiting)
	p.AddCoroutine(other)

	for p.Iterate(10) {
	}
	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, uint64(1), stats.Finished)
	assert.Equal(t, 1, active.released)
	assert.Equal(t, 1, waiting.released)
	assert.Zero(t, p.Len())

	action, err := p.step(api.CoroutineFunc(func() api.Action { return api.Action(9) }))
	assert.Equal(t, api.ActionError, action)
	assert.ErrorIs(t, err, api.ErrInvalidAction)
}

func TestProcessor_NilAdmissionPanics(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())
	assert.PanicsWithValue(t, api.ErrNilCoroutine, func() { p.AddCoroutine(nil) })
	assert.PanicsWithValue(t, api.ErrNilCoroutine, func() { p.AddWaitingCoroutine(nil) })
}

func TestProcessor_ShouldSleepAfterThreshold(t *testing.T) {
	p := NewProcessor(ProcessorConfig{SleepThreshold: 2})
	assert.False(t, p.ShouldSleep())
	p.Iterate(1)
	assert.False(t, p.ShouldSleep())
	p.Iterate(1)
	assert.True(t, p.ShouldSleep())

	p.AddCoroutine(&scriptedTask{script: repeat(api.ActionProceed, 1)})
	assert.False(t, p.ShouldSleep())
	p.Iterate(1)
	assert.False(t, p.ShouldSleep(), "countdown resets after busy iteration")
}

func TestProcessor_CloseReleasesEverything(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())
	a := &scriptedTask{script: repeat(api.ActionProceed, 10)}
	w := &gatedTask{}
	p.AddCoroutine(a)
	p.AddWaitingCoroutine(w)

	p.Close()
	assert.Equal(t, 1, a.released)
	assert.Equal(t, 1, w.released)
	assert.Zero(t, p.Len())
	assert.False(t, p.Iterate(10))
}
