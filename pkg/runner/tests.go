package runner

import (
	"fmt"
	"sync"
	"time"

	"github.com/nyxlab/boxd/pkg/errors"
	"github.com/nyxlab/boxd/pkg/hw"
	"github.com/nyxlab/boxd/pkg/logging"
)

// Hardware test states understood by the control panel.
const (
	TestNotTested = 0
	TestFailed    = -1
	TestPassed    = 1
	TestRunning   = 2
)

// Hardware test names. They double as the bare-text commands panels send.
const (
	TestWaterDelivery = "test_water_delivery"
	TestActuators     = "test_actuators"
	TestIR            = "test_ir"
	TestNoseLight     = "test_nose_light"
	TestDisplays      = "test_displays"
)

const (
	defaultOutputTestMS = 2000
	inputTestTimeout    = 10 * time.Second
	inputPollInterval   = 20 * time.Millisecond
)

var testNames = []string{
	TestWaterDelivery,
	TestActuators,
	TestIR,
	TestNoseLight,
	TestDisplays,
}

// IsTest reports whether name is a hardware test command.
func IsTest(name string) bool {
	for _, n := range testNames {
		if n == name {
			return true
		}
	}
	return false
}

// testManager tracks the state of every hardware test. Output tests run
// on their own goroutines, so all access goes through the mutex.
type testManager struct {
	mu     sync.Mutex
	states map[string]int
}

func newTestManager() *testManager {
	m := &testManager{states: make(map[string]int, len(testNames))}
	m.reset()
	return m
}

func (m *testManager) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range testNames {
		m.states[n] = TestNotTested
	}
}

func (m *testManager) set(name string, state int) {
	m.mu.Lock()
	m.states[name] = state
	m.mu.Unlock()
}

func (m *testManager) get(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[name]
}

// promote moves name from one state to another, reporting whether the
// transition applied. A reset that raced ahead wins.
func (m *testManager) promote(name string, from, to int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states[name] != from {
		return false
	}
	m.states[name] = to
	return true
}

func (m *testManager) all() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out
}

// ---- runner test entry points ----

// TestStates returns the state of every hardware test.
func (r *Runner) TestStates() map[string]int {
	return r.tests.all()
}

// ResetTestStates marks every hardware test untested. Called when a
// panel disconnects so the next operator starts from a clean slate.
func (r *Runner) ResetTestStates() {
	r.tests.reset()
	r.log.Debug().Msg("test states reset")
}

// RunTest launches the named hardware test. ms bounds the output tests
// (water, nose light, displays) and defaults to 2000 when not positive;
// the input tests wait up to 10 seconds for the operator. The test runs
// in the background and reports through test_state broadcasts.
func (r *Runner) RunTest(name string, ms int64) error {
	if !IsTest(name) {
		return errors.TestUnknown(name)
	}
	if r.tests.get(name) == TestRunning {
		return errors.TestAlreadyRunning(name)
	}
	if ms <= 0 {
		ms = defaultOutputTestMS
	}

	r.tests.set(name, TestRunning)
	r.publishTestStates()

	switch name {
	case TestWaterDelivery:
		logging.Notify("tests", logging.StateStart, fmt.Sprintf("Testing water delivery for %dms", ms))
		go r.outputTest(name, ms, r.io.SetWaterValve, "Water delivery test passed")
	case TestNoseLight:
		logging.Notify("tests", logging.StateStart, fmt.Sprintf("Testing nose light for %dms", ms))
		go r.outputTest(name, ms, r.io.SetNoseLight, "Nose light test passed")
	case TestDisplays:
		logging.Notify("tests", logging.StateStart, fmt.Sprintf("Testing displays for %dms", ms))
		go r.displayTest(ms)
	case TestIR:
		logging.Notify("tests", logging.StateStart, "Waiting for nose poke to test IR beam")
		go r.irTest()
	case TestActuators:
		if snap := r.Snapshot(); snap.AnyLever() {
			r.failTest(name, "Lever already pressed, release both levers and retry")
			return nil
		}
		logging.Notify("tests", logging.StateStart, "Waiting for left lever press")
		go r.actuatorTest()
	}
	return nil
}

// outputTest pulses one output through the loop goroutine so the tick
// loop stays the only writer of hardware outputs.
func (r *Runner) outputTest(name string, ms int64, set func(bool), passMsg string) {
	if !r.do(func() { set(true) }) {
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	if !r.do(func() { set(false) }) {
		return
	}
	r.passTest(name, passMsg)
}

func (r *Runner) displayTest(ms int64) {
	if !r.do(func() { r.displays.ShowTestPattern() }) {
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	if !r.do(func() { r.displays.Clear() }) {
		return
	}
	r.passTest(TestDisplays, "Display test passed")
}

func (r *Runner) irTest() {
	if !r.waitForInput(func(s hw.Snapshot) bool { return s.NoseIn() }) {
		r.failTest(TestIR, "IR beam test timed out waiting for a nose poke")
		return
	}
	r.passTest(TestIR, "IR beam test passed")
}

func (r *Runner) actuatorTest() {
	if !r.waitForInput(func(s hw.Snapshot) bool { return s.LeverLeft }) {
		r.failTest(TestActuators, "Left lever test timed out")
		return
	}
	logging.Notify("tests", logging.StateStart, "Waiting for right lever press")
	if !r.waitForInput(func(s hw.Snapshot) bool { return s.LeverRight }) {
		r.failTest(TestActuators, "Right lever test timed out")
		return
	}
	r.passTest(TestActuators, "Actuator test passed")
}

// waitForInput polls the published snapshot until cond holds, the input
// test timeout elapses, or the loop exits.
func (r *Runner) waitForInput(cond func(hw.Snapshot) bool) bool {
	deadline := time.NewTimer(inputTestTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(inputPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-poll.C:
			if cond(r.Snapshot()) {
				return true
			}
		case <-deadline.C:
			return false
		case <-r.done:
			return false
		}
	}
}

// passTest marks the test passed unless a reset or failure got there
// first.
func (r *Runner) passTest(name, msg string) {
	if !r.tests.promote(name, TestRunning, TestPassed) {
		return
	}
	r.publishTestStates()
	logging.Notify("tests", logging.StateSuccess, msg)
}

func (r *Runner) failTest(name, msg string) {
	if !r.tests.promote(name, TestRunning, TestFailed) {
		return
	}
	r.publishTestStates()
	r.log.Error().Str("test", name).Msg(msg)
}

func (r *Runner) publishTestStates() {
	r.pub.TestState(r.tests.all())
}
