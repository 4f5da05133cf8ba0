// SPDX-License-Identifier: MIT
package masker

import (
	"errors"
	"math"
	"slices"
	"testing"

	"sinplayer/internal/audio"
	"sinplayer/internal/audiotest"
	"sinplayer/internal/decode"
)

func bufferTime(n int) audio.Timestamp {
	return audio.Timestamp(int64(n) * audio.FramesToNanoseconds(testFrameSize, testSampleRate))
}

func (h *harness) setRampSamples(r int) {
	h.p.SetRampDurationSeconds(float64(r) / testSampleRate)
}

func (h *harness) fadeIn() {
	h.t.Helper()
	if err := h.p.FadeIn(); err != nil {
		h.t.Fatalf("FadeIn: %v", err)
	}
}

func (h *harness) waitFadeIn(n int) {
	h.t.Helper()
	h.stepUntil(func() bool { return len(h.obs.fadeIns) >= n }, 200)
}

func (h *harness) waitFadeOut(n int) {
	h.t.Helper()
	h.stepUntil(func() bool { return h.obs.fadeOuts >= n }, 200)
}

func TestFadeIn_CompletesAtExactOffset(t *testing.T) {
	tests := []struct {
		ramp   int
		buffer int
		offset int
	}{
		{ramp: 4800, buffer: 18, offset: 192},
		{ramp: 512, buffer: 2, offset: 0},
		{ramp: 300, buffer: 1, offset: 44},
		{ramp: 1, buffer: 0, offset: 1},
		{ramp: 0, buffer: 0, offset: 0},
	}
	for _, tt := range tests {
		h := newHarness(t, 1)
		h.load(audiotest.Constant(48000, 0.5))
		h.setRampSamples(tt.ramp)
		h.fadeIn()
		h.waitFadeIn(1)

		want := AudioSampleTimeWithOffset{SystemTime: bufferTime(tt.buffer), SampleOffset: tt.offset}
		if got := h.obs.fadeIns[0]; got != want {
			t.Errorf("R=%d: fade-in completion = %+v, want %+v", tt.ramp, got, want)
		}
		if samples := tt.buffer*testFrameSize + tt.offset; samples != tt.ramp {
			t.Errorf("R=%d: completion after %d samples", tt.ramp, samples)
		}

		for range 5 {
			h.step()
		}
		if len(h.obs.fadeIns) != 1 {
			t.Errorf("R=%d: %d fade-in completions, want 1", tt.ramp, len(h.obs.fadeIns))
		}
		if h.p.Fading() {
			t.Errorf("R=%d: still fading after completion", tt.ramp)
		}
	}
}

func TestFadeIn_GainSequence(t *testing.T) {
	const r = 8
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.setRampSamples(r)
	h.fadeIn()
	h.render()

	out := h.out[0]
	for k := range r {
		want := math.Pow(math.Sin(math.Pi*float64(k)/(2*r)), 2)
		if math.Abs(float64(out[k])-want) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", k, out[k], want)
		}
		if k > 0 && out[k] < out[k-1] {
			t.Errorf("fade-in decreases at %d", k)
		}
	}
	for k := r; k < testFrameSize; k++ {
		if out[k] != 1 {
			t.Fatalf("sample %d = %v, want 1 at steady level", k, out[k])
		}
	}
}

func TestFadeOut_RampsDownAndStops(t *testing.T) {
	const r = 8
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.setRampSamples(r)
	h.fadeIn()
	h.waitFadeIn(1)

	start := h.rendered()
	h.p.FadeOut()
	h.waitFadeOut(1)

	tail := h.out[0][start:]
	nonzero := 0
	for _, s := range tail {
		if s != 0 {
			nonzero++
		}
	}
	if nonzero != r {
		t.Errorf("%d nonzero samples after FadeOut, want %d", nonzero, r)
	}
	for k := 1; k < r; k++ {
		if tail[k] > tail[k-1] {
			t.Errorf("fade-out increases at %d", k)
		}
	}
	if h.p.Playing() {
		t.Error("device still playing after fade-out completed")
	}
	if h.backend.Stops != 1 {
		t.Errorf("backend stopped %d times, want 1", h.backend.Stops)
	}
	if h.p.rs.env.state != idle {
		t.Errorf("envelope = %s, want idle", h.p.rs.env.state)
	}
}

// A 1 s 48 kHz sine with a 0.1 s ramp, faded out as soon as the fade-in
// completes.
func TestSineScenario(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Sine(48000, testSampleRate, 440, 1))
	h.p.SetRampDurationSeconds(0.1)
	h.obs.onFadeIn = h.p.FadeOut
	h.fadeIn()
	h.waitFadeIn(1)

	in := h.obs.fadeIns[0]
	if in.SystemTime != bufferTime(18) || in.SampleOffset != 192 {
		t.Fatalf("fade-in completion = %+v, want buffer 18 offset 192", in)
	}
	if got, want := in.At(testSampleRate), bufferTime(18)+audio.Timestamp(audio.FramesToNanoseconds(192, testSampleRate)); got != want {
		t.Errorf("At = %d, want %d", got, want)
	}

	h.waitFadeOut(1)
	// The fade-out starts with the first buffer after the poll tick and
	// lasts 4800 samples.
	end := 19*testFrameSize + 4800
	for i, s := range h.out[0][end:] {
		if s != 0 {
			t.Fatalf("sample %d = %v after fade-out completed", end+i, s)
		}
	}
	if h.p.Playing() {
		t.Error("Playing() after fade-out")
	}
	if h.p.rs.env.state != idle {
		t.Errorf("envelope = %s, want idle", h.p.rs.env.state)
	}
}

func TestFadeIn_Idempotent(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.setRampSamples(1000)
	h.fadeIn()
	h.render()
	h.fadeIn()
	h.p.FadeOut() // No-op while fading in.
	h.waitFadeIn(1)

	for range 10 {
		h.step()
	}
	if len(h.obs.fadeIns) != 1 {
		t.Errorf("%d fade-in completions, want 1", len(h.obs.fadeIns))
	}
	if h.obs.fadeOuts != 0 {
		t.Errorf("fade-out ran while fading in")
	}
	if h.p.rs.env.state != steadyLevel || !h.p.Playing() {
		t.Errorf("envelope = %s playing=%v, want steady level and playing", h.p.rs.env.state, h.p.Playing())
	}
}

func TestFadeIn_WhileSteadyReportsBufferStart(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.setRampSamples(10)
	h.fadeIn()
	h.waitFadeIn(1)
	h.render()
	h.render()

	next := h.rendered() / testFrameSize
	h.fadeIn()
	h.waitFadeIn(2)
	want := AudioSampleTimeWithOffset{SystemTime: bufferTime(next), SampleOffset: 0}
	if got := h.obs.fadeIns[1]; got != want {
		t.Errorf("second completion = %+v, want %+v", got, want)
	}
}

func TestFadeOut_FromIdleCompletes(t *testing.T) {
	const r = 8
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.setRampSamples(r)

	h.p.FadeOut()
	if !h.p.Playing() {
		t.Fatal("FadeOut should start the device")
	}
	h.waitFadeOut(1)

	out := h.out[0]
	if out[0] != 1 {
		t.Errorf("first sample = %v, want full gain", out[0])
	}
	for k := r; k < len(out); k++ {
		if out[k] != 0 {
			t.Fatalf("sample %d = %v after fade-out", k, out[k])
		}
	}
	if h.p.Playing() || len(h.obs.fadeIns) != 0 {
		t.Errorf("playing=%v fadeIns=%d, want stopped without fade-in", h.p.Playing(), len(h.obs.fadeIns))
	}
}

func TestSteadyLevelDuration_FadesOutOnItsOwn(t *testing.T) {
	const r, steady = 8, 16
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.setRampSamples(r)
	h.p.SetSteadyLevelDurationSeconds(steady / testSampleRate)
	h.fadeIn()
	h.waitFadeOut(1)

	if len(h.obs.fadeIns) != 1 {
		t.Fatalf("%d fade-in completions, want 1", len(h.obs.fadeIns))
	}
	out := h.out[0]
	last := 2*r + steady
	for k := 1; k < last; k++ {
		if out[k] == 0 {
			t.Errorf("sample %d silent inside the envelope", k)
		}
	}
	for k := last; k < len(out); k++ {
		if out[k] != 0 {
			t.Fatalf("sample %d = %v after automatic fade-out", k, out[k])
		}
	}
	if h.p.Playing() {
		t.Error("device still playing")
	}
}

func TestSeekSeconds(t *testing.T) {
	tests := []struct {
		seek float64
		want float32
	}{
		{0, 1},
		{0.25, 12001},
		{1.5, 24001},
		{3, 1},
		{-0.25, 36001},
		{-1.5, 24001},
	}
	for _, tt := range tests {
		h := newHarness(t, 1)
		h.load(audiotest.Index(48000))
		h.p.SeekSeconds(tt.seek)
		h.fadeIn()
		h.render()
		if got := h.out[0][0]; got != tt.want {
			t.Errorf("seek %g: first sample = %v, want %v", tt.seek, got, tt.want)
		}
	}
}

func TestLoop_WrapsAroundSource(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Index(100))
	h.fadeIn()
	h.render()
	for i, s := range h.out[0] {
		if want := float32(i%100 + 1); s != want {
			t.Fatalf("sample %d = %v, want %v", i, s, want)
		}
	}
}

func TestChannelDelay(t *testing.T) {
	h := newHarness(t, 2)
	h.load(audiotest.Index(48000), audiotest.Index(48000))
	h.p.SetChannelDelaySeconds(1, 0.01)
	h.fadeIn()
	for range 4 {
		h.render()
	}

	const delay = 480
	if h.out[0][0] != 1 {
		t.Errorf("undelayed channel starts at %v, want 1", h.out[0][0])
	}
	for i, s := range h.out[1][:delay] {
		if s != 0 {
			t.Fatalf("delayed channel sample %d = %v, want 0", i, s)
		}
	}
	for i, s := range h.out[1][delay:] {
		if want := float32(i + 1); s != want {
			t.Fatalf("delayed channel sample %d = %v, want %v", delay+i, s, want)
		}
	}
	if got := h.p.ChannelDelays(); got[1] != 0.01 || len(got) != 1 {
		t.Errorf("ChannelDelays() = %v", got)
	}
}

func TestClearChannelDelays(t *testing.T) {
	h := newHarness(t, 2)
	h.load(audiotest.Index(1000), audiotest.Index(1000))
	h.p.SetChannelDelaySeconds(1, 0.01)
	h.p.ClearChannelDelays()
	h.fadeIn()
	h.render()
	if h.out[1][0] != 1 {
		t.Errorf("channel 1 starts at %v, want 1", h.out[1][0])
	}
	if len(h.p.ChannelDelays()) != 0 {
		t.Error("delays not cleared")
	}
}

func TestStop_NoBufferAfterReturn(t *testing.T) {
	h := newHarness(t, 2)
	h.load(audiotest.Constant(1000, 1), audiotest.Constant(1000, 1))
	h.fadeIn()
	h.render()
	h.render()

	if err := h.stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.p.Playing() || h.p.shared.enabled.Load() {
		t.Fatal("still enabled after Stop")
	}

	out := [][]float32{audiotest.Constant(64, 7), audiotest.Constant(64, 7)}
	h.p.render(out, 0)
	for c := range out {
		for i, s := range out[c] {
			if s != 7 {
				t.Fatalf("channel %d sample %d written after Stop", c, i)
			}
		}
	}
	if h.p.Fading() {
		t.Error("Stop should clear fades")
	}
}

func TestStop_DropsUncollectedFadeIn(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Constant(48000, 0.5))
	h.setRampSamples(4800)
	h.fadeIn()
	for range 20 {
		h.render()
	}
	if err := h.stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	start := h.rendered() / testFrameSize
	h.fadeIn()
	h.fire()
	if len(h.obs.fadeIns) != 0 {
		t.Fatalf("completion %+v reported before the new fade-in rendered", h.obs.fadeIns[0])
	}

	h.waitFadeIn(1)
	want := AudioSampleTimeWithOffset{SystemTime: bufferTime(start + 18), SampleOffset: 192}
	if got := h.obs.fadeIns[0]; got != want {
		t.Errorf("fade-in completion = %+v, want %+v", got, want)
	}
}

func TestStop_DropsUncollectedFadeOut(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.setRampSamples(8)
	h.fadeIn()
	h.waitFadeIn(1)

	h.p.FadeOut()
	h.render()
	if err := h.stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	h.fadeIn()
	h.fire()
	if h.obs.fadeOuts != 0 || !h.p.Playing() {
		t.Fatalf("fadeOuts=%d playing=%v, want the new fade-in left running", h.obs.fadeOuts, h.p.Playing())
	}
	h.waitFadeIn(2)
	if h.p.rs.env.state != steadyLevel {
		t.Errorf("envelope = %s, want steady level", h.p.rs.env.state)
	}
}

func TestFadeIn_IgnoredUntilSteadyLevelRunEnds(t *testing.T) {
	const r, steady = 300, 300
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.setRampSamples(r)
	h.p.SetSteadyLevelDurationSeconds(steady / testSampleRate)
	h.fadeIn()
	h.waitFadeIn(1)

	// Steady level ends inside this buffer and the fade-out starts.
	h.render()
	if h.p.rs.env.state != fadingOut {
		t.Fatalf("envelope = %s, want fading out", h.p.rs.env.state)
	}
	if !h.p.Fading() {
		t.Error("Fading() = false during the automatic fade-out")
	}
	h.fadeIn()
	if h.p.shared.fadeIn.posted() {
		t.Fatal("FadeIn posted a request the callback will never serve")
	}

	h.waitFadeOut(1)
	if len(h.obs.fadeIns) != 1 || h.p.Fading() || h.p.Playing() {
		t.Fatalf("fadeIns=%d fading=%v playing=%v after the run ended",
			len(h.obs.fadeIns), h.p.Fading(), h.p.Playing())
	}

	h.fadeIn()
	h.waitFadeIn(2)
}

func TestStop_WhenIdle(t *testing.T) {
	h := newHarness(t, 1)
	if err := h.p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.p.Playing() {
		t.Error("playing after Stop")
	}
}

func TestFadeIn_PlayFailure(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.backend.PlayErr = audio.ErrBackendBusy

	if err := h.p.FadeIn(); !errors.Is(err, audio.ErrBackendBusy) {
		t.Fatalf("FadeIn error = %v, want %v", err, audio.ErrBackendBusy)
	}
	if h.p.Fading() || h.p.live() {
		t.Fatal("failed FadeIn left the player live")
	}

	h.backend.PlayErr = nil
	h.fadeIn()
	h.waitFadeIn(1)
}

func TestLoadFile_Invalid(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))

	err := h.p.LoadFile("missing.wav")
	if !errors.Is(err, ErrInvalidAudioFile) || !errors.Is(err, decode.ErrInvalidFile) {
		t.Fatalf("LoadFile error = %v, want ErrInvalidAudioFile wrapping decode.ErrInvalidFile", err)
	}
	if level := h.p.DigitalLevel(); !math.IsInf(level, -1) {
		t.Errorf("DigitalLevel() = %v, want -Inf", level)
	}
	if h.p.Channels() != 0 || h.p.DurationSeconds() != 0 {
		t.Error("failed load should leave no masker")
	}

	h.fadeIn()
	h.waitFadeIn(1)
	for i, s := range h.out[0] {
		if s != 0 {
			t.Fatalf("sample %d = %v, want silence", i, s)
		}
	}
}

func TestLoadFile_ZeroLength(t *testing.T) {
	h := newHarness(t, 2)
	h.load([]float32{}, []float32{})

	if level := h.p.DigitalLevel(); !math.IsInf(level, -1) {
		t.Errorf("DigitalLevel() = %v, want -Inf", level)
	}
	h.p.SeekSeconds(0.5)
	h.fadeIn()
	for range 3 {
		h.step()
	}
	for c := range h.out {
		for i, s := range h.out[c] {
			if s != 0 {
				t.Fatalf("channel %d sample %d = %v, want silence", c, i, s)
			}
		}
	}
}

func TestLoadFile_Metadata(t *testing.T) {
	h := newHarness(t, 2)
	h.load(audiotest.Constant(24000, 0.1), audiotest.Constant(24000, 0.1))
	h.p.SetRampDurationSeconds(0.25)

	if got := h.p.DurationSeconds(); got != 0.5 {
		t.Errorf("DurationSeconds() = %v, want 0.5", got)
	}
	if got := h.p.Channels(); got != 2 {
		t.Errorf("Channels() = %d, want 2", got)
	}
	if got := h.p.RampDuration(); got != 0.25 {
		t.Errorf("RampDuration() = %v, want 0.25", got)
	}
	if got := h.p.FadeTimeSeconds(); got != 0.25 {
		t.Errorf("FadeTimeSeconds() = %v, want 0.25", got)
	}
	if got := h.p.SampleRateHz(); got != testSampleRate {
		t.Errorf("SampleRateHz() = %v", got)
	}
}

func TestConfigureWhileEnabledPanics(t *testing.T) {
	ops := map[string]func(p *Player){
		"LoadFile":                      func(p *Player) { _ = p.LoadFile("masker.wav") },
		"SeekSeconds":                   func(p *Player) { p.SeekSeconds(1) },
		"SetChannelDelaySeconds":        func(p *Player) { p.SetChannelDelaySeconds(0, 1) },
		"ClearChannelDelays":            func(p *Player) { p.ClearChannelDelays() },
		"UseFirstChannelOnly":           func(p *Player) { p.UseFirstChannelOnly() },
		"UseSecondChannelOnly":          func(p *Player) { p.UseSecondChannelOnly() },
		"UseAllChannels":                func(p *Player) { p.UseAllChannels() },
		"SetRampDurationSeconds":        func(p *Player) { p.SetRampDurationSeconds(1) },
		"SetSteadyLevelDurationSeconds": func(p *Player) { p.SetSteadyLevelDurationSeconds(1) },
		"SetAudioDevice":                func(p *Player) { _ = p.SetAudioDevice("Lab Amplifier") },
		"EnableVibrotactileStimulus":    func(p *Player) { p.EnableVibrotactileStimulus() },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, 1)
			h.load(audiotest.Constant(1000, 1))
			h.fadeIn()

			defer func() {
				err, ok := recover().(error)
				if !ok || !errors.Is(err, ErrConfigureWhileEnabled) {
					t.Errorf("recovered %v, want ErrConfigureWhileEnabled", err)
				}
			}()
			op(h.p)
		})
	}
}

func TestSetLevel(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.p.SetLevel(-20)
	h.fadeIn()
	h.render()
	for i, s := range h.out[0] {
		if math.Abs(float64(s)-0.1) > 1e-6 {
			t.Fatalf("sample %d = %v, want 0.1", i, s)
		}
	}

	// Level changes apply while live.
	h.p.SetLevel(0)
	h.render()
	if s := h.out[0][testFrameSize]; s != 1 {
		t.Errorf("sample after SetLevel(0) = %v, want 1", s)
	}
}

func TestChannelSelection(t *testing.T) {
	tests := []struct {
		name   string
		choose func(p *Player)
		want   []float32
	}{
		{"all", (*Player).UseAllChannels, []float32{1, 2, 3}},
		{"first", (*Player).UseFirstChannelOnly, []float32{1, 0, 0}},
		{"second", (*Player).UseSecondChannelOnly, []float32{0, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 3)
			h.load(audiotest.Constant(500, 1), audiotest.Constant(500, 2), audiotest.Constant(500, 3))
			tt.choose(h.p)
			h.fadeIn()
			h.render()
			for c, want := range tt.want {
				if got := h.out[c][10]; got != want {
					t.Errorf("channel %d = %v, want %v", c, got, want)
				}
			}
		})
	}
}

func TestExtraOutputChannelsSilent(t *testing.T) {
	h := newHarness(t, 3)
	h.load(audiotest.Constant(500, 1))
	h.fadeIn()
	h.render()
	if h.out[0][0] != 1 || h.out[1][0] != 0 || h.out[2][0] != 0 {
		t.Errorf("frame 0 = [%v %v %v], want [1 0 0]", h.out[0][0], h.out[1][0], h.out[2][0])
	}
}

func TestVibrotactileOverlay(t *testing.T) {
	h := newHarness(t, 3)
	h.load(audiotest.Constant(1000, 0.5), audiotest.Constant(1000, 0.5))
	h.p.SetLevel(-20)
	v := Vibrotactile{
		Channel:      2,
		FrequencyHz:  1000,
		BurstSeconds: 0.001,
		GapSeconds:   0.001,
		Bursts:       2,
		DelaySeconds: 0.002,
	}
	if err := h.p.PrepareVibrotactileStimulus(v); err != nil {
		t.Fatalf("PrepareVibrotactileStimulus: %v", err)
	}
	h.p.EnableVibrotactileStimulus()
	h.fadeIn()
	h.render()

	const delay, burst = 96, 48
	ch := h.out[2]
	if slices.ContainsFunc(ch[:delay], func(s float32) bool { return s != 0 }) {
		t.Error("overlay written before its delay")
	}
	want := float32(math.Sin(2 * math.Pi * 1000 / testSampleRate))
	if math.Abs(float64(ch[delay+1]-want)) > 1e-6 {
		t.Errorf("first burst sample 1 = %v, want %v (unscaled by level)", ch[delay+1], want)
	}
	for i := delay + burst; i < delay+2*burst; i++ {
		if ch[i] != 0 {
			t.Fatalf("gap sample %d = %v", i, ch[i])
		}
	}
	if ch[delay+2*burst+1] == 0 {
		t.Error("second burst missing")
	}
	for i := delay + 3*burst; i < len(ch); i++ {
		if ch[i] != 0 {
			t.Fatalf("sample %d = %v after the burst train", i, ch[i])
		}
	}
}

func TestVibrotactileDisabled(t *testing.T) {
	h := newHarness(t, 3)
	h.load(audiotest.Constant(1000, 0.5))
	err := h.p.PrepareVibrotactileStimulus(Vibrotactile{Channel: 2, FrequencyHz: 250, BurstSeconds: 0.001, Bursts: 1})
	if err != nil {
		t.Fatalf("PrepareVibrotactileStimulus: %v", err)
	}
	h.p.EnableVibrotactileStimulus()
	h.p.DisableVibrotactileStimulus()
	h.fadeIn()
	h.render()
	if slices.ContainsFunc(h.out[2], func(s float32) bool { return s != 0 }) {
		t.Error("disabled overlay was written")
	}
}

func TestPrepareVibrotactileStimulus_Invalid(t *testing.T) {
	h := newHarness(t, 3)
	for _, v := range []Vibrotactile{
		{Channel: -1, FrequencyHz: 250, BurstSeconds: 0.1, Bursts: 1},
		{Channel: 2, FrequencyHz: 250, BurstSeconds: 0.1, Bursts: 0},
		{Channel: 2, FrequencyHz: 0, BurstSeconds: 0.1, Bursts: 1},
	} {
		if err := h.p.PrepareVibrotactileStimulus(v); err == nil {
			t.Errorf("PrepareVibrotactileStimulus(%+v) succeeded", v)
		}
	}
}

func TestSetAudioDevice(t *testing.T) {
	h := newHarness(t, 1)
	if err := h.p.SetAudioDevice("Lab Amplifier"); err != nil {
		t.Fatalf("SetAudioDevice: %v", err)
	}
	if h.backend.Device() != 2 {
		t.Errorf("device = %d, want 2", h.backend.Device())
	}
	for _, name := range []string{"Built-in Microphone", "Nowhere"} {
		if err := h.p.SetAudioDevice(name); !errors.Is(err, ErrInvalidAudioDevice) {
			t.Errorf("SetAudioDevice(%q) = %v, want ErrInvalidAudioDevice", name, err)
		}
	}
	want := []string{"Built-in Output", "Lab Amplifier"}
	if got := h.p.OutputAudioDeviceDescriptions(); !slices.Equal(got, want) {
		t.Errorf("OutputAudioDeviceDescriptions() = %v, want %v", got, want)
	}
}

func TestDigitalLevel(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Sine(48000, testSampleRate, 1000, 1))
	want := -10 * math.Log10(2)
	if got := h.p.DigitalLevel(); math.Abs(got-want) > 0.01 {
		t.Errorf("DigitalLevel() = %.3f dB, want %.3f dB", got, want)
	}
}

func TestSystemTime(t *testing.T) {
	h := newHarness(t, 1)
	h.backend.SetTime(5000)
	if h.p.CurrentSystemTime() != 5000 {
		t.Errorf("CurrentSystemTime() = %d", h.p.CurrentSystemTime())
	}
	if got := h.p.NanosecondsSince(1000); got != 4000 {
		t.Errorf("NanosecondsSince(1000) = %d, want 4000", got)
	}
}

func TestPollInterval(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.p.SetPollInterval(DefaultPollInterval * 2)
	h.fadeIn()
	if got := h.timer.Seconds; math.Abs(got-0.066) > 1e-9 {
		t.Errorf("poll scheduled after %vs, want 0.066", got)
	}
}

func TestRender_HotPath(t *testing.T) {
	h := newHarness(t, 3)
	h.load(audiotest.Sine(48000, testSampleRate, 440, 1), audiotest.Sine(48000, testSampleRate, 440, 1))
	h.p.SetRampDurationSeconds(0.05)
	h.p.SetChannelDelaySeconds(1, 0.001)
	if err := h.p.PrepareVibrotactileStimulus(Vibrotactile{Channel: 2, FrequencyHz: 250, BurstSeconds: 0.01, Bursts: 3, GapSeconds: 0.01}); err != nil {
		t.Fatal(err)
	}
	h.p.EnableVibrotactileStimulus()
	h.fadeIn()

	out := [][]float32{make([]float32, testFrameSize), make([]float32, testFrameSize), make([]float32, testFrameSize)}
	var now audio.Timestamp
	allocs := testing.AllocsPerRun(200, func() {
		h.p.render(out, now)
		now += bufferTime(1)
	})
	if allocs > 0 {
		t.Errorf("render allocated %v times per buffer", allocs)
	}
}

func BenchmarkRender(b *testing.B) {
	backend := audiotest.NewBackend(2, testSampleRate)
	reader := audiotest.NewReader()
	reader.Add("masker.wav", int(testSampleRate), audiotest.Sine(48000, testSampleRate, 440, 1), audiotest.Sine(48000, testSampleRate, 440, 1))
	p := New(backend, reader, &audiotest.Timer{})
	if err := p.LoadFile("masker.wav"); err != nil {
		b.Fatal(err)
	}
	p.SetRampDurationSeconds(0.1)
	if err := p.FadeIn(); err != nil {
		b.Fatal(err)
	}

	out := [][]float32{make([]float32, testFrameSize), make([]float32, testFrameSize)}
	b.ReportAllocs()
	for b.Loop() {
		p.render(out, 0)
	}
}

func TestNegativeChannelDelayIgnored(t *testing.T) {
	h := newHarness(t, 1)
	h.load(audiotest.Constant(1000, 1))
	h.p.SetChannelDelaySeconds(0, -0.01)
	h.fadeIn()
	h.render()
	if h.out[0][0] != 1 {
		t.Errorf("first sample = %v, want 1", h.out[0][0])
	}
}

func TestVibrotactileShortChannel(t *testing.T) {
	h := newHarness(t, 3)
	h.load(audiotest.Constant(1000, 0.5))
	err := h.p.PrepareVibrotactileStimulus(Vibrotactile{Channel: 2, FrequencyHz: 1000, BurstSeconds: 0.002, Bursts: 1})
	if err != nil {
		t.Fatalf("PrepareVibrotactileStimulus: %v", err)
	}
	h.p.EnableVibrotactileStimulus()
	h.fadeIn()

	out := [][]float32{make([]float32, 64), make([]float32, 64), make([]float32, 16)}
	h.p.render(out, 0)
	if out[2][1] == 0 {
		t.Error("overlay missing on the short channel")
	}
}
