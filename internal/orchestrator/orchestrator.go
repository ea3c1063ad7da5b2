package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vesta-home/vesta/internal/observe"
	"github.com/vesta-home/vesta/internal/session"
	internalstt "github.com/vesta-home/vesta/internal/stt"
	internaltts "github.com/vesta-home/vesta/internal/tts"
	"github.com/vesta-home/vesta/pkg/audio"
	"github.com/vesta-home/vesta/pkg/provider/llm"
	"github.com/vesta-home/vesta/pkg/wake"
)

const (
	// defaultPlayTimeout bounds each PlayNext wait: dequeue plus synthesis
	// of one sentence.
	defaultPlayTimeout = 10 * time.Second

	// defaultFollowUpWindow is how long the Waiting state listens for a
	// follow-up utterance before the session times out.
	defaultFollowUpWindow = 8 * time.Second

	// defaultMaxHistory caps the conversation history sent to the gateway,
	// in messages (user and assistant combined).
	defaultMaxHistory = 20
)

// Config carries the orchestrator's tunables.
type Config struct {
	// RoomID identifies this device in session contexts and status
	// payloads.
	RoomID string

	// Language is passed through to synthesis.
	Language string

	// ConversationMode starts sessions in multi-turn mode.
	ConversationMode bool

	// SystemPrompt steers the gateway model.
	SystemPrompt string

	// Temperature, when non-zero, overrides the gateway's default sampling
	// temperature.
	Temperature float64

	// MaxTokens, when non-zero, caps each gateway response.
	MaxTokens int

	// Record tunes the utterance recorder.
	Record audio.RecordOptions

	// PlayTimeout bounds each sentence's dequeue-plus-synthesis wait.
	PlayTimeout time.Duration

	// FollowUpWindow bounds the Waiting state's listen for a follow-up.
	FollowUpWindow time.Duration

	// MaxHistory caps the conversation history length in messages.
	MaxHistory int
}

func (c Config) withDefaults() Config {
	if c.PlayTimeout <= 0 {
		c.PlayTimeout = defaultPlayTimeout
	}
	if c.FollowUpWindow <= 0 {
		c.FollowUpWindow = defaultFollowUpWindow
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = defaultMaxHistory
	}
	if c.Language == "" {
		c.Language = "en"
	}
	return c
}

// Orchestrator owns the single-threaded run loop that advances the state
// machine through the turn cycle and blocks on whichever component currently
// has control. The only concurrency inside a turn is the queue's synthesis
// workers and the playback drain goroutine.
type Orchestrator struct {
	cfg      Config
	machine  *session.Machine
	source   audio.Source
	detector wake.Detector
	gate     *wake.Gate
	racer    *internalstt.ParallelSTT
	streamer *internalstt.StreamingTranscriber // nil selects batch-only mode
	gateway  llm.Provider
	queue    *internaltts.Queue
	endCmd   *EndCommandMatcher
	clarify  ClarifyFunc
	metrics  *observe.Metrics
	log      *slog.Logger
	onTurn   func(*session.Interaction)

	history []llm.Message
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStreamingTranscriber enables streaming-interim mode: partial
// hypotheses are produced while the user speaks, and the streaming final
// transcript is preferred when its confidence is adequate.
func WithStreamingTranscriber(s *internalstt.StreamingTranscriber) Option {
	return func(o *Orchestrator) { o.streamer = s }
}

// WithClarifyFunc replaces the clarification heuristic.
func WithClarifyFunc(fn ClarifyFunc) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.clarify = fn
		}
	}
}

// WithEndCommandMatcher replaces the end-command matcher.
func WithEndCommandMatcher(m *EndCommandMatcher) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.endCmd = m
		}
	}
}

// WithTurnCallback registers a callback invoked with every completed turn's
// interaction record. Used for feedback devices and logging.
func WithTurnCallback(fn func(*session.Interaction)) Option {
	return func(o *Orchestrator) { o.onTurn = fn }
}

// WithMetrics wires the telemetry instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// New assembles the orchestrator. machine, source, detector, gate, racer,
// gateway, and queue are required.
func New(
	cfg Config,
	machine *session.Machine,
	source audio.Source,
	detector wake.Detector,
	gate *wake.Gate,
	racer *internalstt.ParallelSTT,
	gateway llm.Provider,
	queue *internaltts.Queue,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg.withDefaults(),
		machine:  machine,
		source:   source,
		detector: detector,
		gate:     gate,
		racer:    racer,
		gateway:  gateway,
		queue:    queue,
		endCmd:   NewEndCommandMatcher(),
		clarify:  EndsWithQuestionMark,
		metrics:  observe.DefaultMetrics(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run is the outer wake loop: score microphone frames until the gate
// triggers, run one session, return to scoring. It exits when ctx is
// cancelled, resetting the machine on the way out.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info("voice loop started", "room_id", o.cfg.RoomID)
	defer o.machine.Reset()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := o.source.ReadChunk(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("orchestrator: read wake frame: %w", err)
		}

		score, err := o.detector.Predict(frame)
		if err != nil {
			o.log.Warn("wake prediction failed", "error", err)
			continue
		}
		if !o.gate.Observe(score) {
			continue
		}

		o.log.Info("wake word detected", "score", score)
		o.runSession(ctx)
		o.detector.Reset()
	}
}

// runSession carries one session from WakeDetected through one or more
// turns back to Idle. All failures degrade to ending the session; only ctx
// cancellation propagates.
func (o *Orchestrator) runSession(ctx context.Context) {
	sess := o.machine.StartSession(uuid.NewString(), o.cfg.RoomID, o.cfg.ConversationMode)
	ctx, span := observe.StartSpan(ctx, "voice.session",
		trace.WithAttributes(
			attribute.String("room_id", o.cfg.RoomID),
			attribute.String("session_id", sess.ID),
		))
	defer span.End()

	o.machine.Transition(session.WakeDetected, false)
	o.metrics.RecordSessionStart(ctx)
	defer o.metrics.RecordSessionEnd(ctx)

	o.history = o.history[:0]
	clarifyTurnUsed := false

	for {
		followUp := o.machine.State() == session.Waiting
		o.machine.Transition(session.Listening, false)

		result := o.runTurn(ctx, sess, followUp)

		if o.onTurn != nil {
			o.onTurn(result)
		}
		o.metrics.RecordTurn(ctx, result.Err == "")

		if result.Err != "" {
			o.log.Warn("turn failed", "session_id", sess.ID, "error", result.Err)
			o.machine.Reset()
			return
		}
		sess.IncrementTurn()
		sess.Touch()

		if !result.ShouldContinue {
			break
		}

		// Conversation mode is re-read each turn; it can be toggled
		// externally mid-session.
		if !sess.ConversationMode() {
			// Single-command mode normally ends after one turn, except for
			// one clarification round-trip when the reply looks like a
			// question.
			if clarifyTurnUsed || !o.clarify(result.Response) {
				break
			}
			clarifyTurnUsed = true
		}

		if !o.machine.Transition(session.Waiting, false) {
			break
		}
	}

	o.machine.EndSession()
	o.machine.Transition(session.Idle, true)
}

// runTurn executes one listen -> transcribe -> respond -> speak cycle.
// followUp marks turns entered from the Waiting state, which listen under the
// shorter follow-up window instead of the full recording budget.
func (o *Orchestrator) runTurn(ctx context.Context, sess *session.Context, followUp bool) *session.Interaction {
	ctx, span := observe.StartSpan(ctx, "voice.turn",
		trace.WithAttributes(attribute.Int("turn", sess.TurnCount()+1)))
	defer span.End()
	log := observe.Logger(ctx)

	result := session.NewInteraction()

	// ── listen ──
	recordOpts := o.cfg.Record
	if followUp {
		recordOpts.MaxDuration = o.cfg.FollowUpWindow
	}
	if o.streamer != nil {
		o.streamer.Reset()
		recordOpts.OnChunk = func(chunk []byte) {
			if _, _, err := o.streamer.ProcessChunk(chunk); err != nil {
				log.Warn("streaming transcription chunk failed", "error", err)
			}
		}
	}

	pcm, err := audio.Record(ctx, o.source, recordOpts)
	if err != nil {
		if errors.Is(err, audio.ErrNoSpeech) {
			// Silence in the follow-up window ends the session quietly.
			result.ShouldContinue = false
			return result
		}
		result.Err = fmt.Sprintf("record: %v", err)
		return result
	}

	// ── transcribe ──
	o.machine.Transition(session.Transcribing, false)
	sttStart := time.Now()
	transcript, engine := o.transcribe(ctx, pcm)
	result.Transcript = transcript
	result.STTEngine = engine
	result.STTDuration = time.Since(sttStart)
	o.metrics.RecordSTT(ctx, engine, result.STTDuration)

	if transcript == "" {
		log.Info("nothing transcribed, ending session", "session_id", sess.ID)
		result.ShouldContinue = false
		return result
	}
	log.Info("transcript",
		"session_id", sess.ID,
		"engine", engine,
		"text", transcript)

	if o.endCmd.Match(transcript) {
		result.IsEndCommand = true
		result.ShouldContinue = false
		return result
	}

	// ── respond and speak ──
	o.machine.Transition(session.Processing, false)
	response, llmDur, ttsDur, err := o.respond(ctx, transcript)
	result.Response = response
	result.LLMDuration = llmDur
	result.TTSDuration = ttsDur
	o.metrics.RecordLLM(ctx, llmDur)
	o.metrics.RecordTTS(ctx, ttsDur)
	if err != nil {
		result.Err = fmt.Sprintf("respond: %v", err)
		return result
	}

	return result
}

// transcribe picks the streaming final when streaming mode is active,
// falling back to the batch race otherwise.
func (o *Orchestrator) transcribe(ctx context.Context, pcm []byte) (text, engine string) {
	ctx, span := observe.StartSpan(ctx, "stt.transcribe")
	defer span.End()
	log := observe.Logger(ctx)

	if o.streamer != nil {
		finalText, confidence, err := o.streamer.Finalize()
		if err == nil && finalText != "" {
			log.Debug("streaming transcript accepted", "confidence", confidence)
			span.SetAttributes(attribute.String("stt.engine", "vosk"))
			return finalText, "vosk"
		}
		if err != nil {
			log.Warn("streaming finalize failed, falling back to batch", "error", err)
		}
	}

	res := o.racer.TranscribeParallel(ctx, pcm, o.source.SampleRate())
	log.Debug("parallel transcription",
		"selected", res.Selected.Engine,
		"reason", res.SelectionReason)
	span.SetAttributes(
		attribute.String("stt.engine", res.Selected.Engine),
		attribute.String("stt.selection_reason", res.SelectionReason),
	)
	o.metrics.RecordSelection(ctx, res.Selected.Engine)
	return strings.TrimSpace(res.Selected.Text), res.Selected.Engine
}

// respond streams the gateway reply, chunks it into sentences, and pipes
// them through the synthesis queue while a drain goroutine plays them in
// order. Returns the full response text and the LLM and playback stage
// durations.
func (o *Orchestrator) respond(ctx context.Context, transcript string) (string, time.Duration, time.Duration, error) {
	ctx, span := observe.StartSpan(ctx, "llm.respond")
	defer span.End()

	llmStart := time.Now()

	o.history = append(o.history, llm.Message{Role: "user", Content: transcript})
	o.trimHistory()

	chunks, err := o.gateway.StreamCompletion(ctx, llm.CompletionRequest{
		SystemPrompt: o.cfg.SystemPrompt,
		Messages:     o.history,
		Temperature:  o.cfg.Temperature,
		MaxTokens:    o.cfg.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		return "", time.Since(llmStart), 0, fmt.Errorf("gateway: %w", err)
	}

	var (
		full        strings.Builder
		chunker     SentenceChunker
		streamDone  atomic.Bool
		ttsStart    time.Time
		spoke       bool
		streamError string
	)

	g, gctx := errgroup.WithContext(ctx)

	enqueue := func(sentence string) {
		if sentence == "" {
			return
		}
		if !spoke {
			spoke = true
			ttsStart = time.Now()
			o.machine.Transition(session.Speaking, false)
			// The drain goroutine starts with the first sentence so empty
			// replies never wait on the playback loop at all.
			g.Go(func() error {
				for {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					if streamDone.Load() && !o.queue.HasPending() {
						return nil
					}
					o.queue.PlayNext(o.cfg.PlayTimeout)
				}
			})
		}
		if err := o.queue.Enqueue(sentence, o.cfg.Language); err != nil {
			observe.Logger(ctx).Warn("enqueue sentence", "error", err)
		}
	}

	llmDone := time.Duration(0)
	for chunk := range chunks {
		if chunk.FinishReason == "error" {
			streamError = chunk.Text
			break
		}
		full.WriteString(chunk.Text)
		for _, sentence := range chunker.Feed(chunk.Text) {
			enqueue(sentence)
		}
		if chunk.FinishReason != "" {
			break
		}
	}
	llmDone = time.Since(llmStart)
	enqueue(chunker.Flush())

	streamDone.Store(true)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return full.String(), llmDone, 0, fmt.Errorf("playback: %w", err)
	}

	var ttsDur time.Duration
	if spoke {
		ttsDur = time.Since(ttsStart)
	}
	if streamError != "" {
		return full.String(), llmDone, ttsDur, fmt.Errorf("gateway stream: %s", streamError)
	}
	if ctx.Err() != nil {
		return full.String(), llmDone, ttsDur, ctx.Err()
	}

	o.history = append(o.history, llm.Message{Role: "assistant", Content: full.String()})
	o.trimHistory()
	return full.String(), llmDone, ttsDur, nil
}

func (o *Orchestrator) trimHistory() {
	if len(o.history) > o.cfg.MaxHistory {
		o.history = o.history[len(o.history)-o.cfg.MaxHistory:]
	}
}

// Interrupt aborts any in-progress playback immediately. Exposed for
// external barge-in triggers (a new wake event, an MQTT command).
func (o *Orchestrator) Interrupt(ctx context.Context) {
	o.queue.Interrupt()
	o.metrics.RecordInterrupt(ctx)
}
