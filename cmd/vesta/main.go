// Command vesta is the voice assistant daemon for a single room device: it
// listens for the wake word, transcribes commands, talks to the conversation
// gateway, and speaks the replies.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vesta-home/vesta/internal/config"
	"github.com/vesta-home/vesta/internal/health"
	"github.com/vesta-home/vesta/internal/observe"
	"github.com/vesta-home/vesta/internal/orchestrator"
	"github.com/vesta-home/vesta/internal/session"
	"github.com/vesta-home/vesta/internal/status"
	internalstt "github.com/vesta-home/vesta/internal/stt"
	internaltts "github.com/vesta-home/vesta/internal/tts"
	"github.com/vesta-home/vesta/pkg/audio"
	"github.com/vesta-home/vesta/pkg/audio/player"
	"github.com/vesta-home/vesta/pkg/audio/portaudio"
	"github.com/vesta-home/vesta/pkg/provider/llm/anyllm"
	"github.com/vesta-home/vesta/pkg/provider/stt"
	"github.com/vesta-home/vesta/pkg/provider/stt/vosk"
	"github.com/vesta-home/vesta/pkg/provider/stt/whisper"
	"github.com/vesta-home/vesta/pkg/provider/tts/coqui"
	"github.com/vesta-home/vesta/pkg/wake"
)

// version is stamped at build time via -ldflags.
var version = "dev"

const defaultSampleRate = 16000

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vesta: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vesta: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Level(),
	}))
	slog.SetDefault(logger)

	slog.Info("vesta starting",
		"version", version,
		"config", *configPath,
		"room_id", cfg.Room.ID,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "vesta",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Audio ─────────────────────────────────────────────────────────────────
	sampleRate := cfg.Audio.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	var captureOpts []portaudio.Option
	if cfg.Audio.ChunkFrames > 0 {
		captureOpts = append(captureOpts, portaudio.WithChunkFrames(cfg.Audio.ChunkFrames))
	}
	source, err := portaudio.Open(sampleRate, captureOpts...)
	if err != nil {
		slog.Error("failed to open audio capture", "err", err)
		return 1
	}
	defer source.Close()

	var speaker player.Player
	if argv := strings.Fields(cfg.Audio.PlaybackCommand); len(argv) > 0 {
		speaker = player.NewExecPlayer(argv[0], argv[1:]...)
	} else {
		speaker = player.NewBeepPlayer()
	}

	// ── Transcription engines ─────────────────────────────────────────────────
	voskModel, err := vosk.Load(cfg.STT.Vosk.ModelPath)
	if err != nil {
		slog.Error("failed to load vosk model", "path", cfg.STT.Vosk.ModelPath, "err", err)
		return 1
	}
	defer voskModel.Close()

	slowEngine, err := buildWhisper(cfg.STT.Whisper, cfg.Room.Language)
	if err != nil {
		slog.Error("failed to build whisper engine", "err", err)
		return 1
	}

	pool := internalstt.NewPool(cfg.STT.Workers)
	defer pool.Close(true)

	var racerOpts []internalstt.ParallelOption
	if cfg.STT.Whisper.SlowTimeout > 0 {
		racerOpts = append(racerOpts, internalstt.WithSlowTimeout(cfg.STT.Whisper.SlowTimeout.Std()))
	}
	racer := internalstt.NewParallelSTT(voskModel, slowEngine, pool, racerOpts...)

	// ── Synthesis ─────────────────────────────────────────────────────────────
	var ttsOpts []coqui.Option
	if cfg.Room.Language != "" {
		ttsOpts = append(ttsOpts, coqui.WithLanguage(cfg.Room.Language))
	}
	if cfg.TTS.Voice != "" {
		ttsOpts = append(ttsOpts, coqui.WithVoice(cfg.TTS.Voice))
	}
	if cfg.TTS.Mode == config.TTSXTTS {
		ttsOpts = append(ttsOpts, coqui.WithAPIMode(coqui.APIModeXTTS))
	}
	if cfg.TTS.OutputSampleRate > 0 {
		ttsOpts = append(ttsOpts, coqui.WithOutputSampleRate(cfg.TTS.OutputSampleRate))
	}
	synth, err := coqui.New(cfg.TTS.URL, ttsOpts...)
	if err != nil {
		slog.Error("failed to create tts provider", "err", err)
		return 1
	}

	var queueOpts []internaltts.QueueOption
	if cfg.TTS.Workers > 0 {
		queueOpts = append(queueOpts, internaltts.WithWorkers(cfg.TTS.Workers))
	}
	queue := internaltts.NewQueue(synth, speaker, queueOpts...)
	defer queue.Shutdown(true)

	// ── Gateway ───────────────────────────────────────────────────────────────
	var llmOpts []anyllmlib.Option
	if cfg.LLM.APIKey != "" {
		llmOpts = append(llmOpts, anyllmlib.WithAPIKey(cfg.LLM.APIKey))
	}
	if cfg.LLM.BaseURL != "" {
		llmOpts = append(llmOpts, anyllmlib.WithBaseURL(cfg.LLM.BaseURL))
	}
	gateway, err := anyllm.New(cfg.LLM.Provider, cfg.LLM.Model, llmOpts...)
	if err != nil {
		slog.Error("failed to create llm provider", "provider", cfg.LLM.Provider, "err", err)
		return 1
	}

	// ── State machine and status fan-out ──────────────────────────────────────
	hub := status.NewHub()
	defer hub.Close()

	machine := session.NewMachine(session.WithObserver(
		status.MachineObserver(cfg.Room.ID, &status.LogPublisher{}, hub),
	))

	// ── HTTP surface: metrics, health, status websocket ───────────────────────
	if cfg.Server.ListenAddr != "" {
		srv := newHTTPServer(cfg, hub, synth)
		go func() {
			slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http server shutdown error", "err", err)
			}
		}()
	}

	// ── Orchestrator ──────────────────────────────────────────────────────────
	orchCfg := orchestrator.Config{
		RoomID:           cfg.Room.ID,
		Language:         cfg.Room.Language,
		ConversationMode: cfg.Session.ConversationMode,
		SystemPrompt:     cfg.Session.SystemPrompt,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		Record: audio.RecordOptions{
			SilenceRMS:          cfg.Audio.SilenceRMS,
			SilenceChunksToStop: cfg.Audio.SilenceChunksToStop,
			MinSpeechChunks:     cfg.Audio.MinSpeechChunks,
			MaxDuration:         cfg.Audio.MaxRecordDuration.Std(),
		},
		PlayTimeout:    cfg.Session.PlayTimeout.Std(),
		FollowUpWindow: cfg.Session.FollowUpWindow.Std(),
		MaxHistory:     cfg.Session.MaxHistory,
	}

	var gateOpts []wake.GateOption
	if cfg.Wake.Threshold > 0 {
		gateOpts = append(gateOpts, wake.WithThreshold(cfg.Wake.Threshold))
	}
	if cfg.Wake.Cooldown > 0 {
		gateOpts = append(gateOpts, wake.WithCooldown(cfg.Wake.Cooldown.Std()))
	}

	var orchOpts []orchestrator.Option
	if len(cfg.Session.EndPhrases) > 0 || cfg.Session.EndThreshold > 0 {
		var matcherOpts []orchestrator.EndCommandOption
		if len(cfg.Session.EndPhrases) > 0 {
			matcherOpts = append(matcherOpts, orchestrator.WithEndPhrases(cfg.Session.EndPhrases))
		}
		if cfg.Session.EndThreshold > 0 {
			matcherOpts = append(matcherOpts, orchestrator.WithEndThreshold(cfg.Session.EndThreshold))
		}
		orchOpts = append(orchOpts, orchestrator.WithEndCommandMatcher(orchestrator.NewEndCommandMatcher(matcherOpts...)))
	}
	if cfg.STT.Streaming {
		streamer := internalstt.NewStreamingTranscriber(voskModel, sampleRate,
			internalstt.WithPartialCallback(func(text string, seq int) {
				slog.Debug("partial hypothesis", "seq", seq, "text", text)
			}),
		)
		orchOpts = append(orchOpts, orchestrator.WithStreamingTranscriber(streamer))
	}

	orch := orchestrator.New(
		orchCfg,
		machine,
		source,
		wake.NewEnergyDetector(0),
		wake.NewGate(gateOpts...),
		racer,
		gateway,
		queue,
		orchOpts...,
	)

	printStartupSummary(cfg)
	slog.Info("ready — listening for the wake word (Ctrl+C to shut down)")

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("shutdown signal received, stopping…")
	return 0
}

// buildWhisper constructs the slow accurate engine, or returns nil when
// whisper is administratively disabled.
func buildWhisper(cfg config.WhisperConfig, language string) (stt.Engine, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	lang := cfg.Language
	if lang == "" {
		lang = language
	}
	switch cfg.Mode {
	case config.WhisperNative:
		var opts []whisper.NativeOption
		if lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(cfg.ModelPath, opts...)
	default:
		var opts []whisper.Option
		if lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.NewServer(cfg.URL, opts...), nil
	}
}

// newHTTPServer assembles the daemon's HTTP surface: Prometheus metrics,
// health probes, and the status websocket.
func newHTTPServer(cfg *config.Config, hub *status.Hub, synth *coqui.Provider) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /status", hub)

	h := health.New(
		health.Checker{Name: "tts", Check: func(ctx context.Context) error {
			_, err := synth.ListVoices(ctx)
			return err
		}},
	)
	h.Register(mux)

	return &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Vesta — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Room", cfg.Room.ID)
	printField("Vosk model", cfg.STT.Vosk.ModelPath)
	if cfg.STT.Whisper.Enabled {
		printField("Whisper", string(cfg.STT.Whisper.Mode))
	} else {
		printField("Whisper", "(disabled)")
	}
	printField("TTS", cfg.TTS.URL)
	printField("Gateway", cfg.LLM.Provider+" / "+cfg.LLM.Model)
	mode := "single-command"
	if cfg.Session.ConversationMode {
		mode = "conversation"
	}
	printField("Mode", mode)
	if cfg.Server.ListenAddr != "" {
		printField("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 22 {
		value = value[:19] + "…"
	}
	fmt.Printf("║  %-12s : %-22s ║\n", name, value)
}
