package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/agent"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/config"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/httpserver"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/language"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/llm"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/media"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/metrics"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/router"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/segment"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/storage"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/stream"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/stt"
	"github.com/ShivaKumarAnandam/sarvam-voice-agent/internal/tts"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.Load()

	transcriber := stt.NewSarvamClient(cfg.SarvamAPIKey, cfg.SarvamSTTModel)
	generator := llm.NewSarvamClient(cfg.SarvamAPIKey, cfg.SarvamChatModel)

	var synthesizer router.Synthesizer
	switch cfg.TTSProvider {
	case "deepgram":
		synthesizer = tts.NewDeepgramClient(cfg.DeepgramAPIKey, cfg.DeepgramVoice)
	default:
		synthesizer = tts.NewSarvamClient(cfg.SarvamAPIKey, cfg.SarvamTTSModel, cfg.SarvamSpeaker)
	}

	// breakers are shared across calls so a failing provider is isolated
	// once, not once per session
	rt := router.NewRouter(transcriber, generator, synthesizer, router.Settings{
		RetryCount:  cfg.RetryCount,
		RetryDelay:  cfg.RetryDelay,
		CallTimeout: cfg.CallTimeout,
		Breakers: &router.BreakerSettings{
			FailureThreshold: cfg.FailureThreshold,
			Timeout:          cfg.CircuitTimeout,
		},
	}, log)

	var recorder *storage.Recorder
	if cfg.SupabaseURL != "" {
		var err error
		recorder, err = storage.NewRecorder(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket, log)
		if err != nil {
			log.Warn().Err(err).Msg("recording disabled")
		}
	}

	segCfg := segment.DefaultTelephony()
	segCfg.EnergyThreshold = cfg.EnergyThreshold
	segCfg.EndpointSilence = cfg.EndpointSilence
	segCfg.MinSpeech = cfg.MinSpeech

	mediaHandler := &media.Handler{
		NewSession: func() *agent.Session {
			return agent.NewSession(rt, agent.Options{
				MaxHistory: cfg.MaxHistory,
				Language: language.Options{
					Default:              cfg.DefaultLanguage,
					SwitchThreshold:      cfg.SwitchThreshold,
					HistorySize:          cfg.LanguageHistorySize,
					MinTurnsBeforeSwitch: cfg.MinTurnsBeforeSwitch,
				},
				MetricsLimit: cfg.MetricsLimit,
			}, log)
		},
		Segment: segCfg,
		Streamer: stream.NewStreamer(log,
			stream.WithChunkSize(cfg.ChunkSize),
			stream.WithInterval(cfg.ChunkInterval)),
		Recorder: recorder,
		Log:      log,
	}
	// GREETING overrides the built-in per-language greeting text
	mediaHandler.Greet = func(ctx context.Context, lang string) ([]byte, error) {
		text := cfg.Greeting
		if text == "" {
			text = agent.DefaultGreeting(lang)
		}
		return synthesizer.Synthesize(ctx, text, lang)
	}

	reg := metrics.NewRegistry()
	e := httpserver.New(httpserver.Deps{
		Media:           mediaHandler,
		Registry:        reg,
		TwilioAuthToken: func() string { return cfg.TwilioAuthToken },
		DefaultLanguage: cfg.DefaultLanguage,
		ResetBreakers:   rt.ResetBreakers,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddress).Msg("server listening")
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = server.Close()
	}
}
