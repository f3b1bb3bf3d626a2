package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// Providers
	SarvamAPIKey    string
	SarvamSTTModel  string
	SarvamChatModel string
	SarvamTTSModel  string
	SarvamSpeaker   string
	TTSProvider     string // "sarvam" or "deepgram"
	DeepgramAPIKey  string
	DeepgramVoice   string

	// Twilio webhook validation
	TwilioAuthToken string

	// Recording storage, optional
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// Conversation
	DefaultLanguage      string
	MaxHistory           int
	SwitchThreshold      int
	LanguageHistorySize  int
	MinTurnsBeforeSwitch int
	Greeting             string

	// Routing
	FailureThreshold int
	CircuitTimeout   time.Duration
	RetryCount       int
	RetryDelay       time.Duration
	CallTimeout      time.Duration

	// Audio
	EnergyThreshold float64
	EndpointSilence time.Duration
	MinSpeech       time.Duration
	ChunkSize       int
	ChunkInterval   time.Duration

	MetricsLimit int
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	sarvamKey := os.Getenv("SARVAM_API_KEY")
	if sarvamKey == "" {
		log.Println("Warning: SARVAM_API_KEY not set - transcription and generation will not work")
	}

	ttsProvider := os.Getenv("TTS_PROVIDER")
	if ttsProvider == "" {
		ttsProvider = "sarvam"
	}
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if ttsProvider == "deepgram" && deepgramKey == "" {
		log.Println("Warning: TTS_PROVIDER=deepgram but DEEPGRAM_API_KEY not set - synthesis will not work")
	}

	twilioToken := os.Getenv("TWILIO_AUTH_TOKEN")
	if twilioToken == "" {
		log.Println("Warning: TWILIO_AUTH_TOKEN not set - webhook signatures will not be validated")
	}

	defaultLang := os.Getenv("DEFAULT_LANGUAGE")
	if defaultLang == "" {
		defaultLang = "te-IN"
	}

	log.Printf("config: HTTP_ADDRESS=%s TTS_PROVIDER=%s DEFAULT_LANGUAGE=%s", addr, ttsProvider, defaultLang)
	return Config{
		HTTPAddress: addr,

		SarvamAPIKey:    sarvamKey,
		SarvamSTTModel:  os.Getenv("SARVAM_STT_MODEL"),
		SarvamChatModel: os.Getenv("SARVAM_CHAT_MODEL"),
		SarvamTTSModel:  os.Getenv("SARVAM_TTS_MODEL"),
		SarvamSpeaker:   os.Getenv("SARVAM_TTS_SPEAKER"),
		TTSProvider:     ttsProvider,
		DeepgramAPIKey:  deepgramKey,
		DeepgramVoice:   os.Getenv("DEEPGRAM_VOICE"),

		TwilioAuthToken: twilioToken,

		SupabaseURL:    os.Getenv("SUPABASE_URL"),
		SupabaseKey:    os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket: os.Getenv("SUPABASE_BUCKET"),

		DefaultLanguage:      defaultLang,
		MaxHistory:           intEnv("MAX_HISTORY", 10),
		SwitchThreshold:      intEnv("LANGUAGE_SWITCH_THRESHOLD", 2),
		LanguageHistorySize:  intEnv("LANGUAGE_HISTORY_SIZE", 5),
		MinTurnsBeforeSwitch: intEnv("MIN_TURNS_BEFORE_SWITCH", 1),
		Greeting:             os.Getenv("GREETING"),

		FailureThreshold: intEnv("FAILURE_THRESHOLD", 5),
		CircuitTimeout:   durEnv("CIRCUIT_TIMEOUT_MS", 60*time.Second),
		RetryCount:       intEnv("RETRY_COUNT", 2),
		RetryDelay:       durEnv("RETRY_DELAY_MS", 500*time.Millisecond),
		CallTimeout:      durEnv("CALL_TIMEOUT_MS", 15*time.Second),

		EnergyThreshold: floatEnv("ENERGY_THRESHOLD", 300),
		EndpointSilence: durEnv("ENDPOINT_SILENCE_MS", 700*time.Millisecond),
		MinSpeech:       durEnv("MIN_SPEECH_MS", 250*time.Millisecond),
		ChunkSize:       intEnv("CHUNK_SIZE", 160),
		ChunkInterval:   durEnv("CHUNK_INTERVAL_MS", 20*time.Millisecond),

		MetricsLimit: intEnv("METRICS_LIMIT", 1000),
	}
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, v, def)
		return def
	}
	return n
}

func floatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Warning: %s=%q is not a number, using %g", key, v, def)
		return def
	}
	return f
}

// durEnv reads a millisecond count.
func durEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a millisecond count, using %s", key, v, def)
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
