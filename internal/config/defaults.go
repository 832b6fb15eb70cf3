package config

const (
	defaultPort                = "8080"
	defaultEnvironment         = "local"
	defaultAWSRegion           = "us-east-1"
	defaultBucket              = "voice-memories"
	defaultStorageBackend      = "fs"
	defaultStorageDir          = "./data/audio"
	defaultQueueBackend        = "sqlite"
	defaultQueuePath           = "./data/queue.db"
	defaultDatabasePath        = "./data/memories.db"
	defaultOpenAIBaseURL       = "https://api.openai.com/v1"
	defaultOpenAIModel         = "gpt-4o-mini"
	defaultWhisperModel        = "whisper-1"
	defaultTemperature         = 0.3
	defaultMaxRetries          = 3
	defaultRedisURL            = "redis://localhost:6379/0"
	defaultRedisChannel        = "memory:events"
	defaultLogLevel            = "info"
	defaultMaxMessages         = 1
	defaultWaitSeconds         = 20
	defaultVisibilityTimeout   = 900
	defaultConcurrency         = 2
	defaultStoreTimeout        = 60
	defaultTranscribeTimeout   = 300
	defaultAnalyzeTimeout      = 120
	defaultNotifyTimeout       = 5
	defaultPersistTimeout      = 15
	defaultStuckAfterMinutes   = 30
	defaultMaxUploadMegabytes  = 100
	defaultSSEKeepaliveSeconds = 30
)

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		App: App{
			Port:               defaultPort,
			Environment:        defaultEnvironment,
			MaxUploadMegabytes: defaultMaxUploadMegabytes,
			SSEKeepalive:       defaultSSEKeepaliveSeconds,
		},
		AWS: AWS{
			Region: defaultAWSRegion,
		},
		Storage: Storage{
			Backend: defaultStorageBackend,
			Bucket:  defaultBucket,
			Dir:     defaultStorageDir,
		},
		Queue: Queue{
			Backend:           defaultQueueBackend,
			Path:              defaultQueuePath,
			VisibilityTimeout: defaultVisibilityTimeout,
		},
		Database: Database{
			Path: defaultDatabasePath,
		},
		LLM: LLM{
			BaseURL:      defaultOpenAIBaseURL,
			Model:        defaultOpenAIModel,
			WhisperModel: defaultWhisperModel,
			Temperature:  defaultTemperature,
			MaxRetries:   defaultMaxRetries,
		},
		Redis: Redis{
			URL:     defaultRedisURL,
			Channel: defaultRedisChannel,
		},
		Worker: Worker{
			MaxMessages:       defaultMaxMessages,
			WaitSeconds:       defaultWaitSeconds,
			Concurrency:       defaultConcurrency,
			StoreTimeout:      defaultStoreTimeout,
			TranscribeTimeout: defaultTranscribeTimeout,
			AnalyzeTimeout:    defaultAnalyzeTimeout,
			NotifyTimeout:     defaultNotifyTimeout,
			PersistTimeout:    defaultPersistTimeout,
			StuckAfterMinutes: defaultStuckAfterMinutes,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
