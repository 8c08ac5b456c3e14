package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Application configuration
	SourcesDir   string
	Port         string
	WorkerCount  int
	APIAccessKey string

	// Feed gateway configuration (rsshub:// indirection)
	GatewayBaseURL string

	// Outbound proxy configuration
	ProxyEnabled bool
	ProxyURL     string
	ProxyAuto    bool

	// Enrichment (translation) configuration
	RedisAddr         string
	EnrichProvider    string
	EnrichBaseURL     string
	EnrichModel       string
	EnrichAPIKey      string
	EnrichTemperature float64
	EnrichTargetLang  string
	EnrichConcurrency int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
