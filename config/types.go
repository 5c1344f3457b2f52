package config

// ServerConfig contains HTTP API server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0"`
}

// StoreConfig locates the SQLite database holding rules and the dedup log
type StoreConfig struct {
	Path string `yaml:"path" validate:"omitempty"`
}

// EngineConfig contains matching-engine scheduling and timeout policy
type EngineConfig struct {
	TickIntervalMS   int `yaml:"tickIntervalMS" validate:"gte=0"`
	FetchTimeoutMS   int `yaml:"fetchTimeoutMS" validate:"gte=0"`
	WebhookTimeoutMS int `yaml:"webhookTimeoutMS" validate:"gte=0"`
	DeliveryAttempts int `yaml:"deliveryAttempts" validate:"gte=0"`
}

// NotifierConfig contains the default delivery sink used when a rule
// carries no webhook URL of its own
type NotifierConfig struct {
	DefaultWebhookURL string `yaml:"defaultWebhookURL" validate:"omitempty,url"`
}

// AuthConfig contains bearer-token verification settings for the rules API
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

// FeedConfig describes one watched transit feed
type FeedConfig struct {
	ID                  string `yaml:"id" validate:"required"`
	VehiclePositionsURL string `yaml:"vehiclePositionsURL" validate:"omitempty,url"`
	TripUpdatesURL      string `yaml:"tripUpdatesURL" validate:"omitempty,url"`
	TimetableURL        string `yaml:"timetableURL" validate:"omitempty,url"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server   ServerConfig   `yaml:"server" validate:"required"`
	Store    StoreConfig    `yaml:"store"`
	Engine   EngineConfig   `yaml:"engine"`
	Notifier NotifierConfig `yaml:"notifier"`
	Auth     AuthConfig     `yaml:"auth"`
	Feeds    []FeedConfig   `yaml:"feeds" validate:"dive"`
}
