package events

// Settings holds the engagement event transport configuration.
// When Enabled is false events stay in process on a watermill GoChannel.
type Settings struct {
	Enabled  bool   `mapstructure:"redis-enabled"`
	Addr     string `mapstructure:"redis-addr"`
	Group    string `mapstructure:"redis-group"`
	Consumer string `mapstructure:"redis-consumer"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled:  false,
		Addr:     "localhost:6379",
		Group:    "pattern-space",
		Consumer: "engage-1",
	}
}
