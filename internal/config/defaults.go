package config

// DefaultLedgerURL is the production ledger service endpoint.
const DefaultLedgerURL = "https://api.payflow.io/v1"

// DefaultLedgerTimeoutSeconds is generous because ledger calls may query real chains.
const DefaultLedgerTimeoutSeconds = 60

// DefaultPollIntervalMS is the interval between fee preset requests while the
// ledger answers "wait".
const DefaultPollIntervalMS = 3000

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.payflow",
		Ledger: LedgerConfig{
			URL:            DefaultLedgerURL,
			TimeoutSeconds: DefaultLedgerTimeoutSeconds,
			RatePerSecond:  5,
			Burst:          10,
		},
		Presets: PresetsConfig{
			PollIntervalMS: DefaultPollIntervalMS,
		},
		Auth: AuthConfig{
			TokenFile:    "~/.payflow/token.age",
			IdentityFile: "~/.payflow/identity.age",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.payflow/payflow.log",
		},
	}
}
