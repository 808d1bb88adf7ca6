package config

const testConfig = `
MongoDB:
    ConnectionString: null
    AuthenticationMechanism: null
    SocketTimeout: 2
    TLS:
        Enable: false
        VerifyCertificate: false
        CAFile: null
    Database: FLOWSENTRY-TEST
LogConfig:
    LogLevel: 3
    LogPath: null
    LogToFile: false
    LogToDB: false
Output:
    LogReports: false
    FlushOnExit: true
BruteForce:
    MaxHosts: 10000
    SSH:
        ListSizeBottomThreshold: 50
        ListThreshold: 45
DNSTunnel:
    MinDNSRequestCountTunnel: 100
    MaxPercentOfUniqueDomains: 0.9
    MaxPercentOfDomainSearchingJustOnce: 0.9
Blacklist:
    Enabled: true
`

// LoadTestingConfig loads the hard coded testing config
func LoadTestingConfig(mongoURI string) (*Config, error) {
	config, err := newDefaultConfig()
	if err != nil {
		return nil, err
	}

	// Deserialize the yaml file contents into the static config
	if err := parseStaticConfig([]byte(testConfig), &config.S); err != nil {
		return nil, err
	}

	config.S.MongoDB.ConnectionString = mongoURI
	config.S.Version = "v0.0.0+testing"
	config.S.ExactVersion = "v0.0.0+testing"

	if err := config.S.Validate(); err != nil {
		return nil, err
	}

	// Use the static config to initialize the running config
	if err := initRunningConfig(&config.S, &config.R); err != nil {
		return nil, err
	}

	return config, nil
}
