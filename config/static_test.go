package config

import (
	"testing"
	"time"

	"github.com/activecm/flowsentry/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staticConfigParserTestConfig = `
MongoDB:
    ConnectionString: mongodb://localhost:27017
    AuthenticationMechanism: null
    SocketTimeout: 2
    TLS:
        Enable: false
        VerifyCertificate: false
        CAFile: aaaaa
    Database: sentry
LogConfig:
    LogLevel: 3
    LogPath: /var/lib/flowsentry/logs
    LogToFile: true
    LogToDB: false
Output:
    ReportFile: /var/lib/flowsentry/reports.json
    FlushOnExit: false
Whitelist:
    File: /etc/flowsentry/whitelist
Blacklist:
    Enabled: true
    Files: [/etc/flowsentry/bl1, /etc/flowsentry/bl2]
BruteForce:
    SSH:
        ListThreshold: 20
        RecordTimeout: 10m
        Incoming:
            MinPackets: 5
            Flags: SYN|ACK
    RDP:
        Enabled: false
DNSTunnel:
    MinDNSRequestCountTunnel: 250
`

// TestParseStaticConfig ensures that a yaml config string is laid over
// the default values
func TestParseStaticConfig(t *testing.T) {
	config, err := newDefaultConfig()
	require.Nil(t, err)

	err = parseStaticConfig([]byte(staticConfigParserTestConfig), &config.S)
	require.Nil(t, err)
	require.Nil(t, config.S.Validate())

	s := config.S
	assert.Equal(t, "mongodb://localhost:27017", s.MongoDB.ConnectionString)
	assert.Equal(t, 2*time.Hour, s.MongoDB.SocketTimeout)
	assert.Equal(t, "sentry", s.MongoDB.Database)
	assert.Equal(t, 3, s.Log.LogLevel)
	assert.True(t, s.Log.LogToFile)
	assert.False(t, s.Output.FlushOnExit)
	assert.True(t, s.Output.LogReports, "untouched defaults survive")
	assert.Equal(t, []string{"/etc/flowsentry/bl1", "/etc/flowsentry/bl2"}, s.Blacklist.Files)

	assert.Equal(t, 20, s.BruteForce.SSH.ListThreshold)
	assert.Equal(t, 10*time.Minute, s.BruteForce.SSH.RecordTimeout)
	assert.Equal(t, uint64(5), s.BruteForce.SSH.Incoming.MinPackets)
	assert.Equal(t, uint64(30), s.BruteForce.SSH.Incoming.MaxPackets)
	assert.Equal(t, flow.SYN|flow.ACK, s.BruteForce.SSH.Incoming.Mask)
	assert.Equal(t, flow.SYN|flow.ACK|flow.PSH, s.BruteForce.SSH.Outgoing.Mask)
	assert.Equal(t, 50, s.BruteForce.SSH.ListSizeBottomThreshold)

	assert.False(t, s.BruteForce.RDP.Enabled)
	assert.True(t, s.BruteForce.RDP.Outgoing.ExactFlags)
	assert.Equal(t, 30, s.BruteForce.RDP.ListThreshold)
	assert.True(t, s.BruteForce.TELNET.Enabled)

	assert.Equal(t, 250, s.DNSTunnel.MinDNSRequestCountTunnel)
	assert.Equal(t, 0.8, s.DNSTunnel.MaxPercentOfUniqueDomains)
	assert.Equal(t, uint16(53), s.DNSTunnel.Port)
}

// TestFilePathCleaning ensures that paths specified
// in a config file are cleaned up correctly.
func TestFilePathCleaning(t *testing.T) {
	testConfig := `
LogConfig:
    LogPath: /var/lib/flowsentry/incorrect/./../logs/
Whitelist:
    File: /etc//flowsentry/./whitelist
`
	config := &StaticCfg{}
	err := parseStaticConfig([]byte(testConfig), config)

	assert.Nil(t, err)
	assert.Equal(t, "/var/lib/flowsentry/logs", config.Log.LogPath)
	assert.Equal(t, "/etc/flowsentry/whitelist", config.Whitelist.File)
	assert.Equal(t, "", config.Output.ReportFile)
}

func TestValidateRejectsBadValues(t *testing.T) {
	type testCase struct {
		config string
		msg    string
	}

	testCases := []testCase{
		{"BruteForce:\n    SSH:\n        ListSize: 0\n", "empty windows"},
		{"BruteForce:\n    SSH:\n        ListSize: 70000\n", "windows above 65535"},
		{"BruteForce:\n    TELNET:\n        Incoming:\n            Flags: SYN|BOGUS\n", "unknown flag"},
		{"BruteForce:\n    RDP:\n        Incoming:\n            MinBytes: 90000\n", "inverted byte range"},
		{"BruteForce:\n    TelnetProfile:\n        Size: 0\n", "empty telnet profile"},
	}

	for _, test := range testCases {
		config, err := newDefaultConfig()
		require.Nil(t, err)
		require.Nil(t, parseStaticConfig([]byte(test.config), &config.S), test.msg)
		assert.NotNil(t, config.S.Validate(), test.msg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/flowsentry/config.yaml")
	assert.NotNil(t, err)
}

func TestLoadTestingConfig(t *testing.T) {
	config, err := LoadTestingConfig("mongodb://localhost:27017")
	require.Nil(t, err)
	assert.Equal(t, 10000, config.R.BruteForce.MaxHosts)
	assert.Equal(t, "v0.0.0+testing", config.S.Version)
	assert.Equal(t, uint64(0), config.R.Version.Major)
	assert.Equal(t, "reports", config.T.Reports.ReportTable)
}

func TestDefaultMaxHosts(t *testing.T) {
	assert.Equal(t, fallbackMaxHosts, defaultMaxHosts(0))
	assert.Equal(t, int((12<<30)/12/hostFootprint), defaultMaxHosts(12<<30))
	assert.Equal(t, fallbackMaxHosts, defaultDNSMaxHosts(0))
	assert.Equal(t, int((8<<30)/8/dnsHostFootprint), defaultDNSMaxHosts(8<<30))
}

func TestDNSTunnelLimits(t *testing.T) {
	config, err := LoadTestingConfig("")
	require.Nil(t, err)
	assert.Equal(t, 10*time.Minute, config.S.DNSTunnel.ObservationWindow)
	assert.True(t, config.R.DNSTunnel.MaxHosts > 0)

	config.S.DNSTunnel.ObservationWindow = 30 * time.Second
	assert.NotNil(t, config.S.Validate())
}
