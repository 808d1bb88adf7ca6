package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/activecm/flowsentry/pkg/flow"
	yaml "gopkg.in/yaml.v2"
)

type (
	//StaticCfg is the container for other static config sections
	StaticCfg struct {
		MongoDB      MongoDBStaticCfg    `yaml:"MongoDB"`
		Log          LogStaticCfg        `yaml:"LogConfig"`
		UserConfig   UserCfgStaticCfg    `yaml:"UserConfig"`
		Input        InputStaticCfg      `yaml:"Input"`
		Output       OutputStaticCfg     `yaml:"Output"`
		Metrics      MetricsStaticCfg    `yaml:"Metrics"`
		Whitelist    WhitelistStaticCfg  `yaml:"Whitelist"`
		Blacklist    BlacklistStaticCfg  `yaml:"Blacklist"`
		BruteForce   BruteForceStaticCfg `yaml:"BruteForce"`
		DNSTunnel    DNSTunnelStaticCfg  `yaml:"DNSTunnel"`
		Version      string              `yaml:"-"`
		ExactVersion string              `yaml:"-"`
	}

	//MongoDBStaticCfg contains the means for connecting to MongoDB
	MongoDBStaticCfg struct {
		ConnectionString string        `yaml:"ConnectionString" default:"mongodb://localhost:27017"`
		AuthMechanism    string        `yaml:"AuthenticationMechanism" default:""`
		SocketTimeout    time.Duration `yaml:"SocketTimeout"`
		TLS              TLSStaticCfg  `yaml:"TLS"`
		Database         string        `yaml:"Database" default:"flowsentry"`
	}

	//TLSStaticCfg contains the means for connecting to MongoDB over TLS
	TLSStaticCfg struct {
		Enabled           bool   `yaml:"Enable" default:"false"`
		VerifyCertificate bool   `yaml:"VerifyCertificate" default:"false"`
		CAFile            string `yaml:"CAFile" default:""`
	}

	//LogStaticCfg contains the configuration for logging
	LogStaticCfg struct {
		LogLevel  int    `yaml:"LogLevel" default:"2"`
		LogPath   string `yaml:"LogPath" default:"/var/lib/flowsentry/logs"`
		LogToFile bool   `yaml:"LogToFile" default:"false"`
		LogToDB   bool   `yaml:"LogToDB" default:"false"`
	}

	//UserCfgStaticCfg contains the configuration for update checks
	UserCfgStaticCfg struct {
		UpdateCheckFrequency *int `yaml:"UpdateCheckFrequency"`
	}

	//InputStaticCfg controls where flow records are read from
	InputStaticCfg struct {
		NATSURL     string `yaml:"NATSURL" default:"nats://127.0.0.1:4222"`
		NATSSubject string `yaml:"NATSSubject" default:"flowsentry.flows"`
	}

	//OutputStaticCfg controls where reports are sent
	OutputStaticCfg struct {
		LogReports  bool   `yaml:"LogReports" default:"true"`
		ReportFile  string `yaml:"ReportFile" default:""`
		MongoDB     bool   `yaml:"MongoDB" default:"false"`
		NATSSubject string `yaml:"NATSSubject" default:""`
		FlushOnExit bool   `yaml:"FlushOnExit" default:"true"`
	}

	//MetricsStaticCfg controls the status server
	MetricsStaticCfg struct {
		ListenAddr string `yaml:"ListenAddr" default:""`
	}

	//WhitelistStaticCfg names the whitelist rule file
	WhitelistStaticCfg struct {
		File           string        `yaml:"File" default:""`
		ReloadInterval time.Duration `yaml:"ReloadInterval" default:"30s"`
	}

	//BlacklistStaticCfg controls the blacklisted address detector
	BlacklistStaticCfg struct {
		Enabled           bool          `yaml:"Enabled" default:"false"`
		Files             []string      `yaml:"Files"`
		ReloadInterval    time.Duration `yaml:"ReloadInterval" default:"30s"`
		ReportInterval    time.Duration `yaml:"ReportInterval" default:"5m"`
		HostDeleteTimeout time.Duration `yaml:"HostDeleteTimeout" default:"1h"`
		CheckInterval     time.Duration `yaml:"CheckInterval" default:"1m"`
	}

	//BruteForceStaticCfg controls the login brute force detector
	BruteForceStaticCfg struct {
		Enabled       bool              `yaml:"Enabled" default:"true"`
		ThresholdFile string            `yaml:"ThresholdFile" default:""`
		MaxHosts      int               `yaml:"MaxHosts" default:"0"`
		SSH           ProtocolStaticCfg `yaml:"SSH"`
		RDP           ProtocolStaticCfg `yaml:"RDP"`
		TELNET        ProtocolStaticCfg `yaml:"TELNET"`
		TelnetProfile TelnetProfileCfg  `yaml:"TelnetProfile"`
	}

	//ProtocolStaticCfg holds the thresholds of one brute forced service
	ProtocolStaticCfg struct {
		Enabled                 bool          `yaml:"Enabled" default:"true"`
		Incoming                RuleCfg       `yaml:"Incoming"`
		Outgoing                RuleCfg       `yaml:"Outgoing"`
		ListSize                int           `yaml:"ListSize" default:"1000"`
		ListSizeBottomThreshold int           `yaml:"ListSizeBottomThreshold" default:"50"`
		ListThreshold           int           `yaml:"ListThreshold"`
		RecordTimeout           time.Duration `yaml:"RecordTimeout" default:"30m"`
		HostDeleteTimeout       time.Duration `yaml:"HostDeleteTimeout" default:"1h"`
		ReportTimeout           time.Duration `yaml:"ReportTimeout" default:"5m"`
		CheckInterval           time.Duration `yaml:"CheckInterval" default:"1m"`
		MinRatioToKeepTracking  float64       `yaml:"MinRatioToKeepTracking" default:"5"`
		MinEventsToReport       int           `yaml:"MinEventsToReport" default:"10"`
	}

	//RuleCfg is the signature of one direction of a brute forced service
	RuleCfg struct {
		MinPackets uint64 `yaml:"MinPackets"`
		MaxPackets uint64 `yaml:"MaxPackets"`
		MinBytes   uint64 `yaml:"MinBytes"`
		MaxBytes   uint64 `yaml:"MaxBytes"`
		Flags      string `yaml:"Flags"`
		ExactFlags bool   `yaml:"ExactFlags"`
		Mask       uint8  `yaml:"-"`
	}

	//TelnetProfileCfg tunes the per server profile used for outgoing TELNET flows
	TelnetProfileCfg struct {
		Size         int    `yaml:"Size" default:"15"`
		Refresh      int    `yaml:"Refresh" default:"10"`
		PacketMargin uint64 `yaml:"PacketMargin" default:"5"`
		ByteMargin   uint64 `yaml:"ByteMargin" default:"200"`
	}

	//DNSTunnelStaticCfg controls the DNS tunnel detector
	DNSTunnelStaticCfg struct {
		Enabled                             bool          `yaml:"Enabled" default:"true"`
		Port                                uint16        `yaml:"Port" default:"53"`
		MinDNSRequestCountTunnel            int           `yaml:"MinDNSRequestCountTunnel" default:"100"`
		MinDNSRequestCountOther             int           `yaml:"MinDNSRequestCountOther" default:"1000"`
		MaxPercentOfUniqueDomains           float64       `yaml:"MaxPercentOfUniqueDomains" default:"0.8"`
		MaxPercentOfDomainSearchingJustOnce float64       `yaml:"MaxPercentOfDomainSearchingJustOnce" default:"0.8"`
		MinPercentOfUniqueDomains           float64       `yaml:"MinPercentOfUniqueDomains" default:"0.05"`
		MinPercentOfDomainSearchingJustOnce float64       `yaml:"MinPercentOfDomainSearchingJustOnce" default:"0.05"`
		MaxMeanResponseSize                 float64       `yaml:"MaxMeanResponseSize" default:"900"`
		MaxVarianceResponseSize             float64       `yaml:"MaxVarianceResponseSize" default:"2500"`
		TopSuffixDepth                      int           `yaml:"TopSuffixDepth" default:"2"`
		ReportTimeout                       time.Duration `yaml:"ReportTimeout" default:"5m"`
		HostDeleteTimeout                   time.Duration `yaml:"HostDeleteTimeout" default:"1h"`
		CheckInterval                       time.Duration `yaml:"CheckInterval" default:"1m"`
		ObservationWindow                   time.Duration `yaml:"ObservationWindow" default:"10m"`
		MaxHosts                            int           `yaml:"MaxHosts" default:"0"`
	}
)

// Protocol returns the section for the named service
func (b *BruteForceStaticCfg) Protocol(name string) (*ProtocolStaticCfg, error) {
	switch name {
	case "SSH":
		return &b.SSH, nil
	case "RDP":
		return &b.RDP, nil
	case "TELNET":
		return &b.TELNET, nil
	}
	return nil, fmt.Errorf("unknown brute force protocol %q", name)
}

// applyProtocolDefaults fills in the thresholds that differ between the
// brute forced services and so cannot be expressed with struct tags
func (b *BruteForceStaticCfg) applyProtocolDefaults() {
	flags := "SYN|ACK|PSH"

	b.SSH.ListThreshold = 45
	b.SSH.Incoming = RuleCfg{MinPackets: 11, MaxPackets: 30, MinBytes: 1000, MaxBytes: 5000, Flags: flags, ExactFlags: false}
	b.SSH.Outgoing = RuleCfg{MinPackets: 10, MaxPackets: 30, MinBytes: 1000, MaxBytes: 5500, Flags: flags, ExactFlags: false}

	b.RDP.ListThreshold = 30
	b.RDP.Incoming = RuleCfg{MinPackets: 20, MaxPackets: 100, MinBytes: 2200, MaxBytes: 20000, Flags: flags, ExactFlags: false}
	b.RDP.Outgoing = RuleCfg{MinPackets: 20, MaxPackets: 100, MinBytes: 3000, MaxBytes: 25000, Flags: flags, ExactFlags: true}

	b.TELNET.ListThreshold = 30
	b.TELNET.Incoming = RuleCfg{MinPackets: 6, MaxPackets: 50, MinBytes: 250, MaxBytes: 3000, Flags: flags, ExactFlags: false}
	b.TELNET.Outgoing = RuleCfg{MinPackets: 6, MaxPackets: 50, MinBytes: 250, MaxBytes: 3000, Flags: flags, ExactFlags: true}
}

// loadStaticConfig attempts to parse a config file
func loadStaticConfig(cfgPath string, config *StaticCfg) error {
	_, err := os.Stat(cfgPath)

	if os.IsNotExist(err) {
		return fmt.Errorf("failed to find config file %s: %w", cfgPath, err)
	}

	cfgFile, err := ioutil.ReadFile(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	return parseStaticConfig(cfgFile, config)
}

// parseStaticConfig parses the yaml contents of a config file on top of
// whatever values config already holds
func parseStaticConfig(cfgFile []byte, config *StaticCfg) error {
	err := yaml.Unmarshal(cfgFile, config)

	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	// expand env variables, config is a pointer
	// so we have to call elem on the reflect value
	expandConfig(reflect.ValueOf(config).Elem())

	// clean all filepaths
	config.Log.LogPath = cleanPath(config.Log.LogPath)
	config.Output.ReportFile = cleanPath(config.Output.ReportFile)
	config.Whitelist.File = cleanPath(config.Whitelist.File)
	config.BruteForce.ThresholdFile = cleanPath(config.BruteForce.ThresholdFile)
	for i := range config.Blacklist.Files {
		config.Blacklist.Files[i] = cleanPath(config.Blacklist.Files[i])
	}

	// set the socket time out in hours
	if config.MongoDB.SocketTimeout == 0 {
		config.MongoDB.SocketTimeout = 2
	}
	config.MongoDB.SocketTimeout *= time.Hour

	// grab the version constants set by the build process
	config.Version = Version
	config.ExactVersion = ExactVersion

	return nil
}

func cleanPath(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}

// Validate checks the parsed values and converts the flag names of every
// signature into flag bytes
func (s *StaticCfg) Validate() error {
	for _, name := range []string{"SSH", "RDP", "TELNET"} {
		proto, _ := s.BruteForce.Protocol(name)
		if err := proto.validate(); err != nil {
			return fmt.Errorf("invalid %s brute force config: %w", name, err)
		}
	}

	profile := s.BruteForce.TelnetProfile
	if profile.Size < 1 || profile.Refresh < 1 {
		return fmt.Errorf("invalid TELNET profile: size and refresh must be positive")
	}

	if s.DNSTunnel.CheckInterval <= 0 || s.Blacklist.CheckInterval <= 0 {
		return fmt.Errorf("check intervals must be positive")
	}
	if s.DNSTunnel.ObservationWindow < s.DNSTunnel.CheckInterval {
		return fmt.Errorf("DNS tunnel observation window must not be shorter than its check interval")
	}
	return nil
}

func (p *ProtocolStaticCfg) validate() error {
	if p.ListSize < 1 || p.ListSize > 65535 {
		return fmt.Errorf("list size %d is outside of 1-65535", p.ListSize)
	}
	if p.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive")
	}
	for _, rule := range []*RuleCfg{&p.Incoming, &p.Outgoing} {
		if rule.MinPackets > rule.MaxPackets || rule.MinBytes > rule.MaxBytes {
			return fmt.Errorf("signature ranges are inverted")
		}
		mask, err := flow.ParseTCPFlags(rule.Flags)
		if err != nil {
			return err
		}
		rule.Mask = mask
	}
	return nil
}
