package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"

	"github.com/activecm/mgosec"
	"github.com/blang/semver"
	"github.com/pbnjay/memory"
)

// hostFootprint is a rough upper bound on the memory held by one tracked
// brute force host with full record windows in both directions
const hostFootprint = 96 << 10

// dnsHostFootprint bounds the memory of one DNS client whose domain tree
// holds a full observation window of distinct names
const dnsHostFootprint = 256 << 10

// fallbackMaxHosts is used when the amount of system memory is unknown
const fallbackMaxHosts = 1 << 16

type (
	//RunningCfg holds configuration options that are parsed at run time
	RunningCfg struct {
		MongoDB    MongoDBRunningCfg
		BruteForce BruteForceRunningCfg
		DNSTunnel  DNSTunnelRunningCfg
		Version    semver.Version
	}

	//MongoDBRunningCfg holds parsed information for connecting to MongoDB
	MongoDBRunningCfg struct {
		AuthMechanismParsed mgosec.AuthMechanism
		TLS                 struct {
			TLSConfig *tls.Config
		}
	}

	//BruteForceRunningCfg holds the limits derived for the brute force detector
	BruteForceRunningCfg struct {
		// MaxHosts caps the number of attackers tracked per service
		MaxHosts int
	}

	//DNSTunnelRunningCfg holds the limits derived for the DNS tunnel detector
	DNSTunnelRunningCfg struct {
		// MaxHosts caps the number of tracked DNS clients
		MaxHosts int
	}
)

// initRunningConfig uses data in the static config initialize
// the passed in running config
func initRunningConfig(static *StaticCfg, running *RunningCfg) error {
	var err error

	//parse the tls configuration
	if static.MongoDB.TLS.Enabled {
		tlsConf := &tls.Config{}
		if !static.MongoDB.TLS.VerifyCertificate {
			tlsConf.InsecureSkipVerify = true
		}
		if len(static.MongoDB.TLS.CAFile) > 0 {
			pem, err := ioutil.ReadFile(static.MongoDB.TLS.CAFile)
			if err != nil {
				return fmt.Errorf("could not read MongoDB CA file: %w", err)
			}
			tlsConf.RootCAs = x509.NewCertPool()
			tlsConf.RootCAs.AppendCertsFromPEM(pem)
		}
		running.MongoDB.TLS.TLSConfig = tlsConf
	}

	//parse out the mongo authentication mechanism
	authMechanism, err := mgosec.ParseAuthMechanism(
		static.MongoDB.AuthMechanism,
	)
	if err != nil {
		authMechanism = mgosec.None
	}
	running.MongoDB.AuthMechanismParsed = authMechanism

	running.BruteForce.MaxHosts = static.BruteForce.MaxHosts
	if running.BruteForce.MaxHosts <= 0 {
		running.BruteForce.MaxHosts = defaultMaxHosts(memory.TotalMemory())
	}
	running.DNSTunnel.MaxHosts = static.DNSTunnel.MaxHosts
	if running.DNSTunnel.MaxHosts <= 0 {
		running.DNSTunnel.MaxHosts = defaultDNSMaxHosts(memory.TotalMemory())
	}

	running.Version, err = semver.ParseTolerant(static.Version)
	if err != nil {
		return fmt.Errorf("failed to parse version %q: %w", static.Version, err)
	}
	return nil
}

// defaultMaxHosts lets the tracked hosts of all three brute forced
// services use up to a quarter of the system memory
func defaultMaxHosts(totalMemory uint64) int {
	if totalMemory == 0 {
		return fallbackMaxHosts
	}
	return int(totalMemory / 4 / 3 / hostFootprint)
}

// defaultDNSMaxHosts lets the DNS clients use up to an eighth of the
// system memory
func defaultDNSMaxHosts(totalMemory uint64) int {
	if totalMemory == 0 {
		return fallbackMaxHosts
	}
	return int(totalMemory / 8 / dnsHostFootprint)
}
