// Package caconfig loads the CA core's JSON configuration file into a
// Config, the shape the "-config" flag convention across this module's
// commands expects (grounded on the teacher family's cmd.ReadConfigFile
// and Config struct).
package caconfig

import (
	"encoding/json"
	"os"

	"github.com/puppetlabs/puppetserver-ca-core/caerrors"
	"github.com/puppetlabs/puppetserver-ca-core/settings"
)

// Config is the on-disk JSON shape this module's commands read via
// "-config". Durations are expressed in seconds rather than Go
// duration strings, matching ca_ttl's legacy integer-seconds
// convention (spec §3).
type Config struct {
	CA             CaConfig     `json:"ca"`
	Master         MasterConfig `json:"master"`
	MasterCertname string       `json:"master_certname"`
	KeyBits        int          `json:"key_bits"`

	MetricsListenAddress string `json:"metrics_listen_address"`
}

// CaConfig is the JSON mirror of settings.CaSettings. The autosign
// field is kept as json.RawMessage (AutosignRaw) because its legal
// shapes (bool or string path) can't both decode into one Go field;
// the Autosign method below resolves it into the tagged-variant
// settings.Autosign the rest of the module uses.
type CaConfig struct {
	AutosignRaw         json.RawMessage `json:"autosign"`
	AllowDuplicateCerts bool            `json:"allow_duplicate_certs"`

	CACert string `json:"cacert"`
	CAKey  string `json:"cakey"`
	CAPub  string `json:"capub"`
	CACRL  string `json:"cacrl"`

	CAName string `json:"ca_name"`
	CATTL  int    `json:"ca_ttl"`

	CertInventory string `json:"cert_inventory"`

	CSRDir    string `json:"csrdir"`
	SignedDir string `json:"signeddir"`

	Serial string `json:"serial"`

	LoadPath []string `json:"load_path"`
}

// MasterConfig is the JSON mirror of settings.MasterSettings.
type MasterConfig struct {
	CertDir    string `json:"certdir"`
	RequestDir string `json:"requestdir"`

	HostCert    string `json:"hostcert"`
	HostPrivKey string `json:"hostprivkey"`
	HostPubKey  string `json:"hostpubkey"`
	LocalCACert string `json:"localcacert"`

	DNSAltNames string `json:"dns_alt_names"`
}

// Load reads and unmarshals the JSON config file at path, following
// the teacher family's cmd.ReadConfigFile convention.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, caerrors.IoFailureError("reading config file %s: %s", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, caerrors.IoFailureError("parsing config file %s: %s", path, err)
	}
	return &cfg, nil
}

// Autosign resolves the CaConfig's raw autosign field into the tagged
// variant the rest of the module uses: a JSON boolean becomes
// settings.AutosignBool, a JSON string becomes settings.AutosignPath.
func (c CaConfig) Autosign() (settings.Autosign, error) {
	var asBool bool
	if err := json.Unmarshal(c.AutosignJSON(), &asBool); err == nil {
		return settings.AutosignBool(asBool), nil
	}
	var asPath string
	if err := json.Unmarshal(c.AutosignJSON(), &asPath); err == nil {
		return settings.AutosignPath(asPath), nil
	}
	return settings.Autosign{}, caerrors.InternalServerError("autosign config value must be a boolean or a path string")
}

// AutosignJSON returns the raw autosign bytes, defaulting to "false"
// when the config omitted the field entirely.
func (c CaConfig) AutosignJSON() []byte {
	if len(c.AutosignRaw) == 0 {
		return []byte("false")
	}
	return c.AutosignRaw
}

// ToSettings converts the JSON-facing CaConfig into the settings.CaSettings
// the CA core operates on.
func (c CaConfig) ToSettings() (settings.CaSettings, error) {
	autosign, err := c.Autosign()
	if err != nil {
		return settings.CaSettings{}, err
	}
	return settings.CaSettings{
		Autosign:            autosign,
		AllowDuplicateCerts: c.AllowDuplicateCerts,
		CACert:              c.CACert,
		CAKey:               c.CAKey,
		CAPub:               c.CAPub,
		CACRL:               c.CACRL,
		CAName:              c.CAName,
		CATTL:               c.CATTL,
		CertInventory:       c.CertInventory,
		CSRDir:              c.CSRDir,
		SignedDir:           c.SignedDir,
		Serial:              c.Serial,
		LoadPath:            c.LoadPath,
	}, nil
}

// ToSettings converts the JSON-facing MasterConfig into settings.MasterSettings.
func (m MasterConfig) ToSettings() settings.MasterSettings {
	return settings.MasterSettings{
		CertDir:     m.CertDir,
		RequestDir:  m.RequestDir,
		HostCert:    m.HostCert,
		HostPrivKey: m.HostPrivKey,
		HostPubKey:  m.HostPubKey,
		LocalCACert: m.LocalCACert,
		DNSAltNames: m.DNSAltNames,
	}
}
