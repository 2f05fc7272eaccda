package caconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/puppetlabs/puppetserver-ca-core/test"
)

const sampleConfig = `{
	"ca": {
		"autosign": true,
		"allow_duplicate_certs": false,
		"cacert": "/etc/puppetlabs/puppetserver/ca/ca_crt.pem",
		"cakey": "/etc/puppetlabs/puppetserver/ca/ca_key.pem",
		"capub": "/etc/puppetlabs/puppetserver/ca/ca_pub.pem",
		"cacrl": "/etc/puppetlabs/puppetserver/ca/ca_crl.pem",
		"ca_name": "Puppet CA: test",
		"ca_ttl": 157680000,
		"cert_inventory": "/etc/puppetlabs/puppetserver/ca/inventory.txt",
		"csrdir": "/etc/puppetlabs/puppetserver/ca/requests",
		"signeddir": "/etc/puppetlabs/puppetserver/ca/signed",
		"serial": "/etc/puppetlabs/puppetserver/ca/serial",
		"load_path": ["/opt/puppetlabs/puppet/lib/ruby"]
	},
	"master": {
		"certdir": "/etc/puppetlabs/puppet/ssl/certs",
		"requestdir": "/etc/puppetlabs/puppet/ssl/certificate_requests",
		"hostcert": "/etc/puppetlabs/puppet/ssl/certs/master.example.com.pem",
		"hostprivkey": "/etc/puppetlabs/puppet/ssl/private_keys/master.example.com.pem",
		"hostpubkey": "/etc/puppetlabs/puppet/ssl/public_keys/master.example.com.pem",
		"localcacert": "/etc/puppetlabs/puppet/ssl/certs/ca.pem",
		"dns_alt_names": "puppet, puppet.example.com"
	},
	"master_certname": "master.example.com",
	"key_bits": 4096
}`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ca.conf.json")
	test.AssertNotError(t, os.WriteFile(path, []byte(contents), 0644), "write config")
	return path
}

func TestLoadParsesConfig(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Load(path)
	test.AssertNotError(t, err, "load config")
	test.AssertEquals(t, cfg.MasterCertname, "master.example.com", "unexpected master_certname")
	test.AssertEquals(t, cfg.KeyBits, 4096, "unexpected key_bits")

	caSettings, err := cfg.CA.ToSettings()
	test.AssertNotError(t, err, "ca.ToSettings")
	if !caSettings.Autosign.IsBool || !caSettings.Autosign.Bool {
		t.Errorf("expected autosign to resolve to boolean true, got %+v", caSettings.Autosign)
	}
	test.AssertEquals(t, caSettings.CAName, "Puppet CA: test", "unexpected ca_name")

	masterSettings := cfg.Master.ToSettings()
	altNames := masterSettings.AltNames()
	if len(altNames) != 2 || altNames[0] != "puppet" || altNames[1] != "puppet.example.com" {
		t.Errorf("unexpected alt names: %v", altNames)
	}
}

func TestAutosignPathVariant(t *testing.T) {
	cfg := CaConfig{AutosignRaw: []byte(`"/etc/puppetlabs/puppetserver/ca/autosign.conf"`)}
	autosign, err := cfg.Autosign()
	test.AssertNotError(t, err, "resolve autosign")
	if autosign.IsBool {
		t.Fatalf("expected path-valued autosign, got boolean")
	}
	test.AssertEquals(t, autosign.Path, "/etc/puppetlabs/puppetserver/ca/autosign.conf", "unexpected path")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	test.AssertError(t, err, "expected error for missing config file")
}
