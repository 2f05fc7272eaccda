package extensions

import (
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/puppetlabs/puppetserver-ca-core/test"
)

func testKey(t *testing.T) *rsa.PublicKey {
	t.Helper()
	return &rsa.PublicKey{N: big.NewInt(0).SetBytes([]byte{1, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9}), E: 65537}
}

func TestIsPuppetOID(t *testing.T) {
	inArc := asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 34380, 1, 2, 3}
	notInArc := asn1.ObjectIdentifier{2, 5, 29, 17}
	test.AssertEquals(t, IsPuppetOID(inArc), true, "should be in arc")
	test.AssertEquals(t, IsPuppetOID(notInArc), false, "should not be in arc")
}

func TestBuildIncludesBaseExtensionsAndFiltersCSR(t *testing.T) {
	caKey := testKey(t)
	csrKey := testKey(t)

	puppetExt := pkix.Extension{Id: asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 34380, 1, 2, 3}, Value: []byte("pp_uuid")}
	otherExt := pkix.Extension{Id: asn1.ObjectIdentifier{2, 5, 29, 17}, Value: []byte("san")}

	exts, err := Build(caKey, csrKey, []pkix.Extension{puppetExt, otherExt})
	test.AssertNotError(t, err, "build")

	// 6 base extensions + 1 carried-through puppet extension.
	test.AssertEquals(t, len(exts), 7, "unexpected extension count")

	foundComment := false
	foundPuppet := false
	foundOther := false
	for _, e := range exts {
		if e.Id.Equal(oidNetscapeComment) {
			foundComment = true
			if e.Critical {
				t.Errorf("netscape comment should be non-critical")
			}
		}
		if e.Id.Equal(puppetExt.Id) {
			foundPuppet = true
		}
		if e.Id.Equal(otherExt.Id) {
			foundOther = true
		}
	}
	if !foundComment {
		t.Errorf("missing netscape comment extension")
	}
	if !foundPuppet {
		t.Errorf("puppet-arc CSR extension should be carried through")
	}
	if foundOther {
		t.Errorf("non-puppet CSR extension should be dropped")
	}
}

func TestBuildBaseExtensionsAreCritical(t *testing.T) {
	caKey := testKey(t)
	csrKey := testKey(t)
	exts, err := Build(caKey, csrKey, nil)
	test.AssertNotError(t, err, "build")

	critical := map[string]bool{}
	for _, e := range exts {
		critical[e.Id.String()] = e.Critical
	}
	if !critical[oidBasicConstraints.String()] {
		t.Errorf("basic constraints should be critical")
	}
	if !critical[oidExtendedKeyUsage.String()] {
		t.Errorf("EKU should be critical")
	}
	if !critical[oidKeyUsage.String()] {
		t.Errorf("key usage should be critical")
	}
	if critical[oidAuthorityKeyID.String()] {
		t.Errorf("AKI should be non-critical")
	}
	if critical[oidSubjectKeyID.String()] {
		t.Errorf("SKI should be non-critical")
	}
}

func TestKeyUsageValueDecodesToDigitalSignatureAndKeyEncipherment(t *testing.T) {
	der, err := keyUsageValue()
	test.AssertNotError(t, err, "encode key usage")

	var bs asn1.BitString
	_, err = asn1.Unmarshal(der, &bs)
	test.AssertNotError(t, err, "decode key usage bit string")
	test.AssertEquals(t, len(bs.Bytes), 1, "unexpected key usage byte count")

	// Named bits are MSB-first; reverse back to Go's x509.KeyUsage bit
	// numbering before checking flags.
	got := x509.KeyUsage(reverseBitsInAByte(bs.Bytes[0]))
	want := x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	if got != want {
		t.Fatalf("decoded key usage = %#b, want %#b", got, want)
	}
	if got&x509.KeyUsageCertSign != 0 {
		t.Errorf("key usage should not assert keyCertSign")
	}
	if got&x509.KeyUsageDecipherOnly != 0 {
		t.Errorf("key usage should not assert decipherOnly")
	}
}
