// Package extensions builds the ordered extension list for an issued
// certificate: a fixed base set plus a filtered copy of the CSR's
// extensions, keeping only those within the Puppet OID arc.
package extensions

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// NetscapeComment is the literal legacy comment string Puppet stamps
// onto every issued certificate.
const NetscapeComment = "Puppet JVM Internal Certificate"

// PuppetOIDArc is the dotted-OID subtree under which domain-specific
// CSR extensions are trusted to propagate onto the signed certificate.
var PuppetOIDArc = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 34380, 1}

var (
	oidNetscapeComment   = asn1.ObjectIdentifier{2, 16, 840, 1, 113730, 1, 13}
	oidAuthorityKeyID    = asn1.ObjectIdentifier{2, 5, 29, 35}
	oidBasicConstraints  = asn1.ObjectIdentifier{2, 5, 29, 19}
	oidExtendedKeyUsage  = asn1.ObjectIdentifier{2, 5, 29, 37}
	oidKeyUsage          = asn1.ObjectIdentifier{2, 5, 29, 15}
	oidSubjectKeyID      = asn1.ObjectIdentifier{2, 5, 29, 14}
	oidSSLServerAuth     = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 1}
	oidSSLClientAuth     = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 2}
)

// IsPuppetOID reports whether oid lies within PuppetOIDArc.
func IsPuppetOID(oid asn1.ObjectIdentifier) bool {
	if len(oid) < len(PuppetOIDArc) {
		return false
	}
	for i, component := range PuppetOIDArc {
		if oid[i] != component {
			return false
		}
	}
	return true
}

// generateSKID computes a Subject/Authority Key Identifier using the
// RFC 7093 §2 method: the leftmost 160 bits of the SHA-256 hash of the
// subjectPublicKey BIT STRING contents (excluding tag/length/unused
// bits count).
func generateSKID(pub crypto.PublicKey) ([]byte, error) {
	pkBytes, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}

	var pkixPublicKey struct {
		Algo      pkix.AlgorithmIdentifier
		BitString asn1.BitString
	}
	if _, err := asn1.Unmarshal(pkBytes, &pkixPublicKey); err != nil {
		return nil, fmt.Errorf("unmarshaling public key: %w", err)
	}

	digest := sha256.Sum256(pkixPublicKey.BitString.Bytes)
	return digest[0:20:20], nil
}

// basicConstraintsValue is the DER encoding of BasicConstraints{cA: false},
// no path length constraint.
func basicConstraintsValue() ([]byte, error) {
	return asn1.Marshal(struct {
		IsCA bool `asn1:"optional"`
	}{IsCA: false})
}

// extendedKeyUsageValue is the DER encoding of an ExtKeyUsageSyntax
// containing SSL server and SSL client auth.
func extendedKeyUsageValue() ([]byte, error) {
	return asn1.Marshal([]asn1.ObjectIdentifier{oidSSLServerAuth, oidSSLClientAuth})
}

// keyUsageValue is the DER encoding of a KeyUsage BIT STRING with
// digitalSignature (bit 0) and keyEncipherment (bit 2) set. X.509 named
// bits are numbered MSB-first (bit 0 = 0x80), the reverse of Go's
// x509.KeyUsage bit numbering (bit 0 = 0x01), so the byte must be
// reversed before marshaling — same transform as the standard library's
// marshalKeyUsage/reverseBitsInAByte.
func keyUsageValue() ([]byte, error) {
	var ku x509.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	bits := reverseBitsInAByte(byte(ku))
	return asn1.Marshal(asn1.BitString{Bytes: []byte{bits}, BitLength: 8})
}

// reverseBitsInAByte reverses the bit order within a single byte.
func reverseBitsInAByte(in byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		out |= ((in >> i) & 1) << (7 - i)
	}
	return out
}

// Build assembles the ordered extension list for a certificate being
// issued for csrPublicKey, authenticated by caPublicKey, carrying
// through any Puppet-arc extensions present on csrExtensions.
func Build(caPublicKey, csrPublicKey crypto.PublicKey, csrExtensions []pkix.Extension) ([]pkix.Extension, error) {
	var out []pkix.Extension

	commentValue, err := asn1.Marshal(NetscapeComment)
	if err != nil {
		return nil, fmt.Errorf("encoding Netscape comment: %w", err)
	}
	out = append(out, pkix.Extension{Id: oidNetscapeComment, Critical: false, Value: commentValue})

	akid, err := generateSKID(caPublicKey)
	if err != nil {
		return nil, fmt.Errorf("computing authority key identifier: %w", err)
	}
	akidValue, err := asn1.Marshal(struct {
		KeyIdentifier []byte `asn1:"optional,tag:0"`
	}{KeyIdentifier: akid})
	if err != nil {
		return nil, fmt.Errorf("encoding authority key identifier: %w", err)
	}
	out = append(out, pkix.Extension{Id: oidAuthorityKeyID, Critical: false, Value: akidValue})

	bc, err := basicConstraintsValue()
	if err != nil {
		return nil, fmt.Errorf("encoding basic constraints: %w", err)
	}
	out = append(out, pkix.Extension{Id: oidBasicConstraints, Critical: true, Value: bc})

	eku, err := extendedKeyUsageValue()
	if err != nil {
		return nil, fmt.Errorf("encoding extended key usage: %w", err)
	}
	out = append(out, pkix.Extension{Id: oidExtendedKeyUsage, Critical: true, Value: eku})

	ku, err := keyUsageValue()
	if err != nil {
		return nil, fmt.Errorf("encoding key usage: %w", err)
	}
	out = append(out, pkix.Extension{Id: oidKeyUsage, Critical: true, Value: ku})

	skid, err := generateSKID(csrPublicKey)
	if err != nil {
		return nil, fmt.Errorf("computing subject key identifier: %w", err)
	}
	skidValue, err := asn1.Marshal(skid)
	if err != nil {
		return nil, fmt.Errorf("encoding subject key identifier: %w", err)
	}
	out = append(out, pkix.Extension{Id: oidSubjectKeyID, Critical: false, Value: skidValue})

	for _, ext := range csrExtensions {
		if IsPuppetOID(ext.Id) {
			out = append(out, ext)
		}
	}

	return out, nil
}
