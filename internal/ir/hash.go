package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRequest = "verity/request/v1"
	DomainDataset = "verity/dataset/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := newDomainHash(domain)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func newDomainHash(domain string) hash.Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	return h
}

// Fingerprinter accumulates a content fingerprint for a dataset.
//
// Each record is written as one canonical JSON document followed by a
// newline, so two datasets share an ID exactly when their column layout and
// row content are equal.
type Fingerprinter struct {
	h hash.Hash
}

// NewFingerprinter returns a fingerprinter seeded with DomainDataset.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{h: newDomainHash(DomainDataset)}
}

// Add appends one record (header, schema or row) to the fingerprint.
func (f *Fingerprinter) Add(record any) error {
	b, err := MarshalCanonical(record)
	if err != nil {
		return err
	}
	f.h.Write(b)
	f.h.Write([]byte{'\n'})
	return nil
}

// ID returns the dataset identity for everything added so far.
func (f *Fingerprinter) ID() DatasetID {
	return DatasetID("sha256:" + hex.EncodeToString(f.h.Sum(nil)))
}
