// Package scan implements a placeholder content scanner. It only matches known
// byte signatures and is not a substitute for a real antivirus engine.
package scan

import (
	"bytes"
	"errors"
	"fmt"
)

// EICAR is the industry standard antivirus test string.
const EICAR = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

// ErrMalicious is matched by every Detection.
var ErrMalicious = errors.New("malicious content detected")

// Detection reports which signature matched and where.
type Detection struct {
	Signature string
	Offset    int
}

func (d *Detection) Error() string {
	return fmt.Sprintf("%s: signature %q at offset %d", ErrMalicious, d.Signature, d.Offset)
}

func (d *Detection) Unwrap() error { return ErrMalicious }

// Scanner matches content against a fixed set of signatures.
type Scanner struct {
	signatures [][]byte
}

// New returns a Scanner for EICAR plus any extra signatures. Blank extras are ignored.
func New(extra ...string) *Scanner {
	sigs := [][]byte{[]byte(EICAR)}
	for _, s := range extra {
		if s == "" {
			continue
		}
		sigs = append(sigs, []byte(s))
	}
	return &Scanner{signatures: sigs}
}

// Scan returns a *Detection for the first signature found in data, or nil.
func (s *Scanner) Scan(data []byte) error {
	for _, sig := range s.signatures {
		if i := bytes.Index(data, sig); i >= 0 {
			return &Detection{Signature: string(sig), Offset: i}
		}
	}
	return nil
}
