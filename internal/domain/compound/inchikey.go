// Package compound provides the compound reference model of MAGI: the
// structural identifier (InChIKey) grammar, the compound table with
// monoisotopic masses and structures, and lookups over it.
package compound

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/TimothyStephens/magi/pkg/errors"
)

// inchiKeyPattern is the standard InChIKey grammar accepted as input:
// 14-letter skeleton block, 8-letter stereo block ending in the "SA" standard
// flag and version, and a single protonation letter.  The match is anchored
// at the start only, as trailing text is tolerated.
var inchiKeyPattern = regexp.MustCompile(`^[A-Z]{14}-[A-Z]{8}SA-[A-Z]`)

// ValidateInChIKey rejects identifiers that do not follow the standard
// InChIKey grammar.
func ValidateInChIKey(key string) error {
	if !inchiKeyPattern.MatchString(key) {
		return errors.New(errors.ErrCodeInvalidInChIKey,
			"not a valid InChIKey or not the standard InChI version (XXXXXXXXXXXXXX-XXXXXXXXSA-X)").
			WithDetail(fmt.Sprintf("inchikey=%s", key))
	}
	return nil
}

// TwoBlock returns the canonical two-block form of an InChIKey, dropping the
// protonation block.
func TwoBlock(key string) string {
	parts := strings.SplitN(key, "-", 3)
	if len(parts) < 2 {
		return key
	}
	return parts[0] + "-" + parts[1]
}

// FirstBlock returns the skeleton block of an InChIKey, the "flattened"
// identifier shared by tautomers and stereoisomers.
func FirstBlock(key string) string {
	if i := strings.IndexByte(key, '-'); i >= 0 {
		return key[:i]
	}
	return key
}
