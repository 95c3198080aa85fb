package reconcile

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Fingerprint condenses the fields whose change warrants a roster write into
// a comparable digest. An unknown age hashes as 0 so the first successful
// pass over a new row registers as a change. MD5 is fine here: this is a
// change detector, not a security boundary.
func Fingerprint(name, pageTitle, entityID string, age *int) string {
	a := 0
	if age != nil {
		a = *age
	}
	sum := md5.Sum(fmt.Appendf(nil, "%s%s%s%d", name, pageTitle, entityID, a))
	return hex.EncodeToString(sum[:])
}
