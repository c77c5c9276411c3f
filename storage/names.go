package storage

import (
	"encoding/hex"

	"github.com/ruteri/tee-confidential-query/interfaces"
)

// objectName is the name every backend stores a metadata document under.
func objectName(codeHash interfaces.CodeHash) string {
	return hex.EncodeToString(codeHash[:]) + ".json"
}
