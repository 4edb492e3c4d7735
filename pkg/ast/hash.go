package ast

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash returns the sha256 hex digest of the node's canonical JSON form.
// Structurally equal ASTs hash identically, which is what makes version
// storage content-addressed: saving the same expression twice under the
// same antecedent collapses to one version.
func Hash(n Node) (string, error) {
	data, err := Encode(n)
	if err != nil {
		return "", fmt.Errorf("hashing ast: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
