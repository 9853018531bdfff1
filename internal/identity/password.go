package identity

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
)

// Hasher turns a plaintext password into the opaque, algorithm-tagged value
// stored on the entry. Implementations must be one-way.
type Hasher func(password string) (string, error)

// SSHA is the default hasher: a short random salt, sha1(password + salt), and
// the tag plus base64(hash + salt) as the stored form. The salt rides along
// in the encoded value so verifiers can recompute the digest.
func SSHA(password string) (string, error) {
	salt := make([]byte, 4)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	digest := sha1.Sum(append([]byte(password), salt...))
	return "{SSHA}" + base64.StdEncoding.EncodeToString(append(digest[:], salt...)), nil
}
