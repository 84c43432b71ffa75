package scope

import (
	"encoding/base32"
	"fmt"
	"strings"

	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
	"github.com/google/uuid"
)

// Namespace names carry the owner key, so that scopes survive a
// process restart: a worker coming up can list namespaces and decode
// who each one belongs to without any local state.
//
// The layout is
//
//	pg-<base32hex(ownerKey), lowercase, no padding>-<6 hex chars>
//
// and must fit the 63 character limit on namespace names.

const namePrefix = "pg-"

// namespace names are RFC 1123 labels
const maxNameLength = 63

var nameEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// ScopeNameFor derives a fresh namespace name for the owner key.
//
// ErrInvalid is returned when the encoded owner key would not fit
// the namespace name limit.
func ScopeNameFor(ownerKey string) (string, error) {
	encoded := strings.ToLower(nameEncoding.EncodeToString([]byte(ownerKey)))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]

	name := fmt.Sprintf("%s%s-%s", namePrefix, encoded, suffix)
	if maxNameLength < len(name) {
		return "", kerr.NewInvalid(fmt.Sprintf(
			"owner key %q is too long for a namespace name", ownerKey,
		))
	}
	return name, nil
}

// OwnerKeyOf decodes the owner key out of a namespace name made by
// ScopeNameFor. It returns false for names in any other shape.
func OwnerKeyOf(name string) (string, bool) {
	if !strings.HasPrefix(name, namePrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(name, namePrefix)

	sep := strings.LastIndex(rest, "-")
	if sep < 0 {
		return "", false
	}
	encoded, suffix := rest[:sep], rest[sep+1:]
	if len(suffix) != 6 {
		return "", false
	}

	decoded, err := nameEncoding.DecodeString(strings.ToUpper(encoded))
	if err != nil {
		return "", false
	}
	return string(decoded), true
}
