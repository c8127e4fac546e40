package filterengine

import "strings"

const (
	// OperatorSigil prefixes operator and combinator keys.
	OperatorSigil = "$"
	// PathPrefix marks a key addressed by document path.
	PathPrefix = "$."

	AndKey = "$and"
	OrKey  = "$or"
)

// IsOperatorKey reports whether key starts with the operator sigil.
func IsOperatorKey(key string) bool { return strings.HasPrefix(key, OperatorSigil) }

// IsPathKey reports whether key addresses a document path.
func IsPathKey(key string) bool { return strings.HasPrefix(key, PathPrefix) }

// IsLogicKey reports whether key names a combinator.
func IsLogicKey(key string) bool { return key == AndKey || key == OrKey }
