// Package platform recognizes platform package names: synthetic package
// names denoting a host capability (runtime, extension, library) that is
// never fetched or installed onto disk. Kept dependency-free so every
// other package can import it without risk of a cycle.
package platform

import "strings"

// IsPlatformPackage reports whether name denotes a platform package per
// spec §6: "php", "composer", "composer-runtime-api",
// "composer-plugin-api", or anything prefixed "ext-" or "lib-". name is
// expected to already be lowercased, as package names are canonically
// stored lowercased (spec §3).
func IsPlatformPackage(name string) bool {
	switch name {
	case "php", "composer", "composer-runtime-api", "composer-plugin-api":
		return true
	}
	return strings.HasPrefix(name, "ext-") || strings.HasPrefix(name, "lib-")
}
