//go:build !race

package auth

func passwordHashCost() int {
	// 12 keeps a password check well under interactive timeouts on current
	// hardware while staying above the library default.
	return 12
}
