package cmd

import (
	"os"

	"github.com/aman-cerp/smgrep/internal/config"
	"github.com/aman-cerp/smgrep/internal/storeid"
)

// resolveRoot returns path if given, else the project root discovered from
// the current directory (falling back to cwd itself).
func resolveRoot(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if root, err := config.FindProjectRoot("."); err == nil {
		return root, nil
	}
	return os.Getwd()
}

// resolveStoreID derives the store id for root, unless --store/SMGREP_STORE
// names one explicitly.
func resolveStoreID(root string) (storeid.ID, error) {
	if storeOverride != "" {
		return storeid.ID(storeOverride), nil
	}
	if env := os.Getenv("SMGREP_STORE"); env != "" {
		return storeid.ID(env), nil
	}
	return storeid.FromPath(root)
}
