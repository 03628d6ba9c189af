package daemon

import (
	"path/filepath"

	"github.com/aman-cerp/smgrep/internal/config"
	"github.com/aman-cerp/smgrep/internal/storeid"
)

// Paths bundles the per-store filesystem locations a daemon instance reads
// from and writes to, all rooted under the shared base directory.
type Paths struct {
	StoreID      storeid.ID
	SocketPath   string
	PIDPath      string
	ManifestPath string
	DataDir      string
}

// ResolvePaths derives every per-store path from a store id, mirroring the
// {base_dir}/{sockets,meta,data}/{store_id}.* layout.
func ResolvePaths(id storeid.ID) Paths {
	return Paths{
		StoreID:      id,
		SocketPath:   filepath.Join(config.SocketDir(), string(id)+".sock"),
		PIDPath:      filepath.Join(config.SocketDir(), string(id)+".pid"),
		ManifestPath: filepath.Join(config.MetaDir(), string(id)+".json"),
		DataDir:      filepath.Join(config.DataDir(), string(id)),
	}
}
