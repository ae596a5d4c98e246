package bucket

import (
	"errors"
	"strings"
)

// PruneStats summarizes a prune pass.
type PruneStats struct {
	// Removed is the number of expired entry files deleted.
	Removed int
	// Bytes is the total size of the deleted files.
	Bytes int64
}

// Prune scans the root directory for entry files carrying the active
// codec's extension and removes the ones that are positively expired,
// reclaiming their space. Files that merely fail to decode are left alone;
// they may belong to an incompatible codec version. Safe to run against a
// directory shared by several buckets using the same codec.
func (b *Bucket) Prune() (PruneStats, error) {
	var stats PruneStats

	infos, err := b.store.List(b.codec.Extension())
	if err != nil {
		return stats, err
	}
	suffix := "." + b.codec.Extension()
	for _, info := range infos {
		hash := strings.TrimSuffix(info.Name, suffix)
		_, err := b.loadHash(hash, true)
		switch {
		case err == nil:
			// Live entry.
		case errors.Is(err, errKeyExpired):
			// loadHash already deleted the file and memory entry.
			stats.Removed++
			stats.Bytes += info.Size
		case errors.Is(err, errKeyInvalid):
			// Unreadable, not provably expired. Leave it.
		default:
			return stats, err
		}
	}

	b.log.Info().Int("removed", stats.Removed).Int64("bytes", stats.Bytes).Msg("pruned expired entries")
	return stats, nil
}
