package execution

import "strings"

// BundleStatus is the executor's normalized view of a block engine's raw
// confirmation-status string.
type BundleStatus int

const (
	BundleUnknown BundleStatus = iota
	BundlePending
	BundleLanded
	BundleFailed
	BundleDropped
)

func (s BundleStatus) String() string {
	switch s {
	case BundlePending:
		return "pending"
	case BundleLanded:
		return "landed"
	case BundleFailed:
		return "failed"
	case BundleDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// NormalizeBundleStatus maps a block engine's raw status string onto the
// executor's closed set: landed/confirmed/finalized -> Landed,
// failed/rejected -> Failed, dropped -> Dropped, pending/processing ->
// Pending, anything else -> Unknown.
func NormalizeBundleStatus(raw string) BundleStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "landed", "confirmed", "finalized":
		return BundleLanded
	case "failed", "rejected":
		return BundleFailed
	case "dropped":
		return BundleDropped
	case "pending", "processing":
		return BundlePending
	default:
		return BundleUnknown
	}
}
