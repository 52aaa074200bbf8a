package launcher

// UserHandle identifies a user profile.
type UserHandle int

// ComponentName identifies an activity within a package.
type ComponentName struct {
	Package string
	Class   string
}

// ShortcutInfo describes a shortcut published by a package.
type ShortcutInfo struct {
	// Activity is the activity the shortcut is associated with, if any.
	Activity *ComponentName
	ID       string
	// Package defaults to the package of the LauncherApps it was added to.
	Package string
}

// QueryFlags selects the kinds of shortcuts matched by a ShortcutQuery.
type QueryFlags uint

const (
	// MatchDynamic matches dynamic shortcuts.
	MatchDynamic QueryFlags = 1 << iota
	// MatchPinned matches pinned shortcuts.
	MatchPinned

	// MatchAll matches every kind of shortcut.
	MatchAll = MatchDynamic | MatchPinned
)

// ShortcutQuery filters the shortcuts returned by LauncherApps.Shortcuts.
// Zero-valued fields match everything.
type ShortcutQuery struct {
	Activity *ComponentName
	Package  string
	// ShortcutIDs restricts results to the given ids, if non-empty.
	ShortcutIDs []string
	// Flags defaults to MatchAll, if zero.
	Flags QueryFlags
}

// Callback receives change notifications, dispatched via the Poster it was
// registered with. Embed DefaultCallback to implement only some methods.
type Callback interface {
	OnPackageRemoved(packageName string, user UserHandle)
	OnPackageAdded(packageName string, user UserHandle)
	OnPackageChanged(packageName string, user UserHandle)
	OnPackagesAvailable(packageNames []string, user UserHandle, replacing bool)
	OnPackagesUnavailable(packageNames []string, user UserHandle, replacing bool)
	OnShortcutsChanged(packageName string, shortcuts []ShortcutInfo, user UserHandle)
}

// DefaultCallback implements Callback with no-op methods.
type DefaultCallback struct{}

var _ Callback = DefaultCallback{}

func (DefaultCallback) OnPackageRemoved(string, UserHandle) {}

func (DefaultCallback) OnPackageAdded(string, UserHandle) {}

func (DefaultCallback) OnPackageChanged(string, UserHandle) {}

func (DefaultCallback) OnPackagesAvailable([]string, UserHandle, bool) {}

func (DefaultCallback) OnPackagesUnavailable([]string, UserHandle, bool) {}

func (DefaultCallback) OnShortcutsChanged(string, []ShortcutInfo, UserHandle) {}

// Poster queues work for later dispatch, e.g. a *looper.Handler.
type Poster interface {
	Post(fn func()) error
}
