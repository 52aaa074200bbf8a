// Package launcher simulates a launcher's view of the shortcuts published by
// packages, notifying registered callbacks of changes.
//
// Notifications are never delivered inline: each is posted to the Poster the
// callback was registered with, typically a *looper.Handler, and fires when
// that looper dispatches it.
package launcher

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/joeycumines/logiface"
)

// LauncherApps holds the shortcut state visible to a launcher, for a single
// user. It is safe for concurrent use.
type LauncherApps struct {
	defaultPoster Poster
	logger        *logiface.Logger[logiface.Event]
	enabled       map[string]struct{}
	packageName   string
	callbacks     []*registration
	shortcuts     []*entry
	mu            sync.Mutex
	user          UserHandle
}

type registration struct {
	callback Callback
	poster   Poster
}

type entry struct {
	info    ShortcutInfo
	dynamic bool
	pinned  bool
}

// New returns an empty LauncherApps, owned by packageName, which is the
// default package of added shortcuts.
func New(packageName string, opts ...Option) (*LauncherApps, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &LauncherApps{
		defaultPoster: cfg.defaultPoster,
		logger:        cfg.logger,
		enabled:       make(map[string]struct{}),
		packageName:   packageName,
		user:          cfg.user,
	}, nil
}

// User returns the user this LauncherApps belongs to.
func (x *LauncherApps) User() UserHandle { return x.user }

// RegisterCallback registers cb, to be notified via poster, or the default
// poster if nil. The returned function unregisters it, and is idempotent.
func (x *LauncherApps) RegisterCallback(cb Callback, poster Poster) (unregister func()) {
	if cb == nil {
		panic(`launcher: nil callback`)
	}
	if poster == nil {
		poster = x.defaultPoster
	}
	if poster == nil {
		panic(`launcher: nil poster, and no default poster`)
	}

	reg := &registration{callback: cb, poster: poster}
	x.mu.Lock()
	x.callbacks = append(x.callbacks, reg)
	x.mu.Unlock()

	return func() {
		x.mu.Lock()
		defer x.mu.Unlock()
		x.callbacks = slices.DeleteFunc(x.callbacks, func(v *registration) bool { return v == reg })
	}
}

// AddDynamicShortcut publishes a dynamic shortcut, replacing any with the
// same package and id, then notifies callbacks. The returned error reports
// failures posting notifications; the shortcut is added regardless.
func (x *LauncherApps) AddDynamicShortcut(info ShortcutInfo) error {
	if info.Package == `` {
		info.Package = x.packageName
	}

	x.mu.Lock()
	if e := x.findLocked(info.Package, info.ID); e != nil {
		e.info = info
		e.dynamic = true
	} else {
		x.shortcuts = append(x.shortcuts, &entry{info: info, dynamic: true})
	}
	x.mu.Unlock()

	return x.notifyShortcutsChanged(info.Package)
}

// RemoveDynamicShortcut unpublishes a dynamic shortcut, notifying callbacks
// if it existed. Pinned shortcuts stay visible as pinned.
func (x *LauncherApps) RemoveDynamicShortcut(packageName, id string) error {
	x.mu.Lock()
	e := x.findLocked(packageName, id)
	if e == nil || !e.dynamic {
		x.mu.Unlock()
		return nil
	}
	e.dynamic = false
	x.pruneLocked()
	x.mu.Unlock()

	return x.notifyShortcutsChanged(packageName)
}

// PinShortcuts replaces the pinned shortcuts of packageName with those
// identified by ids, then notifies callbacks. Unknown ids are ignored.
func (x *LauncherApps) PinShortcuts(packageName string, ids []string, user UserHandle) error {
	if user != x.user {
		return fmt.Errorf("launcher: pin shortcuts: unknown user %d", user)
	}

	x.mu.Lock()
	for _, e := range x.shortcuts {
		if e.info.Package == packageName {
			e.pinned = slices.Contains(ids, e.info.ID)
		}
	}
	x.pruneLocked()
	x.mu.Unlock()

	return x.notifyShortcutsChanged(packageName)
}

// Shortcuts returns the shortcuts matching query, in the order they were
// first added. Other users have no shortcuts.
func (x *LauncherApps) Shortcuts(query ShortcutQuery, user UserHandle) []ShortcutInfo {
	if user != x.user {
		return nil
	}
	flags := query.Flags
	if flags == 0 {
		flags = MatchAll
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	var result []ShortcutInfo
	for _, e := range x.shortcuts {
		if !(flags&MatchDynamic != 0 && e.dynamic) && !(flags&MatchPinned != 0 && e.pinned) {
			continue
		}
		if query.Package != `` && query.Package != e.info.Package {
			continue
		}
		if query.Activity != nil && (e.info.Activity == nil || *query.Activity != *e.info.Activity) {
			continue
		}
		if len(query.ShortcutIDs) != 0 && !slices.Contains(query.ShortcutIDs, e.info.ID) {
			continue
		}
		result = append(result, e.info)
	}
	return result
}

// AddEnabledPackage marks packageName as enabled.
func (x *LauncherApps) AddEnabledPackage(packageName string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.enabled[packageName] = struct{}{}
}

// IsPackageEnabled reports whether packageName was enabled for user.
func (x *LauncherApps) IsPackageEnabled(packageName string, user UserHandle) bool {
	if user != x.user {
		return false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.enabled[packageName]
	return ok
}

// notifyShortcutsChanged posts OnShortcutsChanged, carrying every shortcut
// of packageName, to each registered callback.
func (x *LauncherApps) notifyShortcutsChanged(packageName string) error {
	x.mu.Lock()
	var shortcuts []ShortcutInfo
	for _, e := range x.shortcuts {
		if e.info.Package == packageName {
			shortcuts = append(shortcuts, e.info)
		}
	}
	callbacks := slices.Clone(x.callbacks)
	user := x.user
	x.mu.Unlock()

	var errs []error
	for _, reg := range callbacks {
		// each callback gets its own copy
		shortcuts := slices.Clone(shortcuts)
		err := reg.poster.Post(func() {
			reg.callback.OnShortcutsChanged(packageName, shortcuts, user)
		})
		if err != nil {
			x.logger.Warning().
				Err(err).
				Str(`package`, packageName).
				Log(`failed to post shortcuts changed`)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (x *LauncherApps) findLocked(packageName, id string) *entry {
	for _, e := range x.shortcuts {
		if e.info.Package == packageName && e.info.ID == id {
			return e
		}
	}
	return nil
}

func (x *LauncherApps) pruneLocked() {
	x.shortcuts = slices.DeleteFunc(x.shortcuts, func(e *entry) bool { return !e.dynamic && !e.pinned })
}
