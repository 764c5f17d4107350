package buffer

func (l *Lines) markDirty() {
	l.dirty.Store(true)
	select {
	case l.changes <- struct{}{}:
	default:
	}
}

// Changes delivers a notification after the index changed. Notifications
// coalesce: many changes between two receives produce one.
func (l *Lines) Changes() <-chan struct{} {
	return l.changes
}

// CheckDirty reports whether the index changed since the flag was last
// cleared, clearing it when clear is set.
func (l *Lines) CheckDirty(clear bool) bool {
	if clear {
		return l.dirty.Swap(false)
	}
	return l.dirty.Load()
}
