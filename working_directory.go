package vterm

// SetWorkingDirectory stores the current working directory (OSC 7).
func (t *Terminal) SetWorkingDirectory(uri string) {
	if t.middleware != nil && t.middleware.SetWorkingDirectory != nil {
		t.middleware.SetWorkingDirectory(uri, t.setWorkingDirectoryInternal)
		return
	}
	t.setWorkingDirectoryInternal(uri)
}

func (t *Terminal) setWorkingDirectoryInternal(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workingDir = uri
}

// WorkingDirectory returns the current working directory URI as reported by
// OSC 7, e.g. "file://localhost/home/user".
func (t *Terminal) WorkingDirectory() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.workingDir
}

// WorkingDirectoryPath extracts the filesystem path from the working
// directory URI, stripping the "file://host" portion.
func (t *Terminal) WorkingDirectoryPath() string {
	t.mu.RLock()
	uri := t.workingDir
	t.mu.RUnlock()

	if uri == "" {
		return ""
	}

	const prefix = "file://"
	if len(uri) <= len(prefix) || uri[:len(prefix)] != prefix {
		return ""
	}
	rest := uri[len(prefix):]

	slashIdx := -1
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			slashIdx = i
			break
		}
	}
	if slashIdx < 0 {
		return ""
	}
	return rest[slashIdx:]
}
