package tmuxw

import "strings"

// sessionOf strips a trailing ":window" target suffix, the way tmux itself
// resolves a "-t session:window" argument.
func sessionOf(target string) string {
	if i := strings.IndexByte(target, ':'); i >= 0 {
		return target[:i]
	}
	return target
}

// Fake is an in-memory Tmux double used by engine/hook/monitor tests so
// they don't depend on a real tmux server.
type Fake struct {
	Sessions map[string]bool
	Windows  map[string][]string // session -> window names
	SentKeys []SentKey
	Killed   []string
}

type SentKey struct {
	Session string
	Keys    string
}

func NewFake() *Fake {
	return &Fake{
		Sessions: map[string]bool{},
		Windows:  map[string][]string{},
	}
}

func (f *Fake) IsAvailable() bool { return true }

func (f *Fake) NewSession(name, cwd, command string) error {
	if f.Sessions[name] {
		return ErrSessionExists
	}
	f.Sessions[name] = true
	f.Windows[name] = []string{"default"}
	return nil
}

func (f *Fake) KillSession(name string) error {
	if !f.Sessions[name] {
		return ErrSessionNotFound
	}
	delete(f.Sessions, name)
	delete(f.Windows, name)
	f.Killed = append(f.Killed, name)
	return nil
}

func (f *Fake) KillSessionSafe(name string) error {
	_ = f.KillSession(name)
	return nil
}

func (f *Fake) ListSessions() ([]string, error) {
	var names []string
	for n := range f.Sessions {
		names = append(names, n)
	}
	return names, nil
}

func (f *Fake) SessionExists(name string) (bool, error) {
	return f.Sessions[name], nil
}

func (f *Fake) CapturePane(session string, lines int) (string, error) {
	if !f.Sessions[session] {
		return "", ErrSessionNotFound
	}
	return "", nil
}

func (f *Fake) CapturePaneANSI(session string, lines int) (string, error) {
	return f.CapturePane(session, lines)
}

func (f *Fake) CapturePaneSafe(session string, lines int) (string, error) {
	out, err := f.CapturePane(session, lines)
	if err != nil {
		return "", nil
	}
	return out, nil
}

func (f *Fake) QueryPaneInfo(session string) (PaneInfo, error) {
	if !f.Sessions[session] {
		return PaneInfo{}, ErrSessionNotFound
	}
	return PaneInfo{Visible: true, Width: 80, Height: 24}, nil
}

func (f *Fake) ResizePane(session string, cols, rows int) error { return nil }
func (f *Fake) ResizePaneSafe(session string, cols, rows int) error { return nil }

func (f *Fake) NewWindow(session, name, cwd, command string) error {
	if !f.Sessions[session] {
		return ErrSessionNotFound
	}
	f.Windows[session] = append(f.Windows[session], name)
	return nil
}

func (f *Fake) RenameWindow(session, oldName, newName string) error {
	wins := f.Windows[session]
	for i, w := range wins {
		if w == oldName {
			wins[i] = newName
			return nil
		}
	}
	if oldName == "" && len(wins) > 0 {
		wins[0] = newName
		return nil
	}
	return ErrSessionNotFound
}

func (f *Fake) SendKeys(session, keys string) error {
	if !f.Sessions[sessionOf(session)] {
		return ErrSessionNotFound
	}
	f.SentKeys = append(f.SentKeys, SentKey{Session: session, Keys: keys})
	return nil
}

func (f *Fake) SendLiteral(session, text string) error {
	return f.SendKeys(session, text)
}

// KillWindowSafe removes a window from the session, if present. A missing
// session or window is not an error.
func (f *Fake) KillWindowSafe(session, window string) error {
	wins := f.Windows[session]
	for i, w := range wins {
		if w == window {
			f.Windows[session] = append(wins[:i], wins[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *Fake) SplitWindow(session, cwd, command string) error {
	if !f.Sessions[session] {
		return ErrSessionNotFound
	}
	return nil
}

func (f *Fake) AttachOrCreate(session, cwd, command string) error {
	if !f.Sessions[session] {
		return f.NewSession(session, cwd, command)
	}
	return nil
}

func (f *Fake) SelectWindowSafe(session, window string) error { return nil }
func (f *Fake) ScrollPane(session, direction string) error    { return nil }

// HasWindow reports whether session currently has a window named name.
func (f *Fake) HasWindow(session, name string) bool {
	for _, w := range f.Windows[session] {
		if w == name {
			return true
		}
	}
	return false
}
