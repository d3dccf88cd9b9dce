package credmine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/passlink/credmine/notify"
	"github.com/passlink/credmine/storage"
)

var errBackendDown = storage.NewError(storage.KindUnavailable, "passwords.create", errors.New("backend down"))

// fakeAPI is an in-memory storage.API with call counters and failure injection.
type fakeAPI struct {
	mu        sync.Mutex
	server    *storage.Server
	passwords []storage.Password
	folders   []*storage.Folder
	settings  map[string]*storage.Setting

	failCreates   int // upcoming password creates that fail
	createCalls   int
	folderCalls   int
	serverUpdates int
	settingSets   int
	serverErr     error
	folderErr     error
	nextID        int

	// onCreate runs before each password create, outside the lock.
	onCreate func(p *storage.Password)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{server: &storage.Server{ID: "default"}, settings: map[string]*storage.Setting{}}
}

func (f *fakeAPI) Server() *storage.Server                { return f.server }
func (f *fakeAPI) Passwords() storage.PasswordRepository { return fakePasswords{f} }
func (f *fakeAPI) Folders() storage.FolderRepository     { return fakeFolders{f} }
func (f *fakeAPI) Settings() storage.SettingRepository   { return fakeSettings{f} }
func (f *fakeAPI) Servers() storage.ServerRepository     { return fakeServers{f} }
func (f *fakeAPI) NewFolder(label string, hidden bool) *storage.Folder {
	return &storage.Folder{Label: label, Hidden: hidden}
}
func (f *fakeAPI) NewSetting(name, value, scope string) *storage.Setting {
	return &storage.Setting{Name: name, Value: value, Scope: scope}
}

func (f *fakeAPI) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeAPI) created() []storage.Password {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storage.Password(nil), f.passwords...)
}

func (f *fakeAPI) counts() (creates, folders, updates, sets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.folderCalls, f.serverUpdates, f.settingSets
}

type fakePasswords struct{ f *fakeAPI }

func (r fakePasswords) Create(_ context.Context, p *storage.Password) error {
	if r.f.onCreate != nil {
		r.f.onCreate(p)
	}
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.createCalls++
	if r.f.failCreates != 0 {
		if r.f.failCreates > 0 {
			r.f.failCreates--
		}
		return errBackendDown
	}
	p.ID = r.f.id("pw")
	r.f.passwords = append(r.f.passwords, *p)
	return nil
}

func (r fakePasswords) List(context.Context) ([]*storage.Password, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	out := make([]*storage.Password, 0, len(r.f.passwords))
	for i := range r.f.passwords {
		p := r.f.passwords[i]
		out = append(out, &p)
	}
	return out, nil
}

type fakeFolders struct{ f *fakeAPI }

func (r fakeFolders) Create(_ context.Context, folder *storage.Folder) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.folderCalls++
	if r.f.folderErr != nil {
		return r.f.folderErr
	}
	folder.ID = r.f.id("folder")
	r.f.folders = append(r.f.folders, folder)
	return nil
}

type fakeSettings struct{ f *fakeAPI }

func (r fakeSettings) FindByName(_ context.Context, name string) ([]*storage.Setting, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if s, ok := r.f.settings[name]; ok {
		cp := *s
		return []*storage.Setting{&cp}, nil
	}
	return nil, nil
}

func (r fakeSettings) Set(_ context.Context, s *storage.Setting) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.settingSets++
	cp := *s
	r.f.settings[s.FullName()] = &cp
	return nil
}

type fakeServers struct{ f *fakeAPI }

func (r fakeServers) Update(context.Context, *storage.Server) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.serverUpdates++
	return r.f.serverErr
}

// hookQueue lets a test act as the review UI around manager pushes.
type hookQueue struct {
	Queue
	mu        sync.Mutex
	pushes    int
	afterPush func(n int, t *Task) (*Task, error)
}

func (h *hookQueue) Push(ctx context.Context, t *Task) (*Task, error) {
	got, err := h.Queue.Push(ctx, t)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.pushes++
	n := h.pushes
	hook := h.afterPush
	h.mu.Unlock()
	if hook != nil {
		return hook(n, got)
	}
	return got, nil
}

// recorder collects notifications and reported errors.
type recorder struct {
	mu     sync.Mutex
	notes  []notify.Notification
	errs   []error
	onNote func(n notify.Notification)
	onErr  func(err error)
}

func (r *recorder) NewPasswordNotification(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	hook := r.onNote
	r.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (r *recorder) LogError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	hook := r.onErr
	r.mu.Unlock()
	if hook != nil {
		hook(err)
	}
}

func (r *recorder) notifications() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.notes...)
}

func (r *recorder) reported() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
