package credmine

import (
	"context"
	"errors"
	"fmt"

	rtm "github.com/passlink/credmine/internal/runtime"
	"github.com/passlink/credmine/storage"
)

// Hidden folder markers.
const (
	PrivateFolderLabel   = "BrowserExtensionPrivateFolder"
	PrivateFolderSetting = "ext.folder.private"
)

// FolderResolver finds or creates the hidden folder for private credentials.
// Profile and setting caches are written in the background; their failures
// reach only the error reporter.
type FolderResolver struct {
	rt       *rtm.Group
	reporter ErrorReporter
}

// NewFolderResolver creates a resolver whose background writes run on rt.
func NewFolderResolver(rt *rtm.Group, reporter ErrorReporter) *FolderResolver {
	return &FolderResolver{rt: rt, reporter: reporter}
}

// Resolve returns the private folder id of the api's server profile.
// Concurrent first calls may each create a folder.
func (r *FolderResolver) Resolve(ctx context.Context, api storage.API) (string, error) {
	server := api.Server()
	if server == nil {
		return "", &ResolutionError{Step: "profile", Err: errors.New("no server profile")}
	}
	if id := server.PrivateFolder(); id != "" {
		return id, nil
	}

	fullName := storage.ScopeClient + "." + PrivateFolderSetting
	found, err := api.Settings().FindByName(ctx, fullName)
	if err != nil {
		return "", &ResolutionError{Step: "setting", Err: err}
	}
	if len(found) > 0 && found[0].Value != "" {
		id := found[0].Value
		server.SetPrivateFolder(id)
		r.background("update server profile", func(ctx context.Context) error {
			return api.Servers().Update(ctx, server)
		})
		return id, nil
	}

	folder := api.NewFolder(PrivateFolderLabel, true)
	if err := api.Folders().Create(ctx, folder); err != nil {
		return "", &ResolutionError{Step: "create folder", Err: err}
	}
	server.SetPrivateFolder(folder.ID)
	r.background("update server profile", func(ctx context.Context) error {
		return api.Servers().Update(ctx, server)
	})
	setting := api.NewSetting(PrivateFolderSetting, folder.ID, storage.ScopeClient)
	r.background("save private folder setting", func(ctx context.Context) error {
		return api.Settings().Set(ctx, setting)
	})
	return folder.ID, nil
}

func (r *FolderResolver) background(name string, fn func(ctx context.Context) error) {
	err := r.rt.Go(name, func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			r.reporter.LogError(fmt.Errorf("%s: %w", name, err))
		}
	})
	if err != nil {
		r.reporter.LogError(fmt.Errorf("%s: %w", name, err))
	}
}
