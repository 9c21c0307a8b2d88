// Package modules assembles the catalog: the Go modules compiled into the
// binary plus any manifest modules found on disk.
package modules

import (
	"github.com/ormasoftchile/tent/pkg/catalog"
	"github.com/ormasoftchile/tent/pkg/modules/assertmod"
	"github.com/ormasoftchile/tent/pkg/modules/envmod"
	"github.com/ormasoftchile/tent/pkg/modules/httpmod"
	"github.com/ormasoftchile/tent/pkg/modules/utilmod"
)

// core is the list of modules compiled into the tent binary.
var core = []catalog.Module{
	&assertmod.Module{},
	&envmod.Module{},
	&httpmod.Module{},
	&utilmod.Module{},
}

// Core returns the compiled-in modules.
func Core() []catalog.Module {
	out := make([]catalog.Module, len(core))
	copy(out, core)
	return out
}

// NewRegistry discovers the core modules, loads manifests from each
// directory and freezes the result. Empty directory names are skipped.
func NewRegistry(manifestDirs ...string) (*catalog.Registry, error) {
	r := catalog.New().Discover(core...)
	for _, dir := range manifestDirs {
		if dir == "" {
			continue
		}
		if err := r.LoadManifests(dir); err != nil {
			return nil, err
		}
	}
	r.Freeze()
	return r, nil
}
