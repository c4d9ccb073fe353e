package registry

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/Suhaibinator/SModule/internal/metrics"
	"github.com/Suhaibinator/SModule/internal/module"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"go.uber.org/zap"
)

// TableSource exposes the descriptors of the modules compiled into the host.
type TableSource struct {
	Table *module.Table
}

func (s TableSource) Name() string { return "table" }

func (s TableSource) Descriptors(ctx context.Context) ([]module.Descriptor, error) {
	defs := s.Table.Definitions()
	descs := make([]module.Descriptor, 0, len(defs))
	for _, def := range defs {
		descs = append(descs, def.Descriptor)
	}
	return descs, nil
}

// manifestFile is the schema of a *.hcl module manifest:
//
//	module "inventory" {
//	  name        = "Inventory"
//	  version     = "1.0.0"
//	  description = "Stock levels"
//	  url_prefix  = "stock"
//	}
type manifestFile struct {
	Modules []manifestModule `hcl:"module,block"`
	Remain  hcl.Body         `hcl:",remain"`
}

type manifestModule struct {
	Identifier  string   `hcl:"identifier,label"`
	Name        string   `hcl:"name,optional"`
	Version     string   `hcl:"version,optional"`
	Description string   `hcl:"description,optional"`
	URLPrefix   string   `hcl:"url_prefix,optional"`
	Remain      hcl.Body `hcl:",remain"`
}

// ManifestSource discovers descriptors from HCL manifests below Dir.
// Manifests that fail to parse and subdirectories that cannot be read are
// skipped; only an unreadable Dir makes the source unavailable.
type ManifestSource struct {
	Dir string
	Log *zap.Logger
}

// NewManifestSource creates a source scanning dir for *.hcl files.
func NewManifestSource(dir string, log *zap.Logger) *ManifestSource {
	return &ManifestSource{Dir: dir, Log: log.Named("manifests")}
}

func (s *ManifestSource) Name() string { return "manifests:" + s.Dir }

func (s *ManifestSource) Descriptors(ctx context.Context) ([]module.Descriptor, error) {
	var paths []string
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.Dir {
				return err
			}
			s.Log.Warn("Skipping unreadable manifest path", zap.String("path", path), zap.Error(err))
			metrics.RegistrySkippedTotal.WithLabelValues("manifest_error").Inc()
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".hcl") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan manifests in %s: %w", s.Dir, err)
	}

	var descs []module.Descriptor
	for _, path := range paths {
		var file manifestFile
		if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
			s.Log.Warn("Skipping unreadable module manifest", zap.String("file", path), zap.Error(err))
			metrics.RegistrySkippedTotal.WithLabelValues("manifest_error").Inc()
			continue
		}
		for _, m := range file.Modules {
			descs = append(descs, module.Descriptor{
				Identifier:  m.Identifier,
				DisplayName: m.Name,
				Version:     m.Version,
				Description: m.Description,
				URLPrefix:   m.URLPrefix,
			})
		}
		s.Log.Debug("Loaded module manifest", zap.String("file", path), zap.Int("modules", len(file.Modules)))
	}
	return descs, nil
}
