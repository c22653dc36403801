package susceptibility

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
)

// Manifest describes a real-data run: the criterion rasters, their weights
// and where to write the index.
type Manifest struct {
	Output string          `yaml:"output"`
	Format string          `yaml:"format"`
	Layers []LayerManifest `yaml:"layers"`

	dir string
}

// LayerManifest is one entry of Manifest.Layers.
type LayerManifest struct {
	Name      string  `yaml:"name"`
	Path      string  `yaml:"path"`
	Variable  string  `yaml:"variable"`
	Weight    float64 `yaml:"weight"`
	Invert    bool    `yaml:"invert"`
	Normalize Method  `yaml:"normalize"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
}

// LoadManifest parses a YAML manifest. Relative layer paths are resolved
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "susceptibility: read manifest %s", path)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, eris.Wrapf(err, "susceptibility: manifest %s", path)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, eris.Wrap(err, "decode yaml")
	}
	if len(m.Layers) == 0 {
		return nil, eris.Wrap(model.ErrNoLayers, "manifest lists no layers")
	}
	for i, l := range m.Layers {
		if l.Path == "" {
			return nil, eris.Errorf("layer %d (%s): path is required", i, l.Name)
		}
		if l.Name == "" {
			m.Layers[i].Name = filepath.Base(l.Path)
		}
	}
	return &m, nil
}

func (m *Manifest) layerPath(p string) string {
	if fetcher.IsRemote(p) || filepath.IsAbs(p) || m.dir == "" {
		return p
	}
	return filepath.Join(m.dir, p)
}

// Load reads every layer concurrently. All layers are read before any is
// combined; the first failure cancels the rest.
func (m *Manifest) Load(ctx context.Context, res *fetcher.Resolver) ([]Layer, error) {
	layers := make([]Layer, len(m.Layers))
	g, ctx := errgroup.WithContext(ctx)
	for i, lm := range m.Layers {
		g.Go(func() error {
			local, err := res.Resolve(ctx, m.layerPath(lm.Path))
			if err != nil {
				return eris.Wrapf(err, "layer %s", lm.Name)
			}
			grid, err := raster.Read(local, lm.Variable)
			if err != nil {
				return eris.Wrapf(err, "layer %s", lm.Name)
			}
			rows, cols := grid.Dims()
			zap.L().Debug("susceptibility: loaded layer",
				zap.String("layer", lm.Name),
				zap.String("path", local),
				zap.Int("rows", rows),
				zap.Int("cols", cols),
			)
			layers[i] = Layer{
				Name:   lm.Name,
				Grid:   grid,
				Weight: lm.Weight,
				Invert: lm.Invert,
				Normalization: Normalization{
					Method: lm.Normalize,
					Min:    lm.Min,
					Max:    lm.Max,
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return layers, nil
}
