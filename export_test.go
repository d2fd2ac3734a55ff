package packstack

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweris/packstack/internal/archive"
)

func TestExportFormats(t *testing.T) {
	p, err := OpenFS(newProjectFS(t))
	require.NoError(t, err)
	ctx := context.Background()

	for _, format := range []ExportFormat{ExportZip, ExportTarZst} {
		t.Run(string(format), func(t *testing.T) {
			target := memfs.New()
			name := "ruby-1.21.1-fabric" + format.Ext()
			res, err := p.Export(ctx, "1.21.1", "fabric", target, name, ExportOptions{Format: format})
			require.NoError(t, err)
			assert.Equal(t, 3, res.Resources)
			assert.Equal(t, 34, res.PackFormat)

			data, err := util.ReadFile(target, name)
			require.NoError(t, err)
			files, err := archive.ReadAll(format, data)
			require.NoError(t, err)
			assert.Len(t, files, 4)
			assert.Equal(t, `{"item.ruby.ruby":"Ruby (Fabric)"}`, string(files["assets/ruby/lang/en_us.json"]))

			var meta packMeta
			require.NoError(t, json.Unmarshal(files[PackMetaFile], &meta))
			assert.Equal(t, 34, meta.Pack.PackFormat)
			assert.Equal(t, "Resources for 1.21.1 (fabric)", meta.Pack.Description)
		})
	}
}

func TestExportDirWithKindFilter(t *testing.T) {
	p, err := OpenFS(newProjectFS(t))
	require.NoError(t, err)
	target := memfs.New()

	res, err := p.Export(context.Background(), "1.21.1", "neoforge", target, "out", ExportOptions{
		Kinds:       []string{"data"},
		Description: "Ruby data",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resources)
	assert.Equal(t, 48, res.PackFormat)

	data, err := util.ReadFile(target, "out/data/ruby/recipe/ruby.json")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"minecraft:smelting"}`, string(data))
	_, err = target.Stat("out/assets")
	assert.Error(t, err)

	raw, err := util.ReadFile(target, "out/pack.mcmeta")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"description": "Ruby data"`)
}

func TestExportPropagatesResolveErrors(t *testing.T) {
	p, err := OpenFS(newProjectFS(t))
	require.NoError(t, err)

	_, err = p.Export(context.Background(), "1.21.1", "quilt", memfs.New(), "out", ExportOptions{})
	assert.ErrorIs(t, err, ErrLoaderNotEnabled)
}

func TestPackFormats(t *testing.T) {
	tests := []struct {
		version  string
		resource int
		data     int
	}{
		{"1.20.1", 15, 15},
		{"1.20.2", 18, 18},
		{"1.20.4", 22, 26},
		{"1.20.6", 32, 41},
		{"1.21", 34, 48},
		{"1.21.1", 34, 48},
		{"1.21.3", 42, 57},
		{"1.21.4", 46, 61},
		{"1.19.2", 9, 10},
		{"1.16.5", 6, 6},
		{"1.12.2", 5, 5},
		{"future", 46, 61},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.resource, ResourcePackFormat(tt.version), "resource %s", tt.version)
		assert.Equal(t, tt.data, DataPackFormat(tt.version), "data %s", tt.version)
	}
}
