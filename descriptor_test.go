package packstack

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	v1Config = `asset_pack:
  version: "v1"
  minecraft_versions: [1.20.1, 1.21.1]
  description: "Asset pack for Ruby Mod"
  inherits: null
`
	v2Config = `asset_pack:
  version: "v2"
  minecraft_versions: [1.21.1]
  description: "Second generation"
  inherits: v1
`
	versionConfig = `minecraft_version: "1.21.1"
asset_pack: "v2"
loaders: [fabric, neoforge]
java_version: 21
neoforge_version: "21.1.0"
fabric_loader_version: "0.16.9"
`
)

func TestLoadDescriptors(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"versions/shared/v1/config.yml": v1Config,
		"versions/shared/v2/config.yml": v2Config,
		"versions/1_21_1/config.yml":    versionConfig,
		"versions/1_20_1/README.md":     "no descriptor here",
		"versions/notes.txt":            "ignored",
	})

	packs, versions, err := LoadDescriptors(fsys)
	require.NoError(t, err)

	assert.Equal(t, []PackDescriptor{
		{
			ID:          "v1",
			Versions:    []string{"1.20.1", "1.21.1"},
			Description: "Asset pack for Ruby Mod",
			Root:        "versions/shared/v1",
		},
		{
			ID:          "v2",
			Parent:      "v1",
			Versions:    []string{"1.21.1"},
			Description: "Second generation",
			Root:        "versions/shared/v2",
		},
	}, packs)

	assert.Equal(t, []VersionDescriptor{{
		Version:     "1.21.1",
		BasePack:    "v2",
		Loaders:     []string{"fabric", "neoforge"},
		JavaVersion: 21,
		Root:        "versions/1_21_1",
	}}, versions)
}

func TestLoadDescriptorsWithoutProject(t *testing.T) {
	_, _, err := LoadDescriptors(memfs.New())
	assert.ErrorIs(t, err, ErrNoProject)
}

func TestLoadDescriptorsReportsBrokenYAML(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"versions/shared/v1/config.yml": "asset_pack: [unclosed",
	})
	_, _, err := LoadDescriptors(fsys)

	var derr *DescriptorError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "versions/shared/v1/config.yml", derr.Path)
}

func TestReadVersionDescriptorRequiresFields(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"a/config.yml": "asset_pack: v1\n",
		"b/config.yml": "minecraft_version: \"1.21\"\n",
	})
	_, err := ReadVersionDescriptor(fsys, "a/config.yml")
	assert.ErrorContains(t, err, "minecraft_version")
	_, err = ReadVersionDescriptor(fsys, "b/config.yml")
	assert.ErrorContains(t, err, "asset_pack")
}

func TestPackIDDefaultsToDirectory(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"versions/shared/legacy/config.yml": "asset_pack:\n  description: old\n",
	})
	d, err := ReadPackDescriptor(fsys, "versions/shared/legacy/config.yml")
	require.NoError(t, err)
	assert.Equal(t, "legacy", d.ID)
	assert.Equal(t, "", d.Parent)
}

func TestWriteDescriptorsCreateRoots(t *testing.T) {
	fsys := memfs.New()

	pack := PackDescriptor{ID: "v3", Parent: "v2", Versions: []string{"1.21.4"}, Description: "next"}
	require.NoError(t, WritePackDescriptor(fsys, "versions/shared/v3", pack))
	version := VersionDescriptor{Version: "1.21.4", BasePack: "v3", Loaders: []string{"fabric"}, JavaVersion: 21}
	require.NoError(t, WriteVersionDescriptor(fsys, "versions/1_21_4", version))

	for _, dir := range []string{
		"versions/shared/v3/assets", "versions/shared/v3/data",
		"versions/1_21_4/assets", "versions/1_21_4/data",
	} {
		info, err := fsys.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}

	gotPack, err := ReadPackDescriptor(fsys, "versions/shared/v3/config.yml")
	require.NoError(t, err)
	pack.Root = "versions/shared/v3"
	assert.Equal(t, pack, gotPack)

	gotVersion, err := ReadVersionDescriptor(fsys, "versions/1_21_4/config.yml")
	require.NoError(t, err)
	version.Root = "versions/1_21_4"
	assert.Equal(t, version, gotVersion)

	raw, err := util.ReadFile(fsys, "versions/shared/v3/config.yml")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "inherits: v2")
	assert.Contains(t, string(raw), "minecraft_versions: [1.21.4]")
}

func TestDefaultJavaVersion(t *testing.T) {
	tests := map[string]int{
		"1.21.1":  21,
		"1.20.5":  21,
		"1.20.4":  17,
		"1.18.2":  17,
		"1.17.1":  16,
		"1.16.5":  8,
		"weekly":  17,
		"1.21.10": 21,
	}
	for version, want := range tests {
		assert.Equal(t, want, DefaultJavaVersion(version), version)
	}
}
