package packstack

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

// DescriptorFile is the file name of pack and version descriptors.
const DescriptorFile = "config.yml"

// DescriptorError reports a descriptor file that cannot be read or parsed.
type DescriptorError struct {
	Path string
	Err  error
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("descriptor %s: %v", e.Path, e.Err)
}

func (e *DescriptorError) Unwrap() error { return e.Err }

type packFile struct {
	AssetPack packInfo `yaml:"asset_pack"`
}

type packInfo struct {
	Version           string   `yaml:"version"`
	MinecraftVersions []string `yaml:"minecraft_versions,flow"`
	Description       string   `yaml:"description"`
	Inherits          *string  `yaml:"inherits"`
}

type versionFile struct {
	MinecraftVersion string   `yaml:"minecraft_version"`
	AssetPack        string   `yaml:"asset_pack"`
	Loaders          []string `yaml:"loaders,flow"`
	JavaVersion      int      `yaml:"java_version,omitempty"`
}

// LoadDescriptors reads every pack descriptor under versions/shared and every
// version descriptor under versions/<dir>. Results are sorted by id.
// Directories without a descriptor are skipped.
func LoadDescriptors(fsys billy.Filesystem) ([]PackDescriptor, []VersionDescriptor, error) {
	entries, err := fsys.ReadDir(versionsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s missing", ErrNoProject, versionsDir)
		}
		return nil, nil, fmt.Errorf("read %s: %w", versionsDir, err)
	}

	var packs []PackDescriptor
	var versions []VersionDescriptor
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == sharedDir {
			packs, err = loadPacks(fsys, path.Join(versionsDir, sharedDir))
			if err != nil {
				return nil, nil, err
			}
			continue
		}
		file := path.Join(versionsDir, e.Name(), DescriptorFile)
		v, err := ReadVersionDescriptor(fsys, file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		versions = append(versions, v)
	}

	slices.SortFunc(packs, func(a, b PackDescriptor) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(versions, func(a, b VersionDescriptor) int { return strings.Compare(a.Version, b.Version) })
	return packs, versions, nil
}

// packDiscoverable reports whether LoadDescriptors finds a pack descriptor
// written to root.
func packDiscoverable(root string) bool {
	return path.Dir(path.Clean(root)) == path.Join(versionsDir, sharedDir)
}

// versionDiscoverable reports whether LoadDescriptors finds a version
// descriptor written to root.
func versionDiscoverable(root string) bool {
	root = path.Clean(root)
	return path.Dir(root) == versionsDir && path.Base(root) != sharedDir
}

func loadPacks(fsys billy.Filesystem, dir string) ([]PackDescriptor, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var packs []PackDescriptor
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := ReadPackDescriptor(fsys, path.Join(dir, e.Name(), DescriptorFile))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		packs = append(packs, d)
	}
	return packs, nil
}

// ReadPackDescriptor parses a pack descriptor. The pack id defaults to the
// directory name and the layer root to the descriptor's directory.
func ReadPackDescriptor(fsys billy.Filesystem, file string) (PackDescriptor, error) {
	var pf packFile
	if err := readYAML(fsys, file, &pf); err != nil {
		return PackDescriptor{}, err
	}
	dir := path.Dir(file)
	d := PackDescriptor{
		ID:          pf.AssetPack.Version,
		Versions:    pf.AssetPack.MinecraftVersions,
		Description: pf.AssetPack.Description,
		Root:        dir,
	}
	if d.ID == "" {
		d.ID = path.Base(dir)
	}
	if pf.AssetPack.Inherits != nil {
		d.Parent = *pf.AssetPack.Inherits
	}
	return d, nil
}

// ReadVersionDescriptor parses a version descriptor. The override root is the
// descriptor's directory, whatever its name.
func ReadVersionDescriptor(fsys billy.Filesystem, file string) (VersionDescriptor, error) {
	var vf versionFile
	if err := readYAML(fsys, file, &vf); err != nil {
		return VersionDescriptor{}, err
	}
	if vf.MinecraftVersion == "" {
		return VersionDescriptor{}, &DescriptorError{Path: file, Err: errors.New("minecraft_version is required")}
	}
	if vf.AssetPack == "" {
		return VersionDescriptor{}, &DescriptorError{Path: file, Err: errors.New("asset_pack is required")}
	}
	return VersionDescriptor{
		Version:     vf.MinecraftVersion,
		BasePack:    vf.AssetPack,
		Loaders:     vf.Loaders,
		JavaVersion: vf.JavaVersion,
		Root:        path.Dir(file),
	}, nil
}

// WritePackDescriptor writes d to <root>/config.yml and creates empty
// resource roots next to it.
func WritePackDescriptor(fsys billy.Filesystem, root string, d PackDescriptor) error {
	pf := packFile{AssetPack: packInfo{
		Version:           d.ID,
		MinecraftVersions: d.Versions,
		Description:       d.Description,
	}}
	if pf.AssetPack.MinecraftVersions == nil {
		pf.AssetPack.MinecraftVersions = []string{}
	}
	if d.Parent != "" {
		pf.AssetPack.Inherits = &d.Parent
	}
	return writeDescriptor(fsys, root, &pf)
}

// WriteVersionDescriptor writes d to <root>/config.yml and creates empty
// resource roots next to it.
func WriteVersionDescriptor(fsys billy.Filesystem, root string, d VersionDescriptor) error {
	vf := versionFile{
		MinecraftVersion: d.Version,
		AssetPack:        d.BasePack,
		Loaders:          d.Loaders,
		JavaVersion:      d.JavaVersion,
	}
	return writeDescriptor(fsys, root, &vf)
}

func writeDescriptor(fsys billy.Filesystem, root string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}
	for _, r := range []string{"assets", "data"} {
		if err := fsys.MkdirAll(path.Join(root, r), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path.Join(root, r), err)
		}
	}
	file := path.Join(root, DescriptorFile)
	if err := util.WriteFile(fsys, file, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	return nil
}

func readYAML(fsys billy.Filesystem, file string, v any) error {
	f, err := fsys.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return &DescriptorError{Path: file, Err: err}
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return &DescriptorError{Path: file, Err: err}
	}
	return nil
}

var javaVersions = []struct {
	constraint string
	java       int
}{
	{">= 1.20.5", 21},
	{">= 1.18", 17},
	{">= 1.17", 16},
}

// DefaultJavaVersion returns the Java release a target version runs on.
// Unparseable versions get 17.
func DefaultJavaVersion(version string) int {
	v, err := semver.NewVersion(version)
	if err != nil {
		return 17
	}
	for _, jv := range javaVersions {
		c, err := semver.NewConstraint(jv.constraint)
		if err != nil {
			continue
		}
		if c.Check(v) {
			return jv.java
		}
	}
	return 8
}
