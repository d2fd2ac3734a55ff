package packstack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-billy/v5"

	"github.com/aweris/packstack/internal/archive"
)

// ExportFormat is the output kind of Export.
type ExportFormat = archive.Format

const (
	ExportDir    = archive.FormatDir
	ExportZip    = archive.FormatZip
	ExportTarZst = archive.FormatTarZst
)

// PackMetaFile is the pack metadata file at the root of an exported pack.
const PackMetaFile = "pack.mcmeta"

// ExportOptions configures Export.
type ExportOptions struct {
	Format ExportFormat
	// Kinds limits the export to the given resource roots ("assets", "data").
	// Empty exports everything.
	Kinds []string
	// Description is written into a generated pack.mcmeta.
	Description string
	// PackFormat overrides the pack format derived from the version.
	PackFormat int
	// Level is the compression level for tar.zst (1-3).
	Level int
}

// ExportResult summarises an export.
type ExportResult struct {
	Path       string
	Resources  int
	PackFormat int
}

// Export materialises set as a directory or archive named name inside target.
// Resources are written in sorted key order, followed by a generated
// pack.mcmeta.
func Export(ctx context.Context, set *EffectiveSet, target billy.Filesystem, name string, opts ExportOptions) (ExportResult, error) {
	format := opts.Format
	if format == "" {
		format = ExportDir
	}
	res := ExportResult{Path: target.Join(target.Root(), name)}

	w, closeFile, err := openWriter(target, name, format, opts.Level)
	if err != nil {
		return res, fmt.Errorf("export %s: %w", name, err)
	}

	err = writeSet(ctx, set, w, opts, &res)
	if cerr := w.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := closeFile(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return res, fmt.Errorf("export %s: %w", name, err)
	}
	return res, nil
}

func openWriter(target billy.Filesystem, name string, format ExportFormat, level int) (archive.Writer, func() error, error) {
	if format == ExportDir {
		if err := target.MkdirAll(name, 0o755); err != nil {
			return nil, nil, err
		}
		return archive.NewDir(target, name), func() error { return nil }, nil
	}

	f, err := target.Create(name)
	if err != nil {
		return nil, nil, err
	}
	switch format {
	case ExportZip:
		return archive.NewZip(f), f.Close, nil
	case ExportTarZst:
		w, err := archive.NewTarZst(f, level)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return w, f.Close, nil
	default:
		f.Close()
		return nil, nil, fmt.Errorf("unknown export format %q", format)
	}
}

func writeSet(ctx context.Context, set *EffectiveSet, w archive.Writer, opts ExportOptions, res *ExportResult) error {
	for key, r := range set.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(opts.Kinds) > 0 && !containsKind(opts.Kinds, key.Kind()) {
			continue
		}
		if err := w.Add(string(key), r.Content); err != nil {
			return err
		}
		res.Resources++
	}

	res.PackFormat = opts.PackFormat
	if res.PackFormat == 0 {
		if len(opts.Kinds) == 1 && opts.Kinds[0] == "data" {
			res.PackFormat = DataPackFormat(set.Version)
		} else {
			res.PackFormat = ResourcePackFormat(set.Version)
		}
	}
	desc := opts.Description
	if desc == "" {
		desc = fmt.Sprintf("Resources for %s (%s)", set.Version, set.Loader)
	}
	meta, err := PackMeta(res.PackFormat, desc)
	if err != nil {
		return err
	}
	return w.Add(PackMetaFile, meta)
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if strings.EqualFold(k, kind) {
			return true
		}
	}
	return false
}

type packMeta struct {
	Pack struct {
		PackFormat  int    `json:"pack_format"`
		Description string `json:"description"`
	} `json:"pack"`
}

// PackMeta renders a pack.mcmeta document.
func PackMeta(format int, description string) ([]byte, error) {
	var m packMeta
	m.Pack.PackFormat = format
	m.Pack.Description = description
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

type formatRange struct {
	constraint string
	format     int
}

// Newest first; the first matching constraint wins.
var (
	resourcePackFormats = []formatRange{
		{">= 1.21.4", 46},
		{">= 1.21.2", 42},
		{">= 1.21", 34},
		{">= 1.20.5", 32},
		{">= 1.20.3", 22},
		{">= 1.20.2", 18},
		{">= 1.20", 15},
		{">= 1.19.4", 13},
		{">= 1.19.3", 12},
		{">= 1.19", 9},
		{">= 1.18", 8},
		{">= 1.17", 7},
		{">= 1.16.2", 6},
	}
	dataPackFormats = []formatRange{
		{">= 1.21.4", 61},
		{">= 1.21.2", 57},
		{">= 1.21", 48},
		{">= 1.20.5", 41},
		{">= 1.20.3", 26},
		{">= 1.20.2", 18},
		{">= 1.20", 15},
		{">= 1.19.4", 12},
		{">= 1.19", 10},
		{">= 1.18.2", 9},
		{">= 1.18", 8},
		{">= 1.17", 7},
		{">= 1.16.2", 6},
	}
)

// ResourcePackFormat returns the resource pack format of a game version.
// Versions newer than the table get the newest known format.
func ResourcePackFormat(version string) int {
	return lookupFormat(resourcePackFormats, version)
}

// DataPackFormat returns the data pack format of a game version.
func DataPackFormat(version string) int {
	return lookupFormat(dataPackFormats, version)
}

func lookupFormat(table []formatRange, version string) int {
	v, err := semver.NewVersion(version)
	if err != nil {
		return table[0].format
	}
	for _, r := range table {
		c, err := semver.NewConstraint(r.constraint)
		if err != nil {
			continue
		}
		if c.Check(v) {
			return r.format
		}
	}
	return 5
}

// Export resolves (version, loader) and exports the effective set.
func (p *Project) Export(ctx context.Context, version, loader string, target billy.Filesystem, name string, opts ExportOptions) (ExportResult, error) {
	set, err := p.Resolve(ctx, version, loader)
	if err != nil {
		return ExportResult{}, err
	}
	return Export(ctx, set, target, name, opts)
}
