package archive

import (
	"bytes"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entries = []struct {
	name string
	data string
}{
	{"assets/mymod/lang/en_us.json", `{"item.mymod.ruby":"Ruby"}`},
	{"data/mymod/recipe/ruby.json", `{"type":"minecraft:crafting_shaped"}`},
	{"pack.mcmeta", `{"pack":{"pack_format":34}}`},
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseFormat("rar")
	assert.Error(t, err)

	assert.Equal(t, "", FormatDir.Ext())
	assert.Equal(t, ".zip", FormatZip.Ext())
	assert.Equal(t, ".tar.zst", FormatTarZst.Ext())
}

func TestArchivesRoundTripEntries(t *testing.T) {
	for _, format := range []Format{FormatZip, FormatTarZst} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			w := newWriter(t, format, &buf)
			for _, e := range entries {
				require.NoError(t, w.Add(e.name, []byte(e.data)))
			}
			require.NoError(t, w.Close())

			got, err := ReadAll(format, buf.Bytes())
			require.NoError(t, err)
			require.Len(t, got, len(entries))
			for _, e := range entries {
				assert.Equal(t, e.data, string(got[e.name]), e.name)
			}
		})
	}
}

func TestArchivesAreReproducible(t *testing.T) {
	for _, format := range []Format{FormatZip, FormatTarZst} {
		t.Run(string(format), func(t *testing.T) {
			build := func() []byte {
				var buf bytes.Buffer
				w := newWriter(t, format, &buf)
				for _, e := range entries {
					require.NoError(t, w.Add(e.name, []byte(e.data)))
				}
				require.NoError(t, w.Close())
				return buf.Bytes()
			}
			assert.Equal(t, build(), build())
		})
	}
}

func TestDirWriter(t *testing.T) {
	fsys := memfs.New()
	w := NewDir(fsys, "out")
	for _, e := range entries {
		require.NoError(t, w.Add(e.name, []byte(e.data)))
	}
	require.NoError(t, w.Close())

	for _, e := range entries {
		data, err := util.ReadFile(fsys, fsysJoin(fsys, "out", e.name))
		require.NoError(t, err)
		assert.Equal(t, e.data, string(data))
	}
}

func TestWritersRejectEscapingNames(t *testing.T) {
	var buf bytes.Buffer
	for _, w := range []Writer{NewDir(memfs.New(), "out"), NewZip(&buf)} {
		assert.Error(t, w.Add("../evil", nil))
		assert.Error(t, w.Add("/abs", nil))
		assert.Error(t, w.Add("a/./b", nil))
	}
}

func TestReadAllRejectsDir(t *testing.T) {
	_, err := ReadAll(FormatDir, nil)
	assert.Error(t, err)
}

func newWriter(t *testing.T, format Format, buf *bytes.Buffer) Writer {
	t.Helper()
	switch format {
	case FormatZip:
		return NewZip(buf)
	case FormatTarZst:
		w, err := NewTarZst(buf, 2)
		require.NoError(t, err)
		return w
	}
	t.Fatalf("unsupported format %s", format)
	return nil
}
