package compose

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// MaxBatch is the most surfaces a single multi-texture draw can combine.
const MaxBatch = 4

// ShaderKey packs everything that selects a shader program:
//
//	bits 0-2   surface count
//	bit  3     framebuffer blending
//	bit  4+3i  surface i has transparency (effective opacity < 1)
//	bit  5+3i  surface i has an alpha channel
//	bit  6+3i  surface i uses a chroma key
type ShaderKey uint32

const (
	keyCountMask ShaderKey = 0x7
	keyBlend     ShaderKey = 1 << 3
)

func surfaceBit(i, flag int) ShaderKey { return 1 << (4 + 3*i + flag) }

// SurfaceFlags are the per-surface inputs of a ShaderKey.
type SurfaceFlags struct {
	Transparent bool
	Alpha       bool
	ChromaKey   bool
}

// NeedsBlend reports whether the surface must be blended with what is
// below it.
func (f SurfaceFlags) NeedsBlend() bool { return f.Transparent || f.Alpha || f.ChromaKey }

// NewShaderKey packs a key. Flags beyond MaxBatch are ignored.
func NewShaderKey(blend bool, flags ...SurfaceFlags) ShaderKey {
	n := min(len(flags), MaxBatch)
	k := ShaderKey(n)
	if blend {
		k |= keyBlend
	}
	for i := 0; i < n; i++ {
		f := flags[i]
		if f.Transparent {
			k |= surfaceBit(i, 0)
		}
		if f.Alpha {
			k |= surfaceBit(i, 1)
		}
		if f.ChromaKey {
			k |= surfaceBit(i, 2)
		}
	}
	return k
}

func (k ShaderKey) Count() int  { return int(k & keyCountMask) }
func (k ShaderKey) Blend() bool { return k&keyBlend != 0 }

// Surface unpacks the flags of surface i.
func (k ShaderKey) Surface(i int) SurfaceFlags {
	if i < 0 || i >= k.Count() {
		return SurfaceFlags{}
	}
	return SurfaceFlags{
		Transparent: k&surfaceBit(i, 0) != 0,
		Alpha:       k&surfaceBit(i, 1) != 0,
		ChromaKey:   k&surfaceBit(i, 2) != 0,
	}
}

func (k ShaderKey) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "n=%d", k.Count())
	if k.Blend() {
		b.WriteString(" blend")
	}
	for i := 0; i < k.Count(); i++ {
		f := k.Surface(i)
		b.WriteString(" [")
		if f.Transparent {
			b.WriteString("t")
		}
		if f.Alpha {
			b.WriteString("a")
		}
		if f.ChromaKey {
			b.WriteString("c")
		}
		b.WriteString("]")
	}
	return b.String()
}

// Shader is a program the backend can draw with.
type Shader struct {
	Key ShaderKey
	// Handle belongs to the backend that created the shader.
	Handle any
}

// ShaderCompiler creates backend programs for keys.
type ShaderCompiler interface {
	CompileShader(key ShaderKey) (*Shader, error)
}

var (
	defaultClearKey = NewShaderKey(false)
	default1Key     = NewShaderKey(true, SurfaceFlags{Transparent: true, Alpha: true})
	default2Key     = NewShaderKey(true, SurfaceFlags{Transparent: true, Alpha: true}, SurfaceFlags{Transparent: true, Alpha: true})
)

// ShaderCache holds every program compiled at startup, keyed by ShaderKey.
// Lookups never compile.
type ShaderCache struct {
	programs map[ShaderKey]*Shader
	logger   *slog.Logger
	// fallbacks counts lookups that missed, per requested key.
	fallbacks map[ShaderKey]int
}

// PrecomputedKeys lists the keys compiled for a batch limit: the clear
// program, every single-surface combination, and multi-surface combinations
// without chroma keys.
func PrecomputedKeys(batchLimit int) []ShaderKey {
	batchLimit = min(max(batchLimit, 1), MaxBatch)
	keys := []ShaderKey{defaultClearKey}
	for _, blend := range []bool{false, true} {
		for bits := 0; bits < 8; bits++ {
			keys = append(keys, NewShaderKey(blend, flagsFromBits(bits, true)))
		}
	}
	for n := 2; n <= batchLimit; n++ {
		for combo := 0; combo < 1<<(2*n); combo++ {
			flags := make([]SurfaceFlags, n)
			for i := range flags {
				flags[i] = flagsFromBits(combo>>(2*i), false)
			}
			for _, blend := range []bool{false, true} {
				keys = append(keys, NewShaderKey(blend, flags...))
			}
		}
	}
	return keys
}

func flagsFromBits(bits int, withChroma bool) SurfaceFlags {
	return SurfaceFlags{
		Transparent: bits&1 != 0,
		Alpha:       bits&2 != 0,
		ChromaKey:   withChroma && bits&4 != 0,
	}
}

// NewShaderCache compiles the precomputed keys. Compile failures are logged
// and leave the key to the fallback path. It fails only when not even the
// default programs could be built.
func NewShaderCache(c ShaderCompiler, batchLimit int, logger *slog.Logger) (*ShaderCache, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sc := &ShaderCache{
		programs:  make(map[ShaderKey]*Shader),
		logger:    logger,
		fallbacks: make(map[ShaderKey]int),
	}
	var failed int
	for _, key := range PrecomputedKeys(batchLimit) {
		p, err := c.CompileShader(key)
		if err != nil {
			failed++
			logger.Warn("shader compile failed", "key", key.String(), "error", err)
			continue
		}
		sc.programs[key] = p
	}
	if sc.programs[defaultClearKey] == nil || sc.programs[default1Key] == nil {
		return nil, fmt.Errorf("compile default shaders: %d of %d programs failed", failed, len(PrecomputedKeys(batchLimit)))
	}
	return sc, nil
}

// Len returns the number of compiled programs.
func (c *ShaderCache) Len() int { return len(c.programs) }

// Lookup returns the program for key. A miss falls back to the default
// program for the key's surface count, which is logged. exact reports
// whether the requested program was found.
func (c *ShaderCache) Lookup(key ShaderKey) (p *Shader, exact bool) {
	if p := c.programs[key]; p != nil {
		return p, true
	}
	fallback := default1Key
	switch n := key.Count(); {
	case n == 0:
		fallback = defaultClearKey
	case n >= 2 && c.programs[default2Key] != nil:
		fallback = default2Key
	}
	if c.fallbacks[key] == 0 {
		c.logger.Warn("no shader for key, using default", "key", key.String(), "fallback", fallback.String())
	}
	c.fallbacks[key]++
	return c.programs[fallback], false
}

// Fallbacks returns how many lookups missed since the cache was built.
func (c *ShaderCache) Fallbacks() int {
	total := 0
	for _, n := range c.fallbacks {
		total += n
	}
	return total
}
