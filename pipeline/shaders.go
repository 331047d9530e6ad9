package pipeline

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/regs"
	"github.com/gogpu/pica/vertex"
)

//go:embed shaders/trivial_vs.wgsl
var trivialVertexSource string

//go:embed shaders/passthrough_fs.wgsl
var passthroughFragmentSource string

// Stage is a programmable pipeline stage.
type Stage uint8

const (
	StageVertex Stage = iota
	StageGeometry
	StageFragment

	numStages
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageGeometry:
		return "geometry"
	case StageFragment:
		return "fragment"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// ErrNoProgram is returned by a ShaderSource that cannot provide a program
// for a configuration.
var ErrNoProgram = errors.New("pipeline: no program for shader configuration")

// UserConfig holds user settings that change generated programs.
type UserConfig struct {
	// AccurateMul selects IEEE-correct multiplication in vertex programs.
	AccurateMul bool
	// UseCustomNormal reads normal maps instead of quaternions.
	UseCustomNormal bool
}

// ShaderConfig describes the program wanted for one stage. Regs, Setup and
// Layout are nil when a program is requested by key alone, as when the
// disk cache is loaded; sources that cannot resolve bare keys return
// ErrNoProgram.
type ShaderConfig struct {
	Stage  Stage
	Key    uint64
	Regs   *regs.Regs
	Setup  *regs.VSSetup
	Layout *vertex.Layout
	User   UserConfig
}

// Program is a shader ready for module creation.
type Program struct {
	Source     hal.ShaderSource
	EntryPoint string
}

// ShaderSource produces the programs of each stage. Generating programs
// from PICA state is the job of the shader compiler behind this interface.
type ShaderSource interface {
	Program(cfg *ShaderConfig) (Program, error)
}

// Keys of the built-in programs.
var (
	TrivialVertexKey       = hashShader(StageVertex)
	TrivialGeometryKey     = uint64(0)
	PassthroughFragmentKey = hashShader(StageFragment)
)

// BuiltinSource provides the trivial vertex program and a passthrough
// fragment program. It cannot run guest vertex programs.
type BuiltinSource struct {
	once     sync.Once
	vertex   []uint32
	fragment []uint32
	err      error
}

func (b *BuiltinSource) compile() {
	b.vertex, b.err = compileWGSL(trivialVertexSource)
	if b.err != nil {
		return
	}
	b.fragment, b.err = compileWGSL(passthroughFragmentSource)
}

// Program implements ShaderSource.
func (b *BuiltinSource) Program(cfg *ShaderConfig) (Program, error) {
	switch {
	case cfg.Stage == StageVertex && cfg.Key == TrivialVertexKey:
		b.once.Do(b.compile)
		if b.err != nil {
			return Program{}, b.err
		}
		return Program{Source: hal.ShaderSource{SPIRV: b.vertex}, EntryPoint: "vs_main"}, nil
	case cfg.Stage == StageFragment && cfg.Key == PassthroughFragmentKey:
		b.once.Do(b.compile)
		if b.err != nil {
			return Program{}, b.err
		}
		return Program{Source: hal.ShaderSource{SPIRV: b.fragment}, EntryPoint: "fs_main"}, nil
	}
	return Program{}, fmt.Errorf("%w: %v key %016x", ErrNoProgram, cfg.Stage, cfg.Key)
}

// compileWGSL compiles WGSL to little-endian SPIR-V words.
func compileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("pipeline: compile builtin shader: %w", err)
	}
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

type moduleKey struct {
	stage Stage
	key   uint64
}

type module struct {
	handle hal.ShaderModule
	entry  string
}

// moduleFor returns the module of cfg, creating it through src on first
// use.
func (c *Cache) moduleFor(src ShaderSource, cfg *ShaderConfig) (module, error) {
	return c.modules.GetOrCreate(moduleKey{cfg.Stage, cfg.Key}, func() (module, error) {
		prog, err := src.Program(cfg)
		if err != nil {
			return module{}, err
		}
		handle, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  fmt.Sprintf("pica_%v_%016x", cfg.Stage, cfg.Key),
			Source: prog.Source,
		})
		if err != nil {
			return module{}, fmt.Errorf("pipeline: create %v module: %w", cfg.Stage, err)
		}
		slogger().Debug("shader module created", "stage", cfg.Stage, "key", cfg.Key)
		return module{handle: handle, entry: prog.EntryPoint}, nil
	})
}

// sourceFor returns the source that owns key. Builtin keys never reach the
// user supplied source.
func (c *Cache) sourceFor(stage Stage, key uint64) ShaderSource {
	if stage == StageVertex && key == TrivialVertexKey || stage == StageFragment && key == PassthroughFragmentKey {
		return c.builtin
	}
	return c.source
}

func (c *Cache) use(cfg *ShaderConfig) bool {
	m, err := c.moduleFor(c.sourceFor(cfg.Stage, cfg.Key), cfg)
	if err != nil {
		slogger().Debug("shader program unavailable", "stage", cfg.Stage, "key", cfg.Key, "err", err)
		return false
	}
	c.keys[cfg.Stage] = cfg.Key
	c.current[cfg.Stage] = m
	return true
}

// UseProgrammableVertexShader selects the program generated from the guest
// vertex shader. It returns false when no program is available, in which
// case the draw must fall back to software vertex processing.
func (c *Cache) UseProgrammableVertexShader(r *regs.Regs, setup *regs.VSSetup, layout *vertex.Layout) bool {
	words := make([]uint32, 0, len(setup.ProgramCode)+len(setup.SwizzleData)+8+int(layout.AttributeCount))
	words = append(words, setup.ProgramCode...)
	words = append(words, setup.SwizzleData...)
	words = append(words,
		r.VS().EntryPoint(),
		r[regs.RegVSInputMapLow],
		r[regs.RegVSInputMapHigh],
		r[regs.RegVSOutputMask],
		r[regs.RegVSOutputTotal],
		boolWord(c.user.AccurateMul),
	)
	for i := 0; i < int(layout.AttributeCount); i++ {
		a := layout.Attributes[i]
		words = append(words, uint32(a.Location)<<8|uint32(a.Type))
	}
	return c.use(&ShaderConfig{
		Stage:  StageVertex,
		Key:    hashShader(StageVertex, words...),
		Regs:   r,
		Setup:  setup,
		Layout: layout,
		User:   c.user,
	})
}

// UseTrivialVertexShader selects the passthrough program used for
// software processed vertices.
func (c *Cache) UseTrivialVertexShader() {
	if !c.use(&ShaderConfig{Stage: StageVertex, Key: TrivialVertexKey, User: c.user}) {
		slogger().Error("trivial vertex shader unavailable")
	}
}

// UseFixedGeometryShader selects the quaternion fix-up stage. The host has
// no geometry stage, so the trivial stage is kept and quaternions are
// interpolated per vertex. It reports whether the draw can proceed.
func (c *Cache) UseFixedGeometryShader(r *regs.Regs) bool {
	slogger().Debug("quaternion fix-up unavailable", "outputs", r[regs.RegVSOutputTotal])
	c.UseTrivialGeometryShader()
	return true
}

// UseTrivialGeometryShader disables the geometry stage.
func (c *Cache) UseTrivialGeometryShader() {
	c.keys[StageGeometry] = TrivialGeometryKey
	c.current[StageGeometry] = module{}
}

// UseFragmentShader selects the program for the current fragment state.
// When the source has none the builtin passthrough program is used.
func (c *Cache) UseFragmentShader(r *regs.Regs, user UserConfig) {
	c.user = user
	words := make([]uint32, 0, 0x180)
	words = append(words, r.Range(regs.TexturingBase, regs.FramebufferBase)...)
	words = append(words, r.Range(regs.FramebufferBase, regs.FramebufferBase+0x08)...)
	words = append(words, r.Range(regs.LightingBase, regs.LightingBase+0x90)...)
	words = append(words,
		r[regs.RegClipEnable],
		r[regs.RegDepthmapEnable],
		r[regs.RegDepthFormat],
		boolWord(user.UseCustomNormal),
		boolWord(c.caps.NeedsLogicOpEmulation()),
		boolWord(c.caps.FragmentBarycentric),
	)
	cfg := &ShaderConfig{
		Stage: StageFragment,
		Key:   hashShader(StageFragment, words...),
		Regs:  r,
		User:  user,
	}
	if c.use(cfg) {
		return
	}
	cfg.Key = PassthroughFragmentKey
	cfg.Regs = nil
	if !c.use(cfg) {
		slogger().Error("passthrough fragment shader unavailable")
	}
}

// ShaderKeys returns the keys of the selected programs.
func (c *Cache) ShaderKeys() ShaderKeys { return c.keys }

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
