package regs

// DisplayTransferConfig describes a display transfer (framebuffer to
// framebuffer copy with optional format conversion and scaling).
type DisplayTransferConfig struct {
	InputAddress  uint32
	OutputAddress uint32
	InputWidth    uint32
	InputHeight   uint32
	OutputWidth   uint32
	OutputHeight  uint32
	InputFormat   ColorFormat
	OutputFormat  ColorFormat
	FlipVertical  bool
	InputLinear   bool
	IsTextureCopy bool
	ScalingMode   uint32
}

// MemoryFillConfig describes a memory fill operation.
type MemoryFillConfig struct {
	StartAddress uint32
	EndAddress   uint32
	Value        uint32
	Fill24Bit    bool
	Fill32Bit    bool
}

// FramebufferConfig describes a screen framebuffer presented by the LCD.
type FramebufferConfig struct {
	Address     uint32
	Width       uint32
	Height      uint32
	Stride      uint32
	Format      ColorFormat
	PixelStride uint32
}
