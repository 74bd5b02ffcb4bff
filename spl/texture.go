package spl

// TextureFormat is the pixel format of a texture's raw texel data.
// Expansion to RGBA is the renderer's responsibility; the decoder only
// carries the discriminant and the raw spans.
type TextureFormat uint8

const (
	TexFormatNone TextureFormat = iota
	TexFormatA3I5
	TexFormatPalette4
	TexFormatPalette16
	TexFormatPalette256
	TexFormatComp4x4
	TexFormatA5I3
	TexFormatDirect

	texFormatCount
)

// PaletteSize returns the number of palette colors the format uses, or 0 for
// direct-color formats.
func (f TextureFormat) PaletteSize() int {
	switch f {
	case TexFormatPalette4:
		return 4
	case TexFormatPalette16:
		return 16
	case TexFormatPalette256:
		return 256
	case TexFormatA3I5:
		return 32
	case TexFormatA5I3:
		return 8
	default:
		return 0
	}
}

// TextureRepeat selects texture coordinate wrapping per axis.
type TextureRepeat uint8

const (
	TexRepeatNone TextureRepeat = iota
	TexRepeatS
	TexRepeatT
	TexRepeatST
)

// TextureFlip selects texture coordinate mirroring per axis.
type TextureFlip uint8

const (
	TexFlipNone TextureFlip = iota
	TexFlipS
	TexFlipT
	TexFlipST
)

// TextureParam is the unpacked form of the texture's packed parameter word.
type TextureParam struct {
	Format TextureFormat
	// S and T are size classes; the pixel dimension is 8 << class.
	S                    uint8
	T                    uint8
	Repeat               TextureRepeat
	Flip                 TextureFlip
	PalColor0Transparent bool
	UseSharedTexture     bool
	SharedTexID          uint8
}

// Texture is a decoded texture record. The texel and palette spans alias the
// archive's backing storage and are never expanded here.
type Texture struct {
	ID     uint32
	Param  TextureParam
	Width  uint16
	Height uint16

	TextureData []byte
	PaletteData []byte
}
