package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"

	"golang.org/x/text/encoding/charmap"

	"github.com/siohaza/terragen/pkg/noise"
	"github.com/siohaza/terragen/pkg/palette"
	"github.com/siohaza/terragen/pkg/terrain"
)

const (
	ProtocolVersion = 1
	MaxStatusLen    = 255
)

type PacketType uint8

const (
	PacketTypeGenerate  PacketType = 1
	PacketTypeCancel    PacketType = 2
	PacketTypeMapStart  PacketType = 18
	PacketTypeMapChunk  PacketType = 19
	PacketTypeModelInfo PacketType = 20
	PacketTypeStatus    PacketType = 21
)

type StatusCode uint8

const (
	StatusOK        StatusCode = 0
	StatusInvalid   StatusCode = 1
	StatusCancelled StatusCode = 2
	StatusInternal  StatusCode = 3
)

type GenerateFlags uint8

const (
	FlagWater GenerateFlags = 1 << iota
	FlagColor
	FlagBlend
)

var basisIDs = []noise.Basis{noise.BasisSimplex, noise.BasisPerlin, noise.BasisClassic}

func basisID(b noise.Basis) uint8 {
	for i, v := range basisIDs {
		if v == b {
			return uint8(i)
		}
	}
	return 0
}

const (
	generateHeaderSize = 37
	bandSize           = 8
	modelInfoSize      = 31
)

type Band struct {
	Threshold float32
	R, G, B   uint8
	A         uint8
}

type PacketGenerate struct {
	PacketID  uint8
	Seed      int64
	Basis     uint8
	Level     uint8
	Scale     float32
	Height    float32
	Sigma     float32
	Roughness float32
	Flatness  float32
	Flags     GenerateFlags
	Width     uint16
	Rows      uint16
	Bands     []Band
}

// NewGenerate builds a request for p on a width x rows grid.
func NewGenerate(p terrain.Params, width, rows int) *PacketGenerate {
	pkt := &PacketGenerate{
		PacketID:  uint8(PacketTypeGenerate),
		Seed:      p.Seed,
		Basis:     basisID(p.Basis),
		Level:     uint8(p.Level),
		Scale:     float32(p.Scale),
		Height:    float32(p.Height),
		Sigma:     float32(p.Sigma),
		Roughness: float32(p.Roughness),
		Flatness:  float32(p.Flatness),
		Width:     uint16(width),
		Rows:      uint16(rows),
	}
	if p.WaterEnabled {
		pkt.Flags |= FlagWater
	}
	if p.ColorEnabled {
		pkt.Flags |= FlagColor
	}
	if p.Blend {
		pkt.Flags |= FlagBlend
	}
	for _, b := range p.Bands {
		pkt.Bands = append(pkt.Bands, Band{
			Threshold: float32(b.Threshold),
			R:         b.Color.R,
			G:         b.Color.G,
			B:         b.Color.B,
			A:         b.Color.A,
		})
	}
	return pkt
}

func (p *PacketGenerate) Params() (terrain.Params, error) {
	if int(p.Basis) >= len(basisIDs) {
		return terrain.Params{}, fmt.Errorf("%w: unknown basis id %d", terrain.ErrInvalidParameter, p.Basis)
	}

	params := terrain.Params{
		Seed:         p.Seed,
		Basis:        basisIDs[p.Basis],
		Level:        int(p.Level),
		Scale:        float64(p.Scale),
		Height:       float64(p.Height),
		Sigma:        float64(p.Sigma),
		Roughness:    float64(p.Roughness),
		Flatness:     float64(p.Flatness),
		WaterEnabled: p.Flags&FlagWater != 0,
		ColorEnabled: p.Flags&FlagColor != 0,
		Blend:        p.Flags&FlagBlend != 0,
	}
	for _, b := range p.Bands {
		params.Bands = append(params.Bands, palette.Band{
			Threshold: float64(b.Threshold),
			Color:     color.RGBA{R: b.R, G: b.G, B: b.B, A: b.A},
		})
	}
	return params, nil
}

func (p *PacketGenerate) Write(w io.Writer) error {
	if len(p.Bands) > math.MaxUint8 {
		return fmt.Errorf("too many bands: %d", len(p.Bands))
	}

	buf := make([]byte, generateHeaderSize+len(p.Bands)*bandSize)
	buf[0] = p.PacketID
	binary.LittleEndian.PutUint64(buf[1:9], uint64(p.Seed))
	buf[9] = p.Basis
	buf[10] = p.Level
	binary.LittleEndian.PutUint32(buf[11:15], math.Float32bits(p.Scale))
	binary.LittleEndian.PutUint32(buf[15:19], math.Float32bits(p.Height))
	binary.LittleEndian.PutUint32(buf[19:23], math.Float32bits(p.Sigma))
	binary.LittleEndian.PutUint32(buf[23:27], math.Float32bits(p.Roughness))
	binary.LittleEndian.PutUint32(buf[27:31], math.Float32bits(p.Flatness))
	buf[31] = uint8(p.Flags)
	binary.LittleEndian.PutUint16(buf[32:34], p.Width)
	binary.LittleEndian.PutUint16(buf[34:36], p.Rows)
	buf[36] = uint8(len(p.Bands))

	offset := generateHeaderSize
	for _, b := range p.Bands {
		binary.LittleEndian.PutUint32(buf[offset:offset+4], math.Float32bits(b.Threshold))
		buf[offset+4] = b.R
		buf[offset+5] = b.G
		buf[offset+6] = b.B
		buf[offset+7] = b.A
		offset += bandSize
	}

	_, err := w.Write(buf)
	return err
}

func (p *PacketGenerate) Read(data []byte) error {
	if len(data) < generateHeaderSize {
		return fmt.Errorf("generate packet too small")
	}
	count := int(data[36])
	if len(data) < generateHeaderSize+count*bandSize {
		return fmt.Errorf("generate packet truncated: %d bands declared", count)
	}

	p.PacketID = data[0]
	p.Seed = int64(binary.LittleEndian.Uint64(data[1:9]))
	p.Basis = data[9]
	p.Level = data[10]
	p.Scale = math.Float32frombits(binary.LittleEndian.Uint32(data[11:15]))
	p.Height = math.Float32frombits(binary.LittleEndian.Uint32(data[15:19]))
	p.Sigma = math.Float32frombits(binary.LittleEndian.Uint32(data[19:23]))
	p.Roughness = math.Float32frombits(binary.LittleEndian.Uint32(data[23:27]))
	p.Flatness = math.Float32frombits(binary.LittleEndian.Uint32(data[27:31]))
	p.Flags = GenerateFlags(data[31])
	p.Width = binary.LittleEndian.Uint16(data[32:34])
	p.Rows = binary.LittleEndian.Uint16(data[34:36])

	p.Bands = nil
	offset := generateHeaderSize
	for i := 0; i < count; i++ {
		p.Bands = append(p.Bands, Band{
			Threshold: math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4])),
			R:         data[offset+4],
			G:         data[offset+5],
			B:         data[offset+6],
			A:         data[offset+7],
		})
		offset += bandSize
	}
	return nil
}

type PacketCancel struct {
	PacketID uint8
}

func (p *PacketCancel) Write(w io.Writer) error {
	_, err := w.Write([]byte{p.PacketID})
	return err
}

type PacketMapStart struct {
	PacketID uint8
	MapSize  uint32
}

func (p *PacketMapStart) Write(w io.Writer) error {
	var buf [5]byte
	buf[0] = p.PacketID
	binary.LittleEndian.PutUint32(buf[1:], p.MapSize)
	_, err := w.Write(buf[:])
	return err
}

func (p *PacketMapStart) Read(data []byte) error {
	if len(data) < 5 {
		return fmt.Errorf("map start packet too small")
	}
	p.PacketID = data[0]
	p.MapSize = binary.LittleEndian.Uint32(data[1:5])
	return nil
}

type PacketMapChunk struct {
	PacketID uint8
	Data     []byte
}

func (p *PacketMapChunk) Write(w io.Writer) error {
	if _, err := w.Write([]byte{p.PacketID}); err != nil {
		return err
	}
	_, err := w.Write(p.Data)
	return err
}

func (p *PacketMapChunk) Read(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("map chunk packet too small")
	}
	p.PacketID = data[0]
	p.Data = data[1:]
	return nil
}

// PacketModelInfo follows the last map chunk of a generated model.
type PacketModelInfo struct {
	PacketID   uint8
	Min        float32
	Max        float32
	SeaLevel   float32
	Seed       int64
	WaterCells uint32
	Width      uint16
	Rows       uint16
	Depth      uint16
}

func NewModelInfo(m *terrain.Model, depth int) *PacketModelInfo {
	return &PacketModelInfo{
		PacketID:   uint8(PacketTypeModelInfo),
		Min:        float32(m.Min()),
		Max:        float32(m.Max()),
		SeaLevel:   float32(m.SeaLevel()),
		Seed:       m.Seed(),
		WaterCells: uint32(m.WaterCells()),
		Width:      uint16(m.Width()),
		Rows:       uint16(m.Height()),
		Depth:      uint16(depth),
	}
}

func (p *PacketModelInfo) Write(w io.Writer) error {
	buf := make([]byte, modelInfoSize)
	buf[0] = p.PacketID
	binary.LittleEndian.PutUint32(buf[1:5], math.Float32bits(p.Min))
	binary.LittleEndian.PutUint32(buf[5:9], math.Float32bits(p.Max))
	binary.LittleEndian.PutUint32(buf[9:13], math.Float32bits(p.SeaLevel))
	binary.LittleEndian.PutUint64(buf[13:21], uint64(p.Seed))
	binary.LittleEndian.PutUint32(buf[21:25], p.WaterCells)
	binary.LittleEndian.PutUint16(buf[25:27], p.Width)
	binary.LittleEndian.PutUint16(buf[27:29], p.Rows)
	binary.LittleEndian.PutUint16(buf[29:31], p.Depth)
	_, err := w.Write(buf)
	return err
}

func (p *PacketModelInfo) Read(data []byte) error {
	if len(data) < modelInfoSize {
		return fmt.Errorf("model info packet too small")
	}
	p.PacketID = data[0]
	p.Min = math.Float32frombits(binary.LittleEndian.Uint32(data[1:5]))
	p.Max = math.Float32frombits(binary.LittleEndian.Uint32(data[5:9]))
	p.SeaLevel = math.Float32frombits(binary.LittleEndian.Uint32(data[9:13]))
	p.Seed = int64(binary.LittleEndian.Uint64(data[13:21]))
	p.WaterCells = binary.LittleEndian.Uint32(data[21:25])
	p.Width = binary.LittleEndian.Uint16(data[25:27])
	p.Rows = binary.LittleEndian.Uint16(data[27:29])
	p.Depth = binary.LittleEndian.Uint16(data[29:31])
	return nil
}

type PacketStatus struct {
	PacketID uint8
	Code     StatusCode
	Message  []byte
}

// NewStatus encodes message as CP437, truncated to MaxStatusLen bytes.
func NewStatus(code StatusCode, message string) *PacketStatus {
	encoded, err := StringToCP437(message)
	if err != nil {
		encoded = []byte("?")
	}
	if len(encoded) > MaxStatusLen {
		encoded = encoded[:MaxStatusLen]
	}
	return &PacketStatus{
		PacketID: uint8(PacketTypeStatus),
		Code:     code,
		Message:  encoded,
	}
}

func (p *PacketStatus) Write(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteByte(p.PacketID)
	buf.WriteByte(uint8(p.Code))
	buf.Write(p.Message)
	_, err := w.Write(buf.Bytes())
	return err
}

func (p *PacketStatus) Read(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("status packet too small")
	}
	p.PacketID = data[0]
	p.Code = StatusCode(data[1])
	p.Message = data[2:]
	return nil
}

func (p *PacketStatus) Text() (string, error) {
	return CP437ToString(p.Message)
}

// Encoders carry transform state, so each call gets its own.
func StringToCP437(s string) ([]byte, error) {
	return charmap.CodePage437.NewEncoder().Bytes([]byte(s))
}

func CP437ToString(b []byte) (string, error) {
	trimmed := bytes.TrimRight(b, "\x00")
	decoded, err := charmap.CodePage437.NewDecoder().Bytes(trimmed)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func ReadPacketType(data []byte) (PacketType, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("packet too small")
	}
	return PacketType(data[0]), nil
}
