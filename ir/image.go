package ir

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// imageMagic tags the binary image format so ReadImage can reject a file
// that isn't one, the way the teacher's vm.Image trusts file size alone
// only because its image IS the raw cell tape; a compiled ir.Program is
// structured (functions, instructions, names), so this format needs its
// own framing rather than a literal flat-cell dump.
const imageMagic = uint32(0x4f414b31) // "OAK1"

// WriteImage serializes prog as a little-endian binary image, grounded on
// the teacher's vm/image.go Save (binary.Write(f, binary.LittleEndian, ...)):
// every fixed-size field goes through encoding/binary directly, and every
// variable-length one (names, foreign call targets) is framed as a
// uint32 byte count followed by its raw bytes. Useful for caching a
// compiled Program across runs without re-lowering, or for golden-file
// tests that want to assert on bytes rather than re-walking the struct.
func WriteImage(w io.Writer, prog *Program) error {
	bw := &binWriter{w: w}
	bw.u32(imageMagic)
	bw.u32(uint32(prog.StaticCells))
	bw.u32(uint32(prog.MemoryCells))
	bw.str(prog.EntryPoint)
	bw.u32(uint32(len(prog.Functions)))
	for _, fn := range prog.Functions {
		bw.u32(uint32(fn.ID))
		bw.str(fn.Name)
		bw.u32(uint32(fn.ArgSize))
		bw.u32(uint32(fn.ReturnSize))
		bw.u32(uint32(len(fn.Body)))
		for _, ins := range fn.Body {
			bw.u32(uint32(ins.Op))
			bw.f64(ins.Num)
			bw.u32(uint32(ins.A))
			bw.u32(uint32(ins.B))
			bw.str(ins.Str)
		}
	}
	return bw.err
}

// ReadImage deserializes a Program written by WriteImage.
func ReadImage(r io.Reader) (*Program, error) {
	br := &binReader{r: r}
	if magic := br.u32(); br.err == nil && magic != imageMagic {
		return nil, errors.Errorf("not an oak image (bad magic %#x)", magic)
	}
	prog := &Program{
		StaticCells: int(br.u32()),
		MemoryCells: int(br.u32()),
		EntryPoint:  br.str(),
	}
	nfn := int(br.u32())
	prog.Functions = make([]*Function, 0, nfn)
	for i := 0; i < nfn && br.err == nil; i++ {
		fn := &Function{
			ID:         int(br.u32()),
			Name:       br.str(),
			ArgSize:    int(br.u32()),
			ReturnSize: int(br.u32()),
		}
		nins := int(br.u32())
		fn.Body = make([]Instruction, 0, nins)
		for j := 0; j < nins && br.err == nil; j++ {
			fn.Body = append(fn.Body, Instruction{
				Op:  Op(br.u32()),
				Num: br.f64(),
				A:   int(br.u32()),
				B:   int(br.u32()),
				Str: br.str(),
			})
		}
		prog.Functions = append(prog.Functions, fn)
	}
	if br.err != nil {
		return nil, errors.Wrap(br.err, "reading oak image")
	}
	return prog, nil
}

// binWriter sticks the first encoding/binary error and ignores subsequent
// calls, so WriteImage's body reads as a flat list of fields rather than an
// if-err-return chain per field.
type binWriter struct {
	w   io.Writer
	err error
}

func (bw *binWriter) u32(v uint32) {
	if bw.err != nil {
		return
	}
	bw.err = binary.Write(bw.w, binary.LittleEndian, v)
}

// f64 writes v's raw bits through the same binary.Write path as u32, since
// Cell is a float64 and spec.md §3 defines no integer cell representation
// to fall back on.
func (bw *binWriter) f64(v float64) {
	if bw.err != nil {
		return
	}
	bw.err = binary.Write(bw.w, binary.LittleEndian, math.Float64bits(v))
}

type binReader struct {
	r   io.Reader
	err error
}

func (br *binReader) u32() uint32 {
	if br.err != nil {
		return 0
	}
	var v uint32
	br.err = binary.Read(br.r, binary.LittleEndian, &v)
	return v
}

func (br *binReader) f64() float64 {
	if br.err != nil {
		return 0
	}
	var bits uint64
	br.err = binary.Read(br.r, binary.LittleEndian, &bits)
	return math.Float64frombits(bits)
}

func (bw *binWriter) str(s string) {
	if bw.err != nil {
		return
	}
	bw.u32(uint32(len(s)))
	if bw.err != nil {
		return
	}
	_, bw.err = io.WriteString(bw.w, s)
}

func (br *binReader) str() string {
	if br.err != nil {
		return ""
	}
	n := br.u32()
	if br.err != nil {
		return ""
	}
	buf := make([]byte, n)
	_, br.err = io.ReadFull(br.r, buf)
	return string(buf)
}
