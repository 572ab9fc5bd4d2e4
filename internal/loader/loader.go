// Package loader implements the external ELF-loading collaborator spec
// §6 describes at interface level: read PT_LOAD segments and the entry
// point out of a firmware ELF, or treat the file as a bare binary loaded
// at the flash base.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
	"os"
)

// Segment is one PT_LOAD payload: physical load address (LMA) plus
// bytes.
type Segment struct {
	Addr  uint32
	Bytes []byte
}

// Image is the program image Machine.LoadFirmware consumes: an entry
// point plus the segments to copy into flash/RAM.
type Image struct {
	EntryPoint uint32
	Segments   []Segment
}

// LoadELF reads path as an ELF file and returns its PT_LOAD segments
// (physical address) and entry point.
func LoadELF(path string) (Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	img := Image{EntryPoint: uint32(f.Entry)}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := io.ReadFull(prog.Open(), data); err != nil {
			return Image{}, fmt.Errorf("loader: read segment at %#x: %w", prog.Paddr, err)
		}
		img.Segments = append(img.Segments, Segment{Addr: uint32(prog.Paddr), Bytes: data})
	}
	return img, nil
}

// LoadBareBinary treats path as a flat binary with no header, loaded
// whole at loadAddr with entry point loadAddr — the fallback for
// firmware images that are not ELF (spec §4.5's "bare-binary fallback"
// is named for exactly this case).
func LoadBareBinary(path string, loadAddr uint32) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return Image{
		EntryPoint: loadAddr,
		Segments:   []Segment{{Addr: loadAddr, Bytes: data}},
	}, nil
}

// Load picks LoadELF or LoadBareBinary by sniffing the ELF magic.
func Load(path string, bareLoadAddr uint32) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("loader: open %s: %w", path, err)
	}
	var magic [4]byte
	_, readErr := io.ReadFull(f, magic[:])
	f.Close()
	if readErr == nil && magic == [4]byte{0x7F, 'E', 'L', 'F'} {
		return LoadELF(path)
	}
	return LoadBareBinary(path, bareLoadAddr)
}
