package pdf

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

var jfifIdent = []byte("JFIF\x00")

// withJFIFDensity tags a baseline JPEG stream with a dots-per-inch density.
// An existing JFIF APP0 segment is patched in place, otherwise one is
// inserted right after SOI.
func withJFIFDensity(jpg []byte, dpi int) ([]byte, error) {
	if len(jpg) < 4 || jpg[0] != 0xff || jpg[1] != 0xd8 {
		return nil, fmt.Errorf("not a jpeg stream")
	}
	density := uint16(min(max(dpi, 1), 0xffff))

	if len(jpg) >= 20 && jpg[2] == 0xff && jpg[3] == 0xe0 && bytes.Equal(jpg[6:11], jfifIdent) {
		out := bytes.Clone(jpg)
		out[13] = 1 // units: dots per inch
		binary.BigEndian.PutUint16(out[14:16], density)
		binary.BigEndian.PutUint16(out[16:18], density)
		return out, nil
	}

	app0 := make([]byte, 0, 18)
	app0 = append(app0, 0xff, 0xe0, 0x00, 0x10)
	app0 = append(app0, jfifIdent...)
	app0 = append(app0, 0x01, 0x01, 0x01) // version 1.1, units dpi
	app0 = binary.BigEndian.AppendUint16(app0, density)
	app0 = binary.BigEndian.AppendUint16(app0, density)
	app0 = append(app0, 0x00, 0x00) // no thumbnail

	out := make([]byte, 0, len(jpg)+len(app0))
	out = append(out, jpg[:2]...)
	out = append(out, app0...)
	out = append(out, jpg[2:]...)
	return out, nil
}
