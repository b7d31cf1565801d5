package report

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
)

// binaryMagic identifies the packfang binary report encoding.
var binaryMagic = [4]byte{'P', 'F', 'B', '1'}

const (
	uint32ByteSize = 4
	// maxBinaryPayload bounds the decode allocation against corrupt
	// length fields.
	maxBinaryPayload = 1 << 30
)

// Binary decode failures.
var (
	ErrBadMagic      = errors.New("not a packfang binary report")
	ErrCorruptReport = errors.New("corrupt binary report")
)

// binaryRenderer writes the report as an LZ4-compressed JSON payload behind
// a fixed header: the magic, then the uncompressed and compressed lengths
// as little-endian uint32. A zero compressed length marks a payload stored
// raw because compression did not shrink it.
type binaryRenderer struct{}

func (binaryRenderer) Render(w io.Writer, rep *audit.Report) error {
	rep.Sort()

	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(payload)))

	written, err := lz4.CompressBlock(payload, compressed, nil)
	if err != nil {
		return fmt.Errorf("lz4 compress: %w", err)
	}

	body := compressed[:written]
	if written == 0 {
		body = payload
	}

	header := make([]byte, 0, len(binaryMagic)+2*uint32ByteSize)
	header = append(header, binaryMagic[:]...)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(payload)))
	header = binary.LittleEndian.AppendUint32(header, uint32(written))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

// DecodeBinary reads a report previously written by the binary renderer.
func DecodeBinary(r io.Reader) (*audit.Report, error) {
	header := make([]byte, len(binaryMagic)+2*uint32ByteSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptReport, err)
	}

	if !bytes.Equal(header[:len(binaryMagic)], binaryMagic[:]) {
		return nil, ErrBadMagic
	}

	rawLen := binary.LittleEndian.Uint32(header[len(binaryMagic):])
	compressedLen := binary.LittleEndian.Uint32(header[len(binaryMagic)+uint32ByteSize:])

	if rawLen > maxBinaryPayload || compressedLen > maxBinaryPayload {
		return nil, fmt.Errorf("%w: implausible payload length", ErrCorruptReport)
	}

	bodyLen := compressedLen
	if compressedLen == 0 {
		bodyLen = rawLen
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptReport, err)
	}

	payload := body

	if compressedLen > 0 {
		payload = make([]byte, rawLen)

		n, err := lz4.UncompressBlock(body, payload)
		if err != nil {
			return nil, fmt.Errorf("lz4 uncompress: %w", err)
		}

		if n != int(rawLen) {
			return nil, fmt.Errorf("%w: payload length mismatch", ErrCorruptReport)
		}
	}

	var rep audit.Report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	return &rep, nil
}
