// Package persist implements the engine's on-disk header layout: magic,
// version, risk/fee/anti-toxicity parameters, and the monotonic counters,
// little-endian and at fixed offsets (spec.md §6).
//
// encoding/binary is used here deliberately rather than a third-party
// codec: the layout is a fixed-offset C-style struct dump, which is
// exactly what encoding/binary.Write/Read already do with no reflection
// surprises, and none of the retrieved example repos serialize a layout
// like this with anything else (see DESIGN.md).
package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/percolator/slab/internal/slab"
)

// HeaderLen is the encoded byte length of a Header.
const HeaderLen = 8 + 2 + 32*3 + 8*4 + 8 + 2 + 8 + 8 + 1 + 8 + 2 + 2 + 8*4

// EncodeHeader writes h in the engine's persisted layout.
func EncodeHeader(h *slab.Header) ([]byte, error) {
	buf := new(bytes.Buffer)
	fields := []any{
		h.Magic,
		h.Version,
		h.ProgramID,
		h.OwnerID,
		h.RouterID,
		h.IMRBps,
		h.MMRBps,
		h.MakerFeeBps,
		h.TakerFeeBps,
		h.BatchMs,
		h.FreezeLevels,
		h.KillBandBps,
		h.AsFeeK,
		boolByte(h.JitPenaltyOn),
		h.MakerRebateMinMs,
		h.DLPMax,
		h.DLPCount,
		h.NextOrderID,
		h.NextHoldID,
		h.BookSeqno,
		h.CurrentTs,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return nil, fmt.Errorf("persist: encode header: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeHeader reads a Header from its persisted layout and validates the
// magic and version before returning it.
func DecodeHeader(data []byte) (slab.Header, error) {
	var h slab.Header
	r := bytes.NewReader(data)

	var jit byte
	fields := []any{
		&h.Magic,
		&h.Version,
		&h.ProgramID,
		&h.OwnerID,
		&h.RouterID,
		&h.IMRBps,
		&h.MMRBps,
		&h.MakerFeeBps,
		&h.TakerFeeBps,
		&h.BatchMs,
		&h.FreezeLevels,
		&h.KillBandBps,
		&h.AsFeeK,
		&jit,
		&h.MakerRebateMinMs,
		&h.DLPMax,
		&h.DLPCount,
		&h.NextOrderID,
		&h.NextHoldID,
		&h.BookSeqno,
		&h.CurrentTs,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return slab.Header{}, fmt.Errorf("persist: decode header: %w", err)
		}
	}
	h.JitPenaltyOn = jit != 0

	if !h.Validate() {
		return slab.Header{}, fmt.Errorf("persist: header magic/version mismatch")
	}
	return h, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
