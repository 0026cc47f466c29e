// Package wire implements the Element128 serialization contract described
// by the reconciliation design: a byte-exact, big-endian round trip of a
// Cell's (id_sum, hash_sum, count), an IBF's (m, k, cells[]), and a
// StrataEstimator's (L, ibfs[]). Two peers MUST use the same codec version
// (and the same hashing.Elem/hashing.Idx) to reconcile; this package fixes
// one concrete, interoperable choice, following the same manual
// cursor-based binary layout the blockchain store used for its block
// encoding, upgraded to explicit big-endian per the wire contract and to
// io.Writer/io.Reader so sketches can be streamed directly over a transport
// instead of buffered whole.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/swarmguard/setrecon/hashing"
	"github.com/swarmguard/setrecon/ibf"
)

const (
	elementWidth = 16 // Element128.Bytes() width
	hashSumWidth = 16 // hashing.U128 width
	countWidth   = 4  // int32 count
	cellWidth    = elementWidth + hashSumWidth + countWidth
	ibfHeaderW   = 8 // uint32 m + uint32 k
	strataHeadW  = 4 // uint32 L
)

// EncodeCell writes c's three fields in order: id_sum (16 bytes
// big-endian), hash_sum (16 bytes big-endian), count (4 bytes big-endian
// two's complement).
func EncodeCell(w io.Writer, c ibf.Cell[ibf.Element128]) error {
	var buf [cellWidth]byte
	copy(buf[0:elementWidth], c.IDSum().Bytes())
	hs := c.HashSum()
	binary.BigEndian.PutUint64(buf[elementWidth:elementWidth+8], hs.Hi)
	binary.BigEndian.PutUint64(buf[elementWidth+8:elementWidth+16], hs.Lo)
	binary.BigEndian.PutUint32(buf[elementWidth+hashSumWidth:], uint32(c.Count()))
	_, err := w.Write(buf[:])
	return err
}

// DecodeCell reads a Cell encoded by EncodeCell.
func DecodeCell(r io.Reader) (ibf.Cell[ibf.Element128], error) {
	var buf [cellWidth]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ibf.Cell[ibf.Element128]{}, err
	}
	var idBytes [16]byte
	copy(idBytes[:], buf[0:elementWidth])
	id := ibf.ElementFromBytes(idBytes)
	hi := binary.BigEndian.Uint64(buf[elementWidth : elementWidth+8])
	lo := binary.BigEndian.Uint64(buf[elementWidth+8 : elementWidth+16])
	count := int32(binary.BigEndian.Uint32(buf[elementWidth+hashSumWidth:]))
	return ibf.CellFromParts(id, hashing.U128{Hi: hi, Lo: lo}, count), nil
}

// EncodeIBF writes f's shape (m, k as big-endian uint32) followed by its m
// cells in order.
func EncodeIBF(w io.Writer, f *ibf.IBF[ibf.Element128]) error {
	var header [ibfHeaderW]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(f.M()))
	binary.BigEndian.PutUint32(header[4:8], uint32(f.K()))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	for i := 0; i < f.M(); i++ {
		if err := EncodeCell(w, f.CellAt(i)); err != nil {
			return fmt.Errorf("wire: encode cell %d: %w", i, err)
		}
	}
	return nil
}

// DecodeIBF reads an IBF encoded by EncodeIBF.
func DecodeIBF(r io.Reader) (*ibf.IBF[ibf.Element128], error) {
	var header [ibfHeaderW]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	m := int(binary.BigEndian.Uint32(header[0:4]))
	k := int(binary.BigEndian.Uint32(header[4:8]))
	cells := make([]ibf.Cell[ibf.Element128], m)
	for i := 0; i < m; i++ {
		c, err := DecodeCell(r)
		if err != nil {
			return nil, fmt.Errorf("wire: decode cell %d: %w", i, err)
		}
		cells[i] = c
	}
	return ibf.FromCells(cells, k), nil
}

// EncodeStrataEstimator writes se's stratum count L (big-endian uint32)
// followed by its L stratum IBFs in order.
func EncodeStrataEstimator(w io.Writer, se *ibf.StrataEstimator[ibf.Element128]) error {
	var header [strataHeadW]byte
	binary.BigEndian.PutUint32(header[:], uint32(se.Strata()))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	for i := 0; i < se.Strata(); i++ {
		if err := EncodeIBF(w, se.IBFAt(i)); err != nil {
			return fmt.Errorf("wire: encode stratum %d: %w", i, err)
		}
	}
	return nil
}

// DecodeStrataEstimator reads a StrataEstimator encoded by
// EncodeStrataEstimator.
func DecodeStrataEstimator(r io.Reader) (*ibf.StrataEstimator[ibf.Element128], error) {
	var header [strataHeadW]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	l := int(binary.BigEndian.Uint32(header[:]))
	ibfs := make([]*ibf.IBF[ibf.Element128], l)
	for i := 0; i < l; i++ {
		f, err := DecodeIBF(r)
		if err != nil {
			return nil, fmt.Errorf("wire: decode stratum %d: %w", i, err)
		}
		ibfs[i] = f
	}
	return ibf.FromIBFs(ibfs), nil
}
