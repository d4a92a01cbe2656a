package quicsync

import (
	"encoding/binary"
	"errors"
	"io"
)

// Frames on the reliable stream are a 4-byte little-endian length followed
// by the message bytes. The first frame the server writes is the hello
// carrying the assigned client id.

const maxFrameSize = 1 << 20

var ErrFrameTooLarge = errors.New("quicsync: frame exceeds size limit")

func writeFrame(w io.Writer, data []byte) error {
	if len(data) > maxFrameSize {
		return ErrFrameTooLarge
	}
	var head [4]byte
	binary.LittleEndian.PutUint32(head[:], uint32(len(data)))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(head[:])
	if size > maxFrameSize {
		return nil, ErrFrameTooLarge
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func helloFrame(clientID uint32) []byte {
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], clientID)
	return p[:]
}

func parseHello(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, errors.New("quicsync: malformed hello")
	}
	return binary.LittleEndian.Uint32(data), nil
}
