package lockfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

// Control words carried in the lockfile's terminate field.
const (
	ControlNormal    uint32 = 0x00000000
	ControlSuspend   uint32 = 0xDEADBEEF
	ControlDelete    uint32 = 0xDEAFBABE
)

// headerSize is the fixed-width prefix; the exec string follows verbatim
// to EOF. Offsets match SPEC_FULL.md's layout exactly so that a 4-byte
// aligned pwrite of the terminate field never touches neighboring fields.
const (
	offPID       = 0
	offTerminate = 4
	offRunCount  = 8
	offStartTime = 12
	headerSize   = 20
)

// ErrUnusable is returned when a lockfile's fixed header cannot be fully
// read — a torn or truncated record.
var ErrUnusable = errors.New("lockfile: unusable record")

// Header is the decoded fixed-width portion of a lockfile plus the raw
// exec string trailing it.
type Header struct {
	PID       uint32
	Terminate uint32
	RunCount  uint32
	StartTime int64
	Exec      string
}

func encodeHeader(h Header) []byte {
	buf := make([]byte, headerSize+len(h.Exec))
	binary.LittleEndian.PutUint32(buf[offPID:], h.PID)
	binary.LittleEndian.PutUint32(buf[offTerminate:], h.Terminate)
	binary.LittleEndian.PutUint32(buf[offRunCount:], h.RunCount)
	binary.LittleEndian.PutUint64(buf[offStartTime:], uint64(h.StartTime))
	copy(buf[headerSize:], h.Exec)
	return buf
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < headerSize {
		return Header{}, ErrUnusable
	}
	h := Header{
		PID:       binary.LittleEndian.Uint32(b[offPID:]),
		Terminate: binary.LittleEndian.Uint32(b[offTerminate:]),
		RunCount:  binary.LittleEndian.Uint32(b[offRunCount:]),
		StartTime: int64(binary.LittleEndian.Uint64(b[offStartTime:])),
	}
	h.Exec = string(bytes.TrimRight(b[headerSize:], "\x00"))
	return h, nil
}

// StartTimeAsTime is a convenience accessor for Header.StartTime.
func (h Header) StartTimeAsTime() time.Time {
	return time.Unix(h.StartTime, 0)
}
