package snapshot

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

const (
	codecMagic = "swdiag-snapshot"

	// CodecVersion is the only snapshot file version this package writes and reads.
	CodecVersion = 1
)

// Encode renders a snapshot as a versioned, length-prefixed text document.
// Records are written in ascending PID order so equal snapshots encode to
// equal bytes.
func Encode(s core.Snapshot, savedAt time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %d\n", codecMagic, CodecVersion, savedAt.Unix())
	for _, pid := range s.SortedPIDs() {
		sig := s[pid]
		fmt.Fprintf(&buf, "%d %d\n", pid, len(sig))
		buf.WriteString(sig)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Decode parses a document produced by Encode. Any deviation from the format
// is reported as a corrupted-state error.
func Decode(data []byte) (core.Snapshot, time.Time, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	header, err := r.ReadString('\n')
	if err != nil {
		return nil, time.Time{}, corrupted("reading header", err)
	}
	fields := strings.Fields(header)
	if len(fields) != 3 || fields[0] != codecMagic {
		return nil, time.Time{}, corrupted("invalid header", nil)
	}
	version, err := strconv.Atoi(fields[1])
	if err != nil || version != CodecVersion {
		return nil, time.Time{}, corrupted(fmt.Sprintf("unsupported version %q", fields[1]), nil)
	}
	unix, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, time.Time{}, corrupted("invalid save time", err)
	}
	savedAt := time.Unix(unix, 0)

	s := core.NewSnapshot()
	for {
		line, err := r.ReadString('\n')
		if errors.Is(err, io.EOF) && line == "" {
			break
		}
		if err != nil {
			return nil, time.Time{}, corrupted("truncated record header", err)
		}

		// A signature can never be longer than the document holding it.
		pid, length, err := parseRecordHeader(line, len(data))
		if err != nil {
			return nil, time.Time{}, err
		}
		if _, dup := s[pid]; dup {
			return nil, time.Time{}, corrupted(fmt.Sprintf("duplicate pid %d", pid), nil)
		}

		sig := make([]byte, length+1)
		if _, err := io.ReadFull(r, sig); err != nil {
			return nil, time.Time{}, corrupted(fmt.Sprintf("truncated signature for pid %d", pid), err)
		}
		if sig[length] != '\n' {
			return nil, time.Time{}, corrupted(fmt.Sprintf("unterminated signature for pid %d", pid), nil)
		}
		s[pid] = string(sig[:length])
	}

	return s, savedAt, nil
}

func parseRecordHeader(line string, maxLen int) (int, int, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, corrupted(fmt.Sprintf("malformed record header %q", strings.TrimSpace(line)), nil)
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return 0, 0, corrupted(fmt.Sprintf("invalid pid %q", fields[0]), nil)
	}
	length, err := strconv.Atoi(fields[1])
	if err != nil || length < 0 || length > maxLen {
		return 0, 0, corrupted(fmt.Sprintf("invalid signature length %q", fields[1]), nil)
	}
	return pid, length, nil
}

func corrupted(msg string, cause error) error {
	err := core.ErrState(core.CodeStateCorrupted, "snapshot "+msg)
	if cause != nil {
		return err.WithCause(cause)
	}
	return err
}
