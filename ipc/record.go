package ipc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// NoPid marks a record whose daemon process is gone.
const NoPid int32 = 0

// Record is the fixed-size state a serving process publishes for status
// queries from other processes.
type Record struct {
	State State
	Pid   int32
	Port  int32
}

// RecordPath is where the record for the daemon called name is kept.
func RecordPath(name string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, name)
	return filepath.Join(os.TempDir(), fmt.Sprintf("ipcd-%s.state", safe))
}

// WriteToFile stores r at filename.
func (r Record) WriteToFile(filename string) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, r); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0o666)
}

// ReadRecord loads the record stored at filename.
func ReadRecord(filename string) (Record, error) {
	var rec Record
	file, err := os.Open(filename)
	if err != nil {
		return rec, err
	}
	defer file.Close()
	err = binary.Read(file, binary.LittleEndian, &rec)
	return rec, err
}

// Process returns the recorded process if it is still running.
func (r Record) Process() (*process.Process, error) {
	if r.Pid == NoPid {
		return nil, ErrNotRunning
	}
	proc, err := process.NewProcess(r.Pid)
	if err != nil {
		return nil, err
	}
	running, err := proc.IsRunning()
	if err != nil {
		return nil, err
	}
	if !running {
		return nil, ErrNotRunning
	}
	return proc, nil
}

// Uptime reports how long the recorded process has been running.
func (r Record) Uptime() (time.Duration, error) {
	proc, err := r.Process()
	if err != nil {
		return 0, err
	}
	created, err := proc.CreateTime()
	if err != nil {
		return 0, err
	}
	return time.Since(time.UnixMilli(created)), nil
}

// Publish writes l's current state to RecordPath under the calling process.
func (l *Lifecycle) Publish() error {
	ep := l.Endpoint()
	rec := Record{State: l.State(), Pid: int32(os.Getpid()), Port: int32(ep.Port)}
	if rec.State == StateStopped || rec.State == StateFailed {
		rec.Pid = NoPid
	}
	return rec.WriteToFile(RecordPath(ep.Name))
}
