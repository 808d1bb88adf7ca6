package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LogSender writes every report to a logger
type LogSender struct {
	log *log.Logger
}

// NewLogSender creates a sender logging at info level
func NewLogSender(logger *log.Logger) *LogSender {
	return &LogSender{log: logger}
}

// Send logs r
func (s *LogSender) Send(r *Report) error {
	s.log.WithFields(log.Fields{
		"detector":      r.Detector,
		"protocol":      r.Protocol,
		"class":         r.Class,
		"host":          r.HostIP,
		"dst_port":      r.DstPort,
		"intensity":     r.Intensity,
		"end_of_attack": r.EndOfAttack,
		"victims":       len(r.Victims),
	}).Info("Anomaly reported")
	return nil
}

// FileSender appends reports to a file as JSON lines
type FileSender struct {
	mu   sync.Mutex
	file *os.File
	out  *bufio.Writer
}

// NewFileSender opens path for appending
func NewFileSender(path string) (*FileSender, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open report file: %w", err)
	}
	return &FileSender{file: f, out: bufio.NewWriter(f)}, nil
}

// Send writes r as one line and flushes it
func (s *FileSender) Send(r *Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		return err
	}
	return s.out.Flush()
}

// Close flushes and closes the file
func (s *FileSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.out.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// ReadFile loads every report from a file written by FileSender
func ReadFile(path string) ([]*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read decodes JSON lines reports
func Read(r io.Reader) ([]*Report, error) {
	var reports []*Report
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		rep := &Report{}
		if err := json.Unmarshal(scanner.Bytes(), rep); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		reports = append(reports, rep)
	}
	return reports, scanner.Err()
}

// MultiSender fans a report out to several senders. Failed deliveries
// are logged and never returned.
type MultiSender struct {
	senders []Sender
	log     *log.Logger
}

// NewMultiSender combines senders
func NewMultiSender(logger *log.Logger, senders ...Sender) *MultiSender {
	return &MultiSender{senders: senders, log: logger}
}

// Add appends another sender
func (m *MultiSender) Add(s Sender) {
	m.senders = append(m.senders, s)
}

// Len returns the number of senders
func (m *MultiSender) Len() int {
	return len(m.senders)
}

// Send delivers r to every sender
func (m *MultiSender) Send(r *Report) error {
	for _, s := range m.senders {
		if err := s.Send(r); err != nil {
			m.log.WithFields(log.Fields{
				"error":  err.Error(),
				"report": r.ID,
				"sender": fmt.Sprintf("%T", s),
			}).Error("Could not deliver report")
		}
	}
	return nil
}

// Close closes every sender that can be closed
func (m *MultiSender) Close() error {
	var first error
	for _, s := range m.senders {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Recorder keeps every report in memory
type Recorder struct {
	mu      sync.Mutex
	reports []*Report
}

// Send stores r
func (rec *Recorder) Send(r *Report) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.reports = append(rec.reports, r)
	return nil
}

// Reports returns the stored reports in arrival order
func (rec *Recorder) Reports() []*Report {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]*Report(nil), rec.reports...)
}

// Reset forgets the stored reports
func (rec *Recorder) Reset() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.reports = nil
}
