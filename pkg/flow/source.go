package flow

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
)

// Source delivers flow records one at a time. io.EOF ends the stream.
type Source interface {
	Next(ctx context.Context) (*Record, error)
	Close() error
}

// inputSuffixes lists the file names accepted as flow record files
var inputSuffixes = []string{".json", ".jsonl", ".log", ".gz"}

// GatherFiles expands directories into the record files they contain
func GatherFiles(paths []string, logger *log.Logger) []string {
	var toReturn []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			toReturn = append(toReturn, gatherDir(path, logger)...)
		} else if hasInputSuffix(path) {
			toReturn = append(toReturn, path)
		} else {
			logger.WithFields(log.Fields{
				"path": path,
			}).Warn("Ignoring file with unknown extension")
		}
	}

	return toReturn
}

func gatherDir(dir string, logger *log.Logger) []string {
	var toReturn []string
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		logger.WithFields(log.Fields{
			"error": err.Error(),
			"path":  dir,
		}).Error("Error when reading directory")
	}

	for _, file := range files {
		if !file.IsDir() && hasInputSuffix(file.Name()) {
			toReturn = append(toReturn, filepath.Join(dir, file.Name()))
		}
	}
	return toReturn
}

func hasInputSuffix(name string) bool {
	for _, suffix := range inputSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// FileSource reads JSON lines flow records from a list of files in order
type FileSource struct {
	paths []string
	next  int

	path    string
	line    int
	scanner *bufio.Scanner
	closer  func() error

	progress *mpb.Progress
	bar      *mpb.Bar
	done     int
	started  time.Time
}

// NewFileSource creates a source over paths. With showProgress a bar
// counting the finished files is drawn.
func NewFileSource(paths []string, showProgress bool) *FileSource {
	s := &FileSource{paths: paths}
	if showProgress && len(paths) > 0 {
		s.progress = mpb.New(mpb.WithWidth(20))
		s.bar = s.progress.AddBar(int64(len(paths)),
			mpb.PrependDecorators(
				decor.Name("\t[-] Replaying flow files:", decor.WC{W: 30, C: decor.DidentRight}),
				decor.CountersNoUnit(" %d / %d ", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
	}
	return s
}

// Next returns the next record, opening the following file when the
// current one is exhausted
func (s *FileSource) Next(ctx context.Context) (*Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if s.scanner == nil {
			if s.next >= len(s.paths) {
				return nil, io.EOF
			}
			if err := s.open(s.paths[s.next]); err != nil {
				return nil, err
			}
			s.next++
		}

		if s.scanner.Scan() {
			s.line++
			text := bytes.TrimSpace(s.scanner.Bytes())
			if len(text) == 0 {
				continue
			}
			rec, err := Decode(text)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", s.path, s.line, err)
			}
			return rec, nil
		}

		if err := s.scanner.Err(); err != nil {
			return nil, fmt.Errorf("%s:%d: %w: %v", s.path, s.line, ErrCorruptRecord, err)
		}
		if err := s.closeCurrent(); err != nil {
			return nil, err
		}
	}
}

func (s *FileSource) open(path string) error {
	fileHandle, err := os.Open(path)
	if err != nil {
		return err
	}
	s.scanner, s.closer, err = getFileScanner(fileHandle)
	if err != nil {
		s.closer()
		s.scanner = nil
		return fmt.Errorf("could not read %s: %w", path, err)
	}
	s.path = path
	s.line = 0
	s.started = time.Now()
	return nil
}

func (s *FileSource) closeCurrent() error {
	err := s.closer()
	s.scanner, s.closer = nil, nil
	s.done++
	if s.bar != nil {
		s.bar.IncrBy(1, time.Since(s.started))
	}
	return err
}

// Close releases the open file and waits for the progress bar to finish
func (s *FileSource) Close() error {
	var err error
	if s.scanner != nil {
		err = s.closer()
		s.scanner, s.closer = nil, nil
	}
	if s.progress != nil {
		// files skipped by an early stop still count so the bar completes
		if left := len(s.paths) - s.done; left > 0 {
			s.bar.IncrBy(left)
			s.done = len(s.paths)
		}
		s.progress.Wait()
		s.progress = nil
	}
	return err
}

// getFileScanner returns a buffered scanner for a record file and a
// function to close the underlying stream
func getFileScanner(fileHandle *os.File) (scanner *bufio.Scanner, closer func() error, err error) {
	// by default just close out the underlying file handle
	closer = fileHandle.Close

	if strings.HasSuffix(fileHandle.Name(), ".gz") {
		var gzipReader io.Reader
		gzipReader, closer, err = newGzipReader(fileHandle)
		if err != nil {
			return nil, closer, err
		}
		scanner = bufio.NewScanner(gzipReader)
	} else {
		scanner = bufio.NewScanner(fileHandle)
	}

	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner, closer, nil
}

//newGzipReader returns an un-gzipped byte stream given a gzip compressed byte stream.
//This method tries to use the system's pigz or gzip implementation before relying on
//Golang's gzip package. Returns stream to read from, a function to close the
//underlying stream, and any err that may occur when opening the stream.
func newGzipReader(fileHandle io.ReadCloser) (reader io.Reader, closer func() error, err error) {
	closer = fileHandle.Close

	var gzipPath string
	if path, err := exec.LookPath("pigz"); err == nil {
		gzipPath = path
	} else if path, err := exec.LookPath("gzip"); err == nil {
		gzipPath = path
	} else {
		reader, err = gzip.NewReader(fileHandle)
		return reader, closer, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	gzipCommand := exec.CommandContext(ctx, gzipPath, "-d", "-c")
	gzipCommand.Stdin = fileHandle

	pipeR, err := gzipCommand.StdoutPipe()
	if err != nil {
		cancel()
		return reader, fileHandle.Close, err
	}

	var cmdStdErr bytes.Buffer
	gzipCommand.Stderr = &cmdStdErr

	if err := gzipCommand.Start(); err != nil {
		cancel()
		return reader, fileHandle.Close, err
	}

	closer = func() error {
		// closing the read side stops a subprocess that is still writing
		pipeR.Close()
		errProc := gzipCommand.Wait()
		cancel()
		errFile := fileHandle.Close()

		if errProc != nil && cmdStdErr.Len() > 0 {
			errProc = fmt.Errorf("%s: %s", errProc.Error(), cmdStdErr.String())
		}
		if errProc != nil && errFile != nil {
			return fmt.Errorf("%s; %s", errProc.Error(), errFile.Error())
		}
		if errProc != nil {
			return errProc
		}
		return errFile
	}

	return pipeR, closer, nil
}
