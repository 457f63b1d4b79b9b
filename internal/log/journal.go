package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// OperationLog is one journaled operation.
type OperationLog struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Kind      string        `json:"kind"`
	Media     string        `json:"media,omitempty"`
	RequestID string        `json:"request_id"`
	Duration  time.Duration `json:"duration"`
	Items     int           `json:"items"`
	Complete  bool          `json:"complete"`
	Error     string        `json:"error,omitempty"`
}

type SessionMetadata struct {
	CommandArgs   []string  `json:"command_args"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id"`
	TotalOps      int       `json:"total_operations"`
	CompleteOps   int       `json:"complete_operations"`
	IncompleteOps int       `json:"incomplete_operations"`
	FailedOps     int       `json:"failed_operations"`
}

type Session struct {
	Metadata   SessionMetadata `json:"metadata"`
	Operations []OperationLog  `json:"operations"`
}

// Journal collects operations for one process and writes them as a session
// file. A disabled or nil journal accepts every call and records nothing.
type Journal struct {
	mu      sync.Mutex
	dir     string
	enabled bool
	session *Session
	now     func() time.Time
}

// NewJournal creates a journal writing into dir.
func NewJournal(dir string, enabled bool) *Journal {
	return &Journal{dir: dir, enabled: enabled, now: time.Now}
}

// Dir is the directory session files are written to.
func (j *Journal) Dir() string {
	if j == nil {
		return ""
	}
	return j.dir
}

// Start opens a new session for the given command line.
func (j *Journal) Start(command string, args []string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.enabled {
		return
	}
	now := j.now()
	j.session = &Session{
		Metadata: SessionMetadata{
			CommandArgs: append([]string{command}, args...),
			Timestamp:   now,
			SessionID:   fmt.Sprintf("%s_%03d", now.Format("20060102_150405"), now.Nanosecond()/1000000),
		},
		Operations: []OperationLog{},
	}
}

// Record appends an operation to the open session.
func (j *Journal) Record(op OperationLog) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.enabled || j.session == nil {
		return
	}
	op.ID = fmt.Sprintf("%s_%d", j.session.Metadata.SessionID, len(j.session.Operations))
	if op.Timestamp.IsZero() {
		op.Timestamp = j.now()
	}
	j.session.Operations = append(j.session.Operations, op)
}

// Session returns a copy of the open session, or nil.
func (j *Journal) Session() *Session {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.session == nil {
		return nil
	}
	s := *j.session
	s.Operations = append([]OperationLog(nil), j.session.Operations...)
	updateStats(&s)
	return &s
}

// End writes the open session to disk. Sessions without operations are
// dropped.
func (j *Journal) End() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.enabled || j.session == nil {
		return nil
	}
	s := j.session
	j.session = nil
	if len(s.Operations) == 0 {
		return nil
	}
	updateStats(s)
	return WriteSession(j.dir, s)
}

func updateStats(s *Session) {
	s.Metadata.TotalOps = len(s.Operations)
	s.Metadata.CompleteOps, s.Metadata.IncompleteOps, s.Metadata.FailedOps = 0, 0, 0
	for _, op := range s.Operations {
		switch {
		case op.Error != "":
			s.Metadata.FailedOps++
		case op.Complete:
			s.Metadata.CompleteOps++
		default:
			s.Metadata.IncompleteOps++
		}
	}
}

// Cleanup removes session files older than retentionDays.
func (j *Journal) Cleanup(retentionDays int) error {
	if j == nil || !j.enabled || retentionDays <= 0 {
		return nil
	}
	if _, err := os.Stat(j.dir); os.IsNotExist(err) {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(j.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list log files: %w", err)
	}
	cutoff := j.now().AddDate(0, 0, -retentionDays)
	var firstErr error
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to remove old log file %s: %w", file, err)
			}
		}
	}
	return firstErr
}

// WriteSession stores session as a timestamped JSON file in dir.
func WriteSession(dir string, session *Session) error {
	if session == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	ts := session.Metadata.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	name := fmt.Sprintf("%s.%03d.json", ts.Format("2006-01-02_150405"), ts.Nanosecond()/1000000)

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	return nil
}

// ReadSession loads one session file.
func ReadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// ReadSessions returns up to limit sessions from dir, newest first. Corrupt
// files are skipped.
func ReadSessions(dir string, limit int) ([]*Session, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*Session{}, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	sessions := make([]*Session, 0, len(files))
	for _, file := range files {
		session, err := ReadSession(file)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}
