// Package downloader fetches media from the web with yt-dlp and files
// it into the library.
//
// Downloads run as background jobs. Each job fetches metadata first
// (title, duration), then downloads the file, reporting percentage
// progress parsed from yt-dlp's output. A finished job inserts the
// media item so a parent can bind a card to it straight away.
package downloader

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/niconistal/BabyBox/internal/infrastructure/config"
	"github.com/niconistal/BabyBox/internal/library"
)

// Status is a download job's lifecycle state.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusFetching    Status = "fetching_metadata"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Job is a snapshot of one download.
type Job struct {
	ID       string           `json:"id"`
	URL      string           `json:"url"`
	Kind     library.MediaKind `json:"kind"`
	Title    string           `json:"title,omitempty"`
	Status   Status           `json:"status"`
	Progress float64          `json:"progress"`
	Error    string           `json:"error,omitempty"`

	// MediaID is set once the media item is inserted into the library.
	MediaID int64 `json:"media_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Logger is the minimal logging interface the manager needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager runs download jobs and tracks their state.
type Manager struct {
	ctx    context.Context
	media  config.MediaConfig
	repo   *library.MediaRepository
	binary string
	logger Logger

	mu   sync.RWMutex
	jobs map[string]*Job

	// onProgress, when set, is called with a job snapshot on every
	// status or progress change. Used to fan out over MQTT/WebSocket.
	onProgress func(Job)
}

// NewManager creates a download manager. Jobs inherit ctx, so
// cancelling it (process shutdown) aborts running downloads.
func NewManager(ctx context.Context, media config.MediaConfig, repo *library.MediaRepository, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		ctx:    ctx,
		media:  media,
		repo:   repo,
		binary: "yt-dlp",
		logger: logger,
		jobs:   make(map[string]*Job),
	}
}

// SetOnProgress registers the progress fan-out callback.
func (m *Manager) SetOnProgress(fn func(Job)) {
	m.mu.Lock()
	m.onProgress = fn
	m.mu.Unlock()
}

// Enqueue creates a job and starts it in the background.
func (m *Manager) Enqueue(url string, kind library.MediaKind) (Job, error) {
	if !kind.Valid() {
		return Job{}, fmt.Errorf("%w: %q", library.ErrInvalidKind, kind)
	}
	if url == "" {
		return Job{}, fmt.Errorf("downloader: url cannot be empty")
	}

	job := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Kind:      kind,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	go m.run(job.ID)

	return *job, nil
}

// Get returns a snapshot of a job.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of all jobs, newest first.
func (m *Manager) List() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, *j)
	}
	for i := 0; i < len(jobs); i++ {
		for k := i + 1; k < len(jobs); k++ {
			if jobs[k].CreatedAt.After(jobs[i].CreatedAt) {
				jobs[i], jobs[k] = jobs[k], jobs[i]
			}
		}
	}
	return jobs
}

// update applies fn to a job under lock and fires the progress callback.
func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	fn(job)
	snapshot := *job
	callback := m.onProgress
	m.mu.Unlock()

	if callback != nil {
		callback(snapshot)
	}
}

// metadata is the subset of yt-dlp's --dump-json output we use.
type metadata struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	ID       string  `json:"id"`
	Ext      string  `json:"ext"`
}

// run executes one job end to end.
func (m *Manager) run(id string) {
	m.mu.RLock()
	job := *m.jobs[id]
	m.mu.RUnlock()

	m.update(id, func(j *Job) { j.Status = StatusFetching })

	meta, err := m.fetchMetadata(job.URL)
	if err != nil {
		m.fail(id, fmt.Errorf("fetching metadata: %w", err))
		return
	}
	m.update(id, func(j *Job) { j.Title = meta.Title })

	destPath := m.destinationPath(job.Kind, meta)

	if err := m.download(id, job, destPath); err != nil {
		m.fail(id, err)
		return
	}

	item, err := m.repo.Create(m.ctx, library.MediaItem{
		Title:           meta.Title,
		Kind:            job.Kind,
		FilePath:        destPath,
		DurationSeconds: int64(meta.Duration),
		SourceURL:       job.URL,
	})
	if err != nil {
		m.fail(id, fmt.Errorf("registering media: %w", err))
		return
	}

	m.logger.Info("download completed",
		"title", meta.Title,
		"media_id", item.ID,
		"path", destPath,
	)
	m.update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = 100
		j.MediaID = item.ID
	})
}

func (m *Manager) fail(id string, err error) {
	m.logger.Error("download failed", "job_id", id, "error", err)
	m.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = err.Error()
	})
}

// fetchMetadata asks yt-dlp for the media's metadata without downloading.
func (m *Manager) fetchMetadata(url string) (metadata, error) {
	cmd := exec.CommandContext(m.ctx, m.binary, "--dump-json", "--no-playlist", url) //nolint:gosec // fixed binary name
	out, err := cmd.Output()
	if err != nil {
		return metadata{}, fmt.Errorf("running %s --dump-json: %w", m.binary, err)
	}

	var meta metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return metadata{}, fmt.Errorf("parsing metadata: %w", err)
	}
	if meta.Title == "" {
		meta.Title = meta.ID
	}
	return meta, nil
}

// destinationPath places the file under the audio or video directory.
func (m *Manager) destinationPath(kind library.MediaKind, meta metadata) string {
	dir := m.media.VideoDir()
	ext := meta.Ext
	if kind == library.KindAudio {
		dir = m.media.AudioDir()
		ext = "m4a"
	}
	if ext == "" {
		ext = "mp4"
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%s", sanitizeFilename(meta.Title), ext))
}

// download runs yt-dlp and streams progress updates from its stdout.
func (m *Manager) download(id string, job Job, destPath string) error {
	args := []string{"--newline", "--no-playlist", "-o", destPath}
	if job.Kind == library.KindAudio {
		args = append(args, "-x", "--audio-format", "m4a")
	}
	args = append(args, job.URL)

	cmd := exec.CommandContext(m.ctx, m.binary, args...) //nolint:gosec // fixed binary name
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.binary, err)
	}

	m.update(id, func(j *Job) { j.Status = StatusDownloading })

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if pct, ok := parseProgressLine(scanner.Text()); ok {
			m.update(id, func(j *Job) { j.Progress = pct })
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	return nil
}

// progressRe matches yt-dlp's download progress lines:
//
//	[download]  45.2% of 120.05MiB at 2.51MiB/s ETA 00:26
var progressRe = regexp.MustCompile(`\[download\]\s+([\d.]+)%`)

// parseProgressLine extracts a percentage from a yt-dlp output line.
func parseProgressLine(line string) (float64, bool) {
	match := progressRe.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

// sanitizeFilename strips characters that are awkward in shell commands
// and filesystems.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		s = "media"
	}
	return s
}
