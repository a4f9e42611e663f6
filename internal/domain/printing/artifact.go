package printing

import "time"

// MIMETypePDF is the media type of every artifact produced by capture
const MIMETypePDF = "application/pdf"

// MinArtifactBytes is the size floor below which a capture is considered blank.
// A single empty PDF page produced by Chrome is well under this size.
const MinArtifactBytes = 1024

// Artifact is the binary output of a capture
type Artifact struct {
	Content   []byte
	MIMEType  string
	Filename  string
	PageCount int
	Strategy  RenderStrategy
	CreatedAt time.Time
}

// NewArtifact creates a PDF artifact
func NewArtifact(content []byte, filename string, pageCount int, strategy RenderStrategy) *Artifact {
	return &Artifact{
		Content:   content,
		MIMEType:  MIMETypePDF,
		Filename:  SanitizeFilename(filename),
		PageCount: pageCount,
		Strategy:  strategy,
		CreatedAt: time.Now(),
	}
}

// Size returns the artifact length in bytes
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Content)
}

// MeetsFloor reports whether the artifact is at least minBytes long
func (a *Artifact) MeetsFloor(minBytes int) bool {
	if minBytes <= 0 {
		minBytes = MinArtifactBytes
	}
	return a.Size() >= minBytes
}

// RenderResult is the outcome of one capture: an artifact or a failure
type RenderResult struct {
	Artifact *Artifact
	Err      *PrintError
	Duration time.Duration
}

// Succeeded wraps a produced artifact
func Succeeded(artifact *Artifact, duration time.Duration) RenderResult {
	return RenderResult{Artifact: artifact, Duration: duration}
}

// Failed wraps a failure
func Failed(err error, duration time.Duration) RenderResult {
	return RenderResult{Err: AsPrintError(err, ErrCodeRenderingFailed), Duration: duration}
}

// ValidFor reports whether the result holds an artifact at least minBytes long.
// A non-positive floor means MinArtifactBytes.
// Undersized output is never valid even when no error was recorded.
func (r RenderResult) ValidFor(minBytes int) bool {
	return r.Err == nil && r.Artifact != nil && r.Artifact.MeetsFloor(minBytes)
}

// Failure returns the failure, or nil on success
func (r RenderResult) Failure() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}
