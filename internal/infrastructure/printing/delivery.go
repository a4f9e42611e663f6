package printing

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"go.uber.org/zap"
)

// ShareFile describes the file offered to a share target
type ShareFile struct {
	Filename string
	MIMEType string
	Size     int
}

// PlatformCapabilities is what the client environment supports, queried at
// delivery time.
type PlatformCapabilities interface {
	// CanShareFiles reports whether a native file share is available at all
	CanShareFiles() bool
	// CanShare reports whether this specific file would be accepted
	CanShare(file ShareFile) bool
	// SmallViewport reports whether mobile rendering parameters apply
	SmallViewport() bool
}

// RequestCapabilities is a PlatformCapabilities built from what the client
// advertised and the limits the server places on shared files.
type RequestCapabilities struct {
	ShareFiles bool
	Small      bool
	// MaxShareBytes rejects larger files; 0 means unlimited
	MaxShareBytes int
	// AcceptedTypes limits shareable media types; empty accepts any
	AcceptedTypes []string
}

func (c RequestCapabilities) CanShareFiles() bool { return c.ShareFiles }

func (c RequestCapabilities) SmallViewport() bool { return c.Small }

func (c RequestCapabilities) CanShare(file ShareFile) bool {
	if !c.ShareFiles || file.Size <= 0 {
		return false
	}
	if c.MaxShareBytes > 0 && file.Size > c.MaxShareBytes {
		return false
	}
	return len(c.AcceptedTypes) == 0 || slices.Contains(c.AcceptedTypes, file.MIMEType)
}

// Link points at a delivered artifact
type Link struct {
	URL       string
	ExpiresAt time.Time
}

// ShareTarget publishes an artifact for the native share sheet
type ShareTarget interface {
	Share(ctx context.Context, artifact *printing.Artifact) (Link, error)
}

// DownloadTarget stores an artifact for download
type DownloadTarget interface {
	Download(ctx context.Context, artifact *printing.Artifact) (Link, error)
}

// DeliveryReceipt records how an artifact reached the user
type DeliveryReceipt struct {
	Method    printing.DeliveryMethod
	URL       string
	Filename  string
	MIMEType  string
	Size      int
	PageCount int
	ExpiresAt time.Time
	// FallbackReason is set when share was skipped or rejected
	FallbackReason *printing.PrintError
}

// Delivery hands artifacts to the user: share first when supported, download otherwise.
// Each call runs its strategies strictly one after another.
type Delivery struct {
	share    ShareTarget
	download DownloadTarget
	logger   *zap.Logger
}

// NewDelivery creates a delivery. share may be nil when no share target is configured.
func NewDelivery(share ShareTarget, download DownloadTarget, logger *zap.Logger) *Delivery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Delivery{share: share, download: download, logger: logger}
}

// Deliver gets the artifact to the user.
// Share rejections are not errors: they fall back to download. Only a failed
// download is returned, as DELIVERY_FAILED.
func (d *Delivery) Deliver(ctx context.Context, artifact *printing.Artifact, caps PlatformCapabilities) (*DeliveryReceipt, error) {
	if artifact == nil || artifact.Size() == 0 {
		return nil, printing.NewPrintError(printing.ErrCodeDeliveryFailed, "no artifact to deliver", nil)
	}
	logger := d.logger.With(zap.String("filename", artifact.Filename), zap.Int("size", artifact.Size()))

	reason := d.shareUnsupported(artifact, caps)
	if reason == nil {
		link, err := d.share.Share(ctx, artifact)
		if err == nil {
			logger.Info("Artifact shared")
			return newReceipt(printing.DeliveryMethodShare, link, artifact, nil), nil
		}
		if ctx.Err() != nil {
			return nil, printing.AsPrintError(ctx.Err(), printing.ErrCodeDeliveryFailed)
		}
		reason = printing.NewPrintError(printing.ErrCodeDeliveryUnsupported, "share target rejected the artifact", err)
	}
	logger.Debug("Share unavailable, using download", zap.Error(reason))

	if d.download == nil {
		return nil, printing.NewPrintError(printing.ErrCodeDeliveryFailed, "no download target configured", reason)
	}
	link, err := d.download.Download(ctx, artifact)
	if err != nil {
		logger.Error("Download delivery failed", zap.Error(err))
		return nil, printing.NewPrintError(printing.ErrCodeDeliveryFailed, "artifact could not be delivered",
			errors.Join(reason, err))
	}
	logger.Info("Artifact stored for download")
	return newReceipt(printing.DeliveryMethodDownload, link, artifact, reason), nil
}

func (d *Delivery) shareUnsupported(artifact *printing.Artifact, caps PlatformCapabilities) *printing.PrintError {
	switch {
	case d.share == nil:
		return printing.NewPrintError(printing.ErrCodeDeliveryUnsupported, "no share target configured", nil)
	case caps == nil || !caps.CanShareFiles():
		return printing.NewPrintError(printing.ErrCodeDeliveryUnsupported, "client cannot share files", nil)
	case !caps.CanShare(ShareFile{Filename: artifact.Filename, MIMEType: artifact.MIMEType, Size: artifact.Size()}):
		return printing.NewPrintError(printing.ErrCodeDeliveryUnsupported, "client cannot share this file", nil)
	}
	return nil
}

func newReceipt(method printing.DeliveryMethod, link Link, artifact *printing.Artifact, reason *printing.PrintError) *DeliveryReceipt {
	return &DeliveryReceipt{
		Method:         method,
		URL:            link.URL,
		Filename:       artifact.Filename,
		MIMEType:       artifact.MIMEType,
		Size:           artifact.Size(),
		PageCount:      artifact.PageCount,
		ExpiresAt:      link.ExpiresAt,
		FallbackReason: reason,
	}
}
