// Package printing provides the infrastructure side of the print pipeline:
// themed HTML templates, the chromedp rendering surface, PDF capture and
// artifact delivery through share links or one-shot downloads.
//
// A document flows through the components in a fixed order:
//
//	surface, _ := factory.Open(ctx, opts.ViewportWidthPx)
//	defer surface.Close()
//
//	container, err := renderer.Render(ctx, surface, doc, opts)
//	if err != nil {
//	    return err // RENDERING_FAILED
//	}
//	artifact, err := capturer.Capture(ctx, container, doc.Ref(), opts)
//	if err != nil {
//	    return err // CAPTURE_BLANK
//	}
//	receipt, err := delivery.Deliver(ctx, artifact, caps)
package printing
