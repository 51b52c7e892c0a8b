// Package imaging provides image I/O and annotation overlays for the
// dataset pipeline.
//
// This package loads and saves the rasters that flow through the pipeline
// and renders YOLO boxes on top of them so a transformed image and its
// transformed labels can be checked side by side. All operations work with
// standard Go image.Image types and use a coordinate system where (0,0) is
// at the top-left corner, X increases rightward, and Y increases downward.
//
// # Formats
//
// Load decodes JPEG, PNG, GIF and WebP. Save picks the encoder from the file
// extension: JPEG (default, configurable quality), PNG, or WebP.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Load, Save and the
// overlay functions are stateless and can be called concurrently on
// different images.
//
// # Colors
//
// Each class id maps to a stable color from an HSV palette spaced by the
// golden angle, so overlays of many classes stay readable. A single
// "#RRGGBB" override can be passed instead.
//
// # Error Handling
//
// Functions return errors for unreadable or undecodable files, encoder
// failures and invalid color strings. Boxes partly or fully outside the
// frame are not errors; the outside part is simply not drawn.
package imaging
