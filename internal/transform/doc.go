// Package transform is the geometry engine of the dataset pipeline: it
// rotates and flips images together with their YOLO annotations.
//
// # Conventions
//
// Pixel space has its origin at the top-left corner with Y increasing
// downward. A positive rotation angle turns the image content
// counter-clockwise as displayed, about the image center, on a canvas of
// unchanged size. Content leaving the canvas is clipped and the exposed
// corners are filled black.
//
// Annotation corners are rotated by the negated angle in the same y-down
// space, which is the same on-screen counter-clockwise motion. The package
// tests render a colored block, rotate image and box together, and check
// the block still lies inside the rotated box.
//
// # Purity
//
// Every function returns new values. Boxes passed in are never modified and
// image dimensions are always read from the image being transformed.
//
// # Out-of-frame boxes
//
// RotateBox and FlipBox never clamp. Apply runs the result through a
// BoxPolicy: keep the raw envelope, clip it to the frame, or drop boxes that
// leave the frame.
package transform
