// Package server implements the MCP (Model Context Protocol) server for the
// piece dataset tools.
//
// This package provides a JSON-RPC 2.0 server that exposes the annotation
// transforms, the augmentation pipeline and the trainer manifest to
// MCP-compatible clients, so an operator or an agent can check how labels
// follow an image through a rotation before committing a piece.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image Information:
//   - image_dimensions: Get width and height
//
// Annotation Transforms:
//   - annotation_rotate: Rotate YOLO boxes with their image
//   - annotation_flip: Mirror YOLO boxes about an axis
//   - annotation_overlay: Draw boxes on an image, optionally after a transform
//   - annotation_crop: Crop the region of one box to inspect a defect
//
// Dataset Operations:
//   - dataset_augment: Augment a piece's validation pool into train
//   - dataset_rebalance: Move surplus originals from valid to train
//
// Manifest Operations:
//   - manifest_show: Read data.yaml
//   - manifest_register: Add or replace a class name
//
// Annotation tools take boxes either from a label file ("labels") or inline
// ("boxes"). Dataset and manifest tools need the matching Deps field; without
// it they fail with invalid_precondition.
//
// # Image Caching
//
// The server maintains an in-memory cache of loaded images. Images are cached
// by path and reused across multiple tool calls, avoiding redundant disk I/O.
// The dataset tools bypass the cache because they rewrite the pools.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: "Tool execution failed (<kind>)" where kind is not_found,
//     invalid_precondition, io_failure or error
//   - data: The Go error string
//
// # Usage
//
// The server is started by the piece-dataset serve command:
//
//	srv := server.New(server.Deps{Augmenter: aug, Manifest: store})
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
package server
