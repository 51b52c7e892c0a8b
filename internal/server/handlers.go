package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/dataset"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/filemover"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/imaging"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/transform"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "annotation_rotate").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// errorKind names the error class of a failed tool call so clients can tell
// a retryable failure from a rejected request.
func errorKind(err error) string {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrInvalidPrecondition):
		return "invalid_precondition"
	case errors.Is(err, common.ErrIOFailure):
		return "io_failure"
	default:
		return "error"
	}
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed ("+errorKind(err)+")", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_dimensions":
		return s.handleImageDimensions(args)

	case "annotation_rotate":
		return s.handleAnnotationRotate(args)
	case "annotation_flip":
		return s.handleAnnotationFlip(args)
	case "annotation_overlay":
		return s.handleAnnotationOverlay(args)
	case "annotation_crop":
		return s.handleAnnotationCrop(args)

	case "dataset_augment":
		return s.handleDatasetAugment(ctx, args)
	case "dataset_rebalance":
		return s.handleDatasetRebalance(ctx, args)

	case "manifest_show":
		return s.handleManifestShow()
	case "manifest_register":
		return s.handleManifestRegister(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Image Handlers ===

type imagePathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Annotation Handlers ===

// boxSource is embedded by tools that accept either a label file or
// inline boxes.
type boxSource struct {
	Labels string                   `json:"labels"`
	Boxes  []annotation.BoundingBox `json:"boxes"`
}

func (b boxSource) load() ([]annotation.BoundingBox, error) {
	if b.Labels != "" {
		return annotation.ReadFile(b.Labels)
	}
	for i, box := range b.Boxes {
		if err := box.Validate(); err != nil {
			return nil, common.InvalidPrecondition("boxes", "box %d: %v", i, err)
		}
	}
	return b.Boxes, nil
}

// policy resolves an optional per-call policy against the server default.
func (s *Server) policy(name string) (transform.BoxPolicy, error) {
	if name == "" {
		return s.deps.Policy, nil
	}
	p, err := transform.ParseBoxPolicy(name)
	if err != nil {
		return 0, common.InvalidPrecondition("policy", "%v", err)
	}
	return p, nil
}

type boxesResult struct {
	Width  int                      `json:"width,omitempty"`
	Height int                      `json:"height,omitempty"`
	Spec   string                   `json:"transform"`
	Policy string                   `json:"policy,omitempty"`
	Input  int                      `json:"input_boxes"`
	Boxes  []annotation.BoundingBox `json:"boxes"`
}

type annotationRotateArgs struct {
	boxSource
	Path   string  `json:"path"`
	Angle  float64 `json:"angle"`
	Policy string  `json:"policy"`
}

func (s *Server) handleAnnotationRotate(args json.RawMessage) (interface{}, error) {
	var a annotationRotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	boxes, err := a.load()
	if err != nil {
		return nil, err
	}
	policy, err := s.policy(a.Policy)
	if err != nil {
		return nil, err
	}
	dims, err := imaging.GetDimensions(s.cache, a.Path)
	if err != nil {
		return nil, err
	}

	spec := transform.Rotate(a.Angle)
	rotated, err := transform.Boxes(boxes, spec, dims.Width, dims.Height)
	if err != nil {
		return nil, err
	}
	return &boxesResult{
		Width:  dims.Width,
		Height: dims.Height,
		Spec:   spec.String(),
		Policy: policy.String(),
		Input:  len(boxes),
		Boxes:  policy.Apply(rotated),
	}, nil
}

type annotationFlipArgs struct {
	boxSource
	Axis string `json:"axis"`
}

func parseAxis(v string) (transform.Axis, error) {
	switch v {
	case "vertical", "0":
		return transform.Vertical, nil
	case "horizontal", "1":
		return transform.Horizontal, nil
	default:
		return 0, common.InvalidPrecondition("flip", "unknown axis %q", v)
	}
}

func (s *Server) handleAnnotationFlip(args json.RawMessage) (interface{}, error) {
	var a annotationFlipArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	axis, err := parseAxis(a.Axis)
	if err != nil {
		return nil, err
	}
	boxes, err := a.load()
	if err != nil {
		return nil, err
	}

	spec := transform.Flip(axis)
	flipped, err := transform.Boxes(boxes, spec, 0, 0)
	if err != nil {
		return nil, err
	}
	return &boxesResult{
		Spec:  spec.String(),
		Input: len(boxes),
		Boxes: flipped,
	}, nil
}

type annotationOverlayArgs struct {
	boxSource
	Path      string `json:"path"`
	Transform string `json:"transform"`
	Policy    string `json:"policy"`
	Thickness int    `json:"thickness"`
	Color     string `json:"color"`
	ShowClass *bool  `json:"show_class"`
}

func (s *Server) handleAnnotationOverlay(args json.RawMessage) (interface{}, error) {
	var a annotationOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	boxes, err := a.load()
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	if a.Transform != "" {
		spec, err := transform.ParseSpec(a.Transform)
		if err != nil {
			return nil, common.InvalidPrecondition("overlay", "%v", err)
		}
		policy, err := s.policy(a.Policy)
		if err != nil {
			return nil, err
		}
		img, boxes, err = transform.Apply(img, boxes, spec, policy)
		if err != nil {
			return nil, err
		}
	}

	showClass := true
	if a.ShowClass != nil {
		showClass = *a.ShowClass
	}
	return imaging.RenderOverlay(img, boxes, imaging.OverlayOptions{
		Thickness: a.Thickness,
		ColorHex:  a.Color,
		ShowClass: showClass,
	})
}

type annotationCropArgs struct {
	boxSource
	Path      string   `json:"path"`
	Index     int      `json:"index"`
	Transform string   `json:"transform"`
	Policy    string   `json:"policy"`
	Margin    *float64 `json:"margin"`
	Scale     float64  `json:"scale"`
}

func (s *Server) handleAnnotationCrop(args json.RawMessage) (interface{}, error) {
	var a annotationCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	boxes, err := a.load()
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	if a.Transform != "" {
		spec, err := transform.ParseSpec(a.Transform)
		if err != nil {
			return nil, common.InvalidPrecondition("crop", "%v", err)
		}
		policy, err := s.policy(a.Policy)
		if err != nil {
			return nil, err
		}
		img, boxes, err = transform.Apply(img, boxes, spec, policy)
		if err != nil {
			return nil, err
		}
	}

	if a.Index < 0 || a.Index >= len(boxes) {
		return nil, common.InvalidPrecondition("crop", "box index %d out of range, image has %d boxes", a.Index, len(boxes))
	}
	margin := 0.25
	if a.Margin != nil {
		margin = *a.Margin
	}
	scale := a.Scale
	if scale == 0 {
		scale = 1.0
	}

	result, err := imaging.CropBox(img, boxes[a.Index], margin, scale)
	if err != nil {
		return nil, common.InvalidPrecondition("crop", "%v", err)
	}
	return result, nil
}

// === Dataset Handlers ===

type datasetLabelArgs struct {
	Label string `json:"label"`
	Keep  *int   `json:"keep"`
}

func (s *Server) augmenter() (*dataset.Augmenter, error) {
	if s.deps.Augmenter == nil {
		return nil, common.InvalidPrecondition("dataset", "dataset tools are not configured")
	}
	return s.deps.Augmenter, nil
}

func (s *Server) handleDatasetAugment(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a datasetLabelArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	aug, err := s.augmenter()
	if err != nil {
		return nil, err
	}
	report, err := aug.Run(ctx, a.Label)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Server) handleDatasetRebalance(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a datasetLabelArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	aug, err := s.augmenter()
	if err != nil {
		return nil, err
	}
	if err := dataset.ValidatePieceLabel(a.Label); err != nil {
		return nil, err
	}

	keep := aug.KeepValid
	if a.Keep != nil {
		keep = *a.Keep
	}
	mover := aug.Mover
	if mover == nil {
		mover = filemover.New()
	}
	if aug.Locker != nil {
		unlock := aug.Locker.Lock(a.Label)
		defer unlock()
	}

	report, err := mover.Rebalance(ctx, aug.Layout.Pools(a.Label), keep)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// === Manifest Handlers ===

func (s *Server) handleManifestShow() (interface{}, error) {
	if s.deps.Manifest == nil {
		return nil, common.InvalidPrecondition("manifest", "manifest is not configured")
	}
	return s.deps.Manifest.Load()
}

type manifestRegisterArgs struct {
	ClassID *int   `json:"class_id"`
	Label   string `json:"label"`
}

func (s *Server) handleManifestRegister(args json.RawMessage) (interface{}, error) {
	var a manifestRegisterArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.deps.Manifest == nil {
		return nil, common.InvalidPrecondition("manifest", "manifest is not configured")
	}
	if a.ClassID == nil {
		return nil, common.InvalidPrecondition("manifest", "class_id is required")
	}
	if err := dataset.ValidatePieceLabel(a.Label); err != nil {
		return nil, err
	}
	return s.deps.Manifest.Register(*a.ClassID, a.Label)
}
