package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/dataset"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/filemover"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/imaging"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/manifest"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/transform"
)

const testLabel = "A123.12345"

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	tmpFile, err := os.CreateTemp(t.TempDir(), "handler-test-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}

	return tmpFile.Name()
}

// createTestLabelFile writes boxes to a label file and returns its path.
func createTestLabelFile(t *testing.T, boxes ...annotation.BoundingBox) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.txt")
	if err := annotation.WriteFile(path, boxes); err != nil {
		t.Fatalf("failed to write labels: %v", err)
	}
	return path
}

// callTool sends a tools/call request through handleRequest.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	}

	resp := s.handleRequest(context.Background(), req)
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeResult unmarshals the text content of a successful tool call into v.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %s: %s", resp.Error.Message, resp.Error.Data)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Result should be a map, got %T", resp.Result)
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content should hold one item, got %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to decode tool result: %v\n%s", err, text)
	}
}

// expectToolError checks that a tool call failed with the given error kind.
func expectToolError(t *testing.T, resp *MCPResponse, kind string) {
	t.Helper()

	if resp.Error == nil {
		t.Fatal("Expected error response")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Message, "("+kind+")") {
		t.Errorf("Error message %q should name kind %s", resp.Error.Message, kind)
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func assertBox(t *testing.T, got, want annotation.BoundingBox) {
	t.Helper()
	if got.ClassID != want.ClassID ||
		!approxEqual(got.XCenter, want.XCenter) ||
		!approxEqual(got.YCenter, want.YCenter) ||
		!approxEqual(got.Width, want.Width) ||
		!approxEqual(got.Height, want.Height) {
		t.Errorf("box: got %+v, want %+v", got, want)
	}
}

// newDatasetServer returns a server whose dataset tools work on a temp root.
func newDatasetServer(t *testing.T) (*Server, *dataset.Augmenter) {
	t.Helper()
	aug := dataset.NewAugmenter(t.TempDir())
	aug.Mover = &filemover.Mover{Rand: rand.New(rand.NewSource(7))}
	aug.Specs = []transform.Spec{transform.Rotate(90)}
	aug.Workers = 2
	aug.KeepValid = 1
	return New(Deps{Augmenter: aug}), aug
}

// seedValidPool writes n annotated images into the label's valid pool.
func seedValidPool(t *testing.T, aug *dataset.Augmenter, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 32, 32))
		for y := 0; y < 32; y++ {
			for x := 0; x < 32; x++ {
				img.Set(x, y, color.RGBA{uint8(40 * i), 0, 0, 255})
			}
		}
		name := fmt.Sprintf("img_%d.png", i)
		if err := imaging.Save(img, filepath.Join(aug.Layout.ValidImages(testLabel), name), 0); err != nil {
			t.Fatalf("failed to save image: %v", err)
		}
		box := annotation.BoundingBox{ClassID: 2, XCenter: 0.5, YCenter: 0.5, Width: 0.25, Height: 0.25}
		labelPath := annotation.LabelPath(aug.Layout.ValidLabels(testLabel), name)
		if err := annotation.WriteFile(labelPath, []annotation.BoundingBox{box}); err != nil {
			t.Fatalf("failed to write labels: %v", err)
		}
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := New(Deps{})
	imgPath := createTestImageFile(t, 200, 150, color.RGBA{0, 255, 0, 255})

	var dims imaging.DimensionsResult
	decodeResult(t, callTool(t, s, "image_dimensions", map[string]interface{}{"path": imgPath}), &dims)

	if dims.Width != 200 || dims.Height != 150 {
		t.Errorf("dimensions: got %dx%d, want 200x150", dims.Width, dims.Height)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := New(Deps{})

	resp := callTool(t, s, "image_dimensions", map[string]interface{}{
		"path": "/nonexistent/image.png",
	})
	if resp.Error == nil {
		t.Fatal("Expected error for non-existent file")
	}
}

func TestHandleToolsCall_AnnotationRotate(t *testing.T) {
	s := New(Deps{})
	imgPath := createTestImageFile(t, 100, 100, color.RGBA{0, 0, 0, 255})
	labels := createTestLabelFile(t, annotation.BoundingBox{ClassID: 3, XCenter: 0.25, YCenter: 0.5, Width: 0.1, Height: 0.2})

	var result boxesResult
	decodeResult(t, callTool(t, s, "annotation_rotate", map[string]interface{}{
		"path":   imgPath,
		"angle":  90,
		"labels": labels,
	}), &result)

	if result.Spec != "rot90" {
		t.Errorf("transform: got %s, want rot90", result.Spec)
	}
	if result.Policy != "clip" {
		t.Errorf("policy: got %s, want clip", result.Policy)
	}
	if result.Input != 1 || len(result.Boxes) != 1 {
		t.Fatalf("boxes: got %d in, %d out, want 1 and 1", result.Input, len(result.Boxes))
	}
	// A box left of center ends up below center, with width and height swapped.
	assertBox(t, result.Boxes[0], annotation.BoundingBox{ClassID: 3, XCenter: 0.5, YCenter: 0.75, Width: 0.2, Height: 0.1})
}

func TestHandleToolsCall_AnnotationRotate_InlineBoxes(t *testing.T) {
	s := New(Deps{})
	imgPath := createTestImageFile(t, 100, 100, color.RGBA{0, 0, 0, 255})
	box := annotation.BoundingBox{ClassID: 1, XCenter: 0.3, YCenter: 0.6, Width: 0.2, Height: 0.1}

	var result boxesResult
	decodeResult(t, callTool(t, s, "annotation_rotate", map[string]interface{}{
		"path":  imgPath,
		"angle": 0,
		"boxes": []annotation.BoundingBox{box},
	}), &result)

	if len(result.Boxes) != 1 {
		t.Fatalf("boxes: got %d, want 1", len(result.Boxes))
	}
	assertBox(t, result.Boxes[0], box)
}

func TestHandleToolsCall_AnnotationRotate_Policy(t *testing.T) {
	s := New(Deps{})
	imgPath := createTestImageFile(t, 200, 100, color.RGBA{0, 0, 0, 255})
	// On a wide frame a quarter turn pushes this box past the bottom edge.
	box := annotation.BoundingBox{ClassID: 0, XCenter: 0.1, YCenter: 0.5, Width: 0.1, Height: 0.2}

	var dropped boxesResult
	decodeResult(t, callTool(t, s, "annotation_rotate", map[string]interface{}{
		"path":   imgPath,
		"angle":  90,
		"boxes":  []annotation.BoundingBox{box},
		"policy": "drop",
	}), &dropped)
	if len(dropped.Boxes) != 0 {
		t.Errorf("drop policy: got %d boxes, want 0", len(dropped.Boxes))
	}

	var kept boxesResult
	decodeResult(t, callTool(t, s, "annotation_rotate", map[string]interface{}{
		"path":   imgPath,
		"angle":  90,
		"boxes":  []annotation.BoundingBox{box},
		"policy": "keep",
	}), &kept)
	if len(kept.Boxes) != 1 {
		t.Fatalf("keep policy: got %d boxes, want 1", len(kept.Boxes))
	}
	if _, _, _, y2 := kept.Boxes[0].Bounds(); y2 <= 1 {
		t.Errorf("keep policy should leave the box outside the frame, y2=%g", y2)
	}

	resp := callTool(t, s, "annotation_rotate", map[string]interface{}{
		"path":   imgPath,
		"angle":  90,
		"boxes":  []annotation.BoundingBox{box},
		"policy": "bogus",
	})
	expectToolError(t, resp, "invalid_precondition")
}

func TestHandleToolsCall_AnnotationRotate_MissingLabels(t *testing.T) {
	s := New(Deps{})
	imgPath := createTestImageFile(t, 50, 50, color.RGBA{0, 0, 0, 255})

	resp := callTool(t, s, "annotation_rotate", map[string]interface{}{
		"path":   imgPath,
		"angle":  45,
		"labels": filepath.Join(t.TempDir(), "missing.txt"),
	})
	expectToolError(t, resp, "not_found")
}

func TestHandleToolsCall_AnnotationFlip(t *testing.T) {
	s := New(Deps{})
	box := annotation.BoundingBox{ClassID: 2, XCenter: 0.25, YCenter: 0.4, Width: 0.1, Height: 0.2}

	tests := []struct {
		axis string
		want annotation.BoundingBox
	}{
		{"horizontal", annotation.BoundingBox{ClassID: 2, XCenter: 0.75, YCenter: 0.4, Width: 0.1, Height: 0.2}},
		{"1", annotation.BoundingBox{ClassID: 2, XCenter: 0.75, YCenter: 0.4, Width: 0.1, Height: 0.2}},
		{"vertical", annotation.BoundingBox{ClassID: 2, XCenter: 0.25, YCenter: 0.6, Width: 0.1, Height: 0.2}},
		{"0", annotation.BoundingBox{ClassID: 2, XCenter: 0.25, YCenter: 0.6, Width: 0.1, Height: 0.2}},
	}

	for _, tt := range tests {
		t.Run(tt.axis, func(t *testing.T) {
			var result boxesResult
			decodeResult(t, callTool(t, s, "annotation_flip", map[string]interface{}{
				"axis":  tt.axis,
				"boxes": []annotation.BoundingBox{box},
			}), &result)
			if len(result.Boxes) != 1 {
				t.Fatalf("boxes: got %d, want 1", len(result.Boxes))
			}
			assertBox(t, result.Boxes[0], tt.want)
		})
	}
}

func TestHandleToolsCall_AnnotationFlip_InvalidAxis(t *testing.T) {
	s := New(Deps{})

	resp := callTool(t, s, "annotation_flip", map[string]interface{}{
		"axis":  "diagonal",
		"boxes": []annotation.BoundingBox{},
	})
	expectToolError(t, resp, "invalid_precondition")
}

func TestHandleToolsCall_AnnotationFlip_InvalidBox(t *testing.T) {
	s := New(Deps{})

	resp := callTool(t, s, "annotation_flip", map[string]interface{}{
		"axis":  "horizontal",
		"boxes": []annotation.BoundingBox{{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 0, Height: 0.1}},
	})
	expectToolError(t, resp, "invalid_precondition")
}

func TestHandleToolsCall_AnnotationOverlay(t *testing.T) {
	s := New(Deps{})
	imgPath := createTestImageFile(t, 80, 60, color.RGBA{128, 128, 128, 255})
	labels := createTestLabelFile(t,
		annotation.BoundingBox{ClassID: 0, XCenter: 0.25, YCenter: 0.25, Width: 0.2, Height: 0.2},
		annotation.BoundingBox{ClassID: 1, XCenter: 0.75, YCenter: 0.75, Width: 0.2, Height: 0.2},
	)

	var result imaging.OverlayResult
	decodeResult(t, callTool(t, s, "annotation_overlay", map[string]interface{}{
		"path":   imgPath,
		"labels": labels,
	}), &result)

	if result.Width != 80 || result.Height != 60 {
		t.Errorf("dimensions: got %dx%d, want 80x60", result.Width, result.Height)
	}
	if result.Boxes != 2 {
		t.Errorf("Boxes: got %d, want 2", result.Boxes)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}
	if result.ImageBase64 == "" {
		t.Error("ImageBase64 should not be empty")
	}
}

func TestHandleToolsCall_AnnotationOverlay_WithTransform(t *testing.T) {
	s := New(Deps{})
	imgPath := createTestImageFile(t, 80, 60, color.RGBA{128, 128, 128, 255})
	box := annotation.BoundingBox{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.2}

	var flipped imaging.OverlayResult
	decodeResult(t, callTool(t, s, "annotation_overlay", map[string]interface{}{
		"path":       imgPath,
		"boxes":      []annotation.BoundingBox{box},
		"transform":  "flip1",
		"color":      "#FF0000",
		"thickness":  3,
		"show_class": false,
	}), &flipped)
	if flipped.Width != 80 || flipped.Height != 60 {
		t.Errorf("flip keeps size: got %dx%d, want 80x60", flipped.Width, flipped.Height)
	}
	if flipped.Boxes != 1 {
		t.Errorf("Boxes: got %d, want 1", flipped.Boxes)
	}

	resp := callTool(t, s, "annotation_overlay", map[string]interface{}{
		"path":      imgPath,
		"boxes":     []annotation.BoundingBox{box},
		"transform": "shear10",
	})
	expectToolError(t, resp, "invalid_precondition")
}

func TestHandleToolsCall_AnnotationCrop(t *testing.T) {
	s := New(Deps{})
	imgPath := createTestImageFile(t, 100, 100, color.RGBA{0, 0, 255, 255})
	boxes := []annotation.BoundingBox{
		{ClassID: 0, XCenter: 0.25, YCenter: 0.25, Width: 0.2, Height: 0.2},
		{ClassID: 1, XCenter: 0.75, YCenter: 0.5, Width: 0.2, Height: 0.4},
	}

	var result imaging.CropResult
	decodeResult(t, callTool(t, s, "annotation_crop", map[string]interface{}{
		"path":   imgPath,
		"boxes":  boxes,
		"index":  1,
		"margin": 0,
	}), &result)

	if result.Width != 20 || result.Height != 40 {
		t.Errorf("dimensions: got %dx%d, want 20x40", result.Width, result.Height)
	}
	if result.Box.ClassID != 1 {
		t.Errorf("Box class: got %d, want 1", result.Box.ClassID)
	}

	// The first box lands in the bottom-left quadrant after a quarter turn.
	decodeResult(t, callTool(t, s, "annotation_crop", map[string]interface{}{
		"path":      imgPath,
		"boxes":     boxes,
		"transform": "rot90",
		"margin":    0,
		"scale":     2,
	}), &result)
	if result.X1 != 15 || result.Y1 != 65 {
		t.Errorf("rotated crop origin: got (%d,%d), want (15,65)", result.X1, result.Y1)
	}
	if result.Width != 40 || result.Height != 40 {
		t.Errorf("scaled dimensions: got %dx%d, want 40x40", result.Width, result.Height)
	}

	expectToolError(t, callTool(t, s, "annotation_crop", map[string]interface{}{
		"path":  imgPath,
		"boxes": boxes,
		"index": 2,
	}), "invalid_precondition")
}

func TestHandleToolsCall_DatasetAugment(t *testing.T) {
	s, aug := newDatasetServer(t)
	seedValidPool(t, aug, 3)

	var report dataset.Report
	decodeResult(t, callTool(t, s, "dataset_augment", map[string]interface{}{"label": testLabel}), &report)

	if report.Label != testLabel {
		t.Errorf("Label: got %s, want %s", report.Label, testLabel)
	}
	if report.Images != 3 {
		t.Errorf("Images: got %d, want 3", report.Images)
	}
	if report.Variants != 3 {
		t.Errorf("Variants: got %d, want 3", report.Variants)
	}
	if report.Rebalance.MovedImages != 2 {
		t.Errorf("moved originals: got %d, want 2", report.Rebalance.MovedImages)
	}

	rotated := filepath.Join(aug.Layout.TrainImages(testLabel), "img_0_rot90"+dataset.OutputExt)
	if _, err := os.Stat(rotated); err != nil {
		t.Errorf("rotated variant missing: %v", err)
	}
}

func TestHandleToolsCall_DatasetAugment_Errors(t *testing.T) {
	s, _ := newDatasetServer(t)

	t.Run("invalid label", func(t *testing.T) {
		expectToolError(t, callTool(t, s, "dataset_augment", map[string]interface{}{"label": "bad"}), "invalid_precondition")
	})
	t.Run("missing pool", func(t *testing.T) {
		expectToolError(t, callTool(t, s, "dataset_augment", map[string]interface{}{"label": testLabel}), "not_found")
	})
	t.Run("not configured", func(t *testing.T) {
		resp := callTool(t, New(Deps{}), "dataset_augment", map[string]interface{}{"label": testLabel})
		expectToolError(t, resp, "invalid_precondition")
	})
}

func TestHandleToolsCall_DatasetRebalance(t *testing.T) {
	s, aug := newDatasetServer(t)
	seedValidPool(t, aug, 4)

	var report filemover.Report
	decodeResult(t, callTool(t, s, "dataset_rebalance", map[string]interface{}{
		"label": testLabel,
		"keep":  2,
	}), &report)

	if report.Listed != 4 {
		t.Errorf("Listed: got %d, want 4", report.Listed)
	}
	if report.MovedImages != 2 || report.MovedLabels != 2 {
		t.Errorf("moved: got %d images and %d labels, want 2 and 2", report.MovedImages, report.MovedLabels)
	}

	// Without keep the augmenter default applies.
	decodeResult(t, callTool(t, s, "dataset_rebalance", map[string]interface{}{"label": testLabel}), &report)
	if report.MovedImages != 1 {
		t.Errorf("default keep: moved %d, want 1", report.MovedImages)
	}

	expectToolError(t, callTool(t, s, "dataset_rebalance", map[string]interface{}{
		"label": testLabel,
		"keep":  -1,
	}), "invalid_precondition")
}

func TestHandleToolsCall_Manifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.yaml")
	s := New(Deps{Manifest: manifest.NewStore(path, "/data/train", "/data/valid")})

	var empty manifest.Manifest
	decodeResult(t, callTool(t, s, "manifest_show", map[string]interface{}{}), &empty)
	if empty.NC != 0 || len(empty.Names) != 0 {
		t.Errorf("empty manifest: got nc=%d names=%v", empty.NC, empty.Names)
	}
	if empty.Train != "/data/train" || empty.Val != "/data/valid" {
		t.Errorf("pointers: got %s and %s", empty.Train, empty.Val)
	}

	var registered manifest.Manifest
	decodeResult(t, callTool(t, s, "manifest_register", map[string]interface{}{
		"class_id": 0,
		"label":    testLabel,
	}), &registered)
	if registered.NC != 1 || registered.Names[0] != testLabel {
		t.Errorf("register: got nc=%d names=%v", registered.NC, registered.Names)
	}

	var shown manifest.Manifest
	decodeResult(t, callTool(t, s, "manifest_show", map[string]interface{}{}), &shown)
	if shown.Names[0] != testLabel {
		t.Errorf("show after register: got %v", shown.Names)
	}
}

func TestHandleToolsCall_ManifestRegister_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.yaml")
	s := New(Deps{Manifest: manifest.NewStore(path, "", "")})

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing class id", map[string]interface{}{"label": testLabel}},
		{"negative class id", map[string]interface{}{"class_id": -1, "label": testLabel}},
		{"invalid label", map[string]interface{}{"class_id": 1, "label": "not-a-label"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectToolError(t, callTool(t, s, "manifest_register", tt.args), "invalid_precondition")
		})
	}

	t.Run("not configured", func(t *testing.T) {
		expectToolError(t, callTool(t, New(Deps{}), "manifest_show", map[string]interface{}{}), "invalid_precondition")
	})
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := New(Deps{})

	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})
	expectToolError(t, resp, "error")
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(Deps{})

	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`{invalid json}`),
	}

	resp := s.handleRequest(context.Background(), req)

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestExecuteTool_AllTools(t *testing.T) {
	// Every defined tool must be dispatched, even when the call itself fails.
	s := New(Deps{})
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			_, err := s.executeTool(context.Background(), tool.Name, json.RawMessage(`{}`))
			if err != nil && strings.HasPrefix(err.Error(), "unknown tool") {
				t.Errorf("Tool %s is defined but not dispatched", tool.Name)
			}
		})
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := New(Deps{})

	_, err := s.executeTool(context.Background(), "unknown_tool", json.RawMessage(`{}`))
	if err == nil {
		t.Error("Expected error for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := New(Deps{})

	_, err := s.executeTool(context.Background(), "image_dimensions", json.RawMessage(`{invalid}`))
	if err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestErrorKind(t *testing.T) {
	s := New(Deps{})
	imgPath := createTestImageFile(t, 10, 10, color.RGBA{0, 0, 0, 255})

	_, err := s.executeTool(context.Background(), "annotation_rotate", json.RawMessage(
		fmt.Sprintf(`{"path": %q, "angle": 90, "labels": "/nonexistent/labels.txt"}`, imgPath)))
	if got := errorKind(err); got != "not_found" {
		t.Errorf("errorKind: got %s, want not_found", got)
	}
	if got := errorKind(fmt.Errorf("plain")); got != "error" {
		t.Errorf("errorKind: got %s, want error", got)
	}
}
