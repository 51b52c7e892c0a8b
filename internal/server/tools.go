package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var boxesSchema = map[string]interface{}{
	"type": "array",
	"items": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"class_id": map[string]interface{}{"type": "integer"},
			"x_center": map[string]interface{}{"type": "number"},
			"y_center": map[string]interface{}{"type": "number"},
			"width":    map[string]interface{}{"type": "number"},
			"height":   map[string]interface{}{"type": "number"},
		},
		"required": []string{"class_id", "x_center", "y_center", "width", "height"},
	},
	"description": "Inline YOLO boxes. Used when 'labels' is omitted.",
}

var labelsSchema = map[string]interface{}{
	"type":        "string",
	"description": "Path to a YOLO label file (<class> <xc> <yc> <w> <h> per line)",
}

var policySchema = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"clip", "keep", "drop"},
	"description": "How to treat boxes that leave the frame. Default is the server setting.",
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image information
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},

		// Annotation geometry
		{
			Name:        "annotation_rotate",
			Description: "Rotate YOLO boxes by an angle about the image centre, as done for a rotated dataset variant. Positive angles are counter-clockwise. The image is only read for its dimensions.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image the boxes belong to",
					},
					"angle": map[string]interface{}{
						"type":        "number",
						"description": "Rotation in degrees, counter-clockwise",
					},
					"labels": labelsSchema,
					"boxes":  boxesSchema,
					"policy": policySchema,
				},
				"required": []string{"path", "angle"},
			},
		},
		{
			Name:        "annotation_flip",
			Description: "Mirror YOLO boxes. Axis 'vertical' (code 0) flips top to bottom, 'horizontal' (code 1) flips left to right.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"axis": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"vertical", "horizontal", "0", "1"},
						"description": "Flip axis",
					},
					"labels": labelsSchema,
					"boxes":  boxesSchema,
				},
				"required": []string{"axis"},
			},
		},
		{
			Name:        "annotation_overlay",
			Description: "Draw YOLO boxes on an image and return it as base64-encoded PNG. With 'transform' set, the image and boxes are first transformed so their alignment can be checked.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"labels": labelsSchema,
					"boxes":  boxesSchema,
					"transform": map[string]interface{}{
						"type":        "string",
						"description": "Optional variant to render, e.g. 'rot45', 'flip0', 'flip1'",
					},
					"policy": policySchema,
					"thickness": map[string]interface{}{
						"type":        "integer",
						"description": "Outline thickness in pixels (default 2)",
						"default":     2,
					},
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Outline color as hex. Default is one color per class.",
					},
					"show_class": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw the class id above each box",
						"default":     true,
					},
				},
				"required": []string{"path"},
			},
		},

		{
			Name:        "annotation_crop",
			Description: "Crop the region of one YOLO box out of an image and return it as base64-encoded PNG, to inspect a defect up close. With 'transform' set, the crop is taken from the transformed variant.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"labels": labelsSchema,
					"boxes":  boxesSchema,
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "Zero-based index of the box to crop",
						"default":     0,
					},
					"transform": map[string]interface{}{
						"type":        "string",
						"description": "Optional variant to crop from, e.g. 'rot90', 'flip1'",
					},
					"policy": policySchema,
					"margin": map[string]interface{}{
						"type":        "number",
						"description": "Extra context around the box as a fraction of its size (default 0.25)",
						"default":     0.25,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Scale factor for the output (default 1.0)",
						"default":     1.0,
					},
				},
				"required": []string{"path"},
			},
		},

		// Dataset operations
		{
			Name:        "dataset_augment",
			Description: "Write rotated and flipped variants of every validation image of a piece into its train pool, then move surplus originals to train.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"label": map[string]interface{}{
						"type":        "string",
						"description": "Piece label, e.g. D123.12345",
					},
				},
				"required": []string{"label"},
			},
		},
		{
			Name:        "dataset_rebalance",
			Description: "Move randomly chosen validation images of a piece, with their labels, to train until 'keep' remain. Files already present in train with identical content are skipped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"label": map[string]interface{}{
						"type":        "string",
						"description": "Piece label, e.g. D123.12345",
					},
					"keep": map[string]interface{}{
						"type":        "integer",
						"description": "Images to leave in valid. Default is the server setting.",
					},
				},
				"required": []string{"label"},
			},
		},

		// Manifest
		{
			Name:        "manifest_show",
			Description: "Return the dataset manifest: class names, class count and pool paths.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "manifest_register",
			Description: "Add or replace a class in the dataset manifest.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"class_id": map[string]interface{}{
						"type":        "integer",
						"description": "Detector class index",
					},
					"label": map[string]interface{}{
						"type":        "string",
						"description": "Piece label for the class",
					},
				},
				"required": []string{"class_id", "label"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
