package config

// defaultTrainParams returns the compiled training parameter set. Keys
// are the engine's own argument names and pass through to it verbatim.
func defaultTrainParams() map[string]any {
	return map[string]any{
		"device":        "cuda",
		"epochs":        150,
		"imgsz":         1440,
		"batch":         0.70,
		"patience":      50,
		"lr0":           0.01,
		"weight_decay":  0.0005,
		"warmup_epochs": 3,
		"cos_lr":        true,
		"augment":       true,
		"cache":         true,
		"amp":           true,
		"hsv_h":         0.015,
		"hsv_s":         0.7,
		"hsv_v":         0.4,
		"degrees":       0,
		"translate":     0.1,
		"scale":         0.5,
		"fliplr":        0,
		"flipud":        0,
		"mosaic":        1.0,
		"mixup":         0,
		"close_mosaic":  10,
		"workers":       8,
	}
}

// defaultExportParams returns the compiled export parameter set.
func defaultExportParams() map[string]any {
	return map[string]any{
		"format":   "onnx",
		"opset":    12,
		"simplify": true,
		"dynamic":  false,
	}
}

// mergeParams copies base and lays over on top, one key at a time.
// Neither input map is modified.
func mergeParams(base, over map[string]any) map[string]any {
	if base == nil && over == nil {
		return nil
	}
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
