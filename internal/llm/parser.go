package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kasbahsoft/comptaflow/internal/common"
)

// errRateLimited marks HTTP 429 responses so the retry layer can back off.
var errRateLimited = common.ErrRateLimit

// parseClassification extracts the PCM assignment from an oracle response.
func parseClassification(content string) (ClassificationResponse, error) {
	var jsonResp struct {
		PcmClass     int     `json:"pcm_class"`
		AccountCode  string  `json:"pcm_account_code"`
		AccountLabel string  `json:"pcm_account_label"`
		Confidence   float64 `json:"confidence"`
		Reason       string  `json:"reason,omitempty"`
	}

	content = cleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), &jsonResp); err != nil {
		return ClassificationResponse{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if jsonResp.AccountCode == "" {
		return ClassificationResponse{}, fmt.Errorf("no account code found in response")
	}

	if jsonResp.Confidence < 0 {
		jsonResp.Confidence = 0
	} else if jsonResp.Confidence > 1 {
		jsonResp.Confidence = 1
	}

	// Derive the class from the code when the model omitted it.
	if jsonResp.PcmClass == 0 {
		jsonResp.PcmClass = int(jsonResp.AccountCode[0] - '0')
	}

	return ClassificationResponse{
		PcmClass:     jsonResp.PcmClass,
		AccountCode:  jsonResp.AccountCode,
		AccountLabel: jsonResp.AccountLabel,
		Confidence:   jsonResp.Confidence,
		Reason:       jsonResp.Reason,
	}, nil
}

// parseExtraction extracts header fields and lines from an oracle response.
// Accepts either {"fields": {...}, "lines": [...]} or a bare field object.
func parseExtraction(content string) (ExtractionResponse, error) {
	content = cleanMarkdownWrapper(content)

	var wrapped struct {
		Fields map[string]any   `json:"fields"`
		Lines  []map[string]any `json:"lines"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil &&
		(wrapped.Fields != nil || wrapped.Lines != nil) {
		return ExtractionResponse{
			Fields: stringifyMap(wrapped.Fields),
			Lines:  stringifyMaps(wrapped.Lines),
		}, nil
	}

	var flat map[string]any
	if err := json.Unmarshal([]byte(content), &flat); err != nil {
		return ExtractionResponse{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if len(flat) == 0 {
		return ExtractionResponse{}, fmt.Errorf("no fields found in response")
	}

	return ExtractionResponse{Fields: stringifyMap(flat)}, nil
}

// stringifyMap flattens JSON values to strings; numbers keep their literal
// form so the decimal parser sees exactly what the model produced.
func stringifyMap(in map[string]any) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			// Absent field, skip.
		case string:
			if val != "" {
				out[k] = val
			}
		case float64:
			out[k] = trimFloat(val)
		case bool:
			out[k] = fmt.Sprintf("%t", val)
		default:
			raw, err := json.Marshal(val)
			if err == nil {
				out[k] = string(raw)
			}
		}
	}
	return out
}

func stringifyMaps(in []map[string]any) []map[string]string {
	if in == nil {
		return nil
	}
	out := make([]map[string]string, 0, len(in))
	for _, m := range in {
		out = append(out, stringifyMap(m))
	}
	return out
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	if strings.HasSuffix(s, ".00") {
		return strings.TrimSuffix(s, ".00")
	}
	return s
}

// cleanMarkdownWrapper strips markdown code fences models sometimes wrap
// around JSON payloads.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx != -1 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	return strings.TrimSpace(content)
}
