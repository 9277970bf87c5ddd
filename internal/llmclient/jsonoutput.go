package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"contractrisk/internal/coreerr"
)

// stripCodeFence removes a leading/trailing ``` fence, since providers
// frequently wrap JSON output in one despite instructions not to.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	var filtered []string
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		filtered = append(filtered, l)
	}
	return strings.TrimSpace(strings.Join(filtered, "\n"))
}

// ChatJSON sends req and unmarshals the response into out, stripping any
// code fence first. If the first response fails to parse, it issues one
// repair-prompt retry asking the provider to fix its own output before
// giving up with coreerr.ErrParseError.
func ChatJSON(ctx context.Context, p Provider, req Request, out any) error {
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return err
	}
	text := stripCodeFence(resp.Content)
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	repairReq := req
	repairReq.Messages = append(append([]Message{}, req.Messages...), Message{
		Role: "user",
		Content: fmt.Sprintf(
			"Your previous response was not valid JSON matching the requested schema. "+
				"Respond again with ONLY the corrected JSON object, no prose, no code fence.\n\nPrevious response:\n%s",
			resp.Content,
		),
	})
	repairResp, err := p.Chat(ctx, repairReq)
	if err != nil {
		return err
	}
	repairText := stripCodeFence(repairResp.Content)
	if err := json.Unmarshal([]byte(repairText), out); err != nil {
		return fmt.Errorf("%w: %v", coreerr.ErrParseError, err)
	}
	return nil
}
