package control

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/payfill/kit"
)

// RegisterMCP registers the control tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	settingsSchema := map[string]any{
		"type":                 "object",
		"description":          "Setting keys (enabled, binPrefix, cardNumber, expMonth, expYear, cvc, fullName, email, phone, addressLine1, addressLine2, city, state, zip, country)",
		"additionalProperties": true,
	}

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "payfill_fill_now",
		Description: "Run a forced fill on the attached checkout page. Optionally saves settings first. Returns the scan report.",
		InputSchema: inputSchema(map[string]any{
			"settings": settingsSchema,
		}, nil),
	}, s.wrap("fill_now", s.fillEndpoint()), kit.DecodeMCP[FillRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "payfill_generate_card",
		Description: "Generate a Luhn-valid test card number from a BIN prefix (6 to length-1 digits).",
		InputSchema: inputSchema(map[string]any{
			"bin":    map[string]any{"type": "string", "description": "BIN prefix; defaults to the stored binPrefix"},
			"length": map[string]any{"type": "integer", "description": "Number length (default 16)"},
			"save":   map[string]any{"type": "boolean", "description": "Store the number as the cardNumber setting"},
		}, nil),
	}, s.wrap("generate_card", s.cardEndpoint()), kit.DecodeMCP[CardRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "payfill_get_settings",
		Description: "Return the stored fill settings and their revision.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, s.wrap("get_settings", s.getSettingsEndpoint()), kit.DecodeMCP[struct{}]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "payfill_save_settings",
		Description: "Merge setting keys into the store. The live page picks them up on its next incremental scan.",
		InputSchema: inputSchema(map[string]any{
			"settings": settingsSchema,
		}, []string{"settings"}),
	}, s.wrap("save_settings", s.saveSettingsEndpoint()), kit.DecodeMCP[SettingsRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "payfill_recent_scans",
		Description: "List recent fill scans, newest first.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max scans (default 20)"},
		}, nil),
	}, s.wrap("recent_scans", s.scansEndpoint()), kit.DecodeMCP[ScansRequest]())
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
