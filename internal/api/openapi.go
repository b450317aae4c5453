package api

import "net/http"

// openAPIDoc describes the admin routes.
func openAPIDoc() map[string]any {
	bearer := []any{map[string]any{"BearerAuth": []string{}}}
	get := func(summary string, secured bool, extra map[string]any) map[string]any {
		op := map[string]any{
			"summary": summary,
			"responses": map[string]any{
				"200": map[string]any{"description": "OK"},
			},
		}
		if secured {
			op["security"] = bearer
			op["responses"].(map[string]any)["401"] = map[string]any{"description": "Missing or invalid API key"}
		}
		for k, v := range extra {
			op[k] = v
		}
		return map[string]any{"get": op}
	}
	queryParam := func(name, typ, desc string) map[string]any {
		return map[string]any{
			"name":        name,
			"in":          "query",
			"required":    false,
			"description": desc,
			"schema":      map[string]any{"type": typ},
		}
	}

	journal := get("Recent journal entries, newest first", true, map[string]any{
		"parameters": []any{queryParam("limit", "integer", "maximum entries (default 50)")},
	})
	stream := get("Server-sent event stream", true, map[string]any{
		"parameters": []any{queryParam("prefix", "string", "only events whose type starts with prefix")},
	})

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "feedbackd admin",
			"version": "1.0",
		},
		"paths": map[string]any{
			"/healthz":   get("Liveness and active feedback", false, nil),
			"/status":    get("Controller state, available feedbacks and config fingerprint", true, nil),
			"/feedbacks": get("Loadable feedbacks", true, nil),
			"/journal":   journal,
			"/events":    stream,
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, openAPIDoc())
}
