// cmd/gridctl/handlers.go

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

func (c *cli) getCommands() map[string]command {
	return map[string]command{
		"help": {
			help:     "help - Shows this help message.",
			handler:  (*cli).handleHelp,
			category: "General",
		},
		"clear": {
			help:     "clear - Clears the terminal screen.",
			handler:  func(c *cli, _ string) error { clearScreen(); return nil },
			category: "General",
		},
		"exit": {
			help:     "exit - Exits the client.",
			handler:  func(c *cli, _ string) error { return io.EOF },
			category: "General",
		},
		"collections": {
			help:     "collections - Lists all collections on the server.",
			handler:  (*cli).handleCollections,
			category: "Admin",
		},
		"seed": {
			help:     "seed <collection> <json_array|file:path> - Inserts an array of documents.",
			handler:  (*cli).handleSeed,
			category: "Admin",
		},
		"index": {
			help:     "index <collection> <field> - Creates a field index.",
			handler:  (*cli).handleIndex,
			category: "Admin",
		},
		"textindex": {
			help:     "textindex <collection> <field> [field...] - Builds a full-text index.",
			handler:  (*cli).handleTextIndex,
			category: "Admin",
		},
		"query": {
			help:     "query <collection> [--start N] [--limit N] [--sort field:dir] [--columns a,b,c] [search terms...] - Runs a grid query.",
			handler:  (*cli).handleQuery,
			category: "Grid",
		},
		"create": {
			help:     "create <collection> <json|file:path> - Creates one row through the editor.",
			handler:  (*cli).handleCreate,
			category: "Editor",
		},
		"edit": {
			help:     "edit <collection> <id> <json|file:path> - Edits one row through the editor.",
			handler:  (*cli).handleEdit,
			category: "Editor",
		},
		"remove": {
			help:     "remove <collection> <id[,id...]> - Removes rows through the editor.",
			handler:  (*cli).handleRemove,
			category: "Editor",
		},
	}
}

func (c *cli) handleHelp(_ string) error {
	categories := map[string][]string{}
	for _, cmd := range c.commands {
		categories[cmd.category] = append(categories[cmd.category], cmd.help)
	}
	order := make([]string, 0, len(categories))
	for cat := range categories {
		order = append(order, cat)
	}
	sort.Strings(order)
	for _, cat := range order {
		fmt.Println(colorOK(cat + ":"))
		lines := categories[cat]
		sort.Strings(lines)
		for _, line := range lines {
			fmt.Println("  " + line)
		}
	}
	return nil
}

func (c *cli) handleCollections(_ string) error {
	body, status, err := c.doRequest(http.MethodGet, "/collections", nil)
	if err != nil {
		return err
	}
	return printAdminResponse(body, status)
}

func (c *cli) handleSeed(args string) error {
	collection, rest, err := splitCollection(args)
	if err != nil {
		return err
	}
	payload, err := getJSONPayload(rest)
	if err != nil {
		return err
	}
	body, status, err := c.doRequest(http.MethodPost, "/collections/"+collection+"/documents", payload)
	if err != nil {
		return err
	}
	return printAdminResponse(body, status)
}

func (c *cli) handleIndex(args string) error {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return errors.New("usage: index <collection> <field>")
	}
	payload, _ := json.Marshal(map[string]string{"field": parts[1]})
	body, status, err := c.doRequest(http.MethodPost, "/collections/"+parts[0]+"/indexes", payload)
	if err != nil {
		return err
	}
	return printAdminResponse(body, status)
}

func (c *cli) handleTextIndex(args string) error {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return errors.New("usage: textindex <collection> <field> [field...]")
	}
	payload, _ := json.Marshal(map[string][]string{"fields": parts[1:]})
	body, status, err := c.doRequest(http.MethodPost, "/collections/"+parts[0]+"/text-index", payload)
	if err != nil {
		return err
	}
	return printAdminResponse(body, status)
}

func (c *cli) handleQuery(args string) error {
	collection, rest, err := splitCollection(args)
	if err != nil {
		return err
	}

	req := map[string]any{
		"draw":   1,
		"start":  0,
		"length": 10,
	}
	var order []map[string]any
	var searchTerms []string

	tokens := strings.Fields(rest)
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		flagValue := func() (string, bool) {
			if i+1 < len(tokens) {
				i++
				return tokens[i], true
			}
			return "", false
		}
		switch token {
		case "--start":
			if v, ok := flagValue(); ok {
				if n, err := strconv.Atoi(v); err == nil {
					req["start"] = n
				}
			}
		case "--limit":
			if v, ok := flagValue(); ok {
				if n, err := strconv.Atoi(v); err == nil {
					req["length"] = n
				}
			}
		case "--sort":
			if v, ok := flagValue(); ok {
				field, dir, _ := strings.Cut(v, ":")
				if dir != "desc" {
					dir = "asc"
				}
				order = append(order, map[string]any{"column": len(order), "dir": dir})
				req["columns"] = appendColumn(req["columns"], field)
			}
		case "--columns":
			if v, ok := flagValue(); ok {
				for _, field := range strings.Split(v, ",") {
					req["columns"] = appendColumn(req["columns"], field)
				}
			}
		default:
			searchTerms = append(searchTerms, token)
		}
	}

	if len(order) > 0 {
		req["order"] = order
	}
	if len(searchTerms) > 0 {
		req["search"] = map[string]any{"value": strings.Join(searchTerms, " ")}
	}

	payload, _ := json.Marshal(req)
	body, status, err := c.doRequest(http.MethodPost, "/tables/"+collection, payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return printAdminResponse(body, status)
	}
	return printEnvelope(body)
}

func appendColumn(existing any, field string) []map[string]any {
	columns, _ := existing.([]map[string]any)
	for _, col := range columns {
		if col["data"] == field {
			return columns
		}
	}
	return append(columns, map[string]any{
		"data":       field,
		"searchable": true,
		"orderable":  true,
	})
}

func (c *cli) handleCreate(args string) error {
	collection, rest, err := splitCollection(args)
	if err != nil {
		return err
	}
	fields, err := getJSONPayload(rest)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(fields, &doc); err != nil {
		return fmt.Errorf("row data must be a JSON object: %w", err)
	}
	payload, _ := json.Marshal(map[string]any{
		"action": "create",
		"data":   map[string]any{"0": doc},
	})
	body, status, err := c.doRequest(http.MethodPost, "/editor/"+collection, payload)
	if err != nil {
		return err
	}
	return printEditorResponse(body, status)
}

func (c *cli) handleEdit(args string) error {
	collection, rest, err := splitCollection(args)
	if err != nil {
		return err
	}
	id, jsonPart, found := strings.Cut(rest, " ")
	if !found {
		return errors.New("usage: edit <collection> <id> <json|file:path>")
	}
	fields, err := getJSONPayload(strings.TrimSpace(jsonPart))
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(fields, &doc); err != nil {
		return fmt.Errorf("row data must be a JSON object: %w", err)
	}
	payload, _ := json.Marshal(map[string]any{
		"action": "edit",
		"data":   map[string]any{id: doc},
	})
	body, status, err := c.doRequest(http.MethodPost, "/editor/"+collection+"?id="+id, payload)
	if err != nil {
		return err
	}
	return printEditorResponse(body, status)
}

func (c *cli) handleRemove(args string) error {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return errors.New("usage: remove <collection> <id[,id...]>")
	}
	payload, _ := json.Marshal(map[string]any{"action": "remove"})
	body, status, err := c.doRequest(http.MethodPost, "/editor/"+parts[0]+"?id="+parts[1], payload)
	if err != nil {
		return err
	}
	return printEditorResponse(body, status)
}

// doRequest performs one HTTP exchange, attaching the bearer token when
// one was provided.
func (c *cli) doRequest(method, path string, payload []byte) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response from %s: %w", path, err)
	}
	return data, resp.StatusCode, nil
}

func splitCollection(args string) (string, string, error) {
	collection, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	if collection == "" {
		return "", "", errors.New("collection name is required")
	}
	return collection, strings.TrimSpace(rest), nil
}
